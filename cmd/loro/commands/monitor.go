package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/loroworks/loro/go/pkg/cli"
	"github.com/loroworks/loro/go/pkg/feed"
)

var (
	flagMonitorURL      string
	flagMonitorInterval time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch a running engine in a terminal UI",
	Long: `Watch a running engine in a terminal UI.

Polls the engine's /stats endpoint and shows per-request queue
progress plus a transition log. Point it at a 'loro serve' instance:

  loro serve &
  loro monitor --url http://localhost:7700`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&flagMonitorURL, "url", "http://localhost:7700", "base URL of the engine")
	monitorCmd.Flags().DurationVar(&flagMonitorInterval, "interval", 500*time.Millisecond, "poll interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Route log output into the TUI; stray writes would corrupt the alt screen.
	logWriter := cli.NewLogWriter(50)
	slog.SetDefault(slog.New(slog.NewTextHandler(logWriter, nil)))

	p := tea.NewProgram(NewMonitorModel(flagMonitorURL, flagMonitorInterval, logWriter), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// MonitorModel is the TUI model.
type MonitorModel struct {
	url      string
	interval time.Duration
	client   *http.Client

	// Last poll result
	stats    *feed.StatsResponse
	fetchErr error

	// Transition log
	logContent  []string
	lastPlaying string

	// Log writer for capturing log output
	logWriter *cli.LogWriter

	// UI
	styles cli.Styles
	width  int
	height int

	// Quit flag
	quitting bool
}

// NewMonitorModel creates a new monitor model polling the engine at url.
func NewMonitorModel(url string, interval time.Duration, logWriter *cli.LogWriter) MonitorModel {
	return MonitorModel{
		url:        strings.TrimRight(url, "/"),
		interval:   interval,
		client:     &http.Client{Timeout: 2 * time.Second},
		logContent: []string{},
		logWriter:  logWriter,
		styles:     cli.NewStyles(cli.DefaultTheme),
	}
}

// StatsMsg carries one /stats poll result.
type StatsMsg struct {
	Stats *feed.StatsResponse
	Err   error
}

// TickMsg is sent periodically to trigger the next poll.
type TickMsg time.Time

// LogMsg wraps log lines for bubbletea.
type LogMsg string

// Init initializes the model.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.listenLogs(), m.tick())
}

func (m MonitorModel) listenLogs() tea.Cmd {
	if m.logWriter == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-m.logWriter.Channel()
		if !ok {
			return nil
		}
		return LogMsg(line)
	}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m MonitorModel) fetch() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.Get(m.url + "/stats")
		if err != nil {
			return StatsMsg{Err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return StatsMsg{Err: fmt.Errorf("stats: %s", resp.Status)}
		}
		var stats feed.StatsResponse
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return StatsMsg{Err: err}
		}
		return StatsMsg{Stats: &stats}
	}
}

// Update handles messages.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyRunes:
			if len(msg.Runes) == 1 && msg.Runes[0] == 'q' {
				m.quitting = true
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case StatsMsg:
		m.applyStats(msg)

	case LogMsg:
		m.logContent = append(m.logContent, string(msg))
		if len(m.logContent) > 50 {
			m.logContent = m.logContent[len(m.logContent)-50:]
		}
		return m, m.listenLogs()
	}

	return m, nil
}

func (m *MonitorModel) applyStats(msg StatsMsg) {
	if msg.Err != nil {
		if m.fetchErr == nil {
			m.addLog(fmt.Sprintf("poll failed: %v", msg.Err))
		}
		m.fetchErr = msg.Err
		return
	}
	if m.fetchErr != nil {
		m.addLog("engine reachable")
	}
	m.fetchErr = nil
	m.stats = msg.Stats

	if playing := msg.Stats.Playing; playing != m.lastPlaying {
		switch {
		case playing == "":
			m.addLog(fmt.Sprintf("stopped %s", m.lastPlaying))
		default:
			m.addLog(fmt.Sprintf("playing %s", playing))
		}
		m.lastPlaying = playing
	}
}

func (m *MonitorModel) addLog(s string) {
	ts := time.Now().Format("15:04:05")
	m.logContent = append(m.logContent, fmt.Sprintf("[%s] %s", ts, s))
	if len(m.logContent) > 50 {
		m.logContent = m.logContent[len(m.logContent)-50:]
	}
}

// View renders the UI.
func (m MonitorModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	status := "idle"
	alert := false
	switch {
	case m.fetchErr != nil:
		status = "unreachable"
		alert = true
	case m.stats != nil && m.stats.Playing != "":
		status = "playing " + m.stats.Playing
	case m.stats != nil && m.stats.Active != "":
		status = "buffering " + m.stats.Active
	}

	frame := cli.Frame{
		Styles: m.styles,
		Title:  "LORO // " + m.url,
		Status: status,
		Alert:  alert,
		Sections: []cli.Section{
			{Label: "Requests", Content: m.requestLines},
			{Label: "Log", Content: func() []string { return m.logContent }},
		},
		Help: "q/Esc/Ctrl+C=quit",
	}

	return frame.Render(m.width, m.height)
}

// requestLines formats one line per in-flight request.
func (m MonitorModel) requestLines() []string {
	if m.stats == nil {
		return []string{"waiting for stats..."}
	}
	if len(m.stats.Requests) == 0 {
		return []string{"(no requests)"}
	}
	lines := make([]string, 0, len(m.stats.Requests))
	for _, r := range m.stats.Requests {
		marker := " "
		switch {
		case r.Playing:
			marker = ">"
		case r.Active:
			marker = "*"
		}
		state := ""
		if r.Complete {
			state = "  complete"
		}
		lines = append(lines, fmt.Sprintf("%s %-24s played %d/%d  next #%d%s",
			marker, r.RequestID, r.PlayedChunks, r.TotalChunks, r.NextIndex, state))
	}
	return lines
}
