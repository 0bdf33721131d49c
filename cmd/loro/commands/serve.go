package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/loroworks/loro/go/cmd/loro/internal/config"
	"github.com/loroworks/loro/go/pkg/feed"
	"github.com/loroworks/loro/go/pkg/playout"
	"github.com/loroworks/loro/go/pkg/vocab"
)

var (
	flagServeSettings   string
	flagServeListen     string
	flagServeRTP        string
	flagServeRTPRate    int
	flagServeRate       int
	flagServeDevice     string
	flagServeVolume     int
	flagServeMaxChunks  int
	flagServeStaleTTL   time.Duration
	flagServeSweepEvery time.Duration
	flagServeConcurrent bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback engine",
	Long: `Run the playback engine with websocket ingest.

Producers connect to ws://<listen>/feed and stream chunked audio, or
cue sounds from the engine's bank by name; GET /stats reports queue
state and GET /metrics exposes prometheus counters. With --rtp, a UDP
listener ingests RTP audio as well.

Settings can come from a YAML file (see --settings); flags override.

Example:
  loro serve --listen :7700 --device null
  loro serve -f serve.yaml --rtp :5004`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagServeSettings, "settings", "f", "", "settings file (YAML)")
	serveCmd.Flags().StringVar(&flagServeListen, "listen", "", "websocket/HTTP listen address (default :7700)")
	serveCmd.Flags().StringVar(&flagServeRTP, "rtp", "", "RTP UDP listen address (disabled when empty)")
	serveCmd.Flags().IntVar(&flagServeRTPRate, "rtp-rate", 0, "incoming RTP sample rate (default 48000)")
	serveCmd.Flags().IntVar(&flagServeRate, "rate", 0, "playback sample rate (default 24000)")
	serveCmd.Flags().StringVar(&flagServeDevice, "device", "", "output device: speaker or null (default speaker)")
	serveCmd.Flags().IntVar(&flagServeVolume, "volume", 0, "speaker volume 0-100 (default 100)")
	serveCmd.Flags().IntVar(&flagServeMaxChunks, "max-chunks", 0, "stored chunks bound per request")
	serveCmd.Flags().DurationVar(&flagServeStaleTTL, "stale-ttl", 0, "idle time before a request is swept")
	serveCmd.Flags().DurationVar(&flagServeSweepEvery, "sweep-every", 0, "stale sweep interval")
	serveCmd.Flags().BoolVar(&flagServeConcurrent, "concurrent", false, "buffer chunks for pending requests")
}

// serveSettings merges the settings file with flag overrides.
func serveSettings(cmd *cobra.Command) (*config.Settings, error) {
	s, err := config.Load(flagServeSettings)
	if err != nil {
		return nil, err
	}

	if flagServeListen != "" {
		s.Ingest.Listen = flagServeListen
	}
	if cmd.Flags().Changed("rtp") {
		s.Ingest.RTP = flagServeRTP
	}
	if flagServeRTPRate != 0 {
		s.Ingest.RTPRate = flagServeRTPRate
	}
	if flagServeRate != 0 {
		s.Engine.Rate = flagServeRate
	}
	if flagServeDevice != "" {
		s.Device.Kind = flagServeDevice
	}
	if cmd.Flags().Changed("volume") {
		s.Device.Volume = flagServeVolume
	}
	if flagServeMaxChunks != 0 {
		s.Engine.MaxChunks = flagServeMaxChunks
	}
	if flagServeStaleTTL != 0 {
		s.Engine.StaleTTL = config.Duration(flagServeStaleTTL)
	}
	if flagServeSweepEvery != 0 {
		s.Engine.SweepInterval = config.Duration(flagServeSweepEvery)
	}
	if cmd.Flags().Changed("concurrent") {
		s.Engine.Concurrent = flagServeConcurrent
	}

	return s, s.Validate()
}

func engineOptions(s *config.Settings, book *vocab.Book) []playout.Option {
	opts := []playout.Option{playout.WithLogger(slog.Default())}
	if s.Engine.MaxChunks != 0 {
		opts = append(opts, playout.WithMaxChunksPerRequest(s.Engine.MaxChunks))
	}
	if s.Engine.StaleTTL != 0 {
		opts = append(opts, playout.WithStaleRequestTTL(s.Engine.StaleTTL.Duration()))
	}
	if s.Engine.SweepInterval != 0 {
		opts = append(opts, playout.WithSweepInterval(s.Engine.SweepInterval.Duration()))
	}
	if s.Engine.Concurrent {
		opts = append(opts, playout.WithConcurrentRequests(true))
	}
	if book != nil {
		// Message ids carry the spoken text; playback starting means
		// the learner heard it.
		opts = append(opts, playout.WithListener(playout.ListenerFuncs{
			OnStarted: func(messageID string) {
				records, err := book.TouchText(context.Background(), messageID)
				if err != nil {
					slog.Warn("loro: vocab touch", "error", err)
					return
				}
				for _, r := range records {
					slog.Info("loro: book word heard", "word", r.Word, "count", r.HeardCount)
				}
			},
		}))
	}
	return opts
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	s, err := serveSettings(cmd)
	if err != nil {
		return err
	}

	format, err := formatForRate(s.Engine.Rate)
	if err != nil {
		return err
	}

	dev, err := newDevice(s.Device.Kind, format, s.Device.Volume)
	if err != nil {
		return err
	}

	var book *vocab.Book
	if b, closeBook, err := openBook(cmd.Context()); err != nil {
		logger.Warn("loro: vocabulary book unavailable", "error", err)
	} else {
		book = b
		defer closeBook()
	}

	player := playout.New(dev, engineOptions(s, book)...)
	defer player.Close()

	reg := prometheus.NewRegistry()
	metrics := feed.NewMetrics(reg, player)

	bank, err := resolveBank(cmd.Context(), s.Bank)
	if err != nil {
		return fmt.Errorf("bank: %w", err)
	}

	feedServer := feed.NewServer(player, format,
		feed.WithServerLogger(logger),
		feed.WithServerMetrics(metrics),
		feed.WithServerBank(bank))
	defer feedServer.Close()

	if s.Ingest.RTP != "" {
		rtpFormat, err := formatForRate(s.Ingest.RTPRate)
		if err != nil {
			return fmt.Errorf("rtp: %w", err)
		}
		rtpIngest, err := feed.ListenRTP(player, s.Ingest.RTP, rtpFormat, format,
			feed.WithRTPLogger(logger),
			feed.WithRTPMetrics(metrics))
		if err != nil {
			return fmt.Errorf("rtp: %w", err)
		}
		defer rtpIngest.Close()
		logger.Info("loro: rtp ingest listening", "addr", rtpIngest.Addr(), "rate", s.Ingest.RTPRate)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", feedServer)

	httpServer := &http.Server{
		Addr:              s.Ingest.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("loro: engine listening",
			"addr", s.Ingest.Listen,
			"rate", s.Engine.Rate,
			"device", s.Device.Kind)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("loro: shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("loro: http shutdown", "error", err)
	}
	return nil
}
