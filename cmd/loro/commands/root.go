package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/loroworks/loro/go/pkg/cli"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	outputJSON  bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loro",
	Short: "Speech playback engine for conversational audio",
	Long: `loro - ordered reassembly and gapless playback for streamed speech.

The engine accepts audio chunks that arrive out of order, reassembles
them per request, and plays exactly one request at a time with no gaps.
Producers feed it over websocket or RTP; local commands feed it from
files, the sound bank, or a TTS voice.

Configuration is stored in ~/.loro/config.yaml and supports multiple
contexts, similar to kubectl's context management.

Examples:
  # Set up a context with TTS credentials
  loro config add-context dev --api-key sk-xxxxx --voice coral

  # Run the engine and watch it
  loro serve --listen :7700
  loro monitor --url http://localhost:7700

  # Speak a reply script through the local speaker
  echo 'Well done!
  {"cue": "fanfare", "vol": 0.8}' | loro say -`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.loro/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(vocabCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// Configure slog based on verbose flag
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfigFrom(cfgFile)
	if err != nil {
		// Log but don't exit so commands that need no config still run.
		fmt.Fprintf(os.Stderr, "Warning: config: %v\n", err)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'loro config use-context'")
		}
		return nil, err
	}

	return ctx, nil
}

// isVerbose returns whether verbose mode is enabled
func isVerbose() bool {
	return verbose
}
