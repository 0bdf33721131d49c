package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loroworks/loro/go/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage loro CLI configuration.

Configuration is stored in ~/.loro/config.yaml.
Multiple contexts can be defined for different accounts or environments.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or update a context",
	Long: `Add a context with TTS credentials and playback defaults.

Examples:
  loro config add-context dev --api-key sk-xxxxx --voice coral
  loro config add-context prod --api-key sk-xxxxx --sounds s3://loro-sounds/prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("configuration not initialized")
		}

		// Update in place when the context already exists.
		ctx, err := cfg.GetContext(name)
		if err != nil {
			ctx = &cli.Context{Name: name}
		}

		if cmd.Flags().Changed("api-key") {
			ctx.APIKey, _ = cmd.Flags().GetString("api-key")
		}
		if cmd.Flags().Changed("base-url") {
			ctx.BaseURL, _ = cmd.Flags().GetString("base-url")
		}
		if cmd.Flags().Changed("model") {
			ctx.Model, _ = cmd.Flags().GetString("model")
		}
		if cmd.Flags().Changed("voice") {
			ctx.Voice, _ = cmd.Flags().GetString("voice")
		}
		if cmd.Flags().Changed("speed") {
			ctx.Speed, _ = cmd.Flags().GetFloat64("speed")
		}
		if cmd.Flags().Changed("sounds") {
			ctx.Sounds, _ = cmd.Flags().GetString("sounds")
		}

		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context '%s' saved", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("configuration not initialized")
		}
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("configuration not initialized")
		}
		if err := cfg.UseContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("configuration not initialized")
		}
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
		} else {
			fmt.Println(cfg.CurrentContext)
		}
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("configuration not initialized")
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration (API keys masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("configuration not initialized")
		}

		view := cli.Config{
			CurrentContext: cfg.CurrentContext,
			Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
		}
		for name, ctx := range cfg.Contexts {
			masked := *ctx
			masked.APIKey = cli.MaskAPIKey(ctx.APIKey)
			view.Contexts[name] = &masked
		}

		return outputResult(view, "", outputJSON)
	},
}

func init() {
	// add-context flags
	configAddContextCmd.Flags().StringP("api-key", "k", "", "TTS API key")
	configAddContextCmd.Flags().StringP("base-url", "u", "", "TTS API base URL (any OpenAI-compatible endpoint)")
	configAddContextCmd.Flags().String("model", "", "speech model (default: gpt-4o-mini-tts)")
	configAddContextCmd.Flags().String("voice", "", "voice name (default: coral)")
	configAddContextCmd.Flags().Float64("speed", 0, "speaking speed multiplier")
	configAddContextCmd.Flags().String("sounds", "", "sound bank: directory or s3://bucket/prefix")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
