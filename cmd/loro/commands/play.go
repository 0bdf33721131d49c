package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/loroworks/loro/go/pkg/cli"
	"github.com/loroworks/loro/go/pkg/soundbank"
)

var (
	flagPlayTo        string
	flagPlayDevice    string
	flagPlayVolume    int
	flagPlayRate      int
	flagPlayChunk     time.Duration
	flagPlayRawRate   int
	flagPlayInterrupt time.Duration
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play FILE...",
	Short: "Play local audio files or sound bank clips",
	Long: `Play WAV files, raw PCM files, or sound bank clips through a
local engine. Files queue up and play back to back with no gaps.

A bank:NAME argument plays a clip from the sound bank (the context's
sounds location, or ~/.loro/sounds). A tone:NAME argument plays a
built-in test signal (beep, chime, scale) without any assets.

With --to, audio streams to a running serve instance instead of
playing locally; --device and --volume are ignored.

Examples:
  loro play hello.wav goodbye.wav
  loro play bank:fanfare
  loro play tone:scale
  loro play long-story.wav --interrupt-after 3s
  loro play --to ws://gear.local:7700/feed hello.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&flagPlayTo, "to", "", "websocket URL of a remote engine's /feed endpoint")
	playCmd.Flags().StringVar(&flagPlayDevice, "device", "speaker", "output device: speaker or null")
	playCmd.Flags().IntVar(&flagPlayVolume, "volume", 100, "speaker volume 0-100")
	playCmd.Flags().IntVar(&flagPlayRate, "rate", 24000, "playback sample rate")
	playCmd.Flags().DurationVar(&flagPlayChunk, "chunk", defaultChunk, "slice duration per enqueued chunk")
	playCmd.Flags().IntVar(&flagPlayRawRate, "raw-rate", 0, "sample rate of raw (headerless) PCM files")
	playCmd.Flags().DurationVar(&flagPlayInterrupt, "interrupt-after", 0, "clear all playback after this long")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := formatForRate(flagPlayRate)
	if err != nil {
		return err
	}

	var bank soundbank.Bank
	for _, arg := range args {
		if strings.HasPrefix(arg, "bank:") {
			bank, err = resolveBank(ctx, bankLocation())
			if err != nil {
				return err
			}
			break
		}
	}

	out, err := newSink(ctx, flagPlayTo, flagPlayDevice, format, flagPlayVolume)
	if err != nil {
		return err
	}
	defer out.Close()

	for i, arg := range args {
		clip, err := loadClip(ctx, bank, arg, format, flagPlayRawRate)
		if err != nil {
			return err
		}

		requestID := fmt.Sprintf("play-%03d", i+1)
		name := arg
		if !strings.HasPrefix(arg, "bank:") && !strings.HasPrefix(arg, "tone:") {
			name = filepath.Base(arg)
		}

		n, err := enqueueChunk(out, requestID, name, 0, clip, format, flagPlayChunk)
		if err != nil {
			return err
		}
		out.Complete(requestID)
		cli.PrintSuccess("queued %s (%s)", name, cli.FormatDuration(clip.Duration()))
		slog.Debug("loro: queued", "file", name, "chunks", n)
	}

	return out.Drain(ctx, flagPlayInterrupt)
}

// bankLocation returns the sound bank location from the active context,
// or empty for the default directory.
func bankLocation() string {
	cfg := getConfig()
	if cfg == nil {
		return ""
	}
	cliCtx, err := cfg.ResolveContext(contextName)
	if err != nil {
		return ""
	}
	return cliCtx.Sounds
}
