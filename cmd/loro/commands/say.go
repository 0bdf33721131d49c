package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/audio/wav"
	"github.com/loroworks/loro/go/pkg/cli"
	"github.com/loroworks/loro/go/pkg/script"
	"github.com/loroworks/loro/go/pkg/soundbank"
	"github.com/loroworks/loro/go/pkg/speech"
)

var (
	flagSayVoice  string
	flagSayModel  string
	flagSaySpeed  float64
	flagSayCache  bool
	flagSayTo     string
	flagSayDevice string
	flagSayVolume int
	flagSayRate   int
	flagSayChunk  time.Duration
)

// sayCmd represents the say command
var sayCmd = &cobra.Command{
	Use:   "say TEXT",
	Short: "Speak a reply script",
	Long: `Speak a reply script through the local engine.

Text lines are synthesized with the context's TTS voice. A line that is
a JSON object plays a sound cue from the bank instead:

  {"cue": "fanfare", "vol": 0.8}

Pass "-" to read the script from stdin. With --cache, synthesized
audio is stored in the sound bank and reused on the next run. With
--to, audio streams to a running serve instance instead of playing
locally.

Examples:
  loro say "Good morning! Ready to practice?"
  echo 'You got it!
  {"cue": "drum"}' | loro say -
  loro say --cache --voice ash "Let's begin."
  loro say --to ws://gear.local:7700/feed "Time for bed!"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSay,
}

func init() {
	sayCmd.Flags().StringVar(&flagSayVoice, "voice", "", "voice name (overrides context)")
	sayCmd.Flags().StringVar(&flagSayModel, "model", "", "speech model (overrides context)")
	sayCmd.Flags().Float64Var(&flagSaySpeed, "speed", 0, "speaking speed multiplier (overrides context)")
	sayCmd.Flags().BoolVar(&flagSayCache, "cache", false, "cache synthesized audio in the sound bank")
	sayCmd.Flags().StringVar(&flagSayTo, "to", "", "websocket URL of a remote engine's /feed endpoint")
	sayCmd.Flags().StringVar(&flagSayDevice, "device", "speaker", "output device: speaker or null")
	sayCmd.Flags().IntVar(&flagSayVolume, "volume", 100, "speaker volume 0-100")
	sayCmd.Flags().IntVar(&flagSayRate, "rate", 24000, "playback sample rate")
	sayCmd.Flags().DurationVar(&flagSayChunk, "chunk", defaultChunk, "slice duration per enqueued chunk")
}

func runSay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	input := strings.Join(args, " ")
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		input = string(data)
	}

	parser := script.NewParser()
	events := parser.Feed(input)
	events = append(events, parser.Flush()...)
	if len(events) == 0 {
		return nil
	}

	format, err := formatForRate(flagSayRate)
	if err != nil {
		return err
	}

	// A context is optional: cue-only scripts and cached text need no
	// API key.
	var apiKey, baseURL, model, voice, sounds string
	var speed float64
	if cliCtx, err := getContext(); err == nil {
		apiKey = cliCtx.APIKey
		baseURL = cliCtx.BaseURL
		model = cliCtx.Model
		voice = cliCtx.Voice
		speed = cliCtx.Speed
		sounds = cliCtx.Sounds
	}
	if flagSayVoice != "" {
		voice = flagSayVoice
	}
	if flagSayModel != "" {
		model = flagSayModel
	}
	if flagSaySpeed != 0 {
		speed = flagSaySpeed
	}

	var synthOpts []speech.Option
	if model != "" {
		synthOpts = append(synthOpts, speech.WithModel(model))
	}
	if voice != "" {
		synthOpts = append(synthOpts, speech.WithVoice(voice))
	}
	if speed != 0 {
		synthOpts = append(synthOpts, speech.WithSpeed(speed))
	}
	if baseURL != "" {
		synthOpts = append(synthOpts, speech.WithBaseURL(baseURL))
	}
	synth := speech.NewOpenAI(apiKey, synthOpts...)

	bank, err := resolveBank(ctx, sounds)
	if err != nil {
		return err
	}

	out, err := newSink(ctx, flagSayTo, flagSayDevice, format, flagSayVolume)
	if err != nil {
		return err
	}
	defer out.Close()

	for i, ev := range events {
		requestID := fmt.Sprintf("say-%03d", i+1)
		switch ev.Kind {
		case script.KindCue:
			if remote, ok := out.(cueSender); ok {
				if err := remote.Cue(requestID, ev.Cue.Name, ev.Cue.Volume); err != nil {
					return err
				}
				continue
			}
			clip, err := soundbank.ReadClip(ctx, bank, ev.Cue.Name)
			if err != nil {
				// A missing sound never sinks the rest of the reply.
				slog.Warn("loro: cue sound unavailable", "cue", ev.Cue.Name, "error", err)
				continue
			}
			clip = pcm.Scale(clip, float32(ev.Cue.Volume))
			if _, err := enqueueChunk(out, requestID, "cue:"+ev.Cue.Name, 0, clip, format, flagSayChunk); err != nil {
				return err
			}
			out.Complete(requestID)

		case script.KindText:
			if err := sayText(ctx, out, bank, synth, apiKey, requestID, ev.Text, format); err != nil {
				return err
			}
		}
	}

	return out.Drain(ctx, 0)
}

// sayText plays one text event: from the cache when possible, otherwise
// synthesized and optionally cached.
func sayText(ctx context.Context, out sink, bank soundbank.Bank, synth *speech.OpenAI, apiKey, requestID, text string, format pcm.Format) error {
	message := snippet(text)

	cacheKey := soundbank.CacheKey(synth.Voice(), text)
	if flagSayCache {
		if clip, err := cachedClip(ctx, bank, cacheKey); err == nil {
			slog.Debug("loro: tts cache hit", "key", cacheKey)
			if _, err := enqueueChunk(out, requestID, message, 0, clip, format, flagSayChunk); err != nil {
				return err
			}
			out.Complete(requestID)
			return nil
		}
	}

	if apiKey == "" {
		return fmt.Errorf("no TTS API key configured; set one with 'loro config add-context'")
	}

	stream, from, err := synth.Speak(ctx, text)
	if err != nil {
		return err
	}
	defer stream.Close()

	var reader io.Reader = stream
	var raw bytes.Buffer
	if flagSayCache {
		reader = io.TeeReader(stream, &raw)
	}

	if _, err := enqueueStream(out, requestID, message, 0, reader, from, format, flagSayChunk); err != nil {
		return err
	}
	out.Complete(requestID)

	if flagSayCache && raw.Len() > 0 {
		storeCache(ctx, bank, cacheKey, from.DataChunk(raw.Bytes()))
	}
	return nil
}

func cachedClip(ctx context.Context, bank soundbank.Bank, key string) (pcm.Chunk, error) {
	rc, err := bank.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return wav.Decode(data)
}

// storeCache writes synthesized audio back to the bank. Failures only
// cost the cache, so they are logged and swallowed.
func storeCache(ctx context.Context, bank soundbank.Bank, key string, c pcm.Chunk) {
	data, err := wav.Encode(c)
	if err != nil {
		slog.Warn("loro: encode tts cache", "key", key, "error", err)
		return
	}
	w, err := bank.Save(ctx, key)
	if err != nil {
		slog.Warn("loro: save tts cache", "key", key, "error", err)
		return
	}
	if _, err := w.Write(data); err != nil {
		slog.Warn("loro: write tts cache", "key", key, "error", err)
		w.Close()
		return
	}
	if err := w.Close(); err != nil {
		slog.Warn("loro: write tts cache", "key", key, "error", err)
		return
	}
	slog.Debug("loro: tts cached", "key", key, "size", cli.FormatBytes(int64(len(data))))
}

// snippet shortens text to a short correlation label.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= 40 {
		return s
	}
	runes := []rune(s)
	return string(runes[:40]) + "..."
}
