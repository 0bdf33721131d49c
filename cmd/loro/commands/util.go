package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/audio/resampler"
	"github.com/loroworks/loro/go/pkg/audio/speaker"
	"github.com/loroworks/loro/go/pkg/audio/tone"
	"github.com/loroworks/loro/go/pkg/audio/wav"
	"github.com/loroworks/loro/go/pkg/cli"
	"github.com/loroworks/loro/go/pkg/feed"
	"github.com/loroworks/loro/go/pkg/playout"
	"github.com/loroworks/loro/go/pkg/soundbank"
)

// defaultChunk is the slice duration local commands enqueue with.
const defaultChunk = 200 * time.Millisecond

// outputResult outputs the result using cli package
func outputResult(result any, outputPath string, asJSON bool) error {
	format := cli.FormatYAML
	if asJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputPath,
	})
}

// newDevice builds the output device for local playback commands.
func newDevice(kind string, format pcm.Format, volume int) (playout.Device, error) {
	switch kind {
	case "speaker":
		return speaker.New(format,
			speaker.WithVolume(volume),
			speaker.WithLogger(slog.Default())), nil
	case "null":
		return speaker.Null(), nil
	default:
		return nil, fmt.Errorf("unknown device %q (want speaker or null)", kind)
	}
}

// resolveBank opens the sound bank at location: a directory path or an
// "s3://bucket/prefix" URL. Empty means ~/.loro/sounds. Extra settings
// (s3_region, s3_endpoint) come from the cli context when one is set.
func resolveBank(ctx context.Context, location string) (soundbank.Bank, error) {
	if strings.HasPrefix(location, "s3://") {
		return s3Bank(location)
	}
	if location == "" {
		paths, err := cli.NewPaths()
		if err != nil {
			return nil, err
		}
		if err := paths.EnsureSoundsDir(); err != nil {
			return nil, err
		}
		location = paths.SoundsDir()
	}
	return soundbank.NewDir(location)
}

// s3Bank builds an S3-backed bank from an s3://bucket/prefix URL.
// Credentials and region come from the standard AWS environment
// variables; the context's s3_region and s3_endpoint extras override.
func s3Bank(location string) (soundbank.Bank, error) {
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
	if bucket == "" {
		return nil, fmt.Errorf("invalid bank URL %q", location)
	}

	extra := func(string) string { return "" }
	if cfg := getConfig(); cfg != nil {
		if cliCtx, err := cfg.ResolveContext(contextName); err == nil {
			extra = cliCtx.GetExtra
		}
	}

	region := extra("s3_region")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{Region: region}
	endpoint := extra("s3_endpoint")
	if endpoint == "" {
		endpoint = os.Getenv("AWS_ENDPOINT_URL")
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
		token := os.Getenv("AWS_SESSION_TOKEN")
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: key, SecretAccessKey: secret, SessionToken: token}, nil
		})
	}

	return soundbank.NewS3(s3.New(opts), bucket, prefix), nil
}

// loadClip loads a playable chunk from a file path, a bank:NAME
// reference, or a tone:NAME built-in signal. Raw (headerless) PCM
// files need rawRate to be set.
func loadClip(ctx context.Context, bank soundbank.Bank, arg string, to pcm.Format, rawRate int) (pcm.Chunk, error) {
	if name, ok := strings.CutPrefix(arg, "bank:"); ok {
		return soundbank.ReadClip(ctx, bank, name)
	}
	if name, ok := strings.CutPrefix(arg, "tone:"); ok {
		return tone.Clip(name, to)
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(arg), ".wav") {
		return wav.Decode(data)
	}
	if rawRate == 0 {
		return nil, fmt.Errorf("%s: raw PCM needs --raw-rate", arg)
	}
	format, err := formatForRate(rawRate)
	if err != nil {
		return nil, err
	}
	return format.DataChunk(data[:len(data)&^1]), nil
}

func formatForRate(rate int) (pcm.Format, error) {
	switch rate {
	case 16000:
		return pcm.L16Mono16K, nil
	case 24000:
		return pcm.L16Mono24K, nil
	case 48000:
		return pcm.L16Mono48K, nil
	default:
		return 0, fmt.Errorf("unsupported sample rate %d (want 16000, 24000 or 48000)", rate)
	}
}

// sink receives the audio a command produces: an in-process engine on
// an output device, or a feed client when --to targets a remote serve
// instance.
type sink interface {
	Enqueue(requestID, messageID string, index int, c pcm.Chunk) error
	Complete(requestID string)
	Drain(ctx context.Context, interruptAfter time.Duration) error
	Close()
}

// cueSender is the sink capability of playing a named sound from the
// engine's own bank, so cue audio need not cross the wire.
type cueSender interface {
	Cue(requestID, name string, volume float64) error
}

// newSink builds the audio destination from the shared command flags.
func newSink(ctx context.Context, toURL, device string, format pcm.Format, volume int) (sink, error) {
	if toURL != "" {
		return dialEngine(ctx, toURL, format)
	}
	return localEngine(device, format, volume)
}

func localEngine(device string, format pcm.Format, volume int) (*localSink, error) {
	dev, err := newDevice(device, format, volume)
	if err != nil {
		return nil, err
	}
	player := playout.New(dev,
		playout.WithLogger(slog.Default()),
		playout.WithConcurrentRequests(true),
		playout.WithListener(playout.ListenerFuncs{
			OnStarted: func(messageID string) { cli.PrintSuccess("playing %s", messageID) },
		}))
	return &localSink{player: player}, nil
}

func dialEngine(ctx context.Context, url string, format pcm.Format) (*remoteSink, error) {
	client, err := feed.Dial(ctx, url, format, feed.WithClientLogger(slog.Default()))
	if err != nil {
		return nil, err
	}
	return &remoteSink{client: client}, nil
}

// localSink plays through an in-process engine.
type localSink struct {
	player *playout.Player
}

func (s *localSink) Enqueue(requestID, messageID string, index int, c pcm.Chunk) error {
	if !s.player.Enqueue(requestID, index, c, messageID) {
		return fmt.Errorf("engine rejected chunk %d of %s", index, requestID)
	}
	return nil
}

func (s *localSink) Complete(requestID string) {
	s.player.MarkComplete(requestID)
}

// Drain blocks until the engine has no requests left, the timer (if
// any) interrupts playback, or the context ends.
func (s *localSink) Drain(ctx context.Context, interruptAfter time.Duration) error {
	var interrupt <-chan time.Time
	if interruptAfter > 0 {
		t := time.NewTimer(interruptAfter)
		defer t.Stop()
		interrupt = t.C
	}

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			s.player.ClearAll()
			return ctx.Err()
		case <-interrupt:
			s.player.ClearAll()
			cli.PrintSuccess("playback interrupted")
			return nil
		case <-tick.C:
			if s.player.Playing() == "" && len(s.player.Requests()) == 0 {
				return nil
			}
		}
	}
}

func (s *localSink) Close() {
	s.player.Close()
}

// remoteSink streams to a serve instance over the feed websocket. The
// remote engine plays on its own schedule; Drain only services the
// interrupt timer, and Close flushes queued frames.
type remoteSink struct {
	client *feed.Client
}

func (s *remoteSink) Enqueue(requestID, messageID string, index int, c pcm.Chunk) error {
	return s.client.SendChunk(requestID, messageID, index, c)
}

func (s *remoteSink) Cue(requestID, name string, volume float64) error {
	return s.client.Cue(requestID, name, volume)
}

func (s *remoteSink) Complete(requestID string) {
	if err := s.client.Complete(requestID); err != nil {
		slog.Warn("loro: complete request", "request_id", requestID, "error", err)
	}
}

func (s *remoteSink) Drain(ctx context.Context, interruptAfter time.Duration) error {
	if interruptAfter <= 0 {
		return nil
	}
	t := time.NewTimer(interruptAfter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		s.client.ClearAll()
		return ctx.Err()
	case <-t.C:
		s.client.ClearAll()
		cli.PrintSuccess("playback interrupted")
		return nil
	}
}

func (s *remoteSink) Close() {
	s.client.Close()
}

// enqueueChunk slices one decoded chunk and enqueues it under
// requestID, resampled to the engine format. Returns the next index.
func enqueueChunk(out sink, requestID, messageID string, start int, c pcm.Chunk, to pcm.Format, chunkDur time.Duration) (int, error) {
	pr, pw := io.Pipe()
	go func() {
		_, err := c.WriteTo(pw)
		pw.CloseWithError(err)
	}()
	return enqueueStream(out, requestID, messageID, start, pr, c.Format(), to, chunkDur)
}

// enqueueStream reads raw PCM in the from format and enqueues slices
// of at least chunkDur each, resampled to the to format.
func enqueueStream(out sink, requestID, messageID string, start int, r io.Reader, from, to pcm.Format, chunkDur time.Duration) (int, error) {
	rs, err := resampler.New(r, from, to)
	if err != nil {
		return start, err
	}
	defer rs.Close()

	index := start
	err = pcm.Copy(pcm.WriteFunc(func(c pcm.Chunk) error {
		if err := out.Enqueue(requestID, messageID, index, c); err != nil {
			return err
		}
		index++
		return nil
	}), rs, to, chunkDur)
	return index, err
}
