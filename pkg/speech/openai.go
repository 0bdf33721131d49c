package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// OpenAI speech models.
const (
	// ModelGPT4oMiniTTS is the steerable low-latency model.
	ModelGPT4oMiniTTS = "gpt-4o-mini-tts"

	// ModelTTS1 is the legacy low-latency model.
	ModelTTS1 = "tts-1"

	// ModelTTS1HD is the legacy quality-optimized model.
	ModelTTS1HD = "tts-1-hd"
)

const (
	defaultModel = ModelGPT4oMiniTTS
	defaultVoice = "coral"
)

// config holds OpenAI synthesizer configuration.
type config struct {
	model      string
	voice      string
	speed      float64
	baseURL    string
	httpClient *http.Client
}

// Option configures the OpenAI synthesizer.
type Option func(*config)

// WithModel sets the speech model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoice sets the voice name (e.g. "coral", "alloy", "ash").
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithSpeed sets the speaking speed multiplier in [0.25, 4.0].
func WithSpeed(speed float64) Option {
	return func(c *config) { c.speed = speed }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// OpenAI implements [Synthesizer] using the OpenAI speech API.
//
// Responses stream raw PCM at 24kHz mono, so playback can begin before
// synthesis finishes. Any OpenAI-compatible provider works by setting
// WithBaseURL.
type OpenAI struct {
	client *openai.Client
	model  string
	voice  string
	speed  float64
}

var _ Synthesizer = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI speech synthesizer.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:      defaultModel,
		voice:      defaultVoice,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{
		client: &client,
		model:  cfg.model,
		voice:  cfg.voice,
		speed:  cfg.speed,
	}
}

// Speak synthesizes text as a raw sample stream.
func (o *OpenAI) Speak(ctx context.Context, text string) (io.ReadCloser, pcm.Format, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, ErrEmptyText
	}
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if o.speed != 0 {
		params.Speed = openai.Float(o.speed)
	}
	res, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("speech: synthesize: %w", err)
	}
	return res.Body, pcm.L16Mono24K, nil
}

// Voice returns the configured voice name.
func (o *OpenAI) Voice() string {
	return o.voice
}

// Model returns the configured model name.
func (o *OpenAI) Model() string {
	return o.model
}
