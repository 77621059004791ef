// Package openai provides a TTS provider backed by the OpenAI speech API.
// It implements the tts.Provider interface.
//
// The speech endpoint returns raw 24 kHz mono PCM when the "pcm" response
// format is requested; the playback engine transcodes to the transport
// format. OpenAI has no voice catalogue endpoint, so ListVoices returns the
// fixed set of built-in voices.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nomicbot/nomic/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultModel = oai.SpeechModelGPT4oMiniTTS
	defaultVoice = "alloy"

	// The "pcm" response format is 24 kHz 16-bit little-endian mono.
	pcmSampleRate = 24000
)

// builtinVoices is the fixed voice catalogue of the speech API.
// The API reports no per-voice language; all voices are multilingual.
var builtinVoices = []tts.Voice{
	{ID: "alloy", Name: "Alloy", Gender: "NEUTRAL"},
	{ID: "echo", Name: "Echo", Gender: "MALE"},
	{ID: "fable", Name: "Fable", Gender: "NEUTRAL"},
	{ID: "onyx", Name: "Onyx", Gender: "MALE"},
	{ID: "nova", Name: "Nova", Gender: "FEMALE"},
	{ID: "shimmer", Name: "Shimmer", Gender: "FEMALE"},
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   oai.SpeechModel
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the speech model (e.g. "tts-1", "gpt-4o-mini-tts").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = oai.SpeechModel(model)
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  oai.SpeechModel
}

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: cfg.model}, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "openai" }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string) (*tts.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openai: text must not be empty")
	}
	if voiceID == "" {
		voiceID = defaultVoice
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          p.model,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voiceID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech request: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech response: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("openai: empty speech response")
	}

	return &tts.Clip{
		PCM:        pcm,
		SampleRate: pcmSampleRate,
		Channels:   1,
	}, nil
}

// ListVoices implements tts.Provider. The built-in voices are multilingual,
// so the language filter is ignored.
func (p *Provider) ListVoices(_ context.Context, _ []string) ([]tts.Voice, error) {
	voices := make([]tts.Voice, len(builtinVoices))
	copy(voices, builtinVoices)
	return voices, nil
}
