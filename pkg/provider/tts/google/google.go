// Package google provides a Google Cloud Text-to-Speech backed TTS provider
// using the REST API. It implements the tts.Provider interface.
//
// Synthesis is performed via POST /v1/text:synthesize requesting LINEAR16
// audio at a fixed sample rate; the base64 WAV payload is parsed and stripped
// to raw PCM. The voice catalogue is retrieved from GET /v1/voices with an
// optional language filter.
//
// Typical usage:
//
//	p, err := google.New(apiKey,
//	    google.WithSampleRate(48000),
//	    google.WithTimeout(15*time.Second),
//	)
//	clip, err := p.Synthesize(ctx, "hello there", "en-US-News-N")
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nomicbot/nomic/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultBaseURL    = "https://texttospeech.googleapis.com"
	defaultSampleRate = 48000
	defaultTimeout    = 30 * time.Second
	defaultVoice      = "en-US-News-N"

	synthesizeEndpoint = "/v1/text:synthesize"
	voicesEndpoint     = "/v1/voices"
)

// ---- options ----

// Option is a functional option for configuring a google Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API base URL. Used in tests and for
// proxied deployments.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithSampleRate sets the sample rate requested from the API. Defaults to
// 48000 so clips can be transmitted to Discord without resampling.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithDefaultVoice sets the voice used when Synthesize is called with an
// empty voiceID. Defaults to "en-US-News-N".
func WithDefaultVoice(voiceID string) Option {
	return func(p *Provider) {
		p.defaultVoice = voiceID
	}
}

// ---- Provider ----

// Provider implements tts.Provider backed by the Google Cloud TTS REST API.
// It is safe for concurrent use; multiple Synthesize calls may run in parallel.
type Provider struct {
	apiKey       string
	baseURL      string
	sampleRate   int
	defaultVoice string
	httpClient   *http.Client
}

// New creates a new Google Cloud TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		sampleRate:   defaultSampleRate,
		defaultVoice: defaultVoice,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "google" }

// ---- request/response types ----

// synthesizeRequest is the JSON body sent to POST /v1/text:synthesize.
type synthesizeRequest struct {
	Input       textInput   `json:"input"`
	Voice       voiceParams `json:"voice"`
	AudioConfig audioConfig `json:"audioConfig"`
}

type textInput struct {
	Text string `json:"text"`
}

type voiceParams struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type audioConfig struct {
	AudioEncoding   string `json:"audioEncoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
}

// synthesizeResponse is the JSON body returned by POST /v1/text:synthesize.
type synthesizeResponse struct {
	AudioContent string `json:"audioContent"` // base64-encoded WAV
}

// voicesResponse is the JSON body returned by GET /v1/voices.
type voicesResponse struct {
	Voices []googleVoice `json:"voices"`
}

// googleVoice is a single voice entry from the API catalogue.
type googleVoice struct {
	LanguageCodes          []string `json:"languageCodes"`
	Name                   string   `json:"name"`
	SSMLGender             string   `json:"ssmlGender"`
	NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
}

// ---- Synthesize ----

// Synthesize performs a single text:synthesize call and returns the decoded
// PCM clip. The WAV container returned by the API is parsed so the clip
// carries the actual sample rate and channel count, not assumptions.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string) (*tts.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("google: text must not be empty")
	}
	if voiceID == "" {
		voiceID = p.defaultVoice
	}

	body := synthesizeRequest{
		Input: textInput{Text: text},
		Voice: voiceParams{
			LanguageCode: languageCodeOf(voiceID),
			Name:         voiceID,
		},
		AudioConfig: audioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: p.sampleRate,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("google: marshal synthesize request: %w", err)
	}

	reqURL := p.baseURL + synthesizeEndpoint + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("google: create synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: POST %s: %w", synthesizeEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: POST %s returned status %d", synthesizeEndpoint, resp.StatusCode)
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("google: decode synthesize response: %w", err)
	}
	if sr.AudioContent == "" {
		return nil, errors.New("google: synthesize response missing audioContent")
	}

	wav, err := base64.StdEncoding.DecodeString(sr.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google: decode audioContent: %w", err)
	}

	info, err := parseWAV(wav)
	if err != nil {
		return nil, err
	}

	return &tts.Clip{
		PCM:        wav[info.DataOffset:],
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
	}, nil
}

// ---- ListVoices ----

// maxVoicesPerLanguage caps each language's slice of the catalogue so that a
// voice-heavy language (Google ships hundreds of English voices) cannot crowd
// the other configured languages out of a bounded picker.
const maxVoicesPerLanguage = 40

// ListVoices retrieves the voice catalogue. When languages is non-empty, one
// GET /v1/voices call is issued per language code and the results are
// concatenated in the order the languages were given, at most
// [maxVoicesPerLanguage] per language.
func (p *Provider) ListVoices(ctx context.Context, languages []string) ([]tts.Voice, error) {
	if len(languages) == 0 {
		return p.listVoices(ctx, "")
	}

	var all []tts.Voice
	for _, lang := range languages {
		voices, err := p.listVoices(ctx, lang)
		if err != nil {
			return nil, err
		}
		if len(voices) > maxVoicesPerLanguage {
			voices = voices[:maxVoicesPerLanguage]
		}
		all = append(all, voices...)
	}
	return all, nil
}

// listVoices performs a single GET /v1/voices call, optionally filtered by
// language code.
func (p *Provider) listVoices(ctx context.Context, language string) ([]tts.Voice, error) {
	params := url.Values{}
	params.Set("key", p.apiKey)
	if language != "" {
		params.Set("languageCode", language)
	}

	reqURL := p.baseURL + voicesEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: GET %s: %w", voicesEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: GET %s returned status %d", voicesEndpoint, resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("google: decode voices response: %w", err)
	}

	voices := make([]tts.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		lang := ""
		if len(v.LanguageCodes) > 0 {
			lang = v.LanguageCodes[0]
		}
		voices = append(voices, tts.Voice{
			ID:       v.Name,
			Name:     v.Name,
			Gender:   v.SSMLGender,
			Language: lang,
		})
	}
	return voices, nil
}

// ---- helpers ----

// languageCodeOf derives the BCP-47 language code from a Google voice name.
// Voice names lead with the code: "en-US-News-N" → "en-US". Falls back to the
// whole ID when the name has fewer than two segments.
func languageCodeOf(voiceID string) string {
	parts := strings.SplitN(voiceID, "-", 3)
	if len(parts) < 2 {
		return voiceID
	}
	return parts[0] + "-" + parts[1]
}
