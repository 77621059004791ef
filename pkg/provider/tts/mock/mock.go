// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled clips to consumers and to verify the
// text and voice passed to the TTS backend. For tests that need to control
// when a synthesis call resolves (out-of-order completion, post-teardown
// resolution), set SynthesizeFunc.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeClip:   &tts.Clip{PCM: []byte{1, 0}, SampleRate: 48000, Channels: 1},
//	    ListVoicesResult: []tts.Voice{{ID: "v1", Name: "Alice"}},
//	}
//	clip, _ := p.Synthesize(ctx, "hello", "v1")
package mock

import (
	"context"
	"sync"

	"github.com/nomicbot/nomic/pkg/provider/tts"
)

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string
	// VoiceID is the voice identifier passed to Synthesize.
	VoiceID string
}

// ListVoicesCall records a single invocation of ListVoices.
type ListVoicesCall struct {
	// Languages is a copy of the language filter passed to ListVoices.
	Languages []string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// NameResult is returned by Name. Defaults to "mock" when empty.
	NameResult string

	// SynthesizeFunc, if non-nil, is invoked by Synthesize instead of
	// returning SynthesizeClip/SynthesizeErr. The call is still recorded.
	SynthesizeFunc func(ctx context.Context, text, voiceID string) (*tts.Clip, error)

	// SynthesizeClip is returned by Synthesize when SynthesizeFunc is nil.
	SynthesizeClip *tts.Clip

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize
	// when SynthesizeFunc is nil.
	SynthesizeErr error

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.Voice

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// ListVoicesCalls records every call to ListVoices in order.
	ListVoicesCalls []ListVoicesCall
}

// Name returns NameResult, or "mock" when unset.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NameResult == "" {
		return "mock"
	}
	return p.NameResult
}

// Synthesize records the call and returns the configured result.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string) (*tts.Clip, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, VoiceID: voiceID})
	fn := p.SynthesizeFunc
	clip := p.SynthesizeClip
	err := p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voiceID)
	}
	if err != nil {
		return nil, err
	}
	if clip == nil {
		clip = &tts.Clip{PCM: []byte{0, 0}, SampleRate: 48000, Channels: 1}
	}
	return clip, nil
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context, languages []string) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	langs := make([]string, len(languages))
	copy(langs, languages)
	p.ListVoicesCalls = append(p.ListVoicesCalls, ListVoicesCall{Languages: langs})
	return p.ListVoicesResult, p.ListVoicesErr
}

// CallCountSynthesize returns the number of recorded Synthesize calls.
// Thread-safe.
func (p *Provider) CallCountSynthesize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.ListVoicesCalls = nil
}
