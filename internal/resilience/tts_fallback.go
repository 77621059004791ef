package resilience

import (
	"context"

	"github.com/nomicbot/nomic/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple TTS backends. Each backend has its own circuit breaker, so a
// provider that keeps timing out is bypassed until its reset window elapses.
//
// Voice identifiers are provider-specific; deployments that configure
// fallbacks should pick backends that accept the same voice catalogue or
// tolerate unknown voices by substituting their default.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(provider tts.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Name identifies the failover chain in logs and metrics.
func (f *TTSFallback) Name() string { return "fallback" }

// Synthesize converts text to a clip using the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, text, voiceID string) (*tts.Clip, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*tts.Clip, error) {
		return p.Synthesize(ctx, text, voiceID)
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context, languages []string) ([]tts.Voice, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.Voice, error) {
		return p.ListVoices(ctx, languages)
	})
}
