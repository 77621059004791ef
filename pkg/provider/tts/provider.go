// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Google Cloud TTS,
// ElevenLabs, or the OpenAI speech API) and presents a uniform batch
// interface: one utterance in, one playable PCM clip out. The session
// controller issues one Synthesize call per eligible chat message; calls may
// run concurrently and resolve out of order.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (one per pending chat message).
type Provider interface {
	// Synthesize converts text into a playable PCM clip using the given
	// provider-specific voice identifier. An empty voiceID selects the
	// provider's default voice.
	//
	// Returns an error if the backend cannot be reached, rejects the request,
	// or ctx is cancelled. Implementations must not return a nil Clip with a
	// nil error.
	Synthesize(ctx context.Context, text, voiceID string) (*Clip, error)

	// ListVoices returns the voices available from this provider. When
	// languages is non-empty, only voices matching one of the given BCP-47
	// language prefixes (e.g. "en", "de") are returned. The list reflects the
	// backend's current catalogue and may change between calls.
	ListVoices(ctx context.Context, languages []string) ([]Voice, error)

	// Name returns a short stable identifier for the backend, used in logs
	// and metrics ("google", "elevenlabs", "openai").
	Name() string
}
