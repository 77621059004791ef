package tts

import "time"

// Clip is one synthesised utterance as raw PCM, immutable once created.
type Clip struct {
	// PCM holds interleaved little-endian int16 samples.
	PCM []byte

	// SampleRate in Hz at which PCM was synthesised.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// Duration returns the play time of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	samples := len(c.PCM) / 2 / c.Channels
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Voice describes one selectable voice from a provider's catalogue.
type Voice struct {
	// ID is the provider-specific voice identifier (e.g. "en-US-News-N").
	ID string

	// Name is the human-readable voice name shown in pickers.
	Name string

	// Gender is the provider-reported voice gender, if any
	// ("MALE", "FEMALE", "NEUTRAL" or empty).
	Gender string

	// Language is the BCP-47 language code of the voice (e.g. "en-US").
	Language string
}
