package audio

import "time"

// Frame represents a single unit of PCM audio flowing toward the voice
// transport. Frames are produced by the playback engine and consumed by a
// [Connection]'s output stream.
type Frame struct {
	// Data holds interleaved little-endian int16 PCM samples.
	Data []byte

	// SampleRate in Hz (48000 for Discord voice).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks this frame's position relative to the start of the clip
	// it was sliced from.
	Timestamp time.Duration
}

// Duration returns the play time covered by the frame's samples.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
