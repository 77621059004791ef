// Package playback implements the playback engine: a thin pacing layer that
// feeds one synthesized clip at a time into an audio sink as 20 ms PCM frames.
//
// The engine deliberately knows nothing about queuing. The session controller
// enforces that at most one clip is playing and hands over the next clip only
// after the idle callback fires.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/nomicbot/nomic/pkg/audio"
	"github.com/nomicbot/nomic/pkg/provider/tts"
)

const (
	frameDuration = 20 * time.Millisecond

	// 48 kHz stereo signed 16-bit little-endian, 20 ms per frame.
	frameBytes = 48000 * 2 * 2 / 50
)

var targetFormat = audio.Format{SampleRate: 48000, Channels: 2}

// Option configures a [Player].
type Option func(*Player)

// WithOnPlaying registers a callback invoked when playback of a clip starts.
func WithOnPlaying(fn func()) Option {
	return func(p *Player) { p.onPlaying = fn }
}

// Player plays one clip at a time into sink. Play never blocks; the clip is
// paced out on a dedicated goroutine and the idle callback fires when it
// finishes or is stopped.
type Player struct {
	sink      chan<- audio.Frame
	onIdle    func()
	onPlaying func()

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPlayer creates a [Player] writing to sink. onIdle is invoked after every
// clip ends, including clips cut short by Stop.
func NewPlayer(sink chan<- audio.Frame, onIdle func(), opts ...Option) *Player {
	p := &Player{sink: sink, onIdle: onIdle}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play starts playing clip. The caller must not invoke Play again until the
// idle callback has fired.
func (p *Player) Play(clip *tts.Clip) {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx, clip)
}

// Stop cancels the clip currently playing, if any. The idle callback still
// fires when the playback goroutine winds down.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Player) run(ctx context.Context, clip *tts.Clip) {
	defer p.onIdle()

	if clip == nil || len(clip.PCM) == 0 {
		return
	}

	pcm := audio.Transcode(clip.PCM, audio.Format{
		SampleRate: clip.SampleRate,
		Channels:   clip.Channels,
	}, targetFormat)

	if p.onPlaying != nil {
		p.onPlaying()
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var ts time.Duration
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		data := pcm[off:min(end, len(pcm))]
		if len(data) < frameBytes {
			// Pad the trailing frame with silence to a full 20 ms.
			padded := make([]byte, frameBytes)
			copy(padded, data)
			data = padded
		}

		select {
		case <-ctx.Done():
			return
		case p.sink <- audio.Frame{
			Data:       data,
			SampleRate: targetFormat.SampleRate,
			Channels:   targetFormat.Channels,
			Timestamp:  ts,
		}:
		}
		ts += frameDuration

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
