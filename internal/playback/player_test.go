package playback_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nomicbot/nomic/internal/playback"
	"github.com/nomicbot/nomic/pkg/audio"
	"github.com/nomicbot/nomic/pkg/provider/tts"
)

func waitIdle(t *testing.T, idle <-chan struct{}) {
	t.Helper()
	select {
	case <-idle:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for idle callback")
	}
}

func TestPlayer_PlaysClipInFullFrames(t *testing.T) {
	t.Parallel()

	sink := make(chan audio.Frame, 16)
	idle := make(chan struct{}, 1)
	p := playback.NewPlayer(sink, func() { idle <- struct{}{} })

	// 2.5 frames of 48 kHz stereo.
	clip := &tts.Clip{PCM: make([]byte, 9600), SampleRate: 48000, Channels: 2}
	p.Play(clip)
	waitIdle(t, idle)
	close(sink)

	var frames []audio.Frame
	for f := range sink {
		frames = append(frames, f)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if len(f.Data) != 3840 {
			t.Errorf("frame %d: %d bytes, want 3840", i, len(f.Data))
		}
		if f.SampleRate != 48000 || f.Channels != 2 {
			t.Errorf("frame %d: format %d/%d, want 48000/2", i, f.SampleRate, f.Channels)
		}
		if want := time.Duration(i) * 20 * time.Millisecond; f.Timestamp != want {
			t.Errorf("frame %d: timestamp %v, want %v", i, f.Timestamp, want)
		}
	}
}

func TestPlayer_TranscodesToTargetFormat(t *testing.T) {
	t.Parallel()

	sink := make(chan audio.Frame, 16)
	idle := make(chan struct{}, 1)
	p := playback.NewPlayer(sink, func() { idle <- struct{}{} })

	// 20 ms of 24 kHz mono becomes exactly one 48 kHz stereo frame.
	clip := &tts.Clip{PCM: make([]byte, 960), SampleRate: 24000, Channels: 1}
	p.Play(clip)
	waitIdle(t, idle)
	close(sink)

	var frames []audio.Frame
	for f := range sink {
		frames = append(frames, f)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if len(frames[0].Data) != 3840 {
		t.Fatalf("frame is %d bytes, want 3840", len(frames[0].Data))
	}
}

func TestPlayer_EmptyClipSignalsIdleWithoutFrames(t *testing.T) {
	t.Parallel()

	sink := make(chan audio.Frame, 1)
	idle := make(chan struct{}, 1)
	p := playback.NewPlayer(sink, func() { idle <- struct{}{} })

	p.Play(&tts.Clip{SampleRate: 48000, Channels: 2})
	waitIdle(t, idle)

	if len(sink) != 0 {
		t.Fatalf("empty clip produced %d frames", len(sink))
	}
}

func TestPlayer_StopCutsPlaybackShort(t *testing.T) {
	t.Parallel()

	// Unbuffered sink with no reader: the run goroutine blocks on the first
	// send until Stop cancels it.
	sink := make(chan audio.Frame)
	idle := make(chan struct{}, 1)
	p := playback.NewPlayer(sink, func() { idle <- struct{}{} })

	clip := &tts.Clip{PCM: make([]byte, 3840*50), SampleRate: 48000, Channels: 2}
	p.Play(clip)

	time.Sleep(10 * time.Millisecond)
	p.Stop()
	waitIdle(t, idle)
}

func TestPlayer_StopWithoutPlayIsSafe(t *testing.T) {
	t.Parallel()

	p := playback.NewPlayer(make(chan audio.Frame, 1), func() {})
	p.Stop()
	p.Stop()
}

func TestPlayer_OnPlayingCallback(t *testing.T) {
	t.Parallel()

	sink := make(chan audio.Frame, 16)
	idle := make(chan struct{}, 1)
	var playing atomic.Int32
	p := playback.NewPlayer(sink, func() { idle <- struct{}{} },
		playback.WithOnPlaying(func() { playing.Add(1) }))

	p.Play(&tts.Clip{PCM: make([]byte, 3840), SampleRate: 48000, Channels: 2})
	waitIdle(t, idle)

	if playing.Load() != 1 {
		t.Fatalf("onPlaying fired %d times, want 1", playing.Load())
	}
}

func TestPlayer_SequentialClips(t *testing.T) {
	t.Parallel()

	sink := make(chan audio.Frame, 32)
	idle := make(chan struct{}, 1)
	p := playback.NewPlayer(sink, func() { idle <- struct{}{} })

	for range 2 {
		p.Play(&tts.Clip{PCM: make([]byte, 3840*2), SampleRate: 48000, Channels: 2})
		waitIdle(t, idle)
	}
	close(sink)

	n := 0
	for range sink {
		n++
	}
	if n != 4 {
		t.Fatalf("got %d frames across two clips, want 4", n)
	}
}
