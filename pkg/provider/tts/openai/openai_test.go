package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()

	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "  ", "alloy"); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestSynthesize_ReturnsPCMClip(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pcm)
	}))
	defer srv.Close()

	p, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clip, err := p.Synthesize(context.Background(), "hello", "alloy")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.SampleRate != pcmSampleRate {
		t.Errorf("SampleRate = %d, want %d", clip.SampleRate, pcmSampleRate)
	}
	if clip.Channels != 1 {
		t.Errorf("Channels = %d, want 1", clip.Channels)
	}
	if len(clip.PCM) != len(pcm) {
		t.Errorf("PCM length = %d, want %d", len(clip.PCM), len(pcm))
	}
}

func TestListVoices_ReturnsBuiltins(t *testing.T) {
	t.Parallel()

	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	voices, err := p.ListVoices(context.Background(), []string{"en"})
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != len(builtinVoices) {
		t.Fatalf("got %d voices, want %d", len(voices), len(builtinVoices))
	}
	if voices[0].ID != "alloy" {
		t.Errorf("first voice = %q, want alloy", voices[0].ID)
	}

	// The returned slice must be a copy; mutating it must not leak.
	voices[0].ID = "mutated"
	again, _ := p.ListVoices(context.Background(), nil)
	if again[0].ID != "alloy" {
		t.Error("ListVoices returned a shared slice")
	}
}
