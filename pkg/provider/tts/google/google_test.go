package google

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// buildWAV constructs a minimal RIFF/WAVE container around pcm.
func buildWAV(t *testing.T, pcm []byte, sampleRate, channels int) []byte {
	t.Helper()
	var buf []byte
	appendU32 := func(v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		buf = append(buf, b...)
	}
	appendU16 := func(v uint16) {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		buf = append(buf, b...)
	}

	buf = append(buf, "RIFF"...)
	appendU32(uint32(36 + len(pcm)))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	appendU32(16)
	appendU16(1) // PCM
	appendU16(uint16(channels))
	appendU32(uint32(sampleRate))
	appendU32(uint32(sampleRate * channels * 2))
	appendU16(uint16(channels * 2))
	appendU16(16)

	buf = append(buf, "data"...)
	appendU32(uint32(len(pcm)))
	buf = append(buf, pcm...)
	return buf
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav := buildWAV(t, pcm, 48000, 1)

	var gotReq synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != synthesizeEndpoint {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing API key in query, got %q", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(synthesizeResponse{
			AudioContent: base64.StdEncoding.EncodeToString(wav),
		})
	}))
	defer srv.Close()

	p, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clip, err := p.Synthesize(context.Background(), "hello there", "en-US-News-N")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", clip.SampleRate)
	}
	if clip.Channels != 1 {
		t.Errorf("Channels = %d, want 1", clip.Channels)
	}
	if len(clip.PCM) != len(pcm) {
		t.Errorf("PCM length = %d, want %d", len(clip.PCM), len(pcm))
	}

	if gotReq.Input.Text != "hello there" {
		t.Errorf("request text = %q, want %q", gotReq.Input.Text, "hello there")
	}
	if gotReq.Voice.Name != "en-US-News-N" {
		t.Errorf("request voice = %q, want %q", gotReq.Voice.Name, "en-US-News-N")
	}
	if gotReq.Voice.LanguageCode != "en-US" {
		t.Errorf("request languageCode = %q, want %q", gotReq.Voice.LanguageCode, "en-US")
	}
	if gotReq.AudioConfig.AudioEncoding != "LINEAR16" {
		t.Errorf("request encoding = %q, want LINEAR16", gotReq.AudioConfig.AudioEncoding)
	}
}

func TestSynthesize_DefaultVoice(t *testing.T) {
	t.Parallel()

	wav := buildWAV(t, []byte{1, 0}, 48000, 1)
	var gotVoice string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthesizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotVoice = req.Voice.Name
		_ = json.NewEncoder(w).Encode(synthesizeResponse{
			AudioContent: base64.StdEncoding.EncodeToString(wav),
		})
	}))
	defer srv.Close()

	p, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hi", ""); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotVoice != "en-US-News-N" {
		t.Errorf("voice = %q, want default en-US-News-N", gotVoice)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()

	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "   ", "en-US-News-N"); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hi", "en-US-News-N"); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestListVoices_LanguageFilter(t *testing.T) {
	t.Parallel()

	catalogue := map[string][]googleVoice{
		"en": {
			{Name: "en-US-News-N", SSMLGender: "FEMALE", LanguageCodes: []string{"en-US"}},
			{Name: "en-GB-Standard-A", SSMLGender: "FEMALE", LanguageCodes: []string{"en-GB"}},
		},
		"de": {
			{Name: "de-DE-Standard-B", SSMLGender: "MALE", LanguageCodes: []string{"de-DE"}},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != voicesEndpoint {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		lang := r.URL.Query().Get("languageCode")
		_ = json.NewEncoder(w).Encode(voicesResponse{Voices: catalogue[lang]})
	}))
	defer srv.Close()

	p, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	voices, err := p.ListVoices(context.Background(), []string{"en", "de"})
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 3 {
		t.Fatalf("got %d voices, want 3", len(voices))
	}
	if voices[0].ID != "en-US-News-N" {
		t.Errorf("first voice = %q, want en-US-News-N", voices[0].ID)
	}
	if voices[2].Language != "de-DE" {
		t.Errorf("third voice language = %q, want de-DE", voices[2].Language)
	}
}

func TestListVoices_CapsEachLanguage(t *testing.T) {
	t.Parallel()

	// English carries far more voices than the per-language cap; the smaller
	// German catalogue must still appear in full after it.
	catalogue := map[string][]googleVoice{}
	for i := 0; i < maxVoicesPerLanguage+30; i++ {
		catalogue["en"] = append(catalogue["en"], googleVoice{
			Name:          fmt.Sprintf("en-US-Voice-%d", i),
			SSMLGender:    "FEMALE",
			LanguageCodes: []string{"en-US"},
		})
	}
	for i := 0; i < 5; i++ {
		catalogue["de"] = append(catalogue["de"], googleVoice{
			Name:          fmt.Sprintf("de-DE-Voice-%d", i),
			SSMLGender:    "MALE",
			LanguageCodes: []string{"de-DE"},
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := r.URL.Query().Get("languageCode")
		_ = json.NewEncoder(w).Encode(voicesResponse{Voices: catalogue[lang]})
	}))
	defer srv.Close()

	p, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	voices, err := p.ListVoices(context.Background(), []string{"en", "de"})
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if want := maxVoicesPerLanguage + 5; len(voices) != want {
		t.Fatalf("got %d voices, want %d", len(voices), want)
	}
	if got := voices[maxVoicesPerLanguage].ID; got != "de-DE-Voice-0" {
		t.Errorf("voice after the English slice = %q, want de-DE-Voice-0", got)
	}
}

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestLanguageCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		voiceID string
		want    string
	}{
		{"en-US-News-N", "en-US"},
		{"de-DE-Standard-B", "de-DE"},
		{"es-ES-Wavenet-C", "es-ES"},
		{"weird", "weird"},
	}
	for _, tt := range tests {
		if got := languageCodeOf(tt.voiceID); got != tt.want {
			t.Errorf("languageCodeOf(%q) = %q, want %q", tt.voiceID, got, tt.want)
		}
	}
}

func TestParseWAV(t *testing.T) {
	t.Parallel()

	pcm := []byte{10, 0, 20, 0}
	wav := buildWAV(t, pcm, 24000, 2)

	info, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if info.SampleRate != 24000 {
		t.Errorf("SampleRate = %d, want 24000", info.SampleRate)
	}
	if info.Channels != 2 {
		t.Errorf("Channels = %d, want 2", info.Channels)
	}
	if got := wav[info.DataOffset:]; len(got) != len(pcm) || got[0] != 10 {
		t.Errorf("data offset points at wrong bytes: %v", got)
	}
}

func TestParseWAV_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("RIFF")},
		{"not riff", append([]byte("JUNK1234WAVE"), make([]byte, 32)...)},
		{"no data chunk", buildWAV(t, nil, 24000, 1)[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseWAV(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}
