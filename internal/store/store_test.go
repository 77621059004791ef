package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nomicbot/nomic/internal/store"
)

type voicePref struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	s := store.New[voicePref](filepath.Join(t.TempDir(), "voices.json"))

	want := voicePref{Provider: "google", VoiceID: "en-US-News-N"}
	if err := s.Put("user-1", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get("user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := store.New[voicePref](filepath.Join(t.TempDir(), "voices.json"))

	if _, err := s.Get("nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	s := store.New[voicePref](filepath.Join(t.TempDir(), "voices.json"))

	if err := s.Put("user-1", voicePref{VoiceID: "v1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete("user-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("user-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete("user-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voices.json")

	s1 := store.New[voicePref](path)
	if err := s1.Put("user-1", voicePref{Provider: "elevenlabs", VoiceID: "rachel"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s1.Put("user-2", voicePref{Provider: "google", VoiceID: "de-DE-Standard-A"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s2, err := store.Open[voicePref](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := s2.Get("user-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.VoiceID != "de-DE-Standard-A" {
		t.Errorf("VoiceID = %q, want de-DE-Standard-A", got.VoiceID)
	}
	if n, _ := s2.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s, err := store.Open[voicePref](filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n, _ := s.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voices.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Open[voicePref](path); err == nil {
		t.Fatal("Open on corrupt file succeeded, want error")
	}
}

func TestStore_CreatesParentDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "nested", "voices.json")
	s := store.New[voicePref](path)
	if err := s.Put("user-1", voicePref{VoiceID: "v1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("backing file not created: %v", err)
	}
}

func TestStore_AllReturnsCopy(t *testing.T) {
	t.Parallel()

	s := store.New[voicePref](filepath.Join(t.TempDir(), "voices.json"))
	if err := s.Put("user-1", voicePref{VoiceID: "v1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	delete(all, "user-1")

	if _, err := s.Get("user-1"); err != nil {
		t.Fatalf("mutating All result affected store: %v", err)
	}
}

func TestStore_NoStaleTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := store.New[voicePref](filepath.Join(dir, "voices.json"))
	for i := range 5 {
		if err := s.Put("user", voicePref{VoiceID: string(rune('a' + i))}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("stale temp file left behind: %s", e.Name())
		}
	}
}

func TestDocument_GetZeroBeforeFirstWrite(t *testing.T) {
	t.Parallel()

	type rotation struct {
		Index int `json:"index"`
	}
	d := store.NewDocument[rotation](filepath.Join(t.TempDir(), "banners.json"))

	got, err := d.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Index != 0 {
		t.Errorf("Index = %d, want 0", got.Index)
	}
}

func TestDocument_SetGetRoundTrip(t *testing.T) {
	t.Parallel()

	type rotation struct {
		URLs  []string `json:"urls"`
		Index int      `json:"index"`
	}
	path := filepath.Join(t.TempDir(), "banners.json")

	d1 := store.NewDocument[rotation](path)
	if err := d1.Set(rotation{URLs: []string{"a", "b"}, Index: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	d2 := store.NewDocument[rotation](path)
	got, err := d2.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Index != 1 || len(got.URLs) != 2 {
		t.Errorf("got %+v, want index 1 and 2 urls", got)
	}
}

func TestDocument_Update(t *testing.T) {
	t.Parallel()

	type rotation struct {
		Index int `json:"index"`
	}
	d := store.NewDocument[rotation](filepath.Join(t.TempDir(), "banners.json"))

	for range 3 {
		err := d.Update(func(r *rotation) error {
			r.Index++
			return nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	got, err := d.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Index != 3 {
		t.Errorf("Index = %d, want 3", got.Index)
	}
}

func TestDocument_UpdateErrorLeavesValue(t *testing.T) {
	t.Parallel()

	type rotation struct {
		Index int `json:"index"`
	}
	d := store.NewDocument[rotation](filepath.Join(t.TempDir(), "banners.json"))
	if err := d.Set(rotation{Index: 7}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	wantErr := errors.New("nope")
	err := d.Update(func(r *rotation) error {
		r.Index = 99
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Update = %v, want wrapped nope", err)
	}

	got, _ := d.Get()
	if got.Index != 7 {
		t.Errorf("Index = %d, want 7 (unchanged)", got.Index)
	}
}

// A failing callback sees a shallow copy, so rollback of reference-typed
// fields only holds when the callback replaces them instead of mutating in
// place. This pins the safe pattern the Update contract prescribes.
func TestDocument_UpdateErrorWithReplacedMap(t *testing.T) {
	t.Parallel()

	type state struct {
		Entries map[string]string `json:"entries"`
	}
	d := store.NewDocument[state](filepath.Join(t.TempDir(), "state.json"))
	if err := d.Set(state{Entries: map[string]string{"kept": "v1"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	wantErr := errors.New("nope")
	err := d.Update(func(s *state) error {
		next := map[string]string{"kept": "v1", "staged": "v2"}
		s.Entries = next
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Update = %v, want wrapped nope", err)
	}

	got, _ := d.Get()
	if len(got.Entries) != 1 || got.Entries["kept"] != "v1" {
		t.Errorf("Entries = %v, want only kept=v1", got.Entries)
	}
}
