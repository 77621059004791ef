package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/nomicbot/nomic/internal/store"
)

// ErrNoBanners is returned by Rotate when no banners are stored.
var ErrNoBanners = errors.New("no banners stored")

// ErrBannerNotFound is returned when the named banner does not exist.
var ErrBannerNotFound = errors.New("banner not found")

// BannerSetter applies an image URL as the guild banner.
type BannerSetter interface {
	SetBanner(ctx context.Context, imageURL string) error
}

// BannerState is the persisted banner collection plus the name currently
// applied to the guild.
type BannerState struct {
	Banners map[string]string `json:"banners"`
	Current string            `json:"current"`
}

// BannerEntry pairs a banner name with its image URL, for listings.
type BannerEntry struct {
	Name string
	URL  string
}

// Banners manages the named banner collection and the daily rotation.
type Banners struct {
	doc    *store.Document[BannerState]
	setter BannerSetter
	log    *slog.Logger

	// pick chooses an index in [0, n); replaced in tests.
	pick func(n int) int
}

// NewBanners creates a [Banners] applying images through setter.
func NewBanners(doc *store.Document[BannerState], setter BannerSetter) *Banners {
	return &Banners{
		doc:    doc,
		setter: setter,
		log:    slog.Default().With("component", "banners"),
		pick:   rand.IntN,
	}
}

// Add stores a banner under name, replacing any banner with the same name.
func (b *Banners) Add(name, imageURL string) error {
	return b.doc.Update(func(s *BannerState) error {
		if s.Banners == nil {
			s.Banners = make(map[string]string)
		}
		s.Banners[name] = imageURL
		return nil
	})
}

// Remove deletes the named banner.
// Returns [ErrBannerNotFound] when it does not exist.
func (b *Banners) Remove(name string) error {
	return b.doc.Update(func(s *BannerState) error {
		if _, ok := s.Banners[name]; !ok {
			return fmt.Errorf("%w: %q", ErrBannerNotFound, name)
		}
		delete(s.Banners, name)
		if s.Current == name {
			s.Current = ""
		}
		return nil
	})
}

// List returns all stored banners sorted by name.
func (b *Banners) List() ([]BannerEntry, error) {
	state, err := b.doc.Get()
	if err != nil {
		return nil, err
	}
	entries := make([]BannerEntry, 0, len(state.Banners))
	for name, url := range state.Banners {
		entries = append(entries, BannerEntry{Name: name, URL: url})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// SetCurrent records the named banner as current without applying it. Used
// when the image was already applied out of band (e.g. while uploading a new
// banner to obtain its permanent URL).
func (b *Banners) SetCurrent(name string) error {
	return b.doc.Update(func(s *BannerState) error {
		if _, ok := s.Banners[name]; !ok {
			return fmt.Errorf("%w: %q", ErrBannerNotFound, name)
		}
		s.Current = name
		return nil
	})
}

// Set applies the named banner to the guild and records it as current.
func (b *Banners) Set(ctx context.Context, name string) error {
	state, err := b.doc.Get()
	if err != nil {
		return err
	}
	url, ok := state.Banners[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBannerNotFound, name)
	}
	if err := b.setter.SetBanner(ctx, url); err != nil {
		return fmt.Errorf("announce: set banner %q: %w", name, err)
	}
	return b.doc.Update(func(s *BannerState) error {
		s.Current = name
		return nil
	})
}

// Rotate picks a random stored banner other than the current one, applies it
// and records it as current. With a single stored banner it re-applies that
// one. Returns [ErrNoBanners] when the collection is empty.
func (b *Banners) Rotate(ctx context.Context) error {
	state, err := b.doc.Get()
	if err != nil {
		return err
	}
	if len(state.Banners) == 0 {
		return ErrNoBanners
	}

	candidates := make([]string, 0, len(state.Banners))
	for name := range state.Banners {
		if name != state.Current || len(state.Banners) == 1 {
			candidates = append(candidates, name)
		}
	}
	sort.Strings(candidates)
	next := candidates[b.pick(len(candidates))]

	if err := b.Set(ctx, next); err != nil {
		return err
	}
	b.log.Info("rotated banner", "banner", next)
	return nil
}
