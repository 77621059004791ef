// Package announce implements the auxiliary community features: birthday
// announcements and rotating server banners, both layered on the persisted
// JSON stores and triggered by the daily schedule.
package announce

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/nomicbot/nomic/internal/store"
)

// Messenger posts messages to a text channel.
type Messenger interface {
	Send(ctx context.Context, channelID, content string) error
}

// Birthday is a recurring month/day date.
type Birthday struct {
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String renders the date in M/D form, matching the input format.
func (b Birthday) String() string {
	return fmt.Sprintf("%d/%d", b.Month, b.Day)
}

// dateFormat accepts M/D without leading zeros, e.g. "3/7" or "12/31".
var dateFormat = regexp.MustCompile(`^(1[0-2]|[1-9])/(3[01]|[12][0-9]|[1-9])$`)

// ParseDate parses an M/D date string (no leading zeros).
func ParseDate(s string) (Birthday, error) {
	m := dateFormat.FindStringSubmatch(s)
	if m == nil {
		return Birthday{}, fmt.Errorf("date %q is not in M/D format (no leading zeros)", s)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	return Birthday{Month: month, Day: day}, nil
}

// BirthdayEntry pairs a user with their stored date, for listings.
type BirthdayEntry struct {
	UserID string
	Date   Birthday
}

// Birthdays manages stored member birthdays and posts the daily celebration
// messages.
type Birthdays struct {
	store     *store.Store[Birthday]
	notifier  Messenger
	channelID string
	log       *slog.Logger
}

// NewBirthdays creates a [Birthdays] posting to channelID.
func NewBirthdays(st *store.Store[Birthday], notifier Messenger, channelID string) *Birthdays {
	return &Birthdays{
		store:     st,
		notifier:  notifier,
		channelID: channelID,
		log:       slog.Default().With("component", "birthdays"),
	}
}

// Add stores userID's birthday, replacing any previous date.
func (b *Birthdays) Add(userID string, date Birthday) error {
	return b.store.Put(userID, date)
}

// Remove deletes userID's stored birthday.
// Returns [store.ErrNotFound] when none is stored.
func (b *Birthdays) Remove(userID string) error {
	return b.store.Delete(userID)
}

// List returns all stored birthdays sorted by date, ties broken by user ID.
func (b *Birthdays) List() ([]BirthdayEntry, error) {
	all, err := b.store.All()
	if err != nil {
		return nil, err
	}
	entries := make([]BirthdayEntry, 0, len(all))
	for userID, date := range all {
		entries = append(entries, BirthdayEntry{UserID: userID, Date: date})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, z := entries[i], entries[j]
		if a.Date.Month != z.Date.Month {
			return a.Date.Month < z.Date.Month
		}
		if a.Date.Day != z.Date.Day {
			return a.Date.Day < z.Date.Day
		}
		return a.UserID < z.UserID
	})
	return entries, nil
}

// AnnounceDue posts a celebration for every member whose stored date matches
// now. Send failures are logged per member so one failure does not silence
// the rest.
func (b *Birthdays) AnnounceDue(ctx context.Context, now time.Time) error {
	all, err := b.store.All()
	if err != nil {
		return fmt.Errorf("announce: load birthdays: %w", err)
	}

	month, day := int(now.Month()), now.Day()
	for userID, date := range all {
		if date.Month != month || date.Day != day {
			continue
		}
		msg := fmt.Sprintf("Happy birthday <@%s>! 🎂🎉", userID)
		if err := b.notifier.Send(ctx, b.channelID, msg); err != nil {
			b.log.Warn("birthday announcement failed", "user", userID, "error", err)
			continue
		}
		b.log.Info("announced birthday", "user", userID)
	}
	return nil
}
