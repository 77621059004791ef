// Package audio defines the interfaces and types for voice-channel
// connectivity and outbound audio transport within nomic.
//
// The two primary abstractions are:
//
//   - [Platform] joins a voice channel and returns a [Connection].
//   - [Connection] represents an active stay on that channel, giving callers
//     a single outbound PCM stream and voice lifecycle events.
//
// Implementations are provided by platform-specific adapter packages
// (e.g., audio/discord). The interfaces are intentionally narrow so the
// session controller stays decoupled from transport details.
package audio

import (
	"context"
)

// EventType classifies voice lifecycle events emitted by a [Connection].
type EventType int

const (
	// EventJoin is emitted when a member enters the voice channel.
	EventJoin EventType = iota

	// EventLeave is emitted when a member leaves the voice channel.
	EventLeave

	// EventDisconnected is emitted when the connection itself is severed from
	// the outside, e.g. the bot was moved or kicked from the channel. No
	// further events follow.
	EventDisconnected
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventJoin:
		return "JOIN"
	case EventLeave:
		return "LEAVE"
	case EventDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Event describes a voice lifecycle change on the connected channel.
// Callbacks registered via [Connection.OnVoiceEvent] receive values of this type.
type Event struct {
	// Type indicates what happened.
	Type EventType

	// UserID is the platform-specific identifier of the member that joined or
	// left. Empty for [EventDisconnected].
	UserID string

	// Username is the human-readable display name of the member, when known.
	Username string

	// Occupants is the number of members in the channel after the event took
	// effect, the bot included. Zero for [EventDisconnected].
	Occupants int
}

// Connection represents an active stay on a voice channel.
//
// A Connection is obtained from [Platform.Connect] and remains valid until
// [Connection.Disconnect] is called. The output channel accepts PCM frames
// for transmission into the channel.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// OutputStream returns the write-only channel for outbound audio. Frames
	// written here are transmitted to all channel members. The channel is
	// buffered; writes must not block indefinitely.
	//
	// Ownership: the returned channel is owned by the caller (writer). The
	// platform does NOT close it on Disconnect; the caller is responsible for
	// stopping writes. Writing after Disconnect results in dropped frames,
	// not a panic.
	OutputStream() chan<- Frame

	// OnVoiceEvent registers cb as the callback to invoke on voice lifecycle
	// changes (member join/leave, forced disconnect). Only one callback may be
	// registered at a time; subsequent calls replace the previous registration.
	// The callback is invoked on an internal goroutine and must not block.
	OnVoiceEvent(cb func(Event))

	// Disconnect tears down the connection and stops all background work.
	// It is safe to call more than once; subsequent calls are no-ops
	// returning nil.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
// Implementations wrap provider-specific SDKs and expose a uniform
// [Connection] abstraction.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel identified by channelID and returns an
	// active [Connection]. The supplied ctx governs the lifetime of the
	// connection attempt only; once connected, the Connection remains alive
	// until [Connection.Disconnect] is called.
	//
	// Returns an error if the channel cannot be joined (auth failure, unknown
	// channel, network error, etc.).
	Connect(ctx context.Context, channelID string) (Connection, error)
}
