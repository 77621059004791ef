package session

import (
	"slices"

	"github.com/nomicbot/nomic/pkg/provider/tts"
)

// clipQueue holds resolved clips pending playback, ordered by the sequence
// number assigned when their message was accepted. Synthesis calls resolve in
// arbitrary order, so insertion keeps the slice sorted; the head is always
// the earliest-accepted pending clip.
//
// Not safe for concurrent use; the controller guards it with its own mutex.
type clipQueue struct {
	items []queuedClip
}

type queuedClip struct {
	seq  uint64
	clip *tts.Clip
}

// insert places clip at its sequence-ordered position.
func (q *clipQueue) insert(seq uint64, clip *tts.Clip) {
	at, _ := slices.BinarySearchFunc(q.items, seq, func(it queuedClip, target uint64) int {
		switch {
		case it.seq < target:
			return -1
		case it.seq > target:
			return 1
		default:
			return 0
		}
	})
	q.items = slices.Insert(q.items, at, queuedClip{seq: seq, clip: clip})
}

// peekSeq returns the head clip's sequence number without removing it.
func (q *clipQueue) peekSeq() (uint64, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].seq, true
}

// pop removes and returns the head clip.
func (q *clipQueue) pop() (*tts.Clip, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	head := q.items[0]
	q.items[0] = queuedClip{}
	q.items = q.items[1:]
	return head.clip, true
}

func (q *clipQueue) len() int { return len(q.items) }

func (q *clipQueue) clear() { q.items = nil }
