package observe

import (
	"context"
	"time"
)

// SessionRecorder adapts [Metrics] to the session controller's recording
// callbacks. The controller reports events without a context, so recordings
// use a background context.
type SessionRecorder struct {
	m *Metrics
}

// NewSessionRecorder creates a [SessionRecorder] writing to m.
func NewSessionRecorder(m *Metrics) *SessionRecorder {
	return &SessionRecorder{m: m}
}

// SynthesisDone records the latency and outcome of one synthesis attempt.
func (r *SessionRecorder) SynthesisDone(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.m.RecordSynthesis(context.Background(), d.Seconds(), status)
}

// ClipPlayed records one clip handed to playback.
func (r *SessionRecorder) ClipPlayed() {
	r.m.RecordClipPlayed(context.Background())
}

// QueueDepth records the current clip queue depth.
func (r *SessionRecorder) QueueDepth(n int) {
	r.m.RecordQueueDepth(context.Background(), n)
}

// MessageRejected records one message dropped before synthesis.
func (r *SessionRecorder) MessageRejected(reason string) {
	r.m.RecordRejection(context.Background(), reason)
}
