// Package session implements the voice session controller, the state machine
// at the heart of the bot.
//
// A [Controller] owns at most one live voice session. While listening it
// filters inbound text messages through an ordered eligibility check, hands
// eligible text to the synthesis gateway asynchronously, and serializes the
// resulting clips into a single ordered audio stream through the playback
// engine. It also owns the idle timeout and the teardown paths (explicit stop,
// idle expiry, forced disconnect, everyone leaving the voice channel).
//
// Concurrency model: all session state is guarded by one mutex. Synthesis
// calls run in their own goroutines and may resolve out of call order; each
// accepted message carries a sequence number assigned at accept time so clips
// are played in arrival order regardless of resolution order. A session epoch
// counter is bumped on every start and teardown; resolutions carrying a stale
// epoch are discarded, which makes in-flight synthesis harmless across
// teardown without cancelling it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nomicbot/nomic/pkg/audio"
	"github.com/nomicbot/nomic/pkg/provider/tts"
)

// ErrAlreadyListening is returned by Start when a session is already live.
// The session state is unchanged; callers typically surface this as an
// informational reply.
var ErrAlreadyListening = errors.New("session already listening")

const (
	defaultMaxMessageLen = 200
	defaultIdleTimeout   = 30 * time.Minute
	defaultQueueLimit    = 32
)

const (
	msgTooLong      = "❌ that message is too long"
	msgQueueFull    = "❌ I have too many messages queued up already, try again in a moment"
	msgEveryoneLeft = "Everyone left the voice channel, so I left too."
)

// Synthesizer is the slice of the TTS provider surface the controller needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*tts.Clip, error)
}

// Engine plays one clip at a time into an audio sink. Play must not block;
// implementations run playback on their own goroutine and signal completion
// through the idle callback they were constructed with. The controller never
// calls Play while a clip is playing.
type Engine interface {
	Play(clip *tts.Clip)
	Stop()
}

// EngineFactory builds a playback engine bound to a session's audio sink.
// onIdle is invoked every time the engine finishes a clip (or is given
// nothing to play).
type EngineFactory func(sink chan<- audio.Frame, onIdle func()) Engine

// Notifier posts messages to the designated text channel.
type Notifier interface {
	Send(ctx context.Context, channelID, content string) error
	Reply(ctx context.Context, channelID, messageID, content string) error
}

// VoiceState is a member's observed state in a guild's voice channels.
type VoiceState struct {
	ChannelID string
	SelfMute  bool
}

// VoiceStateReader reports the current voice state of a guild member.
type VoiceStateReader interface {
	VoiceState(guildID, userID string) (VoiceState, bool)
}

// VoiceSource resolves a user's chosen synthesis voice.
type VoiceSource interface {
	VoiceFor(userID string) (voiceID string, ok bool)
}

// Recorder receives controller metrics. All methods must be cheap and
// non-blocking.
type Recorder interface {
	SynthesisDone(d time.Duration, err error)
	ClipPlayed()
	QueueDepth(n int)
	MessageRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) SynthesisDone(time.Duration, error) {}
func (nopRecorder) ClipPlayed()                        {}
func (nopRecorder) QueueDepth(int)                     {}
func (nopRecorder) MessageRejected(string)             {}

// Message is an inbound text message as seen by the eligibility filter.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Content   string
}

// Config holds the externally supplied session policy.
type Config struct {
	// GuildID is the single guild this deployment serves.
	GuildID string

	// TextChannelID is the designated no-mic text channel.
	TextChannelID string

	// DefaultVoice is used when a sender has no stored voice selection.
	DefaultVoice string

	// MaxMessageLen caps accepted message length in runes. Default 200.
	MaxMessageLen int

	// IdleTimeout is how long the session stays connected with nothing to
	// play before tearing down. Default 30 minutes.
	IdleTimeout time.Duration

	// QueueLimit bounds outstanding work (in-flight synthesis plus queued
	// clips). Messages accepted beyond the limit are rejected with a reply.
	// Default 32.
	QueueLimit int
}

func (c *Config) applyDefaults() {
	if c.MaxMessageLen <= 0 {
		c.MaxMessageLen = defaultMaxMessageLen
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = defaultQueueLimit
	}
}

// Deps are the collaborators a [Controller] mediates between.
type Deps struct {
	Platform    audio.Platform
	Synthesizer Synthesizer
	Voices      VoiceSource
	Notifier    Notifier
	VoiceStates VoiceStateReader
	NewEngine   EngineFactory

	// Recorder is optional; a no-op recorder is used when nil.
	Recorder Recorder
}

func (d *Deps) validate() error {
	var errs []error
	if d.Platform == nil {
		errs = append(errs, errors.New("session: Platform is required"))
	}
	if d.Synthesizer == nil {
		errs = append(errs, errors.New("session: Synthesizer is required"))
	}
	if d.Voices == nil {
		errs = append(errs, errors.New("session: Voices is required"))
	}
	if d.Notifier == nil {
		errs = append(errs, errors.New("session: Notifier is required"))
	}
	if d.VoiceStates == nil {
		errs = append(errs, errors.New("session: VoiceStates is required"))
	}
	if d.NewEngine == nil {
		errs = append(errs, errors.New("session: NewEngine is required"))
	}
	return errors.Join(errs...)
}

// Controller is the session state machine. Create one with [NewController];
// the zero value is not usable.
type Controller struct {
	cfg  Config
	deps Deps
	rec  Recorder
	log  *slog.Logger

	mu             sync.Mutex
	listening      bool
	voiceChannelID string
	conn           audio.Connection
	engine         Engine
	playing        bool
	queue          clipQueue
	inflight       map[uint64]struct{}
	outstanding    int
	epoch          uint64
	nextSeq        uint64
	idleTimer      *time.Timer
}

// NewController validates deps and returns a ready [Controller].
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Controller{
		cfg:  cfg,
		deps: deps,
		rec:  rec,
		log:  slog.Default().With("component", "session"),
	}, nil
}

// Listening reports whether a session is currently live.
func (c *Controller) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// VoiceChannelID returns the bound voice channel, or "" when not listening.
func (c *Controller) VoiceChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceChannelID
}

// Start joins voiceChannelID and begins listening on the designated text
// channel. If a session is already live it returns [ErrAlreadyListening] and
// changes nothing.
func (c *Controller) Start(ctx context.Context, voiceChannelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listening {
		return ErrAlreadyListening
	}

	conn, err := c.deps.Platform.Connect(ctx, voiceChannelID)
	if err != nil {
		return fmt.Errorf("session: join voice channel %s: %w", voiceChannelID, err)
	}

	c.epoch++
	epoch := c.epoch

	c.conn = conn
	c.engine = c.deps.NewEngine(conn.OutputStream(), func() {
		c.onPlaybackIdle(epoch)
	})
	conn.OnVoiceEvent(func(ev audio.Event) {
		c.handleVoiceEvent(epoch, ev)
	})

	c.listening = true
	c.voiceChannelID = voiceChannelID
	c.playing = false
	c.queue.clear()
	c.inflight = make(map[uint64]struct{})
	c.outstanding = 0

	c.log.Info("session started", "voice_channel", voiceChannelID)
	return nil
}

// Stop tears the session down. It is idempotent and tolerates a partially
// torn-down session.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	err := c.teardownLocked()
	c.mu.Unlock()
	return err
}

// teardownLocked releases every session resource, tolerating resources that
// are already gone, and bumps the epoch so in-flight work is discarded.
// Callers must hold mu.
func (c *Controller) teardownLocked() error {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	if c.engine != nil {
		c.engine.Stop()
		c.engine = nil
	}
	var err error
	if c.conn != nil {
		if derr := c.conn.Disconnect(); derr != nil {
			err = fmt.Errorf("session: disconnect: %w", derr)
		}
		c.conn = nil
	}

	wasListening := c.listening
	c.listening = false
	c.voiceChannelID = ""
	c.playing = false
	c.queue.clear()
	c.inflight = nil
	c.outstanding = 0
	c.epoch++
	c.rec.QueueDepth(0)

	if wasListening {
		c.log.Info("session stopped")
	}
	return err
}

// teardownAndNotify tears the session down and, if it was live, posts content
// to the text channel.
func (c *Controller) teardownAndNotify(content string) {
	c.mu.Lock()
	wasListening := c.listening
	if err := c.teardownLocked(); err != nil {
		c.log.Warn("teardown", "error", err)
	}
	c.mu.Unlock()

	if !wasListening || content == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.deps.Notifier.Send(ctx, c.cfg.TextChannelID, content); err != nil {
		c.log.Warn("notify teardown", "error", err)
	}
}

// HandleMessage runs the ordered eligibility filter over msg and, if it
// passes, dispatches synthesis asynchronously. Filter failures either reply
// to the sender (length cap, full queue) or drop silently; they never mutate
// session state.
func (c *Controller) HandleMessage(ctx context.Context, msg Message) error {
	if msg.GuildID != c.cfg.GuildID || msg.ChannelID != c.cfg.TextChannelID {
		return nil
	}

	c.mu.Lock()
	if !c.listening {
		c.mu.Unlock()
		return nil
	}
	boundChannel := c.voiceChannelID
	c.mu.Unlock()

	vs, ok := c.deps.VoiceStates.VoiceState(msg.GuildID, msg.AuthorID)
	if !ok || vs.ChannelID != boundChannel {
		return nil
	}
	if msg.AuthorBot {
		return nil
	}
	if len([]rune(msg.Content)) > c.cfg.MaxMessageLen {
		c.rec.MessageRejected("too_long")
		return c.deps.Notifier.Reply(ctx, msg.ChannelID, msg.ID, msgTooLong)
	}
	if !vs.SelfMute {
		return nil
	}
	text := Sanitize(msg.Content)
	if text == "" {
		return nil
	}

	voiceID, ok := c.deps.Voices.VoiceFor(msg.AuthorID)
	if !ok {
		voiceID = c.cfg.DefaultVoice
	}

	c.mu.Lock()
	if !c.listening {
		c.mu.Unlock()
		return nil
	}
	if c.outstanding >= c.cfg.QueueLimit {
		c.mu.Unlock()
		c.rec.MessageRejected("queue_full")
		return c.deps.Notifier.Reply(ctx, msg.ChannelID, msg.ID, msgQueueFull)
	}
	c.outstanding++
	c.nextSeq++
	seq := c.nextSeq
	c.inflight[seq] = struct{}{}
	epoch := c.epoch
	c.mu.Unlock()

	go c.synthesize(context.WithoutCancel(ctx), epoch, seq, text, voiceID)
	return nil
}

// synthesize runs one gateway call and routes the resolved clip into the
// sequence-ordered queue. Failures are logged and never crash the listener.
func (c *Controller) synthesize(ctx context.Context, epoch, seq uint64, text, voiceID string) {
	start := time.Now()
	clip, err := c.deps.Synthesizer.Synthesize(ctx, text, voiceID)
	c.rec.SynthesisDone(time.Since(start), err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		// Session was torn down (or restarted) while this call was in
		// flight; the result no longer has a home.
		return
	}

	delete(c.inflight, seq)

	if err != nil {
		c.outstanding--
		c.log.Warn("synthesis failed", "voice", voiceID, "error", err)
		// A failed message no longer gates the clips queued behind it.
		c.playNextLocked()
		return
	}

	c.queue.insert(seq, clip)
	c.rec.QueueDepth(c.queue.len())
	c.playNextLocked()
}

// playNextLocked starts the head clip when the engine is idle and every
// earlier-accepted message has settled. A resolved clip waits while a lower
// sequence number is still in flight, so playback follows arrival order even
// when synthesis resolves out of order against an idle engine. Callers must
// hold mu.
//
// outstanding covers in-flight synthesis plus queued clips; it drops only
// when a clip starts playing or its synthesis fails.
func (c *Controller) playNextLocked() {
	if c.playing {
		return
	}
	seq, ok := c.queue.peekSeq()
	if !ok || c.earlierInFlightLocked(seq) {
		return
	}
	clip, _ := c.queue.pop()
	c.playing = true
	c.outstanding--
	c.cancelIdleTimerLocked()
	c.rec.QueueDepth(c.queue.len())
	c.rec.ClipPlayed()
	c.engine.Play(clip)
}

// earlierInFlightLocked reports whether any message accepted before seq is
// still awaiting its synthesis result. Callers must hold mu.
func (c *Controller) earlierInFlightLocked(seq uint64) bool {
	for s := range c.inflight {
		if s < seq {
			return true
		}
	}
	return false
}

// onPlaybackIdle starts the next playable clip or, with nothing ready, arms
// the idle timer.
func (c *Controller) onPlaybackIdle(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return
	}

	c.playing = false
	c.playNextLocked()
	if !c.playing {
		c.armIdleTimerLocked(epoch)
	}
}

func (c *Controller) armIdleTimerLocked(epoch uint64) {
	c.cancelIdleTimerLocked()
	c.idleTimer = time.AfterFunc(c.cfg.IdleTimeout, func() {
		c.idleExpired(epoch)
	})
}

func (c *Controller) cancelIdleTimerLocked() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

func (c *Controller) idleExpired(epoch uint64) {
	c.mu.Lock()
	stale := epoch != c.epoch || !c.listening
	c.mu.Unlock()
	if stale {
		return
	}
	c.log.Info("idle timeout expired, leaving voice channel")
	c.teardownAndNotify(idleMessage(c.cfg.IdleTimeout))
}

// idleMessage renders the farewell posted after an idle teardown.
func idleMessage(d time.Duration) string {
	return fmt.Sprintf("I didn't get any tts messages for %d minutes, so I left.",
		int(d.Minutes()))
}

// handleVoiceEvent reacts to participant changes in the bound voice channel.
func (c *Controller) handleVoiceEvent(epoch uint64, ev audio.Event) {
	c.mu.Lock()
	stale := epoch != c.epoch || !c.listening
	c.mu.Unlock()
	if stale {
		return
	}

	switch ev.Type {
	case audio.EventDisconnected:
		c.log.Info("forcibly disconnected from voice channel")
		c.teardownAndNotify("")
	case audio.EventLeave:
		// Occupants includes the bot itself.
		if ev.Occupants <= 1 {
			c.log.Info("alone in voice channel, leaving")
			c.teardownAndNotify(msgEveryoneLeft)
		}
	}
}
