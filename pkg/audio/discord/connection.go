package discord

import (
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/nomicbot/nomic/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

const outputChannelBuffer = 64

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. Outbound PCM frames are encoded to Opus and
// transmitted; VoiceStateUpdate events on the bound channel are translated
// into [audio.Event] values.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc        *discordgo.VoiceConnection
	session   *discordgo.Session
	guildID   string
	channelID string

	output chan audio.Frame

	voiceCb func(audio.Event)
	voiceMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func() // removes the VoiceStateUpdate handler

	// disconnectVC is called during Disconnect to tear down the voice
	// connection. Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newConnection initialises a Connection for an already-joined voice channel
// and starts the background send goroutine.
func newConnection(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID, channelID string) (*Connection, error) {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		channelID:    channelID,
		output:       make(chan audio.Frame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	// Register a VoiceStateUpdate handler to observe channel membership and
	// our own voice state.
	c.removeHandler = session.AddHandler(c.handleVoiceStateUpdate)

	go c.sendLoop()

	return c, nil
}

// OutputStream returns the write-only channel for outbound audio.
// Frames written here are encoded to Opus and sent to Discord.
func (c *Connection) OutputStream() chan<- audio.Frame {
	return c.output
}

// OnVoiceEvent registers cb as the callback for voice lifecycle events.
// Only one callback may be registered; subsequent calls replace the previous one.
func (c *Connection) OnVoiceEvent(cb func(audio.Event)) {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()
	c.voiceCb = cb
}

// Disconnect cleanly tears down the voice connection and stops the background
// send goroutine. It is safe to call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		if c.removeHandler != nil {
			c.removeHandler()
		}

		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// sendLoop reads PCM frames from the output channel, accumulates them into
// exact Opus frame-sized chunks (48 kHz stereo, 20 ms), encodes each chunk
// and sends it via the Discord voice connection.
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "error", err)
		return
	}

	// Speaking is signalled lazily when the first frame arrives.
	speakingSet := false

	// opusFrameBytes is the exact PCM input size for one Opus frame:
	// 960 samples/channel × 2 channels × 2 bytes/sample = 3840 bytes.
	const opusFrameBytes = opusFrameSize * opusChannels * 2

	var buf []byte

	for {
		select {
		case <-c.done:
			if speakingSet {
				c.setSpeaking(false)
			}
			return
		case frame, ok := <-c.output:
			if !ok {
				return
			}

			if frame.SampleRate != opusSampleRate || frame.Channels != opusChannels {
				frame.Data = audio.Transcode(frame.Data,
					audio.Format{SampleRate: frame.SampleRate, Channels: frame.Channels},
					audio.Format{SampleRate: opusSampleRate, Channels: opusChannels})
			}

			if !speakingSet {
				c.setSpeaking(true)
				speakingSet = true
			}

			buf = append(buf, frame.Data...)

			// Encode and send complete Opus frames.
			for len(buf) >= opusFrameBytes {
				opus, eErr := enc.encode(buf[:opusFrameBytes])
				if eErr != nil {
					slog.Warn("discord: opus encode error", "error", eErr)
					buf = buf[opusFrameBytes:]
					continue
				}
				buf = buf[opusFrameBytes:]

				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// handleVoiceStateUpdate translates Discord VoiceStateUpdate events into
// [audio.Event] values for the channel this connection is bound to.
func (c *Connection) handleVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.GuildID != c.guildID {
		return
	}

	// Our own voice state dropped: we were kicked or moved out of the channel.
	if s.State != nil && s.State.User != nil && vsu.UserID == s.State.User.ID {
		if vsu.ChannelID != c.channelID {
			c.emitEvent(audio.Event{Type: audio.EventDisconnected})
		}
		return
	}

	// Member left our channel.
	if vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == c.channelID && vsu.ChannelID != c.channelID {
		c.emitEvent(audio.Event{
			Type:      audio.EventLeave,
			UserID:    vsu.UserID,
			Username:  memberUsername(vsu.Member),
			Occupants: c.occupants(),
		})
		return
	}

	// Member joined our channel.
	if vsu.ChannelID == c.channelID && (vsu.BeforeUpdate == nil || vsu.BeforeUpdate.ChannelID != c.channelID) {
		c.emitEvent(audio.Event{
			Type:      audio.EventJoin,
			UserID:    vsu.UserID,
			Username:  memberUsername(vsu.Member),
			Occupants: c.occupants(),
		})
	}
}

// occupants counts the members currently in the bound voice channel according
// to cached guild state, the bot included. Returns 0 when state is unavailable.
func (c *Connection) occupants() int {
	guild, err := c.session.State.Guild(c.guildID)
	if err != nil {
		return 0
	}
	n := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == c.channelID {
			n++
		}
	}
	return n
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}

// emitEvent safely invokes the registered voice-event callback.
func (c *Connection) emitEvent(ev audio.Event) {
	c.voiceMu.Lock()
	cb := c.voiceCb
	c.voiceMu.Unlock()
	if cb != nil {
		go cb(ev)
	}
}

// memberUsername extracts the username from a member, tolerating nils.
func memberUsername(m *discordgo.Member) string {
	if m == nil || m.User == nil {
		return ""
	}
	return m.User.Username
}
