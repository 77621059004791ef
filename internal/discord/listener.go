package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nomicbot/nomic/internal/session"
)

// Listener forwards MessageCreate gateway events into the session controller.
type Listener struct {
	ctrl *session.Controller
	log  *slog.Logger
}

// NewListener creates a Listener feeding ctrl.
func NewListener(ctrl *session.Controller) *Listener {
	return &Listener{
		ctrl: ctrl,
		log:  slog.Default().With("component", "listener"),
	}
}

// Attach registers the gateway handlers on s.
func (l *Listener) Attach(s *discordgo.Session) {
	s.AddHandler(l.onMessageCreate)
}

func (l *Listener) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.ctrl.HandleMessage(ctx, toSessionMessage(m)); err != nil {
		l.log.Warn("message handling failed", "message_id", m.ID, "error", err)
	}
}

// toSessionMessage maps a gateway message onto the controller's view of it.
func toSessionMessage(m *discordgo.MessageCreate) session.Message {
	return session.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		Content:   m.Content,
	}
}

// StateVoiceReader reads member voice states from the discordgo state cache.
// It implements the controller's VoiceStateReader.
type StateVoiceReader struct {
	s *discordgo.Session
}

// NewStateVoiceReader creates a StateVoiceReader over s.
func NewStateVoiceReader(s *discordgo.Session) *StateVoiceReader {
	return &StateVoiceReader{s: s}
}

// VoiceState reports userID's current voice state in guildID. The second
// return is false when the member is not in any voice channel.
func (r *StateVoiceReader) VoiceState(guildID, userID string) (session.VoiceState, bool) {
	vs, err := r.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return session.VoiceState{}, false
	}
	return session.VoiceState{ChannelID: vs.ChannelID, SelfMute: vs.SelfMute}, true
}
