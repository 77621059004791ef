package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ChannelNotifier posts messages to text channels through the Discord REST
// API. It implements the controller's Notifier and the announcer's Messenger.
type ChannelNotifier struct {
	s *discordgo.Session
}

// NewChannelNotifier creates a ChannelNotifier over s.
func NewChannelNotifier(s *discordgo.Session) *ChannelNotifier {
	return &ChannelNotifier{s: s}
}

// Send posts content to channelID.
func (n *ChannelNotifier) Send(ctx context.Context, channelID, content string) error {
	if _, err := n.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send to channel %s: %w", channelID, err)
	}
	return nil
}

// Reply posts content to channelID as a reply to messageID.
func (n *ChannelNotifier) Reply(ctx context.Context, channelID, messageID, content string) error {
	ref := &discordgo.MessageReference{
		MessageID: messageID,
		ChannelID: channelID,
	}
	if _, err := n.s.ChannelMessageSendReply(channelID, content, ref, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: reply to message %s: %w", messageID, err)
	}
	return nil
}
