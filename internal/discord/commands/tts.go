// Package commands implements the nomic slash command handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nomicbot/nomic/internal/discord"
	"github.com/nomicbot/nomic/internal/session"
)

const (
	msgNotInVoice  = "❌ You must be in a voice channel"
	msgNotEnabled  = "❌ tts is not enabled"
	msgStartedTTS  = "joined your channel and started listening to #no-mic"
	msgStoppedTTS  = "left the channel and stopped listening to #no-mic"
	commandTimeout = 30 * time.Second
)

// TTSCommands holds the dependencies for the /tts slash commands.
type TTSCommands struct {
	ctrl *session.Controller
}

// NewTTSCommands creates a TTSCommands and registers its handlers with the
// bot's router.
func NewTTSCommands(bot *discord.Bot, ctrl *session.Controller) *TTSCommands {
	tc := &TTSCommands{ctrl: ctrl}
	tc.Register(bot.Router())
	return tc
}

// Register registers the /tts command group with the router.
func (tc *TTSCommands) Register(router *discord.Router) {
	router.RegisterCommand("tts", tc.Definition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/tts start` or `/tts stop`.")
	})
	router.RegisterHandler("tts/start", tc.handleStart)
	router.RegisterHandler("tts/stop", tc.handleStop)
}

// Definition returns the ApplicationCommand definition for Discord.
func (tc *TTSCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "tts",
		Description: "Read no-mic messages aloud in your voice channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "start",
				Description: "Join your voice channel and start listening to #no-mic",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Leave the voice channel and stop listening",
			},
		},
	}
}

// handleStart handles /tts start.
func (tc *TTSCommands) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Joining a voice channel can take a moment.
	discord.DeferReply(s, i)

	userID := interactionUserID(i)
	vs, err := s.State.VoiceState(i.GuildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		discord.EditReply(s, i, msgNotInVoice)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err = tc.ctrl.Start(ctx, vs.ChannelID)
	switch {
	case err == nil, errors.Is(err, session.ErrAlreadyListening):
		discord.EditReply(s, i, msgStartedTTS)
	default:
		discord.EditReply(s, i, fmt.Sprintf("❌ There was an error: %v", err))
	}
}

// handleStop handles /tts stop.
func (tc *TTSCommands) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	vs, err := s.State.VoiceState(i.GuildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		discord.Respond(s, i, msgNotInVoice)
		return
	}

	if !tc.ctrl.Listening() {
		discord.Respond(s, i, msgNotEnabled)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := tc.ctrl.Stop(ctx); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.Respond(s, i, msgStoppedTTS)
}

// interactionUserID extracts the user ID from an interaction, handling
// both guild (Member) and DM (User) contexts.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
