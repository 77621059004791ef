package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nomicbot/nomic/internal/discord"
	"github.com/nomicbot/nomic/internal/store"
	"github.com/nomicbot/nomic/pkg/provider/tts"
)

const (
	// voiceSelectPrefix is the custom_id prefix for the voice picker menus.
	// Full form: "voice_select:<ownerID>:<page>".
	voiceSelectPrefix = "voice_select:"

	// pickerTimeout is how long a select menu stays interactive before the
	// prompt is withdrawn.
	pickerTimeout = time.Minute

	// maxMenuOptions is Discord's limit on options per select menu.
	maxMenuOptions = 25

	// maxMenuRows is Discord's limit on action rows per message.
	maxMenuRows = 5

	msgPickerExpired  = "❌ Selection was not made within 1 minute, aborting"
	msgPickerNotYours = "❌ This menu is not for you"
)

// VoiceLister is the slice of the TTS provider surface the picker needs.
type VoiceLister interface {
	ListVoices(ctx context.Context, languages []string) ([]tts.Voice, error)
}

// VoiceCommands implements /setvoice: an interactive picker that stores a
// per-user synthesis voice.
type VoiceCommands struct {
	voices    VoiceLister
	prefs     *store.Store[string]
	languages []string
	log       *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer // ownerID → picker expiry
}

// NewVoiceCommands creates a VoiceCommands persisting selections to prefs and
// registers its handlers with the bot's router.
func NewVoiceCommands(bot *discord.Bot, voices VoiceLister, prefs *store.Store[string], languages []string) *VoiceCommands {
	vc := &VoiceCommands{
		voices:    voices,
		prefs:     prefs,
		languages: languages,
		log:       slog.Default().With("component", "setvoice"),
		pending:   make(map[string]*time.Timer),
	}
	vc.Register(bot.Router())
	return vc
}

// Register registers the /setvoice command and its picker components.
func (vc *VoiceCommands) Register(router *discord.Router) {
	router.RegisterCommand("setvoice", vc.Definition(), vc.handleSetVoice)
	router.RegisterComponentPrefix(voiceSelectPrefix, vc.handlePick)
}

// Definition returns the ApplicationCommand definition for Discord.
func (vc *VoiceCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "setvoice",
		Description: "Choose the voice your messages are read with",
	}
}

// handleSetVoice handles /setvoice: fetches the voice catalogue and presents
// the chunked select menus.
func (vc *VoiceCommands) handleSetVoice(s *discordgo.Session, i *discordgo.InteractionCreate) {
	discord.DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	voices, err := vc.voices.ListVoices(ctx, vc.languages)
	if err != nil {
		discord.EditReply(s, i, fmt.Sprintf("❌ There was an error fetching voices: %v", err))
		return
	}
	if len(voices) == 0 {
		discord.EditReply(s, i, "❌ There was an error fetching voices: none available")
		return
	}

	ownerID := interactionUserID(i)
	rows := voiceMenuRows(ownerID, voices)
	discord.EditReplyComponents(s, i, "Choose a voice from one of the lists", rows)
	vc.armTimeout(s, i, ownerID)
}

// handlePick handles a selection in one of the picker menus.
func (vc *VoiceCommands) handlePick(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	ownerID, _, ok := strings.Cut(strings.TrimPrefix(data.CustomID, voiceSelectPrefix), ":")
	if !ok || len(data.Values) == 0 {
		return
	}
	if interactionUserID(i) != ownerID {
		discord.RespondEphemeral(s, i, msgPickerNotYours)
		return
	}

	voiceID := data.Values[0]
	if err := vc.prefs.Put(ownerID, voiceID); err != nil {
		vc.log.Error("store voice selection", "user", ownerID, "error", err)
		discord.UpdateMessage(s, i, fmt.Sprintf("❌ There was an error: %v", err))
		return
	}

	vc.cancelTimeout(ownerID)
	vc.log.Info("voice selection stored", "user", ownerID, "voice", voiceID)
	discord.UpdateMessage(s, i, fmt.Sprintf("✅ Your voice was changed to %s", voiceID))
}

// armTimeout schedules the picker expiry for ownerID, replacing any earlier
// one.
func (vc *VoiceCommands) armTimeout(s *discordgo.Session, i *discordgo.InteractionCreate, ownerID string) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if t, ok := vc.pending[ownerID]; ok {
		t.Stop()
	}
	vc.pending[ownerID] = time.AfterFunc(pickerTimeout, func() {
		vc.mu.Lock()
		delete(vc.pending, ownerID)
		vc.mu.Unlock()
		discord.EditReply(s, i, msgPickerExpired)
	})
}

// cancelTimeout stops a pending picker expiry, if any.
func (vc *VoiceCommands) cancelTimeout(ownerID string) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if t, ok := vc.pending[ownerID]; ok {
		t.Stop()
		delete(vc.pending, ownerID)
	}
}

// voiceMenuRows chunks the catalogue into select menus of at most 25 options,
// capped at Discord's 5 rows per message.
func voiceMenuRows(ownerID string, voices []tts.Voice) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for page := 0; page*maxMenuOptions < len(voices) && page < maxMenuRows; page++ {
		chunk := voices[page*maxMenuOptions : min((page+1)*maxMenuOptions, len(voices))]
		options := make([]discordgo.SelectMenuOption, 0, len(chunk))
		for _, v := range chunk {
			options = append(options, discordgo.SelectMenuOption{
				Label: voiceLabel(v),
				Value: v.ID,
			})
		}
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    fmt.Sprintf("%s%s:%d", voiceSelectPrefix, ownerID, page),
					Placeholder: "Select a voice...",
					Options:     options,
				},
			},
		})
	}
	return rows
}

// voiceLabel renders the picker label for a voice.
func voiceLabel(v tts.Voice) string {
	if v.Gender == "" {
		return v.Name
	}
	return fmt.Sprintf("%s - %s", v.Name, v.Gender)
}
