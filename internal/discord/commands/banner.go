package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nomicbot/nomic/internal/announce"
	"github.com/nomicbot/nomic/internal/discord"
)

const (
	// bannerSelectPrefix is the custom_id prefix for the /banner set picker.
	// Full form: "banner_select:<ownerID>".
	bannerSelectPrefix = "banner_select:"

	msgNotAnImage = "❌ Must be an image"
)

// BannerSetter applies images to the guild and reports the resulting
// permanent banner URL.
type BannerSetter interface {
	SetBanner(ctx context.Context, imageURL string) error
	BannerURL(ctx context.Context) (string, error)
}

// BannerCommands holds the dependencies for the /banner slash commands.
type BannerCommands struct {
	banners *announce.Banners
	setter  BannerSetter
	log     *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer // ownerID → picker expiry
}

// NewBannerCommands creates a BannerCommands and registers its handlers with
// the bot's router.
func NewBannerCommands(bot *discord.Bot, banners *announce.Banners, setter BannerSetter) *BannerCommands {
	bc := &BannerCommands{
		banners: banners,
		setter:  setter,
		log:     slog.Default().With("component", "banner"),
		pending: make(map[string]*time.Timer),
	}
	bc.Register(bot.Router())
	return bc
}

// Register registers the /banner command group and its picker components.
func (bc *BannerCommands) Register(router *discord.Router) {
	router.RegisterCommand("banner", bc.Definition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/banner add`, `/banner remove`, `/banner list` or `/banner set`.")
	})
	router.RegisterHandler("banner/add", bc.handleAdd)
	router.RegisterHandler("banner/remove", bc.handleRemove)
	router.RegisterHandler("banner/list", bc.handleList)
	router.RegisterHandler("banner/set", bc.handleSet)
	router.RegisterComponentPrefix(bannerSelectPrefix, bc.handlePick)
}

// Definition returns the ApplicationCommand definition for Discord.
func (bc *BannerCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "banner",
		Description: "Manage the rotating server banners",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Upload a banner image and apply it",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Name to store the banner under",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionAttachment,
						Name:        "banner",
						Description: "The banner image",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Delete a stored banner",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Name of the banner to delete",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List all stored banners",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Pick a stored banner to apply now",
			},
		},
	}
}

// handleAdd handles /banner add. Attachment URLs are temporary, so the image
// is applied immediately and the resulting permanent CDN URL is what gets
// stored for rotation.
func (bc *BannerCommands) handleAdd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := subcommandOptions(i)
	name := opts["name"].StringValue()

	attID := opts["banner"].Value.(string)
	att := i.ApplicationCommandData().Resolved.Attachments[attID]
	if att == nil || !strings.HasPrefix(att.ContentType, "image") {
		discord.Respond(s, i, msgNotAnImage)
		return
	}

	discord.DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := bc.setter.SetBanner(ctx, att.URL); err != nil {
		discord.EditReply(s, i, fmt.Sprintf("❌ There was an error: %v", err))
		return
	}
	permanentURL, err := bc.setter.BannerURL(ctx)
	if err != nil {
		discord.EditReply(s, i, fmt.Sprintf("❌ There was an error: %v", err))
		return
	}

	if err := bc.banners.Add(name, permanentURL); err != nil {
		discord.EditReply(s, i, fmt.Sprintf("❌ There was an error: %v", err))
		return
	}
	if err := bc.banners.SetCurrent(name); err != nil {
		bc.log.Warn("record current banner", "banner", name, "error", err)
	}
	discord.EditReply(s, i, fmt.Sprintf("✅ Added and set new banner %s", name))
}

// handleRemove handles /banner remove.
func (bc *BannerCommands) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := subcommandOptions(i)["name"].StringValue()

	err := bc.banners.Remove(name)
	switch {
	case errors.Is(err, announce.ErrBannerNotFound):
		discord.Respond(s, i, fmt.Sprintf("❌ There is no banner named %s", name))
	case err != nil:
		discord.RespondError(s, i, err)
	default:
		discord.Respond(s, i, fmt.Sprintf("✅ Removed banner %s", name))
	}
}

// handleList handles /banner list.
func (bc *BannerCommands) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entries, err := bc.banners.List()
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	if len(entries) == 0 {
		discord.Respond(s, i, "No banners stored yet.")
		return
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s - %s\n", e.Name, e.URL)
	}
	discord.Respond(s, i, sb.String())
}

// handleSet handles /banner set: presents the picker of stored banners.
func (bc *BannerCommands) handleSet(s *discordgo.Session, i *discordgo.InteractionCreate) {
	discord.DeferReply(s, i)

	entries, err := bc.banners.List()
	if err != nil {
		discord.EditReply(s, i, fmt.Sprintf("❌ There was an error: %v", err))
		return
	}
	if len(entries) == 0 {
		discord.EditReply(s, i, "No banners stored yet.")
		return
	}
	if len(entries) > maxMenuOptions {
		entries = entries[:maxMenuOptions]
	}

	options := make([]discordgo.SelectMenuOption, 0, len(entries))
	for _, e := range entries {
		options = append(options, discordgo.SelectMenuOption{Label: e.Name, Value: e.Name})
	}

	ownerID := interactionUserID(i)
	row := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    bannerSelectPrefix + ownerID,
				Placeholder: "Select a banner...",
				Options:     options,
			},
		},
	}
	discord.EditReplyComponents(s, i, "Choose a banner", []discordgo.MessageComponent{row})
	bc.armTimeout(s, i, ownerID)
}

// handlePick handles a selection in the /banner set picker.
func (bc *BannerCommands) handlePick(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	ownerID := strings.TrimPrefix(data.CustomID, bannerSelectPrefix)
	if len(data.Values) == 0 {
		return
	}
	if interactionUserID(i) != ownerID {
		discord.RespondEphemeral(s, i, msgPickerNotYours)
		return
	}

	name := data.Values[0]
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := bc.banners.Set(ctx, name); err != nil {
		bc.log.Error("apply banner", "banner", name, "error", err)
		discord.UpdateMessage(s, i, fmt.Sprintf("❌ There was an error: %v", err))
		return
	}

	bc.cancelTimeout(ownerID)
	discord.UpdateMessage(s, i, fmt.Sprintf("✅ Banner changed to %s", name))
}

func (bc *BannerCommands) armTimeout(s *discordgo.Session, i *discordgo.InteractionCreate, ownerID string) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if t, ok := bc.pending[ownerID]; ok {
		t.Stop()
	}
	bc.pending[ownerID] = time.AfterFunc(pickerTimeout, func() {
		bc.mu.Lock()
		delete(bc.pending, ownerID)
		bc.mu.Unlock()
		discord.EditReply(s, i, msgPickerExpired)
	})
}

func (bc *BannerCommands) cancelTimeout(ownerID string) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if t, ok := bc.pending[ownerID]; ok {
		t.Stop()
		delete(bc.pending, ownerID)
	}
}
