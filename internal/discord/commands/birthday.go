package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/nomicbot/nomic/internal/announce"
	"github.com/nomicbot/nomic/internal/discord"
	"github.com/nomicbot/nomic/internal/store"
)

const msgBadDate = "❌ That date is not in valid MM/DD format. Remember to not include leading zeros."

// BirthdayCommands holds the dependencies for the /birthday slash commands.
type BirthdayCommands struct {
	birthdays *announce.Birthdays
}

// NewBirthdayCommands creates a BirthdayCommands and registers its handlers
// with the bot's router.
func NewBirthdayCommands(bot *discord.Bot, birthdays *announce.Birthdays) *BirthdayCommands {
	bc := &BirthdayCommands{birthdays: birthdays}
	bc.Register(bot.Router())
	return bc
}

// Register registers the /birthday command group with the router.
func (bc *BirthdayCommands) Register(router *discord.Router) {
	router.RegisterCommand("birthday", bc.Definition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/birthday add`, `/birthday remove` or `/birthday list`.")
	})
	router.RegisterHandler("birthday/add", bc.handleAdd)
	router.RegisterHandler("birthday/remove", bc.handleRemove)
	router.RegisterHandler("birthday/list", bc.handleList)
}

// Definition returns the ApplicationCommand definition for Discord.
func (bc *BirthdayCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "birthday",
		Description: "Manage celebrated birthdays",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Store a member's birthday",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "Whose birthday it is",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "date",
						Description: "The date in MM/DD format without leading zeros, e.g. 3/7",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Forget a member's birthday",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "Whose birthday to forget",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List all stored birthdays",
			},
		},
	}
}

// handleAdd handles /birthday add.
func (bc *BirthdayCommands) handleAdd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := subcommandOptions(i)
	userID := opts["user"].UserValue(nil).ID

	date, err := announce.ParseDate(opts["date"].StringValue())
	if err != nil {
		discord.Respond(s, i, msgBadDate)
		return
	}

	if err := bc.birthdays.Add(userID, date); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.Respond(s, i, fmt.Sprintf("✅ Added <@%s>'s birthday", userID))
}

// handleRemove handles /birthday remove.
func (bc *BirthdayCommands) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := subcommandOptions(i)
	userID := opts["user"].UserValue(nil).ID

	err := bc.birthdays.Remove(userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		discord.Respond(s, i, fmt.Sprintf("❌ No birthday is stored for <@%s>", userID))
	case err != nil:
		discord.RespondError(s, i, err)
	default:
		discord.Respond(s, i, fmt.Sprintf("✅ Removed <@%s>'s birthday", userID))
	}
}

// handleList handles /birthday list.
func (bc *BirthdayCommands) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entries, err := bc.birthdays.List()
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	if len(entries) == 0 {
		discord.Respond(s, i, "No birthdays stored yet.")
		return
	}
	discord.Respond(s, i, formatBirthdayList(entries))
}

// formatBirthdayList renders one "mention - date" line per entry.
func formatBirthdayList(entries []announce.BirthdayEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "<@%s> - %s\n", e.UserID, e.Date)
	}
	return sb.String()
}

// subcommandOptions indexes the options of the invoked subcommand by name.
func subcommandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return nil
	}
	opts := data.Options[0].Options
	byName := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		byName[o.Name] = o
	}
	return byName
}
