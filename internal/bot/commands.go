package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/guild"
	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/roblox"
	"github.com/fugitivebreach/arrow-api/internal/service"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "blacklist",
			Description: "Manage the Arrow API user blacklist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Blacklist a user from using Arrow API",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "user_id",
							Description: "The Discord user ID you wish to blacklist",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a user from the blacklist",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "user_id",
							Description: "The Discord user ID you wish to remove from the blacklist",
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:        "panel",
			Description: "Send the account-linking panel to this channel",
		},
		{
			Name:        "api",
			Description: "Manage your Arrow API keys",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "key_generate",
					Description: "Generate a new API key",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "A name for the new key",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "key_delete",
					Description: "Delete one of your API keys",
				},
			},
		},
		{
			Name:        "verify",
			Description: "Verify Roblox account ownership for this server",
		},
		{
			Name:        "setup",
			Description: "Set up this server with a Roblox group",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "group_id",
					Description: "The Roblox group ID to join",
					Required:    true,
				},
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	_, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, commandDefinitions())
	if err != nil {
		return fmt.Errorf("registering application commands: %w", err)
	}
	b.logger.Info("Application commands registered", zap.String("guild_id", b.cfg.GuildID))
	return nil
}

func (b *Bot) handleBlacklist(i *discordgo.InteractionCreate) {
	if !b.isAuthorized(i) {
		b.respondUnauthorized(i)
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	userID := subOptionString(sub, "user_id")

	if !isSnowflake(userID) {
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - Invalid User",
			"The user ID in place does not exist!"), true)
		return
	}

	ctx := context.Background()
	switch sub.Name {
	case "add":
		disabled, err := b.blacklist.Blacklist(ctx, userID)
		if err != nil {
			b.respondBlacklistError(i, err)
			return
		}

		keysList := "- No active API keys found"
		if len(disabled) > 0 {
			keysList = "- " + strings.Join(disabled, "\n- ")
		}
		embed := b.userEmbed(i, "User Blacklisted", "The user has been blacklisted successfully!")
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "API Keys Disabled:", Value: keysList},
		}
		b.respondEmbed(i, embed, false)

	case "remove":
		if err := b.blacklist.Unblacklist(ctx, userID); err != nil {
			b.respondBlacklistError(i, err)
			return
		}
		b.respondEmbed(i, b.userEmbed(i,
			"User Removed from Blacklist",
			"The user has been successfully removed from the blacklist!"), false)
	}
}

func (b *Bot) respondBlacklistError(i *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - Invalid User",
			"The user ID in place does not exist!"), true)
	case errors.Is(err, user.ErrAlreadyBlacklisted):
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - Invalid Credentials",
			"This user is already blacklisted!"), true)
	case errors.Is(err, user.ErrNotBlacklisted):
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - User Not Blacklisted",
			"This user is not currently blacklisted!"), true)
	default:
		b.respondUnexpected(i, err)
	}
}

func (b *Bot) handlePanel(i *discordgo.InteractionCreate) {
	if !b.isAuthorized(i) {
		b.respondUnauthorized(i)
		return
	}

	b.purgeChannel(i.ChannelID)
	b.respondEmbed(i, b.panelEmbed(), false, linkButtonRow())
}

func (b *Bot) handleAPI(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	invoker := interactionUser(i)
	ctx := context.Background()

	switch sub.Name {
	case "key_generate":
		name := subOptionString(sub, "name")
		key, rec, err := b.keys.Generate(ctx, invoker.ID, invoker.Username, name)
		if err != nil {
			b.respondUnexpected(i, err)
			return
		}
		embed := b.userEmbed(i, "API Key Generated",
			"Your new API key is below. Store it somewhere safe - it will not be shown again.")
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Name", Value: rec.Name, Inline: true},
			{Name: "Key", Value: "||`" + key + "`||"},
		}
		b.respondEmbed(i, embed, true)

	case "key_delete":
		records, err := b.keys.ListKeys(ctx, invoker.ID)
		if err != nil && !errors.Is(err, user.ErrUserNotFound) {
			b.respondUnexpected(i, err)
			return
		}
		if len(records) == 0 {
			b.respondEmbed(i, b.userEmbed(i,
				"No API Keys",
				"You do not have any API keys to delete."), true)
			return
		}

		options := make([]discordgo.SelectMenuOption, 0, len(records))
		for _, rec := range records {
			options = append(options, discordgo.SelectMenuOption{
				Label:       rec.Name,
				Value:       rec.ID.String(),
				Description: "Created " + rec.CreatedAt.Format("2006-01-02"),
			})
		}
		menu := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.SelectMenu{
				CustomID:    customIDKeyDeleteSelect,
				Placeholder: "Choose the key to delete",
				Options:     options,
			},
		}}
		b.respondEmbed(i, b.userEmbed(i,
			"Delete API Key",
			"Select which of your API keys should be deleted."), true, menu)
	}
}

func (b *Bot) handleVerify(i *discordgo.InteractionCreate) {
	if !b.isGuildOwner(i) {
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - Invalid Credentials",
			"Only the server owner can run this command!"), true)
		return
	}

	text, err := b.ownership.Start(context.Background(), i.GuildID, i.Member.User.ID)
	if err != nil {
		b.respondUnexpected(i, err)
		return
	}

	embed := b.userEmbed(i, "Roblox Ownership Verification",
		"Put the text below into your Roblox profile description, then press the button and enter your Roblox username.")
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Verification Text", Value: "`" + text + "`"},
	}
	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		&discordgo.Button{
			CustomID: customIDVerifySubmitButton,
			Label:    "Enter Username",
			Style:    discordgo.PrimaryButton,
		},
	}}
	b.respondEmbed(i, embed, true, row)
}

func (b *Bot) handleSetup(i *discordgo.InteractionCreate) {
	if !b.isGuildOwner(i) {
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - Invalid Credentials",
			"Only the server owner can run this command!"), true)
		return
	}

	data := i.ApplicationCommandData()
	groupID := optionInt(data.Options, "group_id")
	if groupID <= 0 {
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - Invalid Group",
			"The group ID in place does not exist!"), true)
		return
	}

	rec, err := b.setup.Setup(context.Background(), i.GuildID, i.Member.User.ID, groupID)
	if err != nil {
		b.respondSetupError(i, err)
		return
	}

	embed := b.userEmbed(i, "Server Setup Complete",
		fmt.Sprintf("Bot account **%s** has joined group **%d**. Rank it in your group to let it manage members.", rec.BotUsername, rec.GroupID))
	b.respondEmbed(i, embed, false)
}

func (b *Bot) respondSetupError(i *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, service.ErrNotVerified):
		b.respondEmbed(i, b.userEmbed(i,
			"Verification Required",
			"You must verify Roblox account ownership with /verify before setting up."), true)
	case errors.Is(err, guild.ErrSetupExists):
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - Already Set Up",
			"This server has already been set up with a group!"), true)
	case errors.Is(err, service.ErrBotsFull):
		b.respondEmbed(i, b.userEmbed(i,
			"No Bots Available",
			"All bot accounts are at their group capacity. Please try again later."), true)
	case errors.Is(err, roblox.ErrChallengeRequired), errors.Is(err, roblox.ErrApprovalRequired):
		b.respondEmbed(i, b.userEmbed(i,
			"Manual Join Required",
			"The group could not be joined automatically. Disable join approvals and security challenges, or add the bot account manually."), true)
	case errors.Is(err, roblox.ErrInsufficientPermissions):
		b.respondEmbed(i, b.userEmbed(i,
			"Join Failed",
			"The bot account does not have permission to join this group."), true)
	case errors.Is(err, roblox.ErrGroupFull):
		b.respondEmbed(i, b.userEmbed(i,
			"Join Failed",
			"The group is full and cannot accept new members."), true)
	case errors.Is(err, roblox.ErrJoinDenied):
		b.respondEmbed(i, b.userEmbed(i,
			"Join Failed",
			"The group denied the join request."), true)
	default:
		b.respondUnexpected(i, err)
	}
}

// respondUnexpected hands the user only a correlation id; the detail goes
// to the operator error-log channel.
func (b *Bot) respondUnexpected(i *discordgo.InteractionCreate, err error) {
	errorID := uuid.NewString()
	b.logger.Error("Unexpected error handling interaction",
		zap.String("error_id", errorID), zap.Error(err))
	b.ReportError(errorID, err)
	b.respondEmbed(i, b.userEmbed(i,
		"Error",
		fmt.Sprintf("An unexpected error occurred. Error ID: `%s`", errorID)), true)
}

func subOptionString(sub *discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range sub.Options {
		if opt.Name == name {
			return strings.TrimSpace(opt.StringValue())
		}
	}
	return ""
}

func optionInt(options []*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	for _, opt := range options {
		if opt.Name == name {
			return opt.IntValue()
		}
	}
	return 0
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
