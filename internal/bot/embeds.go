package bot

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const embedColor = 0xFFFFFF

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// userEmbed builds the standard reply embed: invoker in the author header,
// white accent.
func (b *Bot) userEmbed(i *discordgo.InteractionCreate, title, description string) *discordgo.MessageEmbed {
	u := interactionUser(i)
	return &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    u.Username,
			IconURL: u.AvatarURL(""),
		},
		Title:       title,
		Description: description,
		Color:       embedColor,
	}
}

// botEmbed is the panel variant with the bot itself in the author header.
func (b *Bot) botEmbed(title, description string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       embedColor,
	}
	if me := b.session.State.User; me != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    me.Username,
			IconURL: me.AvatarURL(""),
		}
	}
	return embed
}

func (b *Bot) respondEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool, components ...discordgo.MessageComponent) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
			Flags:      flags,
		},
	})
	if err != nil {
		b.logger.Warn("Interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondUnauthorized(i *discordgo.InteractionCreate) {
	b.respondEmbed(i, b.userEmbed(i,
		"Warning - Invalid Credentials",
		"This command is limited to specific role and user ids!"), true)
}

// ReportError posts an unexpected failure to the operator error-log
// channel, keyed by the correlation id shown to the end user.
func (b *Bot) ReportError(errorID string, err error) {
	if b.cfg.ErrorLogChannelID == "" {
		return
	}
	embed := b.botEmbed("Internal Error", "An unexpected error occurred.")
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Error ID", Value: errorID, Inline: true},
		{Name: "Detail", Value: truncate(err.Error(), 1024)},
	}
	if _, sendErr := b.session.ChannelMessageSendEmbed(b.cfg.ErrorLogChannelID, embed); sendErr != nil {
		b.logger.Warn("Could not report error to log channel",
			zap.String("error_id", errorID), zap.Error(sendErr))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
