package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/verification"
	"github.com/fugitivebreach/arrow-api/internal/roblox"
	"github.com/fugitivebreach/arrow-api/internal/service"
)

const (
	customIDLinkButton         = "link_account"
	customIDLinkModal          = "link_form"
	customIDLinkCodeInput      = "verification_code"
	customIDVerifySubmitButton = "verify_submit"
	customIDUsernameModal      = "verify_username_form"
	customIDUsernameInput      = "roblox_username"
	customIDCheckButton        = "check_verification"
	customIDKeyDeleteSelect    = "key_delete_select"
)

func (b *Bot) panelEmbed() *discordgo.MessageEmbed {
	return b.botEmbed("LINK DISCORD ACCOUNT",
		"Use the button below to link your account to receive roles in our server.")
}

func linkButtonRow() discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		&discordgo.Button{
			CustomID: customIDLinkButton,
			Label:    "Link",
			Style:    discordgo.SecondaryButton,
		},
	}}
}

func (b *Bot) sendPanel(channelID string) error {
	row := linkButtonRow()
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{b.panelEmbed()},
		Components: []discordgo.MessageComponent{row},
	})
	return err
}

func (b *Bot) openLinkModal(i *discordgo.InteractionCreate) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customIDLinkModal,
			Title:    "Link Discord Account",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{
						CustomID:    customIDLinkCodeInput,
						Label:       "Enter Linking Code",
						Style:       discordgo.TextInputShort,
						Placeholder: "Only enter your linking code",
						Required:    true,
					},
				}},
			},
		},
	})
	if err != nil {
		b.logger.Warn("Could not open link modal", zap.Error(err))
	}
}

func (b *Bot) handleLinkSubmit(i *discordgo.InteractionCreate) {
	code := modalValue(i, customIDLinkCodeInput)

	_, err := b.linking.Redeem(context.Background(), code)
	if err != nil {
		if errors.Is(err, verification.ErrCodeInvalid) {
			b.respondEmbed(i, b.userEmbed(i,
				"Linking Failed",
				"The code is invalid or no longer exists."), true)
			return
		}
		b.respondUnexpected(i, err)
		return
	}

	// The code is consumed at this point; a role-grant failure is reported
	// but does not restore it.
	if err := b.grantRoles(i); err != nil {
		b.logger.Error("Role assignment failed after redeem",
			zap.String("user_id", interactionUser(i).ID), zap.Error(err))
		b.respondEmbed(i, b.userEmbed(i,
			"Linking Failed",
			"An error occurred while assigning roles. Please contact an administrator."), true)
		return
	}

	b.respondEmbed(i, b.userEmbed(i,
		"Linking Successful",
		"The code was validated and successfully redeemed. I have added your roles accordingly."), true)
}

func (b *Bot) grantRoles(i *discordgo.InteractionCreate) error {
	userID := interactionUser(i).ID
	for _, roleID := range b.cfg.RoleIDList() {
		if err := b.session.GuildMemberRoleAdd(i.GuildID, userID, roleID); err != nil {
			return fmt.Errorf("adding role %s: %w", roleID, err)
		}
	}
	return nil
}

func (b *Bot) openUsernameModal(i *discordgo.InteractionCreate) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customIDUsernameModal,
			Title:    "Roblox Username",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{
						CustomID:    customIDUsernameInput,
						Label:       "Your Roblox Username",
						Style:       discordgo.TextInputShort,
						Placeholder: "Exact username, not display name",
						Required:    true,
					},
				}},
			},
		},
	})
	if err != nil {
		b.logger.Warn("Could not open username modal", zap.Error(err))
	}
}

func (b *Bot) handleUsernameSubmit(i *discordgo.InteractionCreate) {
	username := modalValue(i, customIDUsernameInput)

	profile, err := b.ownership.SubmitUsername(context.Background(), i.GuildID, interactionUser(i).ID, username)
	if err != nil {
		switch {
		case errors.Is(err, roblox.ErrUserNotFound):
			b.respondEmbed(i, b.userEmbed(i,
				"Warning - Invalid User",
				"No Roblox account was found with that username!"), true)
		case errors.Is(err, service.ErrSessionExpired):
			b.respondEmbed(i, b.userEmbed(i,
				"Session Expired",
				"Your verification session has expired. Run /verify again."), true)
		default:
			b.respondUnexpected(i, err)
		}
		return
	}

	embed := b.userEmbed(i, "Check Your Profile",
		fmt.Sprintf("Found **%s**. Once the verification text is in your profile description, press the button below.", profile.Name))
	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		&discordgo.Button{
			CustomID: customIDCheckButton,
			Label:    "Check Verification",
			Style:    discordgo.SuccessButton,
		},
	}}
	b.respondEmbed(i, embed, true, row)
}

func (b *Bot) handleCheckVerification(i *discordgo.InteractionCreate) {
	v, err := b.ownership.Check(context.Background(), i.GuildID, interactionUser(i).ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionExpired):
			b.respondEmbed(i, b.userEmbed(i,
				"Session Expired",
				"Your verification session has expired. Run /verify again."), true)
		case errors.Is(err, service.ErrDescriptionMismatch):
			b.respondEmbed(i, b.userEmbed(i,
				"Verification Failed",
				"Your profile description does not contain the verification text yet. Save it and try again."), true)
		default:
			b.respondUnexpected(i, err)
		}
		return
	}

	b.respondEmbed(i, b.userEmbed(i,
		"Verification Successful",
		fmt.Sprintf("Roblox account **%s** is verified for this server. You can now run /setup.", v.RobloxUsername)), true)
}

func (b *Bot) handleKeyDeleteSelect(i *discordgo.InteractionCreate) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return
	}
	keyID, err := uuid.Parse(values[0])
	if err != nil {
		b.respondEmbed(i, b.userEmbed(i,
			"Warning - Invalid Key",
			"The selected key could not be parsed."), true)
		return
	}

	if err := b.keys.Delete(context.Background(), interactionUser(i).ID, keyID); err != nil {
		b.respondUnexpected(i, err)
		return
	}

	b.respondEmbed(i, b.userEmbed(i,
		"API Key Deleted",
		"The selected API key has been deleted."), true)
}

func modalValue(i *discordgo.InteractionCreate, id string) string {
	for _, row := range i.ModalSubmitData().Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if ti, ok := c.(*discordgo.TextInput); ok && ti.CustomID == id {
				return strings.TrimSpace(ti.Value)
			}
		}
	}
	return ""
}
