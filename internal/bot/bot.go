// Package bot hosts the Discord surface: slash commands for key and
// blacklist management, the account-linking panel, and the guild
// verification and setup flows.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/config"
	"github.com/fugitivebreach/arrow-api/internal/service"
)

// Fourteen days is Discord's hard limit for bulk deletion.
const bulkDeleteWindow = 14 * 24 * time.Hour

type Bot struct {
	session   *discordgo.Session
	cfg       config.DiscordConfig
	keys      *service.KeyService
	blacklist *service.BlacklistService
	linking   *service.LinkingService
	ownership *service.OwnershipService
	setup     *service.SetupService
	logger    *zap.Logger
}

func New(cfg config.DiscordConfig, keys *service.KeyService, blacklist *service.BlacklistService, linking *service.LinkingService, ownership *service.OwnershipService, setup *service.SetupService, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	b := &Bot{
		session:   session,
		cfg:       cfg,
		keys:      keys,
		blacklist: blacklist,
		linking:   linking,
		ownership: ownership,
		setup:     setup,
		logger:    logger.Named("Bot"),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b, nil
}

// Run opens the gateway connection and blocks until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	b.logger.Info("Discord bot connected")

	<-ctx.Done()
	b.logger.Info("Closing discord session...")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("closing discord session: %w", err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("Discord bot ready",
		zap.String("username", r.User.Username),
		zap.String("user_id", r.User.ID))

	if err := b.registerCommands(); err != nil {
		b.logger.Error("Failed to register application commands", zap.Error(err))
	}

	if b.cfg.VerificationChannelID != "" {
		b.purgeChannel(b.cfg.VerificationChannelID)
		if err := b.sendPanel(b.cfg.VerificationChannelID); err != nil {
			b.logger.Error("Failed to send verification panel", zap.Error(err))
		} else {
			b.logger.Info("Verification panel sent",
				zap.String("channel_id", b.cfg.VerificationChannelID))
		}
	} else {
		b.logger.Info("Verification channel not configured, skipping auto panel send")
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "blacklist":
			b.handleBlacklist(i)
		case "panel":
			b.handlePanel(i)
		case "api":
			b.handleAPI(i)
		case "verify":
			b.handleVerify(i)
		case "setup":
			b.handleSetup(i)
		}
	case discordgo.InteractionMessageComponent:
		switch i.MessageComponentData().CustomID {
		case customIDLinkButton:
			b.openLinkModal(i)
		case customIDVerifySubmitButton:
			b.openUsernameModal(i)
		case customIDCheckButton:
			b.handleCheckVerification(i)
		case customIDKeyDeleteSelect:
			b.handleKeyDeleteSelect(i)
		}
	case discordgo.InteractionModalSubmit:
		switch i.ModalSubmitData().CustomID {
		case customIDLinkModal:
			b.handleLinkSubmit(i)
		case customIDUsernameModal:
			b.handleUsernameSubmit(i)
		}
	}
}

// purgeChannel deletes recent non-pinned messages so the channel holds only
// the panel.
func (b *Bot) purgeChannel(channelID string) {
	messages, err := b.session.ChannelMessages(channelID, 100, "", "", "")
	if err != nil {
		b.logger.Warn("Could not fetch messages for purge",
			zap.String("channel_id", channelID), zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-bulkDeleteWindow)
	var ids []string
	for _, m := range messages {
		if m.Pinned || m.Timestamp.Before(cutoff) {
			continue
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return
	}

	if err := b.session.ChannelMessagesBulkDelete(channelID, ids); err != nil {
		b.logger.Warn("Could not purge channel messages",
			zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	b.logger.Info("Purged channel messages",
		zap.String("channel_id", channelID), zap.Int("count", len(ids)))
}

func (b *Bot) isGuildOwner(i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" || i.Member == nil {
		return false
	}
	guild, err := b.session.State.Guild(i.GuildID)
	if err != nil {
		guild, err = b.session.Guild(i.GuildID)
		if err != nil {
			b.logger.Warn("Could not resolve guild for owner check",
				zap.String("guild_id", i.GuildID), zap.Error(err))
			return false
		}
	}
	return guild.OwnerID == i.Member.User.ID
}

// isAuthorized checks the static role and user allow-lists.
func (b *Bot) isAuthorized(i *discordgo.InteractionCreate) bool {
	var userID string
	var roles []string
	if i.Member != nil {
		userID = i.Member.User.ID
		roles = i.Member.Roles
	} else if i.User != nil {
		userID = i.User.ID
	}

	for _, id := range b.cfg.AuthorizedUserIDList() {
		if id == userID {
			return true
		}
	}
	for _, roleID := range b.cfg.AuthorizedRoleIDList() {
		for _, have := range roles {
			if have == roleID {
				return true
			}
		}
	}
	return false
}
