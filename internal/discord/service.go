// Package discord wraps the Discord session: channel history retrieval,
// message text extraction, chunked delivery, and the owner command surface.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/phonefarm/summarybot/internal/report"
	"github.com/phonefarm/summarybot/internal/runner"
)

// DeliveryChunkSize is the delivery boundary: texts longer than this are sent
// as multiple messages. Discord caps messages at 2000 characters; the margin
// leaves room for the platform's own framing.
const DeliveryChunkSize = 1900

// historyPageSize is the largest page the history endpoint serves.
const historyPageSize = 100

type Service struct {
	session *discordgo.Session
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewService builds the Discord session with the intents the summary run
// needs. The session is not opened; the caller owns Open/Close.
func NewService(log *slog.Logger, token string) (*Service, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &Service{
		session: session,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		logger:  log.With(slog.String("service", "discord")),
	}, nil
}

// Open connects the gateway session.
func (s *Service) Open() error {
	if err := s.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	if user := s.session.State.User; user != nil {
		s.logger.Info("discord session opened",
			slog.String("username", user.Username), slog.String("id", user.ID))
	}
	return nil
}

// Close shuts the gateway session down.
func (s *Service) Close() error {
	return s.session.Close()
}

// GuildTextChannels lists the guild's text channels in display order.
func (s *Service) GuildTextChannels(guildID string) ([]runner.ChannelRef, error) {
	channels, err := s.session.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			text = append(text, ch)
		}
	}
	sort.SliceStable(text, func(i, j int) bool {
		if text[i].Position != text[j].Position {
			return text[i].Position < text[j].Position
		}
		return text[i].ID < text[j].ID
	})
	refs := make([]runner.ChannelRef, 0, len(text))
	for _, ch := range text {
		refs = append(refs, runner.ChannelRef{ID: ch.ID, Name: ch.Name})
	}
	return refs, nil
}

// CanReadHistory reports whether the bot may read the channel and its
// message history.
func (s *Service) CanReadHistory(channelID string) bool {
	user := s.session.State.User
	if user == nil {
		return false
	}
	perms, err := s.session.UserChannelPermissions(user.ID, channelID)
	if err != nil {
		return false
	}
	required := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory)
	return perms&required == required
}

// FetchChannelHistory returns up to limit messages, newest first, flattened
// to text. Pages are pulled under the shared rate limiter.
func (s *Service) FetchChannelHistory(ctx context.Context, channelID string, limit int) ([]report.MessageRecord, error) {
	var records []report.MessageRecord
	beforeID := ""

	for len(records) < limit {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		pageSize := limit - len(records)
		if pageSize > historyPageSize {
			pageSize = historyPageSize
		}
		page, err := s.session.ChannelMessages(channelID, pageSize, beforeID, "", "")
		if err != nil {
			return nil, fmt.Errorf("fetch channel history: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, msg := range page {
			records = append(records, report.MessageRecord{
				Text:      ExtractMessageText(msg),
				Timestamp: msg.Timestamp,
			})
		}
		beforeID = page[len(page)-1].ID
		if len(page) < pageSize {
			break
		}
	}
	return records, nil
}

// DeliverText DMs text to the user, split at the delivery chunk boundary.
func (s *Service) DeliverText(userID, text string) error {
	channel, err := s.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	for _, chunk := range splitChunks(text, DeliveryChunkSize) {
		if _, err := s.session.ChannelMessageSend(channel.ID, chunk); err != nil {
			return fmt.Errorf("send dm chunk: %w", err)
		}
	}
	return nil
}

// splitChunks cuts text into size-bounded pieces. The size is counted in
// runes so a multi-byte character never straddles a chunk boundary.
func splitChunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
