// Package runner orchestrates summary runs: scanning the guild's device
// channels, reconciling each one, and delivering the rendered report.
package runner

import (
	"context"

	"github.com/phonefarm/summarybot/internal/report"
)

// ChannelRef identifies one guild text channel in display order.
type ChannelRef struct {
	ID   string
	Name string
}

// Platform is the chat-platform surface a run consumes and produces.
type Platform interface {
	GuildTextChannels(guildID string) ([]ChannelRef, error)
	CanReadHistory(channelID string) bool
	FetchChannelHistory(ctx context.Context, channelID string, limit int) ([]report.MessageRecord, error)
	DeliverText(userID, text string) error
}

// Options scope a run to one guild and owner.
type Options struct {
	GuildID       string
	OwnerUserID   string
	ChannelPrefix string
	HistoryLimit  int
	Concurrency   int
}
