// Package summarizer renders report sets to delivery text, either with the
// deterministic formatter or through the Gemini API with fallback.
package summarizer

import (
	"context"
	"log/slog"

	"github.com/phonefarm/summarybot/internal/config"
	"github.com/phonefarm/summarybot/internal/report"
)

// Formatter renders a set of channel reports to the text delivered to the
// owner.
type Formatter interface {
	Format(ctx context.Context, reports []report.ChannelReport) (string, error)
}

// Direct renders with the deterministic line grammar. It never fails.
type Direct struct{}

func (Direct) Format(_ context.Context, reports []report.ChannelReport) (string, error) {
	return report.FormatDirect(reports), nil
}

// New selects the configured formatter: Gemini (falling back to Direct on any
// failure) when enabled and keyed, Direct otherwise.
func New(ctx context.Context, log *slog.Logger, cfg config.GeminiConfig) Formatter {
	if !cfg.Enabled || cfg.APIKey == "" {
		return Direct{}
	}
	gemini, err := NewGemini(ctx, log, cfg.APIKey, cfg.Model)
	if err != nil {
		log.Warn("gemini formatter unavailable, using direct formatter", slog.Any("error", err))
		return Direct{}
	}
	return gemini
}
