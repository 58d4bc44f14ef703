package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/phonefarm/summarybot/internal/report"
	"github.com/phonefarm/summarybot/internal/summarizer"
)

type Service struct {
	platform  Platform
	formatter summarizer.Formatter
	pipeline  *report.Pipeline
	opts      Options
	location  *time.Location
	cron      *cron.Cron
	logger    *slog.Logger

	// runMu serializes runs; an overlapping trigger is dropped, not queued.
	runMu sync.Mutex
}

func NewService(log *slog.Logger, platform Platform, formatter summarizer.Formatter, pipeline *report.Pipeline, loc *time.Location, opts Options) *Service {
	if opts.ChannelPrefix == "" {
		opts.ChannelPrefix = "phone-"
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 200
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{
		platform:  platform,
		formatter: formatter,
		pipeline:  pipeline,
		opts:      opts,
		location:  loc,
		cron:      cron.New(cron.WithLocation(loc)),
		logger:    log.With(slog.String("service", "runner")),
	}
}

// StartSchedule arms the cron trigger with the given pattern, evaluated in
// the configured timezone.
func (s *Service) StartSchedule(pattern string) error {
	_, err := s.cron.AddFunc(pattern, func() {
		if err := s.RunSummary(context.Background(), ""); err != nil {
			s.logger.Error("scheduled summary run failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron pattern %q: %w", pattern, err)
	}
	s.cron.Start()
	s.logger.Info("summary schedule started", slog.String("pattern", pattern))
	return nil
}

// StopSchedule stops the cron trigger and waits for a running job to return.
func (s *Service) StopSchedule() {
	<-s.cron.Stop().Done()
}

// RunSummary performs one summary run for the given target date (empty means
// most recent). Channels are processed in parallel; per-channel failures skip
// that channel only. A trigger arriving while a run is active is dropped.
func (s *Service) RunSummary(ctx context.Context, targetDate string) error {
	if !s.runMu.TryLock() {
		s.logger.Warn("summary run already in progress, dropping trigger",
			slog.String("target_date", targetDate))
		return nil
	}
	defer s.runMu.Unlock()

	s.logger.Info("running daily summary",
		slog.String("guild", s.opts.GuildID), slog.String("target_date", targetDate))

	channels, err := s.platform.GuildTextChannels(s.opts.GuildID)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	// Results land at the channel's index so output keeps guild order even
	// though channels are processed concurrently.
	results := make([]*report.ChannelReport, len(channels))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.opts.Concurrency)

	for i, ch := range channels {
		if strings.Contains(strings.ToLower(ch.Name), "test") {
			s.logger.Debug("skipping test channel", slog.String("channel", ch.Name))
			continue
		}
		if !strings.HasPrefix(ch.Name, s.opts.ChannelPrefix) {
			continue
		}
		eg.Go(func() error {
			if rep := s.processChannel(egCtx, ch, targetDate); rep != nil {
				results[i] = rep
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	reports := make([]report.ChannelReport, 0, len(results))
	for _, rep := range results {
		if rep != nil {
			reports = append(reports, *rep)
		}
	}
	s.logger.Info("parsed channels into structured data", slog.Int("channels", len(reports)))

	if len(reports) == 0 {
		s.logger.Info("no channels with schedule or final update content, skipping summary")
		return nil
	}

	text, err := s.formatter.Format(ctx, reports)
	if err != nil {
		// The deterministic renderer is always available.
		s.logger.Error("formatter failed, using direct rendering", slog.Any("error", err))
		text = report.FormatDirect(reports)
	}

	final := s.reportHeader(targetDate) + "\n\n" + strings.TrimSpace(text)
	if err := s.platform.DeliverText(s.opts.OwnerUserID, final); err != nil {
		return fmt.Errorf("deliver summary: %w", err)
	}
	return nil
}

// processChannel runs the reconciliation pipeline for one channel. A nil
// result means the channel is excluded from the report set.
func (s *Service) processChannel(ctx context.Context, ch ChannelRef, targetDate string) *report.ChannelReport {
	if !s.platform.CanReadHistory(ch.ID) {
		s.logger.Info("skipping channel, missing read permissions", slog.String("channel", ch.Name))
		return nil
	}

	msgs, err := s.platform.FetchChannelHistory(ctx, ch.ID, s.opts.HistoryLimit)
	if err != nil {
		s.logger.Info("skipping channel, history fetch failed",
			slog.String("channel", ch.Name), slog.Any("error", err))
		return nil
	}
	if len(msgs) == 0 {
		return nil
	}

	scheduleText, finalUpdateText := s.pipeline.Extract(msgs, targetDate)
	if scheduleText == "" && finalUpdateText == "" {
		s.logger.Debug("skipping channel, no schedule or final update content",
			slog.String("channel", ch.Name))
		return nil
	}

	rep := s.pipeline.BuildChannelReport(ch.Name, scheduleText, finalUpdateText)
	s.logger.Info("parsed channel",
		slog.String("channel", ch.Name),
		slog.String("device", rep.DeviceName),
		slog.Int("accounts", len(rep.Accounts)))
	return &rep
}

// reportHeader renders the summary banner for the run's date.
func (s *Service) reportHeader(targetDate string) string {
	day := time.Now().In(s.location)
	if targetDate != "" {
		if dt, err := time.Parse(report.DateLayout, targetDate); err == nil {
			day = dt
		}
	}
	return "📊 **Daily Summary - " + day.Format("January 02, 2006") + "**"
}
