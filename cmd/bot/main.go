package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/phonefarm/summarybot/internal/config"
	"github.com/phonefarm/summarybot/internal/discord"
	"github.com/phonefarm/summarybot/internal/logger"
	"github.com/phonefarm/summarybot/internal/report"
	"github.com/phonefarm/summarybot/internal/runner"
	"github.com/phonefarm/summarybot/internal/summarizer"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.Discord.Token == "" {
		return config.Config{}, fmt.Errorf("discord token is not configured")
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideLocation(cfg config.Config) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Run.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Run.Timezone, err)
	}
	return loc, nil
}

func provideDiscord(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*discord.Service, error) {
	svc, err := discord.NewService(log, cfg.Discord.Token)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return svc.Open()
		},
		OnStop: func(context.Context) error {
			return svc.Close()
		},
	})
	return svc, nil
}

func provideFormatter(log *slog.Logger, cfg config.Config) summarizer.Formatter {
	return summarizer.New(context.Background(), log, cfg.Gemini)
}

func provideRunner(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, svc *discord.Service, formatter summarizer.Formatter, pipeline *report.Pipeline, loc *time.Location) *runner.Service {
	run := runner.NewService(log, svc, formatter, pipeline, loc, runner.Options{
		GuildID:       cfg.Discord.GuildID,
		OwnerUserID:   cfg.Discord.OwnerUserID,
		ChannelPrefix: cfg.Discord.ChannelPrefix,
		HistoryLimit:  cfg.Discord.HistoryLimit,
		Concurrency:   cfg.Run.Concurrency,
	})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return run.StartSchedule(cfg.Run.Cron)
		},
		OnStop: func(context.Context) error {
			run.StopSchedule()
			return nil
		},
	})
	return run
}

func provideCommands(log *slog.Logger, cfg config.Config, svc *discord.Service, run *runner.Service, loc *time.Location) *discord.CommandHandler {
	return discord.NewCommandHandler(log, svc, run, cfg.Discord.OwnerUserID, loc)
}

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideLocation,
			provideDiscord,
			provideFormatter,
			report.NewPipeline,
			provideRunner,
			provideCommands,
		),
		fx.Invoke(func(handler *discord.CommandHandler) {
			handler.Register()
		}),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),
	).Run()
}
