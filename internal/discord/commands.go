package discord

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/phonefarm/summarybot/internal/report"
)

// SummaryRunner triggers a summary run; implemented by the runner service.
type SummaryRunner interface {
	RunSummary(ctx context.Context, targetDate string) error
}

const dateUsageMessage = "**Valid formats:**\n" +
	"• `monday`, `tue`, `wednesday`\n" +
	"• `today`, `yesterday`\n" +
	"• `dec 02`, `december 2`\n" +
	"• `2025-12-02`, `12/02`"

// CommandHandler answers the chat commands: !ping for anyone, !summary for
// the owner only.
type CommandHandler struct {
	svc      *Service
	runner   SummaryRunner
	ownerID  string
	location *time.Location
	logger   *slog.Logger
}

func NewCommandHandler(log *slog.Logger, svc *Service, runner SummaryRunner, ownerID string, loc *time.Location) *CommandHandler {
	return &CommandHandler{
		svc:      svc,
		runner:   runner,
		ownerID:  ownerID,
		location: loc,
		logger:   log.With(slog.String("service", "commands")),
	}
}

// Register attaches the handler to the session.
func (h *CommandHandler) Register() {
	h.svc.session.AddHandler(h.onMessageCreate)
}

func (h *CommandHandler) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, "!") {
		return
	}

	command, args, _ := strings.Cut(content[1:], " ")
	switch strings.ToLower(command) {
	case "ping":
		h.reply(m, "Pong from summary bot!")
	case "summary":
		h.handleSummary(m, strings.TrimSpace(args))
	}
}

func (h *CommandHandler) handleSummary(m *discordgo.MessageCreate, dayArg string) {
	if m.Author.ID != h.ownerID {
		h.logger.Warn("unauthorized summary attempt",
			slog.String("user", m.Author.Username), slog.String("id", m.Author.ID))
		h.reply(m, "You are not authorized to run this command.")
		return
	}

	targetDate := ""
	if dayArg != "" {
		resolved, err := report.ResolveDayArgument(dayArg, time.Now().In(h.location))
		if err != nil {
			h.send(m, "❌ Could not parse: `"+dayArg+"`\n\n"+dateUsageMessage)
			return
		}
		targetDate = resolved
		dt, _ := time.Parse(report.DateLayout, targetDate)
		h.send(m, "📅 Getting summary for **"+dt.Format("Monday, January 02, 2006")+"**...")
	} else {
		h.send(m, "📊 Getting most recent summary...")
	}

	h.logger.Info("summary command triggered",
		slog.String("user", m.Author.Username), slog.String("date", targetDate))
	if err := h.runner.RunSummary(context.Background(), targetDate); err != nil {
		h.logger.Error("summary run failed", slog.Any("error", err))
	}
}

func (h *CommandHandler) reply(m *discordgo.MessageCreate, text string) {
	if _, err := h.svc.session.ChannelMessageSendReply(m.ChannelID, text, m.Reference()); err != nil {
		h.logger.Error("send reply failed", slog.Any("error", err))
	}
}

func (h *CommandHandler) send(m *discordgo.MessageCreate, text string) {
	if _, err := h.svc.session.ChannelMessageSend(m.ChannelID, text); err != nil {
		h.logger.Error("send message failed", slog.Any("error", err))
	}
}
