package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/phonefarm/summarybot/internal/report"
)

// Gemini renders reports by sending the compact encoding to the Gemini API
// together with the exact output-format contract. Any failure falls back to
// the deterministic formatter, so the pipeline always produces output.
type Gemini struct {
	model    string
	logger   *slog.Logger
	fallback Formatter

	// generate performs the model call; swapped out in tests.
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewGemini creates the Gemini formatter.
func NewGemini(ctx context.Context, log *slog.Logger, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g := &Gemini{
		model:    model,
		logger:   log.With(slog.String("service", "summarizer")),
		fallback: Direct{},
	}
	g.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return g, nil
}

func (g *Gemini) Format(ctx context.Context, reports []report.ChannelReport) (string, error) {
	compact := report.FormatCompact(reports)
	if strings.TrimSpace(compact) == "" {
		return "", nil
	}

	prompt := buildPrompt(compact)
	g.logger.Debug("sending prompt to gemini", slog.Int("length", len(prompt)))

	text, err := g.generate(ctx, prompt)
	if err != nil {
		g.logger.Error("gemini request failed, using direct formatter", slog.Any("error", err))
		return g.fallback.Format(ctx, reports)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warn("gemini returned empty output, using direct formatter")
		return g.fallback.Format(ctx, reports)
	}
	return text, nil
}

// buildPrompt wraps the compact channel encoding with the output contract the
// model must reproduce exactly.
func buildPrompt(compactData string) string {
	return "You are analyzing pre-parsed Instagram automation results.\n\n" +
		"Each line below has the format:\n" +
		"device_name|status|account1:scheduled_status:scheduled_follows:" +
		"actual_follows+actual_requests:blocked(y/n),...\n\n" +
		"Status values:\n" +
		"- ok:Method X → phone completed task with method X\n" +
		"- no_task → schedule exists but no final update found\n" +
		"- error:... → error occurred\n\n" +
		"OUTPUT FORMAT (follow EXACTLY):\n\n" +
		"For each phone, output:\n" +
		"1) Phone line (NO indentation):\n" +
		"   \"<device_name> – completed daily task (Method X)\" if status=ok:Method X\n" +
		"   \"<device_name> – no daily task made\" if status=no_task\n" +
		"   \"<device_name> – Error: <message>\" if status=error:...\n\n" +
		"2) Account lines (EXACTLY 3 spaces then asterisk for ALL accounts):\n" +
		"   \"   * <username> – off\" if scheduled_status=Off\n" +
		"   \"   * <username> – blocked\" if blocked=y\n" +
		"   \"   * <username>\" (no stats) if scheduled_status=Method 9\n" +
		"   Otherwise calculate total = actual_follows + actual_requests:\n" +
		"   \"   * <username> - total # of follows made: <total> (met the daily max which is <scheduled>)\" if total >= scheduled\n" +
		"   \"   * <username> - total # of follows made: <total> (didn't met the daily max which is <scheduled>)\" if total < scheduled\n\n" +
		"CRITICAL RULES:\n" +
		"- ALL account lines use exactly \"   * \" (3 spaces + asterisk + space)\n" +
		"- Do NOT nest bullets or increase indentation\n" +
		"- Do NOT add headers, dates, or commentary\n" +
		"- Output ONLY phone lines and account bullets\n\n" +
		"DATA:\n" +
		compactData + "\n"
}
