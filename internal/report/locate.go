package report

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Pipeline runs the per-channel reconciliation steps and carries the
// diagnostics logger. It holds no state between runs.
type Pipeline struct {
	logger *slog.Logger
}

func NewPipeline(log *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: log.With(slog.String("service", "report")),
	}
}

// stitchWindow is how far apart split parts of one final update may be.
const stitchWindow = 300 * time.Second

var (
	startTimeRe = regexp.MustCompile(`(?i)start\s*time:\s*(\d{4}-\d{2}-\d{2})`)
	endTimeRe   = regexp.MustCompile(`(?i)end\s*time:\s*(\d{4}-\d{2}-\d{2})`)
)

// extractRunDate returns the calendar date a final update pertains to.
// The explicit start time wins; the end time covers runs that report
// "Start Time: null" (Method 9 does this). Empty when neither is present.
func extractRunDate(text string) string {
	if m := startTimeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := endTimeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func hasAccountField(lower string) bool {
	return strings.Contains(lower, "account username:") || strings.Contains(lower, "account:")
}

func hasPopupMarker(lower string) bool {
	return strings.Contains(lower, "request pending") || strings.Contains(lower, "popup detected")
}

// finalUpdateStrategies are the locator heuristics, tried in priority order
// over the whole (newest-first) sequence before moving to the next one.
var finalUpdateStrategies = []struct {
	name  string
	match func(lower string) bool
}{
	{
		// A message that declares itself a final update and carries at least
		// one account, method, or popup signal.
		name: "marked",
		match: func(lower string) bool {
			if !strings.Contains(lower, "task final update") {
				return false
			}
			return hasAccountField(lower) ||
				strings.Contains(lower, "automation type") || strings.Contains(lower, "method 9") ||
				hasPopupMarker(lower)
		},
	},
	{
		// Popup or Method 9 reports that omit the final-update marker but
		// still carry stats and an account.
		name: "popup",
		match: func(lower string) bool {
			if !hasPopupMarker(lower) && !strings.Contains(lower, "method 9") {
				return false
			}
			hasStats := strings.Contains(lower, "stats") ||
				strings.Contains(lower, "automation type") ||
				strings.Contains(lower, "device name")
			return hasStats && hasAccountField(lower)
		},
	},
}

// LocateFinalUpdate scans a newest-first message sequence for the final-update
// message. With a target date it returns the first marked message whose run
// date equals the target; otherwise the ordered heuristics decide. The index
// is -1 when nothing matched.
func (p *Pipeline) LocateFinalUpdate(msgs []MessageRecord, targetDate string) (string, int) {
	if targetDate != "" {
		for idx, msg := range msgs {
			lower := strings.ToLower(msg.Text)
			if !strings.Contains(lower, "task final update") {
				continue
			}
			if runDate := extractRunDate(msg.Text); runDate != "" && runDate == targetDate {
				p.logger.Debug("found final update for target date",
					slog.String("date", targetDate), slog.Int("index", idx))
				return msg.Text, idx
			}
		}
		return "", -1
	}

	for _, strategy := range finalUpdateStrategies {
		for idx, msg := range msgs {
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			if strategy.match(strings.ToLower(msg.Text)) {
				p.logger.Debug("found final update message",
					slog.String("strategy", strategy.name),
					slog.Int("length", len(msg.Text)))
				return msg.Text, idx
			}
		}
	}
	return "", -1
}

// isFinalUpdateLike reports whether a message could be a continuation part of
// a split final update.
func isFinalUpdateLike(lower string) bool {
	hasAccount := strings.Contains(lower, "account username") || strings.Contains(lower, "account:")
	switch {
	case strings.Contains(lower, "task final update"):
		return true
	case strings.Contains(lower, "automation type") && hasAccount:
		return true
	case hasPopupMarker(lower):
		return true
	case strings.Contains(lower, "automation type") && strings.Contains(lower, "method 9"):
		return true
	}
	return false
}

// StitchFinalUpdate joins the located final update with continuation parts the
// platform split into adjacent messages. Parts must look final-update-like,
// fall within the stitch window of the primary message, and agree on the run
// date when they declare one. Candidates are searched on both sides of the
// primary index because platform ordering does not keep split parts adjacent.
// Parts are concatenated in timestamp order; a lone match comes back unchanged.
func (p *Pipeline) StitchFinalUpdate(msgs []MessageRecord, primaryIdx int, primaryText string) string {
	if primaryIdx < 0 || primaryIdx >= len(msgs) {
		return primaryText
	}

	primaryTS := msgs[primaryIdx].Timestamp
	runDate := extractRunDate(primaryText)

	type part struct {
		ts   time.Time
		text string
	}
	var parts []part

	consider := func(idx int) {
		msg := msgs[idx]
		if strings.TrimSpace(msg.Text) == "" {
			return
		}
		if !isFinalUpdateLike(strings.ToLower(msg.Text)) {
			return
		}
		if !primaryTS.IsZero() && !msg.Timestamp.IsZero() {
			delta := primaryTS.Sub(msg.Timestamp)
			if delta < 0 {
				delta = -delta
			}
			if delta > stitchWindow {
				return
			}
		}
		if msgDate := extractRunDate(msg.Text); runDate != "" && msgDate != "" && msgDate != runDate {
			return
		}
		parts = append(parts, part{ts: msg.Timestamp, text: msg.Text})
	}

	consider(primaryIdx)
	for i := primaryIdx + 1; i < len(msgs); i++ {
		consider(i)
	}
	for i := 0; i < primaryIdx; i++ {
		consider(i)
	}

	if len(parts) <= 1 {
		return primaryText
	}

	sort.SliceStable(parts, func(i, j int) bool { return parts[i].ts.Before(parts[j].ts) })
	texts := make([]string, 0, len(parts))
	for _, pt := range parts {
		texts = append(texts, pt.text)
	}
	p.logger.Debug("stitched final update parts", slog.Int("parts", len(parts)))
	return strings.Join(texts, "\n")
}
