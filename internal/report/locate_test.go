package report

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testPipeline() *Pipeline {
	return NewPipeline(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ts(minute int) time.Time {
	return time.Date(2025, time.July, 9, 18, minute, 0, 0, time.UTC)
}

func TestLocateFinalUpdateMarked(t *testing.T) {
	p := testPipeline()
	msgs := []MessageRecord{
		{Text: "random chatter", Timestamp: ts(10)},
		{Text: "Task Final Update\nAccount Username: alice\nNo. of Follow Made: 50", Timestamp: ts(9)},
		{Text: "older noise", Timestamp: ts(8)},
	}
	text, idx := p.LocateFinalUpdate(msgs, "")
	if idx != 1 {
		t.Fatalf("idx = %d, want 1", idx)
	}
	if !strings.Contains(text, "alice") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestLocateFinalUpdateMarkerWithoutSignalsIsSkipped(t *testing.T) {
	p := testPipeline()
	msgs := []MessageRecord{
		{Text: "Task Final Update coming soon", Timestamp: ts(10)},
	}
	if _, idx := p.LocateFinalUpdate(msgs, ""); idx != -1 {
		t.Fatalf("idx = %d, want -1", idx)
	}
}

func TestLocateFinalUpdatePopupStrategy(t *testing.T) {
	p := testPipeline()
	// No "task final update" marker, but popup plus stats plus an account.
	msgs := []MessageRecord{
		{Text: "chatter", Timestamp: ts(10)},
		{Text: "Request pending popup detected\nStats:\nAccount: bob", Timestamp: ts(9)},
	}
	text, idx := p.LocateFinalUpdate(msgs, "")
	if idx != 1 {
		t.Fatalf("idx = %d, want 1", idx)
	}
	if !strings.Contains(text, "bob") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestLocateFinalUpdateMarkedBeatsPopupRegardlessOfPosition(t *testing.T) {
	p := testPipeline()
	// The popup message is newer, but the marked strategy runs first over the
	// whole sequence.
	msgs := []MessageRecord{
		{Text: "Request pending popup detected\nStats:\nAccount: bob", Timestamp: ts(10)},
		{Text: "Task Final Update\nAccount Username: alice", Timestamp: ts(9)},
	}
	_, idx := p.LocateFinalUpdate(msgs, "")
	if idx != 1 {
		t.Fatalf("idx = %d, want 1 (marked message)", idx)
	}
}

func TestLocateFinalUpdateTargetDate(t *testing.T) {
	p := testPipeline()
	msgs := []MessageRecord{
		{Text: "Task Final Update\nStart Time: 2025-07-09 10:00\nAccount Username: alice", Timestamp: ts(10)},
		{Text: "Task Final Update\nStart Time: 2025-07-08 10:00\nAccount Username: alice", Timestamp: ts(9)},
	}
	text, idx := p.LocateFinalUpdate(msgs, "2025-07-08")
	if idx != 1 {
		t.Fatalf("idx = %d, want 1", idx)
	}
	if !strings.Contains(text, "2025-07-08") {
		t.Fatalf("unexpected text %q", text)
	}

	if _, idx := p.LocateFinalUpdate(msgs, "2025-07-01"); idx != -1 {
		t.Fatalf("idx = %d, want -1 for a date with no update", idx)
	}
}

func TestExtractRunDateFallsBackToEndTime(t *testing.T) {
	if got := extractRunDate("Start Time: null\nEnd Time: 2025-07-09 20:00"); got != "2025-07-09" {
		t.Fatalf("got %q, want 2025-07-09", got)
	}
	if got := extractRunDate("Start Time: 2025-07-08 08:00\nEnd Time: 2025-07-09 01:00"); got != "2025-07-08" {
		t.Fatalf("start time should win, got %q", got)
	}
	if got := extractRunDate("no dates here"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestStitchFinalUpdateCombinesNearbyParts(t *testing.T) {
	p := testPipeline()
	primary := "Task Final Update\nStart Time: 2025-07-09 10:00\nAccount Username: alice\nNo. of Follow Made: 30"
	part2 := "Automation Type: Method 1\nAccount Username: carol\nNo. of Follow Made: 20"
	msgs := []MessageRecord{
		{Text: part2, Timestamp: ts(12)}, // 2 minutes after the primary
		{Text: primary, Timestamp: ts(10)},
		{Text: "unrelated", Timestamp: ts(9)},
	}
	got := p.StitchFinalUpdate(msgs, 1, primary)
	if !strings.Contains(got, "alice") || !strings.Contains(got, "carol") {
		t.Fatalf("stitched text missing a part: %q", got)
	}
	// Timestamp order: the primary (18:10) comes before the continuation (18:12).
	if strings.Index(got, "alice") > strings.Index(got, "carol") {
		t.Fatalf("parts out of timestamp order: %q", got)
	}
}

func TestStitchFinalUpdateIgnoresDistantParts(t *testing.T) {
	p := testPipeline()
	primary := "Task Final Update\nAccount Username: alice"
	distant := "Automation Type: Method 1\nAccount Username: carol"
	msgs := []MessageRecord{
		{Text: distant, Timestamp: ts(10).Add(10 * time.Minute)},
		{Text: primary, Timestamp: ts(10)},
	}
	if got := p.StitchFinalUpdate(msgs, 1, primary); got != primary {
		t.Fatalf("distant part was stitched in: %q", got)
	}
}

func TestStitchFinalUpdateRejectsRunDateDisagreement(t *testing.T) {
	p := testPipeline()
	primary := "Task Final Update\nStart Time: 2025-07-09 10:00\nAccount Username: alice"
	other := "Task Final Update\nStart Time: 2025-07-08 10:00\nAccount Username: carol"
	msgs := []MessageRecord{
		{Text: other, Timestamp: ts(11)},
		{Text: primary, Timestamp: ts(10)},
	}
	if got := p.StitchFinalUpdate(msgs, 1, primary); got != primary {
		t.Fatalf("part with a different run date was stitched in: %q", got)
	}
}

func TestStitchFinalUpdateSearchesBothSides(t *testing.T) {
	p := testPipeline()
	primary := "Task Final Update\nAccount Username: alice"
	older := "Request pending popup detected\nAccount: dave"
	// The continuation sits after the primary in the newest-first sequence,
	// meaning it was actually posted earlier.
	msgs := []MessageRecord{
		{Text: primary, Timestamp: ts(10)},
		{Text: older, Timestamp: ts(8)},
	}
	got := p.StitchFinalUpdate(msgs, 0, primary)
	if !strings.Contains(got, "dave") {
		t.Fatalf("earlier part not stitched: %q", got)
	}
	if strings.Index(got, "dave") > strings.Index(got, "alice") {
		t.Fatalf("parts out of timestamp order: %q", got)
	}
}
