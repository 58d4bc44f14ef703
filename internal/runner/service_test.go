package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phonefarm/summarybot/internal/report"
	"github.com/phonefarm/summarybot/internal/summarizer"
)

type fakePlatform struct {
	mu        sync.Mutex
	channels  []ChannelRef
	histories map[string][]report.MessageRecord
	noRead    map[string]bool
	fetchErr  map[string]error
	delivered []string
	deliverTo []string
}

func (f *fakePlatform) GuildTextChannels(string) ([]ChannelRef, error) {
	return f.channels, nil
}

func (f *fakePlatform) CanReadHistory(channelID string) bool {
	return !f.noRead[channelID]
}

func (f *fakePlatform) FetchChannelHistory(_ context.Context, channelID string, _ int) ([]report.MessageRecord, error) {
	if err := f.fetchErr[channelID]; err != nil {
		return nil, err
	}
	return f.histories[channelID], nil
}

func (f *fakePlatform) DeliverText(userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliverTo = append(f.deliverTo, userID)
	f.delivered = append(f.delivered, text)
	return nil
}

func newTestService(platform Platform) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(log, platform, summarizer.Direct{}, report.NewPipeline(log), time.UTC, Options{
		GuildID:     "guild-1",
		OwnerUserID: "owner-1",
		Concurrency: 2,
	})
}

func channelHistory(texts ...string) []report.MessageRecord {
	msgs := make([]report.MessageRecord, 0, len(texts))
	base := time.Date(2025, time.July, 9, 18, 0, 0, 0, time.UTC)
	for i, text := range texts {
		msgs = append(msgs, report.MessageRecord{Text: text, Timestamp: base.Add(-time.Duration(i) * time.Minute)})
	}
	return msgs
}

func TestRunSummaryEndToEnd(t *testing.T) {
	platform := &fakePlatform{
		channels: []ChannelRef{
			{ID: "c1", Name: "phone-1"},
			{ID: "c2", Name: "phone-2"},
			{ID: "c3", Name: "general"},
		},
		histories: map[string][]report.MessageRecord{
			"c1": channelHistory(
				"Task Final Update\nDevice Name: Phone 1\nStart Time: 2025-07-09 10:00\nAutomation Type: Method 1\nAccount Username: alice\nNo. of Follow Made: 30\nNo. of Follow Requests Made: 20",
				"Daily Schedule Reminder\nTask: phone 1\nStart Time: 2025-07-09 09:00\nAccounts:\nalice: Method 1, 50 follows",
			),
			"c2": channelHistory("just chatter"),
			"c3": channelHistory("Task Final Update\nAccount Username: eve\nNo. of Follow Made: 99"),
		},
	}
	svc := newTestService(platform)

	if err := svc.RunSummary(context.Background(), ""); err != nil {
		t.Fatalf("RunSummary: %v", err)
	}
	if len(platform.delivered) != 1 {
		t.Fatalf("delivered = %d messages, want 1", len(platform.delivered))
	}
	if platform.deliverTo[0] != "owner-1" {
		t.Errorf("delivered to %q, want owner-1", platform.deliverTo[0])
	}

	text := platform.delivered[0]
	if !strings.HasPrefix(text, "📊 **Daily Summary - ") {
		t.Errorf("missing header: %q", text)
	}
	if !strings.Contains(text, "Phone 1 – completed daily task (Method 1)") {
		t.Errorf("missing phone line: %q", text)
	}
	if !strings.Contains(text, "   * alice - total # of follows made: 50 (met the daily max which is 50)") {
		t.Errorf("missing account line: %q", text)
	}
	// The non-prefixed channel never contributes, even with parseable content.
	if strings.Contains(text, "eve") {
		t.Errorf("non-prefixed channel leaked into the report: %q", text)
	}
}

func TestRunSummarySkipsTestChannels(t *testing.T) {
	platform := &fakePlatform{
		channels: []ChannelRef{{ID: "c1", Name: "phone-1-test"}},
		histories: map[string][]report.MessageRecord{
			"c1": channelHistory("Task Final Update\nAccount Username: alice\nNo. of Follow Made: 5"),
		},
	}
	svc := newTestService(platform)
	if err := svc.RunSummary(context.Background(), ""); err != nil {
		t.Fatalf("RunSummary: %v", err)
	}
	if len(platform.delivered) != 0 {
		t.Fatalf("test channel produced a delivery: %q", platform.delivered)
	}
}

func TestRunSummarySkipsUnreadableAndFailingChannels(t *testing.T) {
	history := channelHistory("Task Final Update\nDevice Name: Phone 2\nAccount Username: bob\nNo. of Follow Made: 5")
	platform := &fakePlatform{
		channels: []ChannelRef{
			{ID: "c1", Name: "phone-1"},
			{ID: "c2", Name: "phone-2"},
			{ID: "c3", Name: "phone-3"},
		},
		histories: map[string][]report.MessageRecord{"c1": history, "c2": history, "c3": history},
		noRead:    map[string]bool{"c1": true},
		fetchErr:  map[string]error{"c3": fmt.Errorf("http 500")},
	}
	svc := newTestService(platform)
	if err := svc.RunSummary(context.Background(), ""); err != nil {
		t.Fatalf("RunSummary: %v", err)
	}
	if len(platform.delivered) != 1 {
		t.Fatalf("delivered = %d, want 1", len(platform.delivered))
	}
	// Only the readable, non-failing channel survives.
	if got := strings.Count(platform.delivered[0], "Phone 2 –"); got != 1 {
		t.Errorf("phone lines = %d, want 1:\n%s", got, platform.delivered[0])
	}
}

func TestRunSummaryNoContentNoDelivery(t *testing.T) {
	platform := &fakePlatform{
		channels:  []ChannelRef{{ID: "c1", Name: "phone-1"}},
		histories: map[string][]report.MessageRecord{"c1": channelHistory("nothing useful")},
	}
	svc := newTestService(platform)
	if err := svc.RunSummary(context.Background(), ""); err != nil {
		t.Fatalf("RunSummary: %v", err)
	}
	if len(platform.delivered) != 0 {
		t.Fatalf("empty run produced a delivery: %q", platform.delivered)
	}
}

func TestRunSummaryPreservesGuildOrder(t *testing.T) {
	final := func(device string) string {
		return "Task Final Update\nDevice Name: " + device + "\nAccount Username: alice\nNo. of Follow Made: 5"
	}
	platform := &fakePlatform{
		channels: []ChannelRef{
			{ID: "c3", Name: "phone-3"},
			{ID: "c1", Name: "phone-1"},
			{ID: "c2", Name: "phone-2"},
		},
		histories: map[string][]report.MessageRecord{
			"c3": channelHistory(final("Phone 3")),
			"c1": channelHistory(final("Phone 1")),
			"c2": channelHistory(final("Phone 2")),
		},
	}
	svc := newTestService(platform)
	if err := svc.RunSummary(context.Background(), ""); err != nil {
		t.Fatalf("RunSummary: %v", err)
	}
	text := platform.delivered[0]
	i3 := strings.Index(text, "Phone 3")
	i1 := strings.Index(text, "Phone 1")
	i2 := strings.Index(text, "Phone 2")
	if !(i3 < i1 && i1 < i2) {
		t.Fatalf("output order does not follow guild order:\n%s", text)
	}
}

func TestRunSummaryTargetDateHeader(t *testing.T) {
	platform := &fakePlatform{
		channels: []ChannelRef{{ID: "c1", Name: "phone-1"}},
		histories: map[string][]report.MessageRecord{
			"c1": channelHistory("Task Final Update\nStart Time: 2025-07-08 10:00\nAccount Username: alice\nNo. of Follow Made: 5"),
		},
	}
	svc := newTestService(platform)
	if err := svc.RunSummary(context.Background(), "2025-07-08"); err != nil {
		t.Fatalf("RunSummary: %v", err)
	}
	if len(platform.delivered) != 1 {
		t.Fatalf("delivered = %d, want 1", len(platform.delivered))
	}
	if !strings.HasPrefix(platform.delivered[0], "📊 **Daily Summary - July 08, 2025**") {
		t.Fatalf("header = %q", strings.SplitN(platform.delivered[0], "\n", 2)[0])
	}
}

func TestRunSummaryDropsOverlappingTrigger(t *testing.T) {
	platform := &fakePlatform{
		channels: []ChannelRef{{ID: "c1", Name: "phone-1"}},
		histories: map[string][]report.MessageRecord{
			"c1": channelHistory("Task Final Update\nAccount Username: alice\nNo. of Follow Made: 5"),
		},
	}
	svc := newTestService(platform)

	svc.runMu.Lock()
	if err := svc.RunSummary(context.Background(), ""); err != nil {
		t.Fatalf("RunSummary: %v", err)
	}
	svc.runMu.Unlock()

	if len(platform.delivered) != 0 {
		t.Fatalf("overlapping trigger must be dropped, got %q", platform.delivered)
	}
}
