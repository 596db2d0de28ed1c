package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/delivery"
	"github.com/lysyi3m/news-sieve/app/store"
)

type fakeAdapter struct {
	name    string
	items   []*content.Item
	err     error
	fetches int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(_ context.Context) ([]*content.Item, error) {
	f.fetches++
	return f.items, f.err
}

type fakeRepo struct {
	fakeItemRepo
	topics  []*store.ActiveTopic
	lastRun *time.Time
}

func (f *fakeRepo) GetActiveTopics() ([]*store.ActiveTopic, error) { return f.topics, nil }

func (f *fakeRepo) UpsertTopic(topic *store.ActiveTopic) error {
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeRepo) ReplaceTopics(topics []*store.ActiveTopic) error {
	f.topics = topics
	return nil
}

func (f *fakeRepo) GetLastRun() (*time.Time, error) { return f.lastRun, nil }

func (f *fakeRepo) SetLastRun(t time.Time) error {
	f.lastRun = &t
	return nil
}

type recordingSink struct {
	messages []string
	err      error
}

func (r *recordingSink) Deliver(_ context.Context, message string, _ []byte) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, message)
	return nil
}

func testSettings() *config.Settings {
	return &config.Settings{
		PollIntervalMs: 600000,
		Retention:      config.RetentionConfig{MaxAgeDays: 7, MaxItems: 200},
		ContentLimits:  config.ContentLimits{EvaluationCharLimit: 4000, SummaryCharLimit: 400},
		QuietHours:     config.QuietHoursConfig{Timezone: "UTC"},
	}
}

func TestRunCycle_DeliversAndRecords(t *testing.T) {
	published := time.Now().Add(-time.Minute)
	adapter := &fakeAdapter{name: "wire", items: []*content.Item{
		{ID: "a1", Kind: content.KindArticle, Title: "Bridge closed", Text: "The downtown bridge is closed.",
			SourceName: "wire", PublishedAt: &published},
	}}
	repo := &fakeRepo{}
	sink := &recordingSink{}

	orchestrator := NewOrchestrator(Deps{
		Settings: testSettings(),
		Configs:  SourceConfigs{"wire": {Name: "wire"}},
		Adapters: []Adapter{adapter},
		Sink:     sink,
		Repo:     repo,
	})

	if err := orchestrator.RunCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if adapter.fetches != 1 {
		t.Errorf("Expected 1 fetch, got %d", adapter.fetches)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("Expected 1 delivered message, got %d", len(sink.messages))
	}
	if len(repo.items) != 1 || repo.items[0].ID != "a1" {
		t.Errorf("Delivered item should be recorded, got %+v", repo.items)
	}
	if repo.lastRun == nil {
		t.Error("Cycle timestamp should be recorded")
	}
}

func TestRunCycle_FailedSourceIsSkipped(t *testing.T) {
	published := time.Now().Add(-time.Minute)
	good := &fakeAdapter{name: "good", items: []*content.Item{
		{ID: "a1", Kind: content.KindArticle, Title: "Story", SourceName: "good", PublishedAt: &published},
	}}
	bad := &fakeAdapter{name: "bad", err: errors.New("connection refused")}
	repo := &fakeRepo{}
	sink := &recordingSink{}

	orchestrator := NewOrchestrator(Deps{
		Settings: testSettings(),
		Configs:  SourceConfigs{},
		Adapters: []Adapter{bad, good},
		Sink:     sink,
		Repo:     repo,
	})

	if err := orchestrator.RunCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(sink.messages) != 1 {
		t.Errorf("Items from the healthy source should still flow, got %d messages", len(sink.messages))
	}
}

func TestRunCycle_DeliveryFailureDoesNotRecord(t *testing.T) {
	published := time.Now().Add(-time.Minute)
	adapter := &fakeAdapter{name: "wire", items: []*content.Item{
		{ID: "a1", Kind: content.KindArticle, Title: "Story", SourceName: "wire", PublishedAt: &published},
	}}
	repo := &fakeRepo{}
	sink := &recordingSink{err: errors.New("telegram unavailable")}

	orchestrator := NewOrchestrator(Deps{
		Settings: testSettings(),
		Configs:  SourceConfigs{},
		Adapters: []Adapter{adapter},
		Sink:     sink,
		Repo:     repo,
	})

	if err := orchestrator.RunCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(repo.items) != 0 {
		t.Errorf("Undelivered items must not enter the history, got %+v", repo.items)
	}
	if repo.lastRun == nil {
		t.Error("Cycle timestamp should still be recorded")
	}
}

func TestRunCycle_QuietWindowSkips(t *testing.T) {
	settings := testSettings()
	settings.QuietHours = config.QuietHoursConfig{Enabled: true, Start: 0, End: 6, Timezone: "UTC"}

	adapter := &fakeAdapter{name: "wire"}
	repo := &fakeRepo{}

	orchestrator := NewOrchestrator(Deps{
		Settings: settings,
		Configs:  SourceConfigs{},
		Adapters: []Adapter{adapter},
		Sink:     delivery.NewLogSink(),
		Repo:     repo,
	})
	orchestrator.now = func() time.Time {
		return time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	}

	if err := orchestrator.RunCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if adapter.fetches != 0 {
		t.Errorf("Quiet window cycle must not fetch, got %d fetches", adapter.fetches)
	}
	if repo.lastRun != nil {
		t.Error("Skipped cycle must not advance the last run time")
	}
}

func TestInQuietWindow_WrapsMidnight(t *testing.T) {
	orchestrator := &Orchestrator{settings: testSettings()}
	orchestrator.settings.QuietHours = config.QuietHoursConfig{
		Enabled: true, Start: 23, End: 7, Timezone: "UTC",
	}

	cases := []struct {
		hour int
		want bool
	}{
		{23, true},
		{2, true},
		{6, true},
		{7, false},
		{12, false},
		{22, false},
	}

	for _, tc := range cases {
		at := time.Date(2026, 3, 10, tc.hour, 30, 0, 0, time.UTC)
		if got := orchestrator.inQuietWindow(at); got != tc.want {
			t.Errorf("inQuietWindow at %02d:30 = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestInQuietWindow_InvalidTimezoneDisablesWindow(t *testing.T) {
	orchestrator := &Orchestrator{settings: testSettings()}
	orchestrator.settings.QuietHours = config.QuietHoursConfig{
		Enabled: true, Start: 0, End: 23, Timezone: "Mars/Olympus",
	}

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if orchestrator.inQuietWindow(at) {
		t.Error("Unresolvable timezone should disable the quiet window")
	}
}
