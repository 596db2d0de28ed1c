package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/credentials"
	"github.com/lysyi3m/news-sieve/app/delivery"
	"github.com/lysyi3m/news-sieve/app/oracle"
	"github.com/lysyi3m/news-sieve/app/store"
	"github.com/lysyi3m/news-sieve/app/topics"
)

// Repository is the store surface the orchestrator needs.
type Repository interface {
	store.ItemRepository
	store.TopicRepository
	store.MetaRepository
}

// Orchestrator drives one full curation cycle: credential refresh, quiet
// window check, fetch, the ordered filter stages, delivery, persistence.
type Orchestrator struct {
	settings *config.Settings
	configs  SourceConfigs
	adapters []Adapter
	stages   []Stage
	oracle   oracle.Client
	sink     delivery.Sink
	repo     Repository
	rotator  *credentials.Rotator
	tracker  *topics.Tracker
	now      func() time.Time
}

type Deps struct {
	Settings *config.Settings
	Configs  SourceConfigs
	Adapters []Adapter
	Oracle   oracle.Client
	Sink     delivery.Sink
	Repo     Repository
	Rotator  *credentials.Rotator
	Tracker  *topics.Tracker

	// HTTPClient and UserAgent feed the link expansion stage.
	HTTPClient *http.Client
	UserAgent  string
}

// NewOrchestrator assembles the fixed stage sequence.
func NewOrchestrator(deps Deps) *Orchestrator {
	o := &Orchestrator{
		settings: deps.Settings,
		configs:  deps.Configs,
		adapters: deps.Adapters,
		oracle:   deps.Oracle,
		sink:     deps.Sink,
		repo:     deps.Repo,
		rotator:  deps.Rotator,
		tracker:  deps.Tracker,
		now:      time.Now,
	}

	limits := deps.Settings.ContentLimits
	interval := time.Duration(deps.Settings.PollIntervalMs) * time.Millisecond

	o.stages = []Stage{
		NewIntervalStage(o.lastRun, interval),
		NewWhitelistStage(deps.Configs),
		NewBlacklistStage(deps.Configs),
		NewMediaStage(deps.Configs, deps.Oracle),
		NewLinkExpandStage(deps.Configs, deps.HTTPClient, deps.UserAgent, limits.EvaluationCharLimit),
		NewSourceEvalStage(deps.Configs, deps.Oracle, limits.EvaluationCharLimit),
		NewTitleScreenStage(deps.Oracle),
		NewFullContentStage(deps.Configs, deps.Oracle, &storeHistory{items: deps.Repo}, limits.EvaluationCharLimit),
		NewDupCheckStage(deps.Oracle, deps.Repo, limits.EvaluationCharLimit),
		NewGroupingStage(deps.Configs, deps.Oracle),
		NewTopicStage(deps.Configs, deps.Tracker),
	}

	return o
}

// RunCycle executes one complete cycle. Errors from single items, sources,
// or stages never abort the cycle; only persistence of the cycle timestamp
// is reported upward.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	started := o.now()

	if o.rotator != nil {
		o.rotator.Refresh(ctx)
	}

	if o.inQuietWindow(started) {
		slog.Info("Inside quiet window, skipping cycle")
		return nil
	}

	items := o.fetchAll(ctx)
	slog.Info("Cycle fetch completed", "sources", len(o.adapters), "items", len(items))

	for _, stage := range o.stages {
		before := len(items)
		items = o.runStage(ctx, stage, items)
		if removed := before - len(items); removed > 0 {
			slog.Info("Stage completed", "stage", stage.Name(), "removed", removed, "surviving", len(items))
		} else {
			slog.Debug("Stage completed", "stage", stage.Name(), "surviving", len(items))
		}
	}

	delivered := 0
	for _, item := range items {
		if err := o.deliver(ctx, item); err != nil {
			slog.Error("Delivery failed", "item_id", item.ID, "source", item.SourceName, "error", err)
			continue
		}
		delivered++
	}

	if err := o.repo.SetLastRun(started); err != nil {
		return fmt.Errorf("failed to record cycle timestamp: %w", err)
	}

	slog.Info("Cycle completed", "duration", o.now().Sub(started),
		"delivered", delivered, "discarded", len(items)-delivered)

	return nil
}

// runStage isolates a stage panic to that stage: the surviving list from
// before the stage is carried forward.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, items []*content.Item) (result []*content.Item) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Stage panicked, carrying items forward", "stage", stage.Name(), "panic", r)
			result = items
		}
	}()
	return stage.Run(ctx, items)
}

// fetchAll fans out over the adapters; a failing source is logged and
// skipped. Item order follows adapter configuration order so later
// tie-breaks are deterministic.
func (o *Orchestrator) fetchAll(ctx context.Context) []*content.Item {
	var mu sync.Mutex
	fetched := make(map[string][]*content.Item, len(o.adapters))

	g, groupCtx := errgroup.WithContext(ctx)
	for _, adapter := range o.adapters {
		g.Go(func() error {
			items, err := adapter.Fetch(groupCtx)
			if err != nil {
				slog.Warn("Source fetch failed, skipping", "source", adapter.Name(), "error", err)
				return nil
			}
			mu.Lock()
			fetched[adapter.Name()] = items
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var all []*content.Item
	for _, adapter := range o.adapters {
		all = append(all, fetched[adapter.Name()]...)
	}
	return all
}

func (o *Orchestrator) deliver(ctx context.Context, item *content.Item) error {
	summary := o.summarize(ctx, item)

	if err := o.sink.Deliver(ctx, delivery.FormatMessage(item, summary), nil); err != nil {
		return err
	}

	// Count eviction runs before the insert so the history bound holds.
	if o.settings.Retention.MaxItems > 0 {
		if err := o.repo.EvictOldestItems(o.settings.Retention.MaxItems - 1); err != nil {
			slog.Error("Failed to evict delivered-item history", "error", err)
		}
	}

	record := store.DeliveredItem{
		ID:            item.ID,
		Kind:          string(item.Kind),
		Summary:       summary,
		Timestamp:     o.now(),
		SourceName:    item.SourceName,
		Justification: item.Justification,
	}
	if err := o.repo.InsertItem(record); err != nil {
		slog.Error("Failed to record delivered item", "item_id", item.ID, "error", err)
	}

	return nil
}

// summarize produces the delivery summary, falling back to truncated item
// text when the oracle is unavailable or fails.
func (o *Orchestrator) summarize(ctx context.Context, item *content.Item) string {
	limit := o.settings.ContentLimits.SummaryCharLimit
	fallback := content.Truncate(item.Text, limit)

	if o.oracle == nil {
		return fallback
	}

	text := content.Truncate(item.Headline()+"\n"+item.Text, o.settings.ContentLimits.EvaluationCharLimit)
	raw, err := o.oracle.Complete(ctx, oracle.Request{
		Prompt: oracle.SummaryPrompt(text, limit),
		Tag:    "summary",
	})
	if err != nil || raw == "" {
		slog.Debug("Summary generation failed, using item text", "item_id", item.ID, "error", err)
		return fallback
	}

	return content.Truncate(raw, limit)
}

func (o *Orchestrator) lastRun() *time.Time {
	last, err := o.repo.GetLastRun()
	if err != nil {
		slog.Error("Failed to read last run time", "error", err)
		return nil
	}
	return last
}

// inQuietWindow reports whether t falls inside the configured daily quiet
// window. A window whose start hour exceeds its end hour wraps midnight.
func (o *Orchestrator) inQuietWindow(t time.Time) bool {
	quiet := o.settings.QuietHours
	if !quiet.Enabled {
		return false
	}

	loc, err := time.LoadLocation(quiet.Timezone)
	if err != nil {
		slog.Warn("Invalid quiet hours timezone, ignoring quiet window", "timezone", quiet.Timezone)
		return false
	}

	hour := t.In(loc).Hour()
	if quiet.Start <= quiet.End {
		return hour >= quiet.Start && hour < quiet.End
	}
	return hour >= quiet.Start || hour < quiet.End
}

// storeHistory adapts the item repository to the full-content stage's
// negative-context lookup.
type storeHistory struct {
	items store.ItemRepository
}

func (h *storeHistory) RecentSummaries(limit int) []string {
	delivered, err := h.items.GetRecentItems(limit)
	if err != nil {
		slog.Error("Failed to load recent delivered items", "error", err)
		return nil
	}
	summaries := make([]string, 0, len(delivered))
	for _, item := range delivered {
		if item.Summary != "" {
			summaries = append(summaries, item.Summary)
		}
	}
	return summaries
}
