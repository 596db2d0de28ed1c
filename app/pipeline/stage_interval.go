package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-sieve/app/content"
)

// IntervalStage drops items published before the current polling window:
// the later of the last successful run and now minus the poll interval.
// Items without a parseable publish time pass through (fail-open).
type IntervalStage struct {
	lastRun  func() *time.Time
	interval time.Duration
	now      func() time.Time
}

func NewIntervalStage(lastRun func() *time.Time, interval time.Duration) *IntervalStage {
	return &IntervalStage{lastRun: lastRun, interval: interval, now: time.Now}
}

func (s *IntervalStage) Name() string { return "interval" }

func (s *IntervalStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	cutoff := s.now().Add(-s.interval)
	if last := s.lastRun(); last != nil && last.After(cutoff) {
		cutoff = *last
	}

	kept := items[:0]
	for _, item := range items {
		if item.PublishedAt == nil {
			kept = append(kept, item)
			continue
		}
		if item.PublishedAt.After(cutoff) {
			kept = append(kept, item)
			continue
		}
		slog.Debug("Item outside polling window", "stage", s.Name(), "item_id", item.ID,
			"source", item.SourceName, "published_at", item.PublishedAt)
	}

	return kept
}
