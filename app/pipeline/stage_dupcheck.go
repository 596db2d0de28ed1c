package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/oracle"
	"github.com/lysyi3m/news-sieve/app/store"
)

const dupCheckHistoryWindow = 50

// DupCheckStage compares each item against the delivered-item history via
// an oracle similarity call, catching paraphrased repeats that exact
// matching misses. The stage is a secondary safety net behind the main
// relevance evaluation, so oracle or parse failures keep the item
// (fail-open).
type DupCheckStage struct {
	oracle  oracle.Client
	items   store.ItemRepository
	charCap int
}

func NewDupCheckStage(client oracle.Client, items store.ItemRepository, charCap int) *DupCheckStage {
	return &DupCheckStage{oracle: client, items: items, charCap: charCap}
}

func (s *DupCheckStage) Name() string { return "dup_check" }

func (s *DupCheckStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	if s.oracle == nil || s.items == nil || len(items) == 0 {
		return items
	}

	history, err := s.items.GetRecentItems(dupCheckHistoryWindow)
	if err != nil {
		slog.Error("Failed to load delivered-item history, skipping duplicate check",
			"stage", s.Name(), "error", err)
		return items
	}
	if len(history) == 0 {
		return items
	}

	entries := make([]string, len(history))
	for i, delivered := range history {
		entries[i] = fmt.Sprintf("%s: %s", delivered.ID, delivered.Summary)
	}

	kept := items[:0]
	for _, item := range items {
		verdict, err := s.check(ctx, item, entries)
		if err != nil {
			slog.Warn("Duplicate check inconclusive, keeping item", "stage", s.Name(),
				"item_id", item.ID, "source", item.SourceName, "error", err)
			kept = append(kept, item)
			continue
		}
		if verdict.Duplicate {
			slog.Info("Item removed as historical duplicate", "stage", s.Name(),
				"item_id", item.ID, "source", item.SourceName,
				"matched_id", verdict.MatchID, "justification", verdict.Justification)
			continue
		}

		kept = append(kept, item)
	}

	return kept
}

func (s *DupCheckStage) check(ctx context.Context, item *content.Item, history []string) (oracle.DuplicateVerdict, error) {
	text := content.Truncate(item.Headline()+"\n"+item.Text, s.charCap)
	raw, err := s.oracle.Complete(ctx, oracle.Request{
		Prompt: oracle.DuplicatePrompt(text, history),
		Tag:    "dup-check",
	})
	if err != nil {
		return oracle.DuplicateVerdict{}, err
	}
	return oracle.ParseDuplicate(raw)
}
