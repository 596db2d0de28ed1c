package pipeline

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/oracle"
)

// GroupingStage collapses intra-batch repeats: the oracle groups items
// sharing a topic, and within each group only the item with the highest
// source priority survives, ties broken by earliest batch position.
// Parse failures keep the whole batch (fail-open).
type GroupingStage struct {
	configs SourceConfigs
	oracle  oracle.Client
}

func NewGroupingStage(configs SourceConfigs, client oracle.Client) *GroupingStage {
	return &GroupingStage{configs: configs, oracle: client}
}

func (s *GroupingStage) Name() string { return "grouping" }

func (s *GroupingStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	if s.oracle == nil || len(items) < 2 {
		return items
	}

	headlines := make([]string, len(items))
	for i, item := range items {
		headlines[i] = item.Headline()
	}

	raw, err := s.oracle.Complete(ctx, oracle.Request{
		Prompt: oracle.GroupingPrompt(headlines),
		Tag:    "grouping",
	})
	if err != nil {
		slog.Warn("Topic grouping call failed, keeping batch", "stage", s.Name(), "error", err)
		return items
	}

	groups, err := oracle.ParseGroups(raw, len(items))
	if err != nil {
		slog.Warn("Topic grouping response unparseable, keeping batch", "stage", s.Name(), "error", err)
		return items
	}

	removed := make(map[int]bool)
	for _, group := range groups {
		winner := s.pickWinner(items, group)
		for _, idx := range group {
			if idx == winner {
				continue
			}
			removed[idx] = true
			slog.Info("Item removed: same topic as higher-priority batch item",
				"stage", s.Name(), "item_id", items[idx-1].ID,
				"source", items[idx-1].SourceName, "kept_item_id", items[winner-1].ID)
		}
	}

	kept := items[:0]
	for i, item := range items {
		if !removed[i+1] {
			kept = append(kept, item)
		}
	}

	return kept
}

// pickWinner returns the 1-based index of the group member with the
// highest configured source priority, preferring the earliest batch
// position on ties.
func (s *GroupingStage) pickWinner(items []*content.Item, group []int) int {
	winner := group[0]
	winnerPriority := s.configs.For(items[winner-1]).Priority
	for _, idx := range group[1:] {
		priority := s.configs.For(items[idx-1]).Priority
		if priority > winnerPriority || (priority == winnerPriority && idx < winner) {
			winner = idx
			winnerPriority = priority
		}
	}
	return winner
}
