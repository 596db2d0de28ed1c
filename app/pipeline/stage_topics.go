package pipeline

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/topics"
)

// TopicStage delegates cross-cycle redundancy decisions to the active
// topic tracker: only items the tracker accepts (or has no opinion on)
// survive.
type TopicStage struct {
	configs SourceConfigs
	tracker *topics.Tracker
}

func NewTopicStage(configs SourceConfigs, tracker *topics.Tracker) *TopicStage {
	return &TopicStage{configs: configs, tracker: tracker}
}

func (s *TopicStage) Name() string { return "topic_tracking" }

func (s *TopicStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	if s.tracker == nil {
		return items
	}

	kept := items[:0]
	for _, item := range items {
		// Items that carried their own relevance judgement are core
		// candidates; items from skip-evaluation sources only get an
		// opinion when they match an already tracked story.
		coreCandidate := !s.configs.For(item).SkipEvaluation

		outcome := s.tracker.Track(ctx, item, coreCandidate)
		if !outcome.Kind.Accepted() {
			slog.Info("Item suppressed by topic tracker", "stage", s.Name(),
				"item_id", item.ID, "source", item.SourceName,
				"topic_id", outcome.TopicID, "justification", outcome.Justification)
			continue
		}

		if outcome.Justification != "" && outcome.Kind != topics.OutcomeNoOpinion {
			item.Justification = outcome.Justification
		}
		slog.Debug("Topic tracker decision", "stage", s.Name(), "item_id", item.ID,
			"decision", outcome.Kind.String(), "topic_id", outcome.TopicID)
		kept = append(kept, item)
	}

	return kept
}
