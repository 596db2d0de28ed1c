package pipeline

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/oracle"
)

const recentContextWindow = 10

// FullContentStage runs the main relevance evaluation over each item's
// current text, with a short window of recently delivered items as
// negative context. Empty, too-short, or ambiguous responses are treated
// as not relevant (fail-closed).
type FullContentStage struct {
	configs   SourceConfigs
	oracle    oracle.Client
	history   RecentHistory
	charLimit int
}

// RecentHistory supplies summaries of recently delivered items.
type RecentHistory interface {
	RecentSummaries(limit int) []string
}

func NewFullContentStage(configs SourceConfigs, client oracle.Client, history RecentHistory, charLimit int) *FullContentStage {
	return &FullContentStage{configs: configs, oracle: client, history: history, charLimit: charLimit}
}

func (s *FullContentStage) Name() string { return "full_content" }

func (s *FullContentStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	if s.oracle == nil {
		return items
	}

	var recent []string
	if s.history != nil {
		recent = s.history.RecentSummaries(recentContextWindow)
	}

	kept := items[:0]
	for _, item := range items {
		cfg := s.configs.For(item)
		if cfg.SkipEvaluation {
			kept = append(kept, item)
			continue
		}

		verdict, err := s.evaluate(ctx, item, recent)
		if err != nil {
			slog.Info("Item rejected: relevance response unusable", "stage", s.Name(),
				"item_id", item.ID, "source", item.SourceName, "error", err)
			continue
		}
		if !verdict.Accept {
			slog.Info("Item rejected as not relevant", "stage", s.Name(), "item_id", item.ID,
				"source", item.SourceName, "justification", verdict.Justification)
			continue
		}

		item.Justification = verdict.Justification
		kept = append(kept, item)
	}

	return kept
}

func (s *FullContentStage) evaluate(ctx context.Context, item *content.Item, recent []string) (oracle.Verdict, error) {
	text := item.Title
	if item.Text != "" {
		if text != "" {
			text += "\n"
		}
		text += item.Text
	}
	text = content.Truncate(text, s.charLimit)

	raw, err := s.oracle.Complete(ctx, oracle.Request{
		Prompt: oracle.RelevancePrompt(text, recent),
		Tag:    "relevance",
	})
	if err != nil {
		return oracle.Verdict{}, err
	}
	return oracle.ParseVerdict(raw)
}
