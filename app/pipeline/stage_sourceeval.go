package pipeline

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/oracle"
)

// SourceEvalStage runs the dedicated per-source prompt against each item's
// pre-extraction text. Ambiguous or failed responses reject the item: this
// is the one stage intentionally biased toward suppression, since a
// source-specific prompt encodes what the operator explicitly wants.
type SourceEvalStage struct {
	configs   SourceConfigs
	oracle    oracle.Client
	charLimit int
}

func NewSourceEvalStage(configs SourceConfigs, client oracle.Client, charLimit int) *SourceEvalStage {
	return &SourceEvalStage{configs: configs, oracle: client, charLimit: charLimit}
}

func (s *SourceEvalStage) Name() string { return "source_eval" }

func (s *SourceEvalStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	kept := items[:0]
	for _, item := range items {
		cfg := s.configs.For(item)
		if cfg.PromptSpecific == "" || s.oracle == nil {
			kept = append(kept, item)
			continue
		}

		verdict, err := s.evaluate(ctx, item, cfg.PromptSpecific)
		if err != nil {
			// Fail-closed: an unevaluable item from a prompt-specific
			// source is suppressed.
			slog.Warn("Per-source evaluation failed, rejecting item", "stage", s.Name(),
				"item_id", item.ID, "source", item.SourceName, "error", err)
			continue
		}
		if !verdict.Accept {
			slog.Info("Item rejected by per-source evaluation", "stage", s.Name(),
				"item_id", item.ID, "source", item.SourceName, "justification", verdict.Justification)
			continue
		}

		if verdict.Justification != "" {
			item.Justification = verdict.Justification
		}
		kept = append(kept, item)
	}

	return kept
}

func (s *SourceEvalStage) evaluate(ctx context.Context, item *content.Item, prompt string) (oracle.Verdict, error) {
	text := content.Truncate(item.EvalText(), s.charLimit)
	raw, err := s.oracle.Complete(ctx, oracle.Request{
		Prompt: oracle.CustomSourcePrompt(prompt, text),
		Tag:    "source-eval",
	})
	if err != nil {
		return oracle.Verdict{}, err
	}
	return oracle.ParseVerdict(raw)
}
