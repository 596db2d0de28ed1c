package pipeline

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/oracle"
)

// TitleScreenStage sends all headline-bearing items to the oracle in one
// numbered batch and keeps the returned indices. The batch call is an
// optimization, not a correctness gate, so any parse failure keeps the
// whole batch (fail-open).
type TitleScreenStage struct {
	oracle oracle.Client
}

func NewTitleScreenStage(client oracle.Client) *TitleScreenStage {
	return &TitleScreenStage{oracle: client}
}

func (s *TitleScreenStage) Name() string { return "title_screen" }

func (s *TitleScreenStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	if s.oracle == nil {
		return items
	}

	var screened []*content.Item
	for _, item := range items {
		if item.Kind == content.KindArticle && item.Title != "" {
			screened = append(screened, item)
		}
	}
	if len(screened) < 2 {
		return items
	}

	titles := make([]string, len(screened))
	for i, item := range screened {
		titles[i] = item.Title
	}

	raw, err := s.oracle.Complete(ctx, oracle.Request{
		Prompt: oracle.TitleScreenPrompt(titles),
		Tag:    "title-screen",
	})
	if err != nil {
		slog.Warn("Title screen call failed, keeping batch", "stage", s.Name(), "error", err)
		return items
	}

	indices, err := oracle.ParseIndexList(raw, len(screened))
	if err != nil {
		slog.Warn("Title screen response unparseable, keeping batch", "stage", s.Name(), "error", err)
		return items
	}

	surviving := make(map[*content.Item]bool, len(indices))
	for _, idx := range indices {
		surviving[screened[idx-1]] = true
	}

	kept := items[:0]
	for _, item := range items {
		if item.Kind != content.KindArticle || item.Title == "" {
			kept = append(kept, item)
			continue
		}
		if surviving[item] {
			kept = append(kept, item)
			continue
		}
		slog.Info("Headline removed by title screen", "stage", s.Name(), "item_id", item.ID,
			"source", item.SourceName, "title", item.Title)
	}

	return kept
}
