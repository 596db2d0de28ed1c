package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lysyi3m/news-sieve/app/content"
)

// BlacklistStage drops items whose title or text contains a forbidden
// substring, unless the item's source skips evaluation entirely.
type BlacklistStage struct {
	configs SourceConfigs
}

func NewBlacklistStage(configs SourceConfigs) *BlacklistStage {
	return &BlacklistStage{configs: configs}
}

func (s *BlacklistStage) Name() string { return "blacklist" }

func (s *BlacklistStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	kept := items[:0]
	for _, item := range items {
		cfg := s.configs.For(item)
		if cfg.SkipEvaluation || len(cfg.BlacklistKeywords) == 0 {
			kept = append(kept, item)
			continue
		}

		if keyword := firstBlacklisted(item, cfg.BlacklistKeywords); keyword != "" {
			slog.Info("Item removed by blacklist", "stage", s.Name(), "item_id", item.ID,
				"source", item.SourceName, "keyword", keyword)
			continue
		}

		kept = append(kept, item)
	}

	return kept
}

func firstBlacklisted(item *content.Item, keywords []string) string {
	haystack := strings.ToLower(item.Title + " " + item.Text)
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(haystack, strings.ToLower(keyword)) {
			return keyword
		}
	}
	return ""
}
