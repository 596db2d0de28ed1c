package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lysyi3m/news-sieve/app/content"
)

// WhitelistStage keeps linked items whose host or URL path matches the
// source's allow-list. Items without a link, tweets, sources without a
// configured allow-list, and malformed URLs all pass through (fail-open).
type WhitelistStage struct {
	configs SourceConfigs
}

func NewWhitelistStage(configs SourceConfigs) *WhitelistStage {
	return &WhitelistStage{configs: configs}
}

func (s *WhitelistStage) Name() string { return "whitelist" }

func (s *WhitelistStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	kept := items[:0]
	for _, item := range items {
		cfg := s.configs.For(item)
		if item.Link == "" || item.Kind == content.KindTweet {
			kept = append(kept, item)
			continue
		}
		if len(cfg.WhitelistHosts) == 0 && len(cfg.WhitelistPaths) == 0 {
			kept = append(kept, item)
			continue
		}

		parsed, err := url.Parse(item.Link)
		if err != nil {
			kept = append(kept, item)
			continue
		}

		if matchesHost(parsed.Hostname(), cfg.WhitelistHosts) || matchesPath(parsed.Path, cfg.WhitelistPaths) {
			kept = append(kept, item)
			continue
		}

		slog.Debug("Item link outside whitelist", "stage", s.Name(), "item_id", item.ID,
			"source", item.SourceName, "link", item.Link)
	}

	return kept
}

func matchesHost(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, entry := range allowed {
		entry = strings.ToLower(entry)
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

func matchesPath(path string, allowed []string) bool {
	for _, entry := range allowed {
		if entry != "" && strings.HasPrefix(path, entry) {
			return true
		}
	}
	return false
}
