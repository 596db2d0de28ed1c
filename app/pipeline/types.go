package pipeline

import (
	"context"

	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/content"
)

// Adapter produces normalized items from one upstream source.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]*content.Item, error)
}

// Stage consumes the surviving item list of a cycle and returns a possibly
// smaller list. Stages log what they removed and why; a failure inside one
// item's processing must never abort the batch.
type Stage interface {
	Name() string
	Run(ctx context.Context, items []*content.Item) []*content.Item
}

// SourceConfigs resolves per-source options for stages.
type SourceConfigs map[string]*config.SourceConfig

func (s SourceConfigs) For(item *content.Item) *config.SourceConfig {
	if cfg, ok := s[item.SourceName]; ok {
		return cfg
	}
	return &config.SourceConfig{Name: item.SourceName}
}
