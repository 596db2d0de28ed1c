package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/content"
)

const fetchTimeout = 30 * time.Second

// RSS polls one RSS/Atom feed and normalizes its entries.
type RSS struct {
	cfg        *config.SourceConfig
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
}

func NewRSS(cfg *config.SourceConfig, httpClient *http.Client, userAgent string) *RSS {
	return &RSS{
		cfg:        cfg,
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
	}
}

func (r *RSS) Name() string {
	return r.cfg.Name
}

func (r *RSS) Fetch(ctx context.Context) ([]*content.Item, error) {
	data, err := fetchURL(ctx, r.httpClient, r.cfg.URL, r.userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := r.parser.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]*content.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, r.normalize(entry))
	}

	return items, nil
}

func (r *RSS) normalize(entry *gofeed.Item) *content.Item {
	item := &content.Item{
		ID:         coalesce(entry.GUID, entry.Link),
		Kind:       content.KindArticle,
		Title:      entry.Title,
		Text:       coalesce(entry.Description, entry.Content),
		SourceName: r.cfg.Name,
		Link:       entry.Link,
	}

	switch {
	case entry.PublishedParsed != nil:
		item.PublishedAt = entry.PublishedParsed
	case entry.Published != "":
		// gofeed leaves nonstandard date formats unparsed; take a second
		// tolerant pass and keep nil when it still fails.
		if t, err := dateparse.ParseAny(entry.Published); err == nil {
			item.PublishedAt = &t
		}
	}

	for _, enclosure := range entry.Enclosures {
		if enclosure != nil && enclosure.URL != "" {
			item.MediaRefs = append(item.MediaRefs, enclosure.URL)
		}
	}

	return item
}

func fetchURL(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
