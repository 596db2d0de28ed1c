package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/lysyi3m/news-sieve/app/content"
)

const (
	linkExpandRetries    = 2
	linkExpandRetryDelay = 2 * time.Second
	linkExpandBodyCap    = 512 << 10
	linkExpandTimeout    = 20 * time.Second
	minExpandedLength    = 200
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// LinkExpandStage enriches short posts that consist of little more than a
// single link: it resolves redirects, extracts the destination page's main
// text, and substitutes it when substantive. All failures leave the item
// untouched (fail-open).
type LinkExpandStage struct {
	configs    SourceConfigs
	httpClient *http.Client
	userAgent  string
	charLimit  int
}

func NewLinkExpandStage(configs SourceConfigs, httpClient *http.Client, userAgent string, charLimit int) *LinkExpandStage {
	return &LinkExpandStage{
		configs:    configs,
		httpClient: httpClient,
		userAgent:  userAgent,
		charLimit:  charLimit,
	}
}

func (s *LinkExpandStage) Name() string { return "link_expand" }

func (s *LinkExpandStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	for _, item := range items {
		cfg := s.configs.For(item)
		if !cfg.ProcessLinksForShortTweets {
			continue
		}

		links := urlPattern.FindAllString(item.Text, -1)
		if len(links) != 1 {
			continue
		}

		bare := strings.TrimSpace(urlPattern.ReplaceAllString(item.Text, ""))
		if len([]rune(bare)) >= cfg.ShortTweetThreshold {
			continue
		}

		expanded, err := s.expand(ctx, links[0])
		if err != nil {
			slog.Debug("Link expansion failed, keeping original text", "stage", s.Name(),
				"item_id", item.ID, "source", item.SourceName, "error", err)
			continue
		}
		if len(expanded) <= len(bare) || len(expanded) < minExpandedLength {
			continue
		}

		item.OriginalText = item.Text
		item.Text = content.Truncate(expanded, s.charLimit)
		slog.Debug("Short item expanded from link", "stage", s.Name(), "item_id", item.ID,
			"source", item.SourceName, "expanded_length", len(expanded))
	}

	return items
}

func (s *LinkExpandStage) expand(ctx context.Context, link string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= linkExpandRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(linkExpandRetryDelay):
			}
		}

		text, err := s.fetchMainText(ctx, link)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}

	return "", lastErr
}

func (s *LinkExpandStage) fetchMainText(ctx context.Context, link string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, linkExpandTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	// The default client follows redirects, so shorteners resolve to the
	// final destination here.
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, linkExpandBodyCap))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	finalURL := resp.Request.URL
	article, err := readability.FromReader(strings.NewReader(string(body)), finalURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no content extracted")
	}

	return text, nil
}
