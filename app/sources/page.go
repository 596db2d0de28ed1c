package sources

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/content"
)

const defaultItemSelector = "article a, h2 a, h3 a"

// Page scrapes a listing page for headline links.
type Page struct {
	cfg        *config.SourceConfig
	httpClient *http.Client
	userAgent  string
}

func NewPage(cfg *config.SourceConfig, httpClient *http.Client, userAgent string) *Page {
	return &Page{cfg: cfg, httpClient: httpClient, userAgent: userAgent}
}

func (p *Page) Name() string {
	return p.cfg.Name
}

func (p *Page) Fetch(ctx context.Context) ([]*content.Item, error) {
	data, err := fetchURL(ctx, p.httpClient, p.cfg.URL, p.userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	base, err := url.Parse(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	selector := p.cfg.ItemSelector
	if selector == "" {
		selector = defaultItemSelector
	}

	var items []*content.Item
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		if title == "" || href == "" {
			return
		}

		link := resolveLink(base, href)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true

		item := &content.Item{
			ID:         hashLink(link),
			Kind:       content.KindPage,
			Title:      title,
			Text:       title,
			SourceName: p.cfg.Name,
			Link:       link,
		}

		// Listing pages rarely carry machine-readable dates; take what the
		// markup offers and leave nil otherwise.
		if raw, ok := sel.Closest("article").Find("time").Attr("datetime"); ok {
			if t, err := dateparse.ParseAny(raw); err == nil {
				item.PublishedAt = &t
			}
		}

		items = append(items, item)
	})

	return items, nil
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func hashLink(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:8])
}
