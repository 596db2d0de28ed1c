package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/oracle"
)

const minExtractedTextLength = 15

// MediaStage replaces the text of media-only items with text extracted
// from an attached image. Extraction failures fall back to the original
// text; sources flagged strict are removed entirely when no valid image
// text can be produced.
type MediaStage struct {
	configs SourceConfigs
	oracle  oracle.Client
}

func NewMediaStage(configs SourceConfigs, client oracle.Client) *MediaStage {
	return &MediaStage{configs: configs, oracle: client}
}

func (s *MediaStage) Name() string { return "media" }

func (s *MediaStage) Run(ctx context.Context, items []*content.Item) []*content.Item {
	kept := items[:0]
	for _, item := range items {
		cfg := s.configs.For(item)
		if !cfg.MediaOnly {
			kept = append(kept, item)
			continue
		}

		extracted := s.extract(ctx, item)
		if extracted != "" {
			item.OriginalText = item.Text
			item.Text = extracted
			kept = append(kept, item)
			continue
		}

		if cfg.StrictMedia {
			slog.Info("Item removed: no valid image text for strict media source",
				"stage", s.Name(), "item_id", item.ID, "source", item.SourceName)
			continue
		}

		kept = append(kept, item)
	}

	return kept
}

func (s *MediaStage) extract(ctx context.Context, item *content.Item) string {
	if s.oracle == nil || len(item.MediaRefs) == 0 {
		return ""
	}

	text, err := s.oracle.ExtractImageText(ctx, item.MediaRefs[0])
	if err != nil {
		slog.Warn("Image text extraction failed", "stage", s.Name(), "item_id", item.ID,
			"source", item.SourceName, "error", err)
		return ""
	}

	text = strings.TrimSpace(text)
	if !validExtractedText(text) {
		slog.Debug("Extracted image text rejected", "stage", s.Name(), "item_id", item.ID,
			"length", len(text))
		return ""
	}

	return text
}

// validExtractedText rejects empty, too-short, character-degenerate, or
// non-word-like extraction results.
func validExtractedText(text string) bool {
	if len(text) < minExtractedTextLength {
		return false
	}

	runes := []rune(text)
	unique := make(map[rune]bool)
	letters := 0
	for _, r := range runes {
		unique[r] = true
		if unicode.IsLetter(r) {
			letters++
		}
	}

	// A handful of repeated characters is OCR noise, not prose.
	if len(unique) < 8 {
		return false
	}
	if float64(letters)/float64(len(runes)) < 0.5 {
		return false
	}
	if !strings.Contains(strings.TrimSpace(text), " ") {
		return false
	}

	return true
}
