package delivery

import (
	"strings"
	"testing"

	"github.com/lysyi3m/news-sieve/app/content"
)

func TestFormatMessage(t *testing.T) {
	item := &content.Item{
		Title:      "Bridge closed downtown",
		Text:       "Full article body",
		Link:       "https://example.com/bridge",
		SourceName: "wire",
	}

	message := FormatMessage(item, "The downtown bridge is closed until Friday.")

	if !strings.HasPrefix(message, "*Bridge closed downtown*\n") {
		t.Errorf("Expected bold title first, got %q", message)
	}
	if !strings.Contains(message, "The downtown bridge is closed until Friday.") {
		t.Errorf("Expected summary, got %q", message)
	}
	if !strings.Contains(message, "https://example.com/bridge") {
		t.Errorf("Expected link, got %q", message)
	}
	if !strings.HasSuffix(message, "_wire_") {
		t.Errorf("Expected italic source last, got %q", message)
	}
}

func TestFormatMessage_FallsBackToText(t *testing.T) {
	item := &content.Item{Text: "Tweet text only", SourceName: "feed"}

	message := FormatMessage(item, "")

	if !strings.Contains(message, "Tweet text only") {
		t.Errorf("Expected item text without summary, got %q", message)
	}
	if strings.Contains(message, "*") {
		t.Errorf("No title, no bold marker expected, got %q", message)
	}
}

func TestFormatMessage_EscapesMarkup(t *testing.T) {
	item := &content.Item{Title: "Price *drops* [today]", SourceName: "wire_news"}

	message := FormatMessage(item, "s")

	if strings.Contains(message, "*drops*") {
		t.Errorf("Title markup should be stripped, got %q", message)
	}
	if !strings.HasSuffix(message, "_wirenews_") {
		t.Errorf("Source underscores should be stripped, got %q", message)
	}
}
