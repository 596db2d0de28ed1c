package content

import "time"

// Kind identifies the shape of a candidate item.
type Kind string

const (
	KindTweet   Kind = "tweet"
	KindArticle Kind = "article"
	KindPage    Kind = "page"
)

// Item is one piece of candidate content moving through a curation cycle.
// Stages mutate it in place (text replacement, justification annotation);
// it is discarded at the end of the cycle except for the DeliveredItem
// projection written to the store on delivery.
type Item struct {
	ID            string
	Kind          Kind
	Title         string
	Text          string
	OriginalText  string // pre-transformation copy, set when a stage rewrites Text
	SourceName    string
	PublishedAt   *time.Time
	Link          string
	MediaRefs     []string
	Justification string
}

// EvalText returns the text a per-source evaluation should see: the original
// text from before any stage rewrote it, falling back to the current text.
func (i *Item) EvalText() string {
	if i.OriginalText != "" {
		return i.OriginalText
	}
	return i.Text
}

// Headline returns the best short label for the item.
func (i *Item) Headline() string {
	if i.Title != "" {
		return i.Title
	}
	return Truncate(i.Text, 120)
}

// Truncate cuts s to at most limit runes, appending an ellipsis when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
