package delivery

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/news-sieve/app/content"
)

// FormatMessage builds the delivery message for one accepted item.
func FormatMessage(item *content.Item, summary string) string {
	var sb strings.Builder

	if item.Title != "" {
		fmt.Fprintf(&sb, "*%s*\n", escapeMarkdown(item.Title))
	}

	if summary != "" {
		sb.WriteString(summary)
		sb.WriteString("\n")
	} else if item.Text != "" {
		sb.WriteString(content.Truncate(item.Text, 400))
		sb.WriteString("\n")
	}

	if item.Link != "" {
		sb.WriteString(item.Link)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "_%s_", escapeMarkdown(item.SourceName))

	return sb.String()
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer("*", "", "_", "", "`", "", "[", "(", "]", ")")
	return replacer.Replace(s)
}
