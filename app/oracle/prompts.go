package oracle

import (
	"fmt"
	"strings"
)

// Prompt builders for the evaluation stages. Each prompt pins the response
// protocol its parser expects.

func RelevancePrompt(text string, recentSummaries []string) string {
	var sb strings.Builder
	sb.WriteString("You are screening news content for a curated feed covering significant current events.\n")
	sb.WriteString("Judge whether the following item is newsworthy and relevant.\n\n")
	sb.WriteString("Item:\n")
	sb.WriteString(text)
	sb.WriteString("\n\n")

	if len(recentSummaries) > 0 {
		sb.WriteString("Recently delivered items (do NOT accept near-repeats of these):\n")
		for _, summary := range recentSummaries {
			sb.WriteString("- ")
			sb.WriteString(summary)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Reply with exactly one line: relevant::<short justification> or not relevant::<short justification>")
	return sb.String()
}

func CustomSourcePrompt(sourcePrompt, text string) string {
	return fmt.Sprintf("%s\n\nContent:\n%s\n\nReply with exactly one line: yes::<short justification> or no::<short justification>",
		strings.TrimSpace(sourcePrompt), text)
}

func DuplicatePrompt(text string, history []string) string {
	var sb strings.Builder
	sb.WriteString("Decide whether the candidate story repeats one of the already delivered stories, even if worded differently.\n\n")
	sb.WriteString("Delivered stories:\n")
	for _, entry := range history {
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	sb.WriteString("\nCandidate:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nReply with exactly one line: duplicate::<delivered id>::<short justification> or unique::<short justification>")
	return sb.String()
}

func ConsequenceScorePrompt(originalTitle, originalJustification, candidateText string) string {
	var sb strings.Builder
	sb.WriteString("A story is already being tracked:\n")
	sb.WriteString("Original event: ")
	sb.WriteString(originalTitle)
	sb.WriteString("\n")
	if originalJustification != "" {
		sb.WriteString("Why it mattered: ")
		sb.WriteString(originalJustification)
		sb.WriteString("\n")
	}
	sb.WriteString("\nNew related item:\n")
	sb.WriteString(candidateText)
	sb.WriteString("\n\nRate how important this new item is as a development of the tracked story, on a 1-10 scale, ")
	sb.WriteString("and tag it with a category (casualties, escalation, official, analysis, reaction, other).\n")
	sb.WriteString("Reply with exactly one line: SCORE::<n>::<category>::<short justification>")
	return sb.String()
}

func BaseImportancePrompt(text string) string {
	return fmt.Sprintf("Rate the overall news importance of this story on a 1-10 scale and tag it with a category (casualties, escalation, official, analysis, reaction, other).\n\nStory:\n%s\n\nReply with exactly one line: SCORE::<n>::<category>::<short justification>", text)
}

func TitleScreenPrompt(titles []string) string {
	var sb strings.Builder
	sb.WriteString("Below is a numbered list of headlines. Select the ones describing significant, newsworthy events.\n\n")
	for i, title := range titles {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, title)
	}
	sb.WriteString("\nReply with the surviving numbers as a comma-separated list (e.g. 1,4,7), or the word none.")
	return sb.String()
}

func GroupingPrompt(headlines []string) string {
	var sb strings.Builder
	sb.WriteString("Below is a numbered list of news items. Identify groups of items covering the same underlying story.\n\n")
	for i, headline := range headlines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, headline)
	}
	sb.WriteString("\nReply with one group per line as comma-separated numbers (e.g. 1,3), or the word none. Items not listed are treated as independent.")
	return sb.String()
}

func SummaryPrompt(text string, charLimit int) string {
	return fmt.Sprintf("Summarize the following news item in at most %d characters, keeping the key facts. Reply with the summary only.\n\n%s", charLimit, text)
}
