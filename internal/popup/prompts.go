package popup

import (
	"fmt"

	"PerplexityAssistant/internal/pageagent"
)

// SummaryExcerptLength is how much page text goes into a summary prompt.
const SummaryExcerptLength = 3000

func contextPrompt(page pageagent.Snapshot, question string) string {
	return fmt.Sprintf("Context from current page:\nTitle: %s\nURL: %s\n\nUser question: %s",
		page.Title, page.URL, question)
}

func summaryPrompt(page pageagent.Snapshot) string {
	return fmt.Sprintf("Summarize the following web page content:\n\nTitle: %s\nURL: %s\n\nContent: %s",
		page.Title, page.URL, firstChars(page.Text, SummaryExcerptLength))
}

func firstChars(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
