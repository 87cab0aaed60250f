package summarize

import (
	"strings"

	"github.com/joescharf/ghwatch/internal/models"
)

// DefaultLanguage is the summary language when none is configured.
const DefaultLanguage = "English"

// BuildPrompt returns the summarization prompt for one item. The body is
// cut to maxBodyChars runes when maxBodyChars is positive.
func BuildPrompt(item models.ActivityItem, language string, maxBodyChars int) string {
	if language == "" {
		language = DefaultLanguage
	}

	body := strings.TrimSpace(item.Body)
	if r := []rune(body); maxBodyChars > 0 && len(r) > maxBodyChars {
		body = string(r[:maxBodyChars]) + "..."
	}

	var sb strings.Builder
	sb.WriteString("You summarize GitHub activity for a team chat channel.\n")
	sb.WriteString("Write a single concise sentence of at most 100 characters in ")
	sb.WriteString(language)
	sb.WriteString(". Reply with the summary only, no preamble or formatting.\n\n")
	sb.WriteString("Activity type: ")
	sb.WriteString(string(item.SourceType))
	sb.WriteString("\nRepository: ")
	sb.WriteString(item.Repo)
	sb.WriteString("\nTitle: ")
	sb.WriteString(item.Title)
	sb.WriteString("\n\nContent:\n")
	sb.WriteString(body)
	return sb.String()
}
