package gemini

import (
	"strings"
	"time"
)

// buildPrompt composes the generation prompt from the profile description and
// the current date. The date lets the model resolve documents that omit the
// year or use ambiguous day/month forms.
func buildPrompt(description string, now time.Time) string {
	today := now.Format("2006-01-02")
	parts := []string{
		"You are an expert document parser.",
		"Today's date is " + today + ".",
		"Extract the requested information from the attached document.",
		"If the year, month, or day is missing or ambiguous in the document, infer it based on today's date (" + today + ").",
		"Context: " + strings.TrimSpace(description),
		"Strictly follow the JSON schema provided and return ONLY JSON.",
	}
	return strings.Join(parts, " ")
}
