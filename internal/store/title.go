package store

import "strings"

const (
	titleMaxLen   = 50
	previewMaxLen = 100

	// fallbackTitle is used when a conversation has no user message at all.
	fallbackTitle = "Untitled Conversation"
)

// deriveTitle builds a display title from the first user message: trimmed,
// truncated to 50 characters with an ellipsis marker when cut.
func deriveTitle(firstUserMessage string) string {
	trimmed := strings.TrimSpace(firstUserMessage)
	if trimmed == "" {
		return fallbackTitle
	}
	runes := []rune(trimmed)
	if len(runes) <= titleMaxLen {
		return trimmed
	}
	return string(runes[:titleMaxLen]) + "..."
}

// derivePreview returns the first ~100 characters of the earliest assistant
// message, or the empty string when there is none.
func derivePreview(firstAssistantMessage string) string {
	runes := []rune(firstAssistantMessage)
	if len(runes) <= previewMaxLen {
		return firstAssistantMessage
	}
	return string(runes[:previewMaxLen])
}
