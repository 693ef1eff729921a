package domain

import "strings"

// FormatKind selects how a transcript is serialized.
type FormatKind string

const (
	FormatText     FormatKind = "text"
	FormatMarkdown FormatKind = "markdown"
	FormatJSON     FormatKind = "json"
)

// ParseFormat normalizes s. Unknown values map to FormatText.
func ParseFormat(s string) FormatKind {
	switch FormatKind(strings.ToLower(strings.TrimSpace(s))) {
	case FormatMarkdown:
		return FormatMarkdown
	case FormatJSON:
		return FormatJSON
	default:
		return FormatText
	}
}

// Known reports whether f is one of the three supported formats.
func (f FormatKind) Known() bool {
	switch f {
	case FormatText, FormatMarkdown, FormatJSON:
		return true
	}
	return false
}

// Extension returns the file extension used for saved documents.
func (f FormatKind) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}
