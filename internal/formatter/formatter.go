// Package formatter serializes a Transcript as text, markdown or JSON.
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chatarchiver/internal/domain"
)

const (
	titlePrefix     = "Claude Chat - "
	filenameSuffix  = "-claude-chat."
	previewCount    = 3
	previewChars    = 50
	emptyPreviewMsg = "No messages found"
)

// Title is the document title for a save made at now, e.g. "Claude Chat - 2025-03-04".
func Title(now time.Time) string {
	return titlePrefix + now.UTC().Format("2006-01-02")
}

// Filename derives the download name: the instant with ':' and '.' replaced by '-', then
// "-claude-chat.<ext>".
func Filename(kind domain.FormatKind, now time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(domain.FormatInstant(now))
	return stamp + filenameSuffix + kind.Extension()
}

// Format renders t in the requested format. Unknown kinds render as text.
func Format(t domain.Transcript, kind domain.FormatKind, now time.Time) (domain.Document, error) {
	doc := domain.Document{Title: Title(now), GeneratedAt: now}

	switch kind {
	case domain.FormatMarkdown:
		doc.Body = markdown(doc.Title, t)
	case domain.FormatJSON:
		body, err := jsonBody(doc.Title, now, t)
		if err != nil {
			return domain.Document{}, fmt.Errorf("encode json transcript: %w", err)
		}
		doc.Body = body
	default:
		doc.Body = text(doc.Title, t)
	}
	return doc, nil
}

func markdown(title string, t domain.Transcript) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	for _, m := range t {
		fmt.Fprintf(&sb, "## %s\n\n", capitalize(string(m.Role)))
		fmt.Fprintf(&sb, "%s\n\n---\n\n", m.Content)
	}
	return sb.String()
}

func text(title string, t domain.Transcript) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("=", utf8.RuneCountInString(title)))
	sb.WriteString("\n\n")
	for _, m := range t {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", strings.ToUpper(string(m.Role)), m.Content)
	}
	return sb.String()
}

type jsonDocument struct {
	Title     string            `json:"title"`
	Timestamp string            `json:"timestamp"`
	Messages  domain.Transcript `json:"messages"`
}

func jsonBody(title string, now time.Time, t domain.Transcript) (string, error) {
	if t == nil {
		t = domain.Transcript{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonDocument{
		Title:     title,
		Timestamp: domain.FormatInstant(now),
		Messages:  t,
	}); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Preview summarizes the last few messages, one "role: content..." line each.
func Preview(t domain.Transcript) string {
	if t.Empty() {
		return emptyPreviewMsg
	}
	start := len(t) - previewCount
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, previewCount)
	for _, m := range t[start:] {
		lines = append(lines, fmt.Sprintf("%s: %s...", m.Role, truncate(m.Content, previewChars)))
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
