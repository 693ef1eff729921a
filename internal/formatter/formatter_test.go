package formatter

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatarchiver/internal/domain"
)

var frozen = time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

func sample() domain.Transcript {
	return domain.Transcript{
		{Index: 0, Role: domain.RoleUser, Content: "Hello", Timestamp: "2025-03-04T05:06:07.001Z"},
		{Index: 1, Role: domain.RoleAssistant, Content: "Hi there", Timestamp: "2025-03-04T05:06:07.002Z"},
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Claude Chat - 2025-03-04", Title(frozen))
	// The date comes from the UTC instant.
	local := time.Date(2025, 3, 4, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, "Claude Chat - 2025-03-05", Title(local))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		kind domain.FormatKind
		want string
	}{
		{domain.FormatJSON, "2025-03-04T05-06-07-890Z-claude-chat.json"},
		{domain.FormatMarkdown, "2025-03-04T05-06-07-890Z-claude-chat.md"},
		{domain.FormatText, "2025-03-04T05-06-07-890Z-claude-chat.txt"},
		{domain.FormatKind("pdf"), "2025-03-04T05-06-07-890Z-claude-chat.txt"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.kind, frozen))
		})
	}
}

func TestFormat_Text(t *testing.T) {
	doc, err := Format(sample(), domain.FormatText, frozen)
	require.NoError(t, err)

	want := "Claude Chat - 2025-03-04\n" +
		"========================\n\n" +
		"[USER]\nHello\n\n" +
		"[ASSISTANT]\nHi there\n\n"
	assert.Equal(t, want, doc.Body)
	assert.Equal(t, "Claude Chat - 2025-03-04", doc.Title)
	assert.Equal(t, frozen, doc.GeneratedAt)
}

func TestFormat_UnknownKindFallsBackToText(t *testing.T) {
	text, err := Format(sample(), domain.FormatText, frozen)
	require.NoError(t, err)
	other, err := Format(sample(), domain.FormatKind("yaml"), frozen)
	require.NoError(t, err)

	assert.Equal(t, text.Body, other.Body)
}

func TestFormat_Markdown(t *testing.T) {
	doc, err := Format(sample(), domain.FormatMarkdown, frozen)
	require.NoError(t, err)

	want := "# Claude Chat - 2025-03-04\n\n" +
		"## User\n\nHello\n\n---\n\n" +
		"## Assistant\n\nHi there\n\n---\n\n"
	assert.Equal(t, want, doc.Body)
}

func TestFormat_MarkdownSectionCounts(t *testing.T) {
	for n := 0; n <= 5; n++ {
		t.Run(fmt.Sprintf("%d messages", n), func(t *testing.T) {
			transcript := make(domain.Transcript, 0, n)
			for i := 0; i < n; i++ {
				role := domain.RoleUser
				if i%2 == 1 {
					role = domain.RoleAssistant
				}
				transcript = append(transcript, domain.Message{Index: i, Role: role, Content: fmt.Sprintf("message %d", i)})
			}

			doc, err := Format(transcript, domain.FormatMarkdown, frozen)
			require.NoError(t, err)

			assert.Equal(t, n, strings.Count(doc.Body, "\n---\n"))
			assert.Equal(t, n, strings.Count(doc.Body, "## "))
		})
	}
}

func TestFormat_JSONRoundTrip(t *testing.T) {
	doc, err := Format(sample(), domain.FormatJSON, frozen)
	require.NoError(t, err)

	var parsed struct {
		Title     string            `json:"title"`
		Timestamp string            `json:"timestamp"`
		Messages  domain.Transcript `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc.Body), &parsed))

	assert.Equal(t, "Claude Chat - 2025-03-04", parsed.Title)
	assert.Equal(t, "2025-03-04T05:06:07.890Z", parsed.Timestamp)
	assert.Equal(t, sample(), parsed.Messages)
}

func TestFormat_JSONLayout(t *testing.T) {
	doc, err := Format(sample()[:1], domain.FormatJSON, frozen)
	require.NoError(t, err)

	want := `{
  "title": "Claude Chat - 2025-03-04",
  "timestamp": "2025-03-04T05:06:07.890Z",
  "messages": [
    {
      "index": 0,
      "role": "user",
      "content": "Hello",
      "timestamp": "2025-03-04T05:06:07.001Z"
    }
  ]
}`
	assert.Equal(t, want, doc.Body)
}

func TestFormat_JSONEmptyTranscript(t *testing.T) {
	doc, err := Format(nil, domain.FormatJSON, frozen)
	require.NoError(t, err)
	assert.Contains(t, doc.Body, `"messages": []`)
}

func TestFormat_JSONKeepsMarkupUnescaped(t *testing.T) {
	transcript := domain.Transcript{{Index: 0, Role: domain.RoleAssistant, Content: "<b>a & b</b>"}}
	doc, err := Format(transcript, domain.FormatJSON, frozen)
	require.NoError(t, err)
	assert.Contains(t, doc.Body, "<b>a & b</b>")
}

func TestFormat_Deterministic(t *testing.T) {
	for _, kind := range []domain.FormatKind{domain.FormatText, domain.FormatMarkdown, domain.FormatJSON} {
		first, err := Format(sample(), kind, frozen)
		require.NoError(t, err)
		second, err := Format(sample(), kind, frozen)
		require.NoError(t, err)
		assert.Equal(t, first.Body, second.Body, string(kind))
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "No messages found", Preview(nil))

	long := strings.Repeat("x", 60)
	transcript := domain.Transcript{
		{Role: domain.RoleUser, Content: "dropped"},
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: long},
		{Role: domain.RoleUser, Content: "q2"},
	}

	want := "user: q1...\n" +
		"assistant: " + strings.Repeat("x", 50) + "...\n" +
		"user: q2..."
	assert.Equal(t, want, Preview(transcript))
}
