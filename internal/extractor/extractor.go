// Package extractor turns a chat page DOM into a Transcript.
package extractor

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"chatarchiver/internal/domain"
)

// DefaultMinFallbackLength is the trimmed text length a fallback candidate must exceed.
const DefaultMinFallbackLength = 20

// DefaultPrimarySelectors match elements that look like chat messages.
func DefaultPrimarySelectors() []string {
	return []string{
		`[data-testid*="message"]`,
		`[class*="message"]`,
		`.conversation-turn`,
	}
}

// DefaultFallbackSelectors are broader structural selectors, tried in order.
func DefaultFallbackSelectors() []string {
	return []string{
		`div[role="group"]`,
		`.prose`,
		`[class*="conversation"]`,
		`[class*="chat"]`,
	}
}

// Config holds the selection heuristics. Zero values fall back to the defaults.
type Config struct {
	PrimarySelectors  []string
	FallbackSelectors []string
	MinFallbackLength int
	Now               func() time.Time
	Logger            *slog.Logger
}

// Extractor selects message elements and builds a Transcript. It never mutates the document.
type Extractor struct {
	primary   string
	fallbacks []string
	minLength int
	now       func() time.Time
	logger    *slog.Logger
}

// New creates an Extractor, filling unset heuristics with the defaults.
func New(cfg Config) *Extractor {
	if len(cfg.PrimarySelectors) == 0 {
		cfg.PrimarySelectors = DefaultPrimarySelectors()
	}
	if len(cfg.FallbackSelectors) == 0 {
		cfg.FallbackSelectors = DefaultFallbackSelectors()
	}
	if cfg.MinFallbackLength <= 0 {
		cfg.MinFallbackLength = DefaultMinFallbackLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Extractor{
		// A single selector group keeps matches in document order.
		primary:   strings.Join(cfg.PrimarySelectors, ", "),
		fallbacks: cfg.FallbackSelectors,
		minLength: cfg.MinFallbackLength,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}

// Extract returns the messages of doc in document order. A nil document yields an empty Transcript.
func (e *Extractor) Extract(doc *goquery.Document) domain.Transcript {
	if doc == nil {
		return domain.Transcript{}
	}

	candidates := e.candidates(doc.Selection)

	messages := make(domain.Transcript, 0, len(candidates))
	for _, el := range candidates {
		text := strings.TrimSpace(el.Text())
		if text == "" {
			continue
		}
		messages = append(messages, domain.Message{
			Index:     len(messages),
			Role:      ClassifyRole(Describe(el)),
			Content:   text,
			Timestamp: domain.FormatInstant(e.now()),
		})
	}
	return messages
}

func (e *Extractor) candidates(root *goquery.Selection) []*goquery.Selection {
	if primary := root.Find(e.primary); primary.Length() > 0 {
		return split(primary)
	}

	for _, sel := range e.fallbacks {
		var long []*goquery.Selection
		root.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if utf8.RuneCountInString(strings.TrimSpace(s.Text())) > e.minLength {
				long = append(long, s)
			}
		})
		if len(long) > 0 {
			e.logger.Debug("using fallback selector", "selector", sel, "elements", len(long))
			return long
		}
	}
	return nil
}

func split(s *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, s.Length())
	s.Each(func(_ int, el *goquery.Selection) {
		out = append(out, el)
	})
	return out
}
