// Package page provides snapshots of the chat page DOM.
package page

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultHostPattern identifies the chat site.
const DefaultHostPattern = "claude.ai"

// Page is one snapshot of the active chat page.
type Page struct {
	URL string
	Doc *goquery.Document
}

// Source produces the current page. Every call returns a fresh snapshot.
type Source interface {
	Snapshot(ctx context.Context) (*Page, error)
}

// Parse reads an HTML document.
func Parse(r io.Reader, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if u, err := url.Parse(pageURL); err == nil && pageURL != "" {
		doc.Url = u
	}
	return &Page{URL: pageURL, Doc: doc}, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(html, pageURL string) (*Page, error) {
	return Parse(strings.NewReader(html), pageURL)
}

// FileSource reads a saved HTML snapshot from disk. The file is re-read on
// every Snapshot so edits are picked up between autosave firings.
type FileSource struct {
	Path string
	URL  string
}

func (s FileSource) Snapshot(ctx context.Context) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Parse(f, s.URL)
}

// StaticSource always returns the same page.
type StaticSource struct {
	Page *Page
}

func (s StaticSource) Snapshot(context.Context) (*Page, error) {
	if s.Page == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	return s.Page, nil
}

// HostMatches reports whether rawURL points at pattern or one of its
// subdomains. An empty pattern matches any URL.
func HostMatches(rawURL, pattern string) bool {
	if pattern == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	pattern = strings.ToLower(pattern)
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
