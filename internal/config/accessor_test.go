package config

import (
	"sort"
	"testing"
)

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()
	cfg.Extractor.PrimarySelectors = []string{".a", ".b"}

	cases := map[string]any{
		"page.source":                  "browser",
		"server.port":                  float64(8765),
		"page.headless":                true,
		"extractor.primarySelectors.1": ".b",
	}
	for path, want := range cases {
		got, err := GetByPath(cfg, path)
		if err != nil {
			t.Errorf("%s: %v", path, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %v (%T), want %v", path, got, got, want)
		}
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	for _, path := range []string{"nope", "page.nope", "page.source.deeper", "extractor.primarySelectors.9"} {
		if _, err := GetByPath(cfg, path); err == nil {
			t.Errorf("%s: expected error", path)
		}
	}
}

func TestSetByPath_Conversions(t *testing.T) {
	cfg := Defaults()

	if err := SetByPath(cfg, "server.port", "9001"); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("expected port 9001, got %d", cfg.Server.Port)
	}

	if err := SetByPath(cfg, "page.headless", "false"); err != nil {
		t.Fatal(err)
	}
	if cfg.Page.Headless {
		t.Error("expected headless=false")
	}

	if err := SetByPath(cfg, "server.token", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Token != "s3cret" {
		t.Errorf("expected token, got %q", cfg.Server.Token)
	}
}

func TestSetByPath_List(t *testing.T) {
	cfg := Defaults()

	if err := SetByPath(cfg, "extractor.fallbackSelectors", ".prose, div[role=\"group\"]"); err != nil {
		t.Fatal(err)
	}
	want := []string{".prose", `div[role="group"]`}
	if len(cfg.Extractor.FallbackSelectors) != 2 ||
		cfg.Extractor.FallbackSelectors[0] != want[0] ||
		cfg.Extractor.FallbackSelectors[1] != want[1] {
		t.Errorf("got %v, want %v", cfg.Extractor.FallbackSelectors, want)
	}

	if err := SetByPath(cfg, "extractor.fallbackSelectors", ".one"); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Extractor.FallbackSelectors) != 1 {
		t.Errorf("expected a single selector, got %v", cfg.Extractor.FallbackSelectors)
	}
}

func TestSetByPath_Rejects(t *testing.T) {
	cfg := Defaults()
	cases := map[string]string{
		"":            "x",
		"page":        "x",
		"bogus.key":   "x",
		"page.bogus":  "x",
		"server.port": "not-a-number",
		"page.source": "clipboard",
	}
	for path, value := range cases {
		if err := SetByPath(cfg, path, value); err == nil {
			t.Errorf("SetByPath(%q, %q): expected error", path, value)
		}
	}
	if cfg.Page.Source != SourceBrowser {
		t.Error("failed set must leave config unchanged")
	}
}

func TestSanitize_MasksToken(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Token = "abcd1234efgh5678"

	safe := Sanitize(cfg)
	if safe.Server.Token != "abcd****5678" {
		t.Errorf("unexpected mask %q", safe.Server.Token)
	}
	if cfg.Server.Token != "abcd1234efgh5678" {
		t.Error("original must not be modified")
	}

	cfg.Server.Token = "short"
	if Sanitize(cfg).Server.Token != "***" {
		t.Error("short tokens should be fully masked")
	}
}

func TestListPaths_ReturnsSortedLeaves(t *testing.T) {
	paths, values := ListPaths(Defaults())

	if !sort.StringsAreSorted(paths) {
		t.Error("paths should be sorted")
	}
	for _, want := range []string{"general.logLevel", "page.source", "server.port", "settings.dbPath"} {
		if _, ok := values[want]; !ok {
			t.Errorf("missing path %s", want)
		}
	}
}
