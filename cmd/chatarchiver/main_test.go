package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatarchiver/internal/archiver"
	"chatarchiver/internal/config"
	"chatarchiver/internal/domain"
)

const chatHTML = `<html><body>
	<div data-testid="user-message" data-is-user="true">Hello</div>
	<div data-testid="assistant-message">Hi there</div>
</body></html>`

func init() {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, html string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "chat.html")
	if err := os.WriteFile(file, []byte(html), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Defaults()
	cfg.Page.Source = config.SourceFile
	cfg.Page.File = file
	cfg.Page.URL = "https://claude.ai/chat/abc"
	cfg.Download.Dir = filepath.Join(dir, "downloads")
	cfg.Settings.DBPath = filepath.Join(dir, "settings.db")
	return cfg
}

func TestNewAppSavesFromFileSource(t *testing.T) {
	cfg := testConfig(t, chatHTML)
	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	outcome := a.archiver.SaveCurrentChat(context.Background(), domain.FormatText)
	if outcome.Status != archiver.StatusSaved {
		t.Fatalf("status = %s, err = %v", outcome.Status, outcome.Err)
	}
	if outcome.Messages != 2 {
		t.Errorf("messages = %d, want 2", outcome.Messages)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Download.Dir, outcome.Filename))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if !strings.Contains(string(data), "Hi there") {
		t.Errorf("saved file missing assistant message:\n%s", data)
	}
}

func TestNewAppRegistersActions(t *testing.T) {
	a, err := newApp(testConfig(t, chatHTML))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	resp, err := a.router.Send(context.Background(), domain.Request{Action: domain.ActionGetChatPreview})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(resp.Preview, "assistant: Hi there") {
		t.Errorf("preview = %q", resp.Preview)
	}
}

func TestResolveFormat(t *testing.T) {
	a, err := newApp(testConfig(t, chatHTML))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	ctx := context.Background()

	got, err := resolveFormat(ctx, a, "")
	if err != nil || got != domain.FormatMarkdown {
		t.Errorf("stored default = %q, %v", got, err)
	}
	if got, _ := resolveFormat(ctx, a, "json"); got != domain.FormatJSON {
		t.Errorf("flag json = %q", got)
	}
	if got, _ := resolveFormat(ctx, a, " Markdown "); got != domain.FormatMarkdown {
		t.Errorf("flag Markdown = %q", got)
	}
	if _, err := resolveFormat(ctx, a, "pdf"); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestActiveURLFileSource(t *testing.T) {
	cfg := testConfig(t, chatHTML)
	url, err := activeURL(cfg, nil)(context.Background())
	if err != nil || url != cfg.Page.URL {
		t.Errorf("activeURL = %q, %v", url, err)
	}
}

func TestParseSwitch(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "ON": true, "yes": true, "off": false, "0": false} {
		got, err := parseSwitch(in)
		if err != nil || got != want {
			t.Errorf("parseSwitch(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseSwitch("maybe"); err == nil {
		t.Error("expected error for maybe")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRenderSystemdTemplate(t *testing.T) {
	unit := renderTemplate(systemdTemplate, map[string]string{
		"EXEC":   "/usr/local/bin/chatarchiver",
		"CONFIG": "/home/me/.chatarchiver/config.json",
	})
	want := "ExecStart=/usr/local/bin/chatarchiver run --config /home/me/.chatarchiver/config.json"
	if !strings.Contains(unit, want) {
		t.Errorf("unit missing %q:\n%s", want, unit)
	}
	if strings.Contains(unit, "{{") {
		t.Errorf("unrendered placeholder:\n%s", unit)
	}
}

func TestRenderLaunchdTemplate(t *testing.T) {
	plist := renderTemplate(launchdTemplate, map[string]string{
		"EXEC":    "/bin/ca",
		"CONFIG":  "/c.json",
		"LABEL":   launchdLabel,
		"LOG":     "/l.log",
		"ERR_LOG": "/e.log",
	})
	for _, want := range []string{"<string>" + launchdLabel + "</string>", "<string>run</string>", "<string>/c.json</string>"} {
		if !strings.Contains(plist, want) {
			t.Errorf("plist missing %q", want)
		}
	}
}

func TestCheckWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")
	if err := checkWritableDir(dir); err != nil {
		t.Fatalf("checkWritableDir: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("scratch file left behind: %v", entries)
	}
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "archiver.log")
	l := newLogger("info", path)
	l.Info("hello file")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log = %q", data)
	}
}

func TestInstallConfigGeneratesToken(t *testing.T) {
	a, b := installConfig(), installConfig()
	if a.Server.Token == "" {
		t.Fatal("expected a control token")
	}
	if a.Server.Token == b.Server.Token {
		t.Error("expected a fresh token per install")
	}
	if err := config.Validate(a); err != nil {
		t.Errorf("install config invalid: %v", err)
	}
}
