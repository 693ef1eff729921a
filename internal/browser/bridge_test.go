package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
)

func TestSelectTarget_PrefersChatHost(t *testing.T) {
	targets := []*target.Info{
		{TargetID: "sw", Type: "service_worker", URL: "https://claude.ai/sw.js"},
		{TargetID: "news", Type: "page", URL: "https://news.example.com/"},
		{TargetID: "chat", Type: "page", URL: "https://claude.ai/chat/42"},
	}

	got := selectTarget(targets, "claude.ai")
	if got == nil || got.TargetID != "chat" {
		t.Fatalf("expected chat tab, got %+v", got)
	}
}

func TestSelectTarget_IgnoresOtherSites(t *testing.T) {
	targets := []*target.Info{
		{TargetID: "tools", Type: "page", URL: "devtools://devtools/inspector.html"},
		nil,
		{TargetID: "bank", Type: "page", URL: "https://bank.example.com/account"},
		{TargetID: "lookalike", Type: "page", URL: "https://evil.com/?claude.ai"},
	}

	if got := selectTarget(targets, "claude.ai"); got != nil {
		t.Fatalf("expected no tab off the chat host, got %+v", got)
	}
}

func TestSelectTarget_NoPages(t *testing.T) {
	targets := []*target.Info{{TargetID: "bg", Type: "background_page", URL: "chrome-extension://x/bg.html"}}
	if got := selectTarget(targets, "claude.ai"); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestNewBridge_Defaults(t *testing.T) {
	b := NewBridge(BridgeConfig{ProfileDir: t.TempDir()})

	if b.pageURL != "https://claude.ai/" {
		t.Errorf("unexpected page URL %q", b.pageURL)
	}
	if b.timeout != defaultTimeout || b.settle != defaultSettle {
		t.Errorf("unexpected timings %v %v", b.timeout, b.settle)
	}
	if b.logger == nil {
		t.Error("logger should default")
	}
}

func TestNewBridge_NegativeSettleDisablesWait(t *testing.T) {
	b := NewBridge(BridgeConfig{ProfileDir: t.TempDir(), Settle: -time.Second})
	if b.settle != 0 {
		t.Errorf("expected no settle wait, got %v", b.settle)
	}
}

func TestActiveURL_LaunchModeUsesPageURL(t *testing.T) {
	b := NewBridge(BridgeConfig{ProfileDir: t.TempDir(), PageURL: "https://claude.ai/chat/7"})

	got, err := b.ActiveURL(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://claude.ai/chat/7" {
		t.Errorf("got %q", got)
	}
}
