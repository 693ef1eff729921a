// Package panel models the archiver's popup: it mirrors the settings controls,
// checks that the active page is the chat site and reports short status lines.
package panel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatarchiver/internal/domain"
	"chatarchiver/internal/page"
)

// Status lines shown to the user.
const (
	StatusReady             = "Ready"
	StatusSaving            = "Saving..."
	StatusWrongPage         = "Please navigate to Claude.ai first"
	StatusSaved             = "Chat saved!"
	StatusSaveError         = "Error saving chat"
	StatusAutoSaveWrongPage = "Auto-save only works on Claude.ai"
	StatusAutoSaveEnabled   = "Auto-save enabled"
	StatusAutoSaveDisabled  = "Auto-save disabled"
	StatusAutoSaveError     = "Error configuring auto-save"
	StatusChatDetected      = "Chat detected"
)

const defaultStatusTTL = 3 * time.Second

// Config wires a Panel. Sender and Settings are required.
type Config struct {
	Sender      domain.Sender
	Settings    domain.SettingsStore
	ActiveURL   func(ctx context.Context) (string, error)
	HostPattern string
	StatusTTL   time.Duration // how long a status line stays before reverting to Ready
	Now         func() time.Time
	Logger      *slog.Logger
}

// View is what the popup displays.
type View struct {
	AutoSave        bool              `json:"autoSave"`
	IntervalMinutes int               `json:"interval"`
	Format          domain.FormatKind `json:"format"`
	Preview         string            `json:"preview,omitempty"`
	Status          string            `json:"status"`
}

type Panel struct {
	sender      domain.Sender
	settings    domain.SettingsStore
	activeURL   func(ctx context.Context) (string, error)
	hostPattern string
	ttl         time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	autoSave bool
	interval int
	format   domain.FormatKind
	preview  string
	status   string
	statusAt time.Time
}

// New creates a panel showing the Ready status.
func New(cfg Config) *Panel {
	if cfg.HostPattern == "" {
		cfg.HostPattern = page.DefaultHostPattern
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = defaultStatusTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ActiveURL == nil {
		cfg.ActiveURL = func(context.Context) (string, error) { return "", nil }
	}
	def := domain.DefaultSettings()
	return &Panel{
		sender:      cfg.Sender,
		settings:    cfg.Settings,
		activeURL:   cfg.ActiveURL,
		hostPattern: cfg.HostPattern,
		ttl:         cfg.StatusTTL,
		now:         cfg.Now,
		logger:      cfg.Logger,
		interval:    def.IntervalMinutes,
		format:      def.Format,
	}
}

// Open loads the stored settings and, on the chat page, asks for a preview.
func (p *Panel) Open(ctx context.Context) View {
	s, err := p.settings.Load(ctx)
	if err != nil {
		p.logger.Warn("load settings for panel", "err", err)
		s = domain.DefaultSettings()
	}

	p.mu.Lock()
	p.autoSave = s.AutoSave
	p.interval = s.IntervalMinutes
	p.format = s.Format
	p.mu.Unlock()

	if p.onChatPage(ctx) {
		resp, err := p.sender.Send(ctx, domain.Request{Action: domain.ActionGetChatPreview})
		if err == nil && resp.Preview != "" {
			p.mu.Lock()
			p.preview = resp.Preview
			p.mu.Unlock()
			p.setStatus(StatusChatDetected)
		}
	}
	return p.View()
}

// SaveNow asks for the current chat to be saved in the selected format.
func (p *Panel) SaveNow(ctx context.Context) string {
	p.setStatus(StatusSaving)

	if !p.onChatPage(ctx) {
		return p.setStatus(StatusWrongPage)
	}

	_, err := p.sender.Send(ctx, domain.Request{Action: domain.ActionSaveChat, Format: string(p.View().Format)})
	if err != nil {
		p.logger.Error("error saving chat", "err", err)
		return p.setStatus(StatusSaveError)
	}
	return p.setStatus(StatusSaved)
}

// SetAutoSave flips the checkbox. Failures leave it unchecked.
func (p *Panel) SetAutoSave(ctx context.Context, enabled bool) string {
	p.mu.Lock()
	p.autoSave = enabled
	interval := p.interval
	format := p.format
	p.mu.Unlock()

	if !p.onChatPage(ctx) {
		p.uncheck()
		return p.setStatus(StatusAutoSaveWrongPage)
	}

	req := domain.Request{Action: domain.ActionToggleAutoSave, Enabled: enabled, Interval: interval}
	if _, err := p.sender.Send(ctx, req); err != nil {
		p.logger.Error("error toggling auto-save", "err", err)
		p.uncheck()
		return p.setStatus(StatusAutoSaveError)
	}

	patch := domain.SettingsPatch{AutoSave: &enabled, IntervalMinutes: &interval, Format: &format}
	if err := p.settings.Update(ctx, patch); err != nil {
		p.logger.Error("error toggling auto-save", "err", err)
		p.uncheck()
		return p.setStatus(StatusAutoSaveError)
	}

	if enabled {
		return p.setStatus(StatusAutoSaveEnabled)
	}
	return p.setStatus(StatusAutoSaveDisabled)
}

// SetInterval stores the interval and restarts autosave when it is on.
func (p *Panel) SetInterval(ctx context.Context, minutes int) string {
	p.mu.Lock()
	p.interval = minutes
	on := p.autoSave
	p.mu.Unlock()

	if err := p.settings.Update(ctx, domain.SettingsPatch{IntervalMinutes: &minutes}); err != nil {
		p.logger.Warn("store interval", "err", err)
	}
	if on {
		return p.SetAutoSave(ctx, true)
	}
	return p.Status()
}

func (p *Panel) SetFormat(ctx context.Context, format domain.FormatKind) string {
	p.mu.Lock()
	p.format = format
	p.mu.Unlock()

	if err := p.settings.Update(ctx, domain.SettingsPatch{Format: &format}); err != nil {
		p.logger.Warn("store format", "err", err)
	}
	return p.Status()
}

// Status returns the current status line, "Ready" once it has expired.
func (p *Panel) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return View{
		AutoSave:        p.autoSave,
		IntervalMinutes: p.interval,
		Format:          p.format,
		Preview:         p.preview,
		Status:          p.statusLocked(),
	}
}

func (p *Panel) statusLocked() string {
	if p.status == "" || p.now().Sub(p.statusAt) >= p.ttl {
		return StatusReady
	}
	return p.status
}

func (p *Panel) setStatus(s string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
	p.statusAt = p.now()
	return s
}

func (p *Panel) uncheck() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoSave = false
}

func (p *Panel) onChatPage(ctx context.Context) bool {
	url, err := p.activeURL(ctx)
	if err != nil {
		p.logger.Warn("active page unavailable", "err", err)
		return false
	}
	if !page.HostMatches(url, p.hostPattern) {
		p.logger.Debug("control request outside chat page", "url", url, "err", domain.ErrUnrecognizedContext)
		return false
	}
	return true
}
