// Package archiver ties extraction, formatting, download and the autosave
// schedule together. One Archiver is built at startup and handed to every
// control-message handler.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatarchiver/internal/autosave"
	"chatarchiver/internal/bus"
	"chatarchiver/internal/domain"
	"chatarchiver/internal/extractor"
	"chatarchiver/internal/formatter"
	"chatarchiver/internal/metrics"
	"chatarchiver/internal/page"
	"chatarchiver/internal/settings"
)

const eventSource = "archiver"

// Status is the result class of a save attempt.
type Status string

const (
	StatusSaved   Status = "saved"
	StatusEmpty   Status = "empty"
	StatusIgnored Status = "ignored" // the page is not on the chat host
	StatusFailed  Status = "failed"
)

// SaveOutcome describes one save attempt. Err is nil only for StatusSaved:
// ErrNoMessages for StatusEmpty, ErrUnrecognizedContext for StatusIgnored.
type SaveOutcome struct {
	Status   Status `json:"status"`
	Filename string `json:"filename,omitempty"`
	Messages int    `json:"messages"`
	Err      error  `json:"-"`
}

// Config wires an Archiver. Only Source and Downloader are required; HostPattern
// defaults to page.DefaultHostPattern.
type Config struct {
	Source      page.Source
	HostPattern string
	Extractor   *extractor.Extractor
	Downloader  domain.Downloader
	Settings    domain.SettingsStore
	Events      *bus.EventBus
	Now         func() time.Time
	NewTicker   autosave.TickerFunc
	Logger      *slog.Logger
}

// Archiver is the explicit context shared by every save trigger.
type Archiver struct {
	source      page.Source
	hostPattern string
	extractor   *extractor.Extractor
	downloader  domain.Downloader
	settings    domain.SettingsStore
	events      *bus.EventBus
	now         func() time.Time
	logger      *slog.Logger
	timer       *autosave.Timer
}

// New creates an Archiver with a stopped autosave timer. Call Init to restore
// the persisted schedule.
func New(cfg Config) *Archiver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extractor.New(extractor.Config{Now: cfg.Now, Logger: cfg.Logger})
	}
	if cfg.Events == nil {
		cfg.Events = bus.NewEventBus(cfg.Logger)
	}
	if cfg.Settings == nil {
		cfg.Settings = settings.NewMemoryStore()
	}
	if cfg.HostPattern == "" {
		cfg.HostPattern = page.DefaultHostPattern
	}

	a := &Archiver{
		source:      cfg.Source,
		hostPattern: cfg.HostPattern,
		extractor:   cfg.Extractor,
		downloader:  cfg.Downloader,
		settings:    cfg.Settings,
		events:      cfg.Events,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
	a.timer = autosave.New(autosave.Config{
		Fire:      a.autoSave,
		NewTicker: cfg.NewTicker,
		Logger:    cfg.Logger,
	})
	return a
}

// Events returns the bus the archiver reports on.
func (a *Archiver) Events() *bus.EventBus { return a.events }

// Init derives the autosave state from persisted settings.
func (a *Archiver) Init(ctx context.Context) error {
	s, err := a.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !s.AutoSave {
		a.logger.Info("auto-save disabled at startup")
		return nil
	}
	if err := a.timer.Start(s.IntervalMinutes); err != nil {
		return err
	}
	a.autoSaveStarted(s.IntervalMinutes)
	return nil
}

// SaveCurrentChat extracts, formats and downloads the current chat. Failures are
// logged and reported through the outcome and events, never returned.
func (a *Archiver) SaveCurrentChat(ctx context.Context, format domain.FormatKind) SaveOutcome {
	start := time.Now()
	outcome := a.save(ctx, format)

	switch outcome.Status {
	case StatusSaved:
		metrics.SavesTotal.Inc()
		metrics.SaveLatency.Observe(time.Since(start).Seconds())
		a.emit(bus.EventChatSaved, map[string]any{"filename": outcome.Filename, "messages": outcome.Messages, "format": string(format)})
	case StatusEmpty:
		metrics.EmptySavesTotal.Inc()
		a.emit(bus.EventChatEmpty, nil)
	case StatusIgnored:
		metrics.IgnoredSavesTotal.Inc()
		a.emit(bus.EventChatIgnored, map[string]any{"error": outcome.Err.Error()})
	case StatusFailed:
		metrics.FailedSavesTotal.Inc()
		a.emit(bus.EventChatSaveFailed, map[string]any{"error": outcome.Err.Error()})
	}
	return outcome
}

func (a *Archiver) save(ctx context.Context, format domain.FormatKind) SaveOutcome {
	transcript, err := a.transcript(ctx)
	if errors.Is(err, domain.ErrUnrecognizedContext) {
		a.logger.Warn("save ignored outside the chat page", "err", err)
		return SaveOutcome{Status: StatusIgnored, Err: err}
	}
	if err != nil {
		a.logger.Error("error saving chat", "err", err)
		return SaveOutcome{Status: StatusFailed, Err: err}
	}

	a.logger.Info("found messages", "count", len(transcript))
	metrics.MessagesExtracted.Add(int64(len(transcript)))
	if transcript.Empty() {
		a.logger.Info("no chat messages found to save")
		return SaveOutcome{Status: StatusEmpty, Err: domain.ErrNoMessages}
	}

	now := a.now()
	doc, err := formatter.Format(transcript, format, now)
	if err != nil {
		a.logger.Error("error saving chat", "err", err)
		return SaveOutcome{Status: StatusFailed, Messages: len(transcript), Err: err}
	}
	filename := formatter.Filename(format, now)

	if err := a.download(ctx, filename, doc.Body); err != nil {
		return SaveOutcome{Status: StatusFailed, Filename: filename, Messages: len(transcript), Err: err}
	}

	a.logger.Info("chat saved", "filename", filename, "messages", len(transcript))
	return SaveOutcome{Status: StatusSaved, Filename: filename, Messages: len(transcript)}
}

func (a *Archiver) transcript(ctx context.Context) (domain.Transcript, error) {
	if a.source == nil {
		return nil, fmt.Errorf("no page source configured")
	}
	p, err := a.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}
	// An empty URL is a local snapshot with no origin to check.
	if p.URL != "" && !page.HostMatches(p.URL, a.hostPattern) {
		return nil, fmt.Errorf("%w: %s is not on %s", domain.ErrUnrecognizedContext, p.URL, a.hostPattern)
	}
	return a.extractor.Extract(p.Doc), nil
}

// download hands content to the adapter and reports the result on the side channel.
func (a *Archiver) download(ctx context.Context, filename, content string) error {
	if a.downloader == nil {
		return fmt.Errorf("%w: no downloader configured", domain.ErrDownloadFailed)
	}
	if err := a.downloader.Download(ctx, filename, content); err != nil {
		a.logger.Error("download failed", "filename", filename, "err", err)
		metrics.DownloadFailures.Inc()
		a.emit(bus.EventDownloadFailed, map[string]any{"filename": filename, "error": err.Error()})
		return err
	}
	a.emit(bus.EventDownloadCompleted, map[string]any{"filename": filename, "bytes": len(content)})
	return nil
}

// ChatPreview summarises the last messages of the current chat.
func (a *Archiver) ChatPreview(ctx context.Context) string {
	transcript, err := a.transcript(ctx)
	if err != nil {
		a.logger.Warn("chat preview unavailable", "err", err)
	}
	return formatter.Preview(transcript)
}

// ToggleAutoSave starts or stops the schedule and persists the choice. An
// interval of 0 keeps the stored interval.
func (a *Archiver) ToggleAutoSave(ctx context.Context, enabled bool, interval int) error {
	if !enabled {
		a.timer.Stop()
		a.autoSaveStopped()
		off := false
		if err := a.settings.Update(ctx, domain.SettingsPatch{AutoSave: &off}); err != nil {
			return fmt.Errorf("persist auto-save setting: %w", err)
		}
		return nil
	}

	if interval == 0 {
		s, err := a.settings.Load(ctx)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		interval = s.IntervalMinutes
	}
	if err := a.timer.Start(interval); err != nil {
		return err
	}

	on := true
	if err := a.settings.Update(ctx, domain.SettingsPatch{AutoSave: &on, IntervalMinutes: &interval}); err != nil {
		a.timer.Stop()
		return fmt.Errorf("persist auto-save setting: %w", err)
	}
	a.autoSaveStarted(interval)
	return nil
}

// autoSave runs on every tick with the format configured at that moment.
func (a *Archiver) autoSave(ctx context.Context) {
	format := domain.FormatMarkdown
	if s, err := a.settings.Load(ctx); err != nil {
		a.logger.Warn("auto-save using default format", "err", err)
	} else {
		format = s.Format
	}
	a.SaveCurrentChat(ctx, format)
}

func (a *Archiver) autoSaveStarted(interval int) {
	metrics.AutoSaveRunning.SetBool(true)
	a.emit(bus.EventAutoSaveStarted, map[string]any{"intervalMinutes": interval})
}

func (a *Archiver) autoSaveStopped() {
	metrics.AutoSaveRunning.SetBool(false)
	a.emit(bus.EventAutoSaveStopped, nil)
}

func (a *Archiver) emit(eventType string, payload map[string]any) {
	a.events.Emit(bus.Event{Type: eventType, Source: eventSource, Payload: payload})
}

// State reports the autosave schedule.
func (a *Archiver) State() autosave.State { return a.timer.State() }

// Close stops the schedule. Settings are left untouched so the next start resumes it.
func (a *Archiver) Close() {
	a.timer.Stop()
	metrics.AutoSaveRunning.SetBool(false)
}
