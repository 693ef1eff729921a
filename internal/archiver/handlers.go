package archiver

import (
	"context"
	"fmt"

	"chatarchiver/internal/bus"
	"chatarchiver/internal/domain"
)

// Register installs the control-message handlers on r.
func (a *Archiver) Register(r *bus.Router) {
	r.Handle(domain.ActionSaveChat, a.handleSaveChat)
	r.Handle(domain.ActionToggleAutoSave, a.handleToggleAutoSave)
	r.Handle(domain.ActionGetChatPreview, a.handleGetChatPreview)
	r.Handle(domain.ActionDownloadFile, a.handleDownloadFile)
}

// handleSaveChat acknowledges the request regardless of the save result.
// An empty format uses the configured one.
func (a *Archiver) handleSaveChat(ctx context.Context, req domain.Request) (domain.Response, error) {
	format, err := a.requestFormat(ctx, req.Format)
	if err != nil {
		a.logger.Warn("save using default format", "err", err)
	}
	a.SaveCurrentChat(ctx, format)
	return domain.Response{Success: true}, nil
}

func (a *Archiver) handleToggleAutoSave(ctx context.Context, req domain.Request) (domain.Response, error) {
	if err := a.ToggleAutoSave(ctx, req.Enabled, req.Interval); err != nil {
		return domain.Response{}, fmt.Errorf("toggle auto-save: %w", err)
	}
	return domain.Response{Success: true}, nil
}

func (a *Archiver) handleGetChatPreview(ctx context.Context, req domain.Request) (domain.Response, error) {
	return domain.Response{Success: true, Preview: a.ChatPreview(ctx)}, nil
}

// handleDownloadFile always reports success; failures go to the log and events.
func (a *Archiver) handleDownloadFile(ctx context.Context, req domain.Request) (domain.Response, error) {
	_ = a.download(ctx, req.Filename, req.Content)
	return domain.Response{Success: true}, nil
}

func (a *Archiver) requestFormat(ctx context.Context, raw string) (domain.FormatKind, error) {
	if raw != "" {
		return domain.ParseFormat(raw), nil
	}
	s, err := a.settings.Load(ctx)
	if err != nil {
		return domain.FormatMarkdown, err
	}
	return s.Format, nil
}
