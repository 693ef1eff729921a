package domain

import "context"

// Control message actions.
const (
	ActionSaveChat       = "saveChat"
	ActionToggleAutoSave = "toggleAutoSave"
	ActionGetChatPreview = "getChatPreview"
	ActionDownloadFile   = "downloadFile"
)

// Request is a control message. Only the fields relevant to Action are set.
type Request struct {
	ID       string `json:"id,omitempty"`
	Action   string `json:"action"`
	Format   string `json:"format,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
	Interval int    `json:"interval,omitempty"`
	Content  string `json:"content,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Response answers a Request.
type Response struct {
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Preview string `json:"preview,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Sender delivers a control message and waits for its response.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Downloader persists content as a file named filename without prompting.
type Downloader interface {
	Download(ctx context.Context, filename, content string) error
}
