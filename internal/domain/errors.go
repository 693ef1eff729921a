package domain

import "errors"

var (
	// ErrNoMessages means the page held no chat messages. It is a no-op signal, not a failure.
	ErrNoMessages = errors.New("no chat messages found")
	// ErrDownloadFailed wraps failures reported by a Downloader.
	ErrDownloadFailed = errors.New("download failed")
	// ErrUnrecognizedContext means a control request was made outside the chat host page.
	ErrUnrecognizedContext = errors.New("not on the chat host page")
	ErrUnknownAction       = errors.New("unknown action")
	ErrInvalidInterval     = errors.New("interval must be a positive number of minutes that fits a duration")
)
