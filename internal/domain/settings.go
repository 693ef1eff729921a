package domain

import (
	"context"
	"math"
	"time"
)

// Persisted settings keys.
const (
	KeyAutoSave = "autoSave"
	KeyInterval = "interval"
	KeyFormat   = "format"
)

const DefaultIntervalMinutes = 10

// MaxIntervalMinutes is the longest interval a time.Duration can hold.
const MaxIntervalMinutes = int(math.MaxInt64 / int64(time.Minute))

// ValidInterval reports whether minutes can drive the autosave schedule.
func ValidInterval(minutes int) bool {
	return minutes > 0 && minutes <= MaxIntervalMinutes
}

// Settings is the user configuration that survives restarts.
type Settings struct {
	AutoSave        bool       `json:"autoSave"`
	IntervalMinutes int        `json:"interval"`
	Format          FormatKind `json:"format"`
}

// DefaultSettings returns the first-run settings.
func DefaultSettings() Settings {
	return Settings{
		AutoSave:        false,
		IntervalMinutes: DefaultIntervalMinutes,
		Format:          FormatMarkdown,
	}
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	AutoSave        *bool
	IntervalMinutes *int
	Format          *FormatKind
}

// Apply returns s with the non-nil fields of p written over it.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.AutoSave != nil {
		s.AutoSave = *p.AutoSave
	}
	if p.IntervalMinutes != nil {
		s.IntervalMinutes = *p.IntervalMinutes
	}
	if p.Format != nil {
		s.Format = *p.Format
	}
	return s
}

// SettingsStore persists Settings. Load fills missing keys from DefaultSettings.
type SettingsStore interface {
	Load(ctx context.Context) (Settings, error)
	Update(ctx context.Context, patch SettingsPatch) error
	Close() error
}
