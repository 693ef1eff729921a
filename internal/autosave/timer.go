// Package autosave runs the periodic save schedule.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatarchiver/internal/domain"
)

// Ticker is the subset of *time.Ticker the timer needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// State is the externally visible timer state. IntervalMinutes is zero when stopped.
type State struct {
	Running         bool `json:"running"`
	IntervalMinutes int  `json:"intervalMinutes,omitempty"`
}

// Config wires a Timer. NewTicker defaults to NewRealTicker.
type Config struct {
	// Fire is called on every tick. Its context is cancelled when the schedule stops.
	Fire      func(ctx context.Context)
	NewTicker TickerFunc
	Logger    *slog.Logger
}

// Timer holds at most one active schedule.
type Timer struct {
	fire      func(ctx context.Context)
	newTicker TickerFunc
	logger    *slog.Logger

	mu       sync.Mutex
	interval int
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a stopped timer.
func New(cfg Config) *Timer {
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewRealTicker
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Fire == nil {
		cfg.Fire = func(context.Context) {}
	}
	return &Timer{
		fire:      cfg.Fire,
		newTicker: cfg.NewTicker,
		logger:    cfg.Logger,
	}
}

// Start replaces any running schedule with one firing every minutes minutes.
// The previous schedule is fully stopped before the new one begins.
func (t *Timer) Start(minutes int) error {
	if !domain.ValidInterval(minutes) {
		return fmt.Errorf("start autosave with %d: %w", minutes, domain.ErrInvalidInterval)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	ticker := t.newTicker(time.Duration(minutes) * time.Minute)
	done := make(chan struct{})

	t.interval = minutes
	t.cancel = cancel
	t.done = done

	go t.loop(ctx, ticker, done)

	t.logger.Info("auto-save started", "interval_minutes", minutes)
	return nil
}

// Stop cancels the schedule and waits for the loop to exit. Stopping a stopped timer is a no-op.
// Stop must not be called from inside Fire.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
	t.interval = 0
	t.logger.Info("auto-save stopped")
}

// State reports whether a schedule is running and its interval.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{Running: t.cancel != nil, IntervalMinutes: t.interval}
}

func (t *Timer) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			t.safeFire(ctx)
		}
	}
}

func (t *Timer) safeFire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("auto-save run panicked", "panic", r)
		}
	}()
	t.fire(ctx)
}
