package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"chatarchiver/internal/domain"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("router closed")

// Handler answers one control request.
type Handler func(ctx context.Context, req domain.Request) (domain.Response, error)

// Router dispatches control messages to the handler registered for their action.
// It is the in-process transport between the UI panel, the archiver and the
// download adapter.
type Router struct {
	handlers map[string]Handler
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Handle registers h for action, replacing any previous handler.
func (r *Router) Handle(action string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// Actions lists the registered actions.
func (r *Router) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for a := range r.handlers {
		out = append(out, a)
	}
	return out
}

// Send routes req and waits for the handler. A request without an ID gets one;
// the response always carries the request ID.
func (r *Router) Send(ctx context.Context, req domain.Request) (resp domain.Response, err error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	r.mu.RLock()
	closed := r.closed
	h, ok := r.handlers[req.Action]
	r.mu.RUnlock()

	if closed {
		return domain.Response{ID: req.ID}, ErrClosed
	}
	if !ok {
		r.logger.Warn("no handler registered for action", "action", req.Action, "id", req.ID)
		return domain.Response{ID: req.ID, Error: domain.ErrUnknownAction.Error()},
			fmt.Errorf("%w: %q", domain.ErrUnknownAction, req.Action)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("control handler panic", "action", req.Action, "id", req.ID, "panic", p)
			err = fmt.Errorf("handler %s panicked: %v", req.Action, p)
			resp = domain.Response{ID: req.ID, Error: err.Error()}
		}
	}()

	resp, err = h(ctx, req)
	resp.ID = req.ID
	if err != nil && resp.Error == "" {
		resp.Error = err.Error()
	}
	return resp, err
}

// Close rejects further requests.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
