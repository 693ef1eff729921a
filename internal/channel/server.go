package channel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"chatarchiver/internal/autosave"
	"chatarchiver/internal/bus"
	"chatarchiver/internal/domain"
)

const (
	maxBodySize     = 4 << 20 // downloadFile carries whole transcripts
	requestTimeout  = 2 * time.Minute
	recentEvents    = 20
	shutdownTimeout = 5 * time.Second
)

// Server exposes the control-message router over HTTP and WebSocket.
type Server struct {
	host    string
	port    int
	token   string
	sender  domain.Sender
	events  *bus.EventBus
	state   func() autosave.State
	metrics http.Handler
	logger  *slog.Logger
	server  *http.Server
}

type ServerConfig struct {
	Host    string
	Port    int
	Token   string // optional bearer token required on every endpoint but /metrics
	Sender  domain.Sender
	Events  *bus.EventBus
	State   func() autosave.State
	Metrics http.Handler
	Logger  *slog.Logger
}

// StatusReport is the body of GET /status.
type StatusReport struct {
	AutoSave    autosave.State `json:"autoSave"`
	Events      []bus.Event    `json:"events"`
	HistoryLen  int            `json:"historyLen"`
	Subscribers int            `json:"subscribers"` // websocket clients receiving pushed events
}

// NewServer creates a control server, defaulting to 127.0.0.1:8765.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8765
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.State == nil {
		cfg.State = func() autosave.State { return autosave.State{} }
	}
	return &Server{
		host:    cfg.Host,
		port:    cfg.Port,
		token:   cfg.Token,
		sender:  cfg.Sender,
		events:  cfg.Events,
		state:   cfg.State,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

func (s *Server) Addr() string { return fmt.Sprintf("%s:%d", s.host, s.port) }

// Handler returns the routes without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/messages", s.requireToken(s.handleMessage))
	mux.HandleFunc("GET /status", s.requireToken(s.handleStatus))
	mux.HandleFunc("GET /ws", s.requireToken(s.handleWebSocket))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("control server started", "addr", "http://"+s.Addr(), "auth", s.token != "")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("control server: %w", err)
	}
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next(rw, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" {
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeJSON(rw, http.StatusUnauthorized, domain.Response{Error: "unauthorized"})
			return
		}
		next(rw, r)
	}
}

// handleMessage only accepts application/json bodies.
func (s *Server) handleMessage(rw http.ResponseWriter, r *http.Request) {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeJSON(rw, http.StatusUnsupportedMediaType, domain.Response{Error: "content type must be application/json"})
		return
	}

	var req domain.Request
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(rw, http.StatusBadRequest, domain.Response{Error: "invalid request body"})
		return
	}
	if req.Action == "" {
		writeJSON(rw, http.StatusBadRequest, domain.Response{ID: req.ID, Error: "action is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := s.dispatch(ctx, req)
	writeJSON(rw, statusFor(err), resp)
}

// dispatch sends req and folds any error into the response.
func (s *Server) dispatch(ctx context.Context, req domain.Request) (domain.Response, error) {
	if s.sender == nil {
		return domain.Response{ID: req.ID, Error: "no router"}, errors.New("no router")
	}
	resp, err := s.sender.Send(ctx, req)
	if err != nil {
		s.logger.Warn("control request failed", "action", req.Action, "id", resp.ID, "err", err)
		if resp.Error == "" {
			resp.Error = err.Error()
		}
		resp.Success = false
	}
	return resp, err
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidInterval):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleStatus reports the autosave state and the newest events, or every
// recorded event since ?since=<RFC 3339 time>.
func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, domain.Response{Error: "since must be an RFC 3339 time"})
			return
		}
		since = t
	}

	report := StatusReport{AutoSave: s.state(), Events: []bus.Event{}}
	if s.events != nil {
		if since.IsZero() {
			report.Events = s.events.Recent(recentEvents)
		} else if replayed := s.events.Replay("*", since); replayed != nil {
			report.Events = replayed
		}
		report.HistoryLen = s.events.HistoryLen()
		report.Subscribers = s.events.SubscriberCount("*")
	}
	writeJSON(rw, http.StatusOK, report)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}
