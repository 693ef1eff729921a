package channel

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"chatarchiver/internal/bus"
	"chatarchiver/internal/domain"
)

// eventQueueSize bounds the pushed events waiting for a slow client.
const eventQueueSize = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     loopbackOrigin,
}

// loopbackOrigin accepts non-browser clients (no Origin header) and pages served
// from the local machine. Any other web page is refused.
func loopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// EventFrame carries a pushed bus event to clients that asked for ?events=1.
type EventFrame struct {
	Event bus.Event `json:"event"`
}

// handleWebSocket serves control messages over one connection: each text frame
// is a domain.Request answered by a domain.Response frame with the same ID.
func (s *Server) handleWebSocket(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade refused", "origin", r.Header.Get("Origin"), "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxBodySize)
	s.logger.Info("websocket client connected", "remote", r.RemoteAddr)
	defer s.logger.Info("websocket client disconnected", "remote", r.RemoteAddr)

	// A single writer goroutine owns the connection's write side.
	out := make(chan any, eventQueueSize)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	defer func() {
		close(done)
		<-writerDone
	}()
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-done:
				return
			case frame := <-out:
				if err := conn.WriteJSON(frame); err != nil {
					s.logger.Debug("websocket write failed", "err", err)
					conn.Close()
					return
				}
			}
		}
	}()

	if s.events != nil && r.URL.Query().Get("events") == "1" {
		id := s.events.On("*", func(e bus.Event) {
			select {
			case out <- EventFrame{Event: e}:
			case <-done:
			default:
				s.logger.Warn("websocket event dropped", "event", e.Type, "remote", r.RemoteAddr)
			}
		})
		defer s.events.Off("*", id)
	}

	send := func(resp domain.Response) bool {
		select {
		case out <- resp:
			return true
		case <-writerDone:
			return false
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var req domain.Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Warn("invalid websocket message", "err", err)
			if !send(domain.Response{Error: "invalid request body"}) {
				return
			}
			continue
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		resp, _ := s.dispatch(ctx, req)
		cancel()

		if !send(resp) {
			return
		}
	}
}
