package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hotscribe/dispatch"
	"hotscribe/transcript"
)

const writeWait = 5 * time.Second

// WebSocket pushes results to one connected browser as
// {"text", "language", "confidence"} JSON messages.
type WebSocket struct {
	conn *websocket.Conn
	addr string

	mu     sync.Mutex
	closed bool
}

func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn, addr: conn.RemoteAddr().String()}
}

func (s *WebSocket) Name() string { return "ws:" + s.addr }

func (s *WebSocket) Deliver(ctx context.Context, r transcript.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %s", dispatch.ErrDisconnected, s.addr)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteJSON(r.Message()); err != nil {
		s.closed = true
		s.conn.Close()
		return fmt.Errorf("%w: %v", dispatch.ErrDisconnected, err)
	}
	return nil
}

// Close sends a close frame and shuts the connection. Later deliveries
// report the sink as disconnected.
func (s *WebSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

// MarkClosed records that the peer went away without touching the
// connection.
func (s *WebSocket) MarkClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
