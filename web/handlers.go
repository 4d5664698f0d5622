package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"hotscribe/sink"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS registers the connection as a sink for as long as the peer stays
// connected. Incoming messages are read and discarded.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws := sink.NewWebSocket(conn)
	s.track(ws)
	h := s.d.Register(ws)
	defer func() {
		s.d.Unregister(h)
		s.untrack(ws)
		ws.Close()
		conn.Close()
	}()

	conn.SetReadLimit(4096)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			ws.MarkClosed()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
	}
}

type HealthResponse struct {
	Status        string `json:"status"`
	State         string `json:"state"`
	Sinks         int    `json:"sinks"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if s.state != nil {
		state = s.state()
	}
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		State:         state,
		Sinks:         s.d.Len(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
