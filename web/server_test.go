package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotscribe/dispatch"
	"hotscribe/transcript"
)

func newTestServer(t *testing.T) (*Server, *dispatch.Dispatcher, *httptest.Server) {
	t.Helper()
	d := dispatch.New(time.Second)
	s := NewServer("127.0.0.1:0", d, func() string { return "idle" }, "test", zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		d.Close(time.Second)
	})
	return s, d, ts
}

func waitSinks(t *testing.T, d *dispatch.Dispatcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("sinks = %d, want %d", d.Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestIndexPage(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/ws") {
		t.Errorf("status %d, body %.80q", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" || h.State != "idle" || h.Sinks != 0 || h.Version != "test" {
		t.Errorf("health = %+v", h)
	}
}

func TestMetrics(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "hotscribe_sinks") {
		t.Error("metrics missing hotscribe_sinks")
	}
}

func TestPushChannel(t *testing.T) {
	_, d, ts := newTestServer(t)

	a := dial(t, ts)
	defer a.Close()
	b := dial(t, ts)
	defer b.Close()
	waitSinks(t, d, 2)

	d.Broadcast(transcript.Result{Text: "hello browser", Language: "en", LanguageConfidence: 0.8})

	for _, c := range []*websocket.Conn{a, b} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg transcript.Message
		if err := c.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Text != "hello browser" || msg.Language != "en" || msg.Confidence != 0.8 {
			t.Errorf("message = %+v", msg)
		}
	}
}

func TestPushChannelDisconnectUnregisters(t *testing.T) {
	_, d, ts := newTestServer(t)

	c := dial(t, ts)
	waitSinks(t, d, 1)
	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.Close()
	waitSinks(t, d, 0)

	// broadcasting to nobody is fine
	d.Broadcast(transcript.Result{Text: "after"})
}

func TestShutdownClosesPushConnections(t *testing.T) {
	s, d, ts := newTestServer(t)

	c := dial(t, ts)
	defer c.Close()
	waitSinks(t, d, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Shutdown(ctx)

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read err = %v, want going-away close", err)
	}
}
