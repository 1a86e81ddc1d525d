package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// newWSServer runs a websocket endpoint that hands every accepted connection
// to the test over a channel.
func newWSServer(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- ws
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func acceptConn(t *testing.T, conns chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-conns:
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("no connection arrived")
		return nil
	}
}

func newTestConn(srv *httptest.Server) *Conn {
	c := NewConn(wsURL(srv), zerolog.Nop())
	c.RetryDelay = 50 * time.Millisecond
	c.Initialize(func(string, json.RawMessage) {}, nil)
	return c
}

func TestConn_AnnouncesPresenceOnConnect(t *testing.T) {
	srv, conns := newWSServer(t)
	c := newTestConn(srv)
	defer c.Close()

	if err := c.Connect("u1"); err != nil {
		t.Fatal(err)
	}
	ws := acceptConn(t, conns)

	var env envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Event != EventJoin {
		t.Fatalf("first event = %q, want %q", env.Event, EventJoin)
	}
	var userID string
	if err := json.Unmarshal(env.Data, &userID); err != nil || userID != "u1" {
		t.Errorf("join payload = %s, want \"u1\"", env.Data)
	}
	if c.Status() != StatusConnected {
		t.Errorf("status = %s, want connected", c.Status())
	}
}

func TestConn_ConnectIsIdempotentWhileOpen(t *testing.T) {
	srv, conns := newWSServer(t)
	c := newTestConn(srv)
	defer c.Close()

	if err := c.Connect("u1"); err != nil {
		t.Fatal(err)
	}
	acceptConn(t, conns)

	if err := c.Connect("u1"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-conns:
		t.Error("second Connect dialed again while already connected")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConn_ReconnectsAfterAbnormalDisconnect(t *testing.T) {
	srv, conns := newWSServer(t)
	c := newTestConn(srv)
	defer c.Close()

	if err := c.Connect("u1"); err != nil {
		t.Fatal(err)
	}
	ws := acceptConn(t, conns)

	// drop the TCP connection without a close frame: a network-level loss
	_ = ws.UnderlyingConn().Close()

	redial := acceptConn(t, conns)
	var env envelope
	if err := redial.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Event != EventJoin {
		t.Errorf("reconnect did not re-announce presence, first event = %q", env.Event)
	}
}

func TestConn_NoReconnectAfterDeliberateServerClose(t *testing.T) {
	srv, conns := newWSServer(t)
	c := newTestConn(srv)
	defer c.Close()

	if err := c.Connect("u1"); err != nil {
		t.Fatal(err)
	}
	ws := acceptConn(t, conns)

	// a proper close handshake is a deliberate disconnect
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))

	select {
	case <-conns:
		t.Error("client reconnected after a deliberate server close")
	case <-time.After(300 * time.Millisecond):
	}
	if c.Status() != StatusDisconnected {
		t.Errorf("status = %s, want disconnected", c.Status())
	}
}

func TestConn_NoReconnectAfterClientClose(t *testing.T) {
	srv, conns := newWSServer(t)
	c := newTestConn(srv)

	if err := c.Connect("u1"); err != nil {
		t.Fatal(err)
	}
	acceptConn(t, conns)

	c.Close()

	select {
	case <-conns:
		t.Error("client reconnected after closing deliberately")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestConn_ReconnectInvokesHook(t *testing.T) {
	srv, conns := newWSServer(t)
	c := NewConn(wsURL(srv), zerolog.Nop())
	c.RetryDelay = 50 * time.Millisecond
	hooked := make(chan struct{}, 4)
	c.Initialize(func(string, json.RawMessage) {}, func() { hooked <- struct{}{} })
	defer c.Close()

	if err := c.Connect("u1"); err != nil {
		t.Fatal(err)
	}
	ws := acceptConn(t, conns)

	select {
	case <-hooked:
		t.Fatal("hook ran on the initial connect; the session resyncs that one itself")
	case <-time.After(100 * time.Millisecond):
	}

	_ = ws.UnderlyingConn().Close()
	acceptConn(t, conns)

	select {
	case <-hooked:
	case <-time.After(2 * time.Second):
		t.Fatal("hook did not run after reconnect")
	}
}

func TestConn_InitializeOnlyOnce(t *testing.T) {
	srv, conns := newWSServer(t)
	got := make(chan string, 1)
	c := NewConn(wsURL(srv), zerolog.Nop())
	c.Initialize(func(event string, _ json.RawMessage) { got <- "first" }, nil)
	c.Initialize(func(event string, _ json.RawMessage) { got <- "second" }, nil)
	defer c.Close()

	if err := c.Connect("u1"); err != nil {
		t.Fatal(err)
	}
	ws := acceptConn(t, conns)
	if err := ws.WriteJSON(envelope{Event: "ping", Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatal(err)
	}

	select {
	case which := <-got:
		if which != "first" {
			t.Errorf("handler from call %s ran, want the first registration", which)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event dispatched")
	}
}

func TestConn_EmitWhileDisconnected(t *testing.T) {
	c := NewConn("ws://127.0.0.1:0", zerolog.Nop())
	c.Initialize(func(string, json.RawMessage) {}, nil)

	if err := c.Emit(EventLeaveRoom, "room-1"); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}
