package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Status is the connection lifecycle state a UI can render.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// EventHandler receives every inbound realtime event.
type EventHandler func(event string, data json.RawMessage)

// Conn owns the one persistent websocket per authenticated session,
// independent of what the UI is doing. Construct it once with NewConn and
// inject it; Initialize is guarded so repeated calls are no-ops.
//
// Disconnect handling: a deliberate close (ours, or a server close frame
// with a normal/going-away code) stays down. Anything else schedules a
// single retry after RetryDelay, bounded at MaxRetries attempts total.
type Conn struct {
	// URL is the websocket endpoint, e.g. ws://host/chat.
	URL string

	// RetryDelay and MaxRetries bound the reconnect policy.
	RetryDelay time.Duration
	MaxRetries int

	log zerolog.Logger

	initOnce  sync.Once
	ready     bool
	handler   EventHandler
	onConnect func()

	mu      sync.Mutex
	ws      *websocket.Conn
	status  Status
	userID  string
	retries int
	closing bool
	timer   *time.Timer
}

func NewConn(url string, log zerolog.Logger) *Conn {
	return &Conn{
		URL:        url,
		RetryDelay: 3 * time.Second,
		MaxRetries: 5,
		log:        log.With().Str("component", "conn").Logger(),
	}
}

// Initialize registers the inbound event handler and the hook invoked after
// every automatic reconnect. It does not connect. Only the first call has
// any effect.
func (c *Conn) Initialize(handler EventHandler, onConnect func()) {
	c.initOnce.Do(func() {
		c.handler = handler
		c.onConnect = onConnect
		c.ready = true
	})
}

// Connect opens the transport if it is not already open and announces
// presence with a join event for userID. A dial failure is non-fatal: the
// error is returned for display and a bounded retry is scheduled.
func (c *Conn) Connect(userID string) error {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return fmt.Errorf("conn not initialized")
	}
	if c.status != StatusDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusConnecting
	c.closing = false
	c.userID = userID
	url := c.URL
	c.mu.Unlock()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		c.mu.Lock()
		c.status = StatusDisconnected
		c.mu.Unlock()
		c.scheduleRetry()
		return fmt.Errorf("%w: dialing %s: %v", ErrNetwork, url, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.status = StatusConnected
	c.retries = 0
	c.mu.Unlock()

	c.log.Info().Str("url", url).Msg("connected")
	if err := c.Emit(EventJoin, userID); err != nil {
		c.log.Warn().Err(err).Msg("presence announce failed")
	}
	go c.readPump(ws)
	return nil
}

// Emit sends one event over the open connection.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", event, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusConnected || c.ws == nil {
		return ErrNotConnected
	}
	if err := c.ws.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrNetwork, event, err)
	}
	return nil
}

// Status returns the current lifecycle state.
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close shuts the connection down deliberately. No reconnect will follow.
func (c *Conn) Close() {
	c.mu.Lock()
	c.closing = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ws := c.ws
	c.ws = nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = ws.Close()
	}
}

func (c *Conn) readPump(ws *websocket.Conn) {
	for {
		var env envelope
		if err := ws.ReadJSON(&env); err != nil {
			c.handleDisconnect(ws, err)
			return
		}
		if c.handler != nil {
			c.handler(env.Event, env.Data)
		}
	}
}

func (c *Conn) handleDisconnect(ws *websocket.Conn, err error) {
	_ = ws.Close()

	c.mu.Lock()
	if c.ws != ws {
		// a Close or reconnect already superseded this pump
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.status = StatusDisconnected
	deliberate := c.closing || websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway)
	c.mu.Unlock()

	if deliberate {
		c.log.Info().Msg("connection closed")
		return
	}
	c.log.Warn().Err(err).Msg("connection lost")
	c.scheduleRetry()
}

// scheduleRetry arms one reconnect attempt per disconnect event. The attempt
// counter is the ceiling; it resets on a successful connect.
func (c *Conn) scheduleRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.timer != nil {
		return
	}
	if c.retries >= c.MaxRetries {
		c.log.Error().Int("attempts", c.retries).Msg("reconnect attempts exhausted")
		return
	}
	c.retries++
	attempt := c.retries
	c.timer = time.AfterFunc(c.RetryDelay, func() {
		c.mu.Lock()
		c.timer = nil
		userID := c.userID
		c.mu.Unlock()

		c.log.Info().Int("attempt", attempt).Msg("reconnecting")
		if err := c.Connect(userID); err != nil {
			c.log.Warn().Err(err).Msg("reconnect failed")
			return
		}
		if c.onConnect != nil {
			c.onConnect()
		}
	})
}
