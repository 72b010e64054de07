package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/logging"
)

// ConnState is the observable connection state of the channel
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Handler receives decoded events on the channel's reader goroutine
type Handler func(Event)

// ReconnectPolicy controls reconnection after a lost or failed connection.
// MaxAttempts 0 retries forever.
type ReconnectPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultReconnectPolicy retries forever every two seconds
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{MaxAttempts: 0, Delay: 2 * time.Second}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Channel is a websocket connection to the backend's realtime endpoint
type Channel struct {
	url         string
	dialer      *websocket.Dialer
	policy      ReconnectPolicy
	tokenSource func() (string, bool)
	logger      *logging.Logger

	mutex       sync.Mutex
	handlers    map[EventName]Handler
	state       ConnState
	conn        *websocket.Conn
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers map[int]chan ConnState
	nextSubID   int

	writeMutex sync.Mutex
}

// Option customizes a Channel
type Option func(*Channel)

// WithReconnectPolicy sets the reconnection policy
func WithReconnectPolicy(policy ReconnectPolicy) Option {
	return func(c *Channel) { c.policy = policy }
}

// WithTokenSource sends the current access token as a bearer header when
// dialing
func WithTokenSource(source func() (string, bool)) Option {
	return func(c *Channel) { c.tokenSource = source }
}

// WithDialer replaces the websocket dialer
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = dialer }
}

// WithLogger sets the channel logger
func WithLogger(logger *logging.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// NewChannel creates a channel for url. Nothing is dialed until Connect.
func NewChannel(url string, opts ...Option) *Channel {
	c := &Channel{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		},
		policy:      DefaultReconnectPolicy(),
		logger:      logging.GetRealtimeLogger(),
		handlers:    make(map[EventName]Handler),
		subscribers: make(map[int]chan ConnState),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy.Delay <= 0 {
		c.policy.Delay = DefaultReconnectPolicy().Delay
	}
	return c
}

// Connect starts the connection loop. Calling it while the loop runs is a
// no-op. Failures are never returned; they show up as state changes.
func (c *Channel) Connect(ctx context.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go c.run(runCtx, done)
}

// Disconnect stops the connection loop and waits for it to exit. Handlers
// stay registered. Calling it while disconnected is a no-op.
func (c *Channel) Disconnect() {
	c.mutex.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// On registers handler for name, replacing any previous one
func (c *Channel) On(name EventName, handler Handler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if handler == nil {
		delete(c.handlers, name)
		return
	}
	c.handlers[name] = handler
}

// Off clears the handler for name without touching the connection
func (c *Channel) Off(name EventName) {
	c.On(name, nil)
}

// Active reports whether the connection loop is running. It turns false
// after Disconnect or once the reconnect policy gives up.
func (c *Channel) Active() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cancel != nil
}

// State returns the current connection state
func (c *Channel) State() ConnState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Subscribe returns a channel of state changes and a function that ends the
// subscription. Slow subscribers miss intermediate states.
func (c *Channel) Subscribe() (<-chan ConnState, func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan ConnState, 16)
	c.subscribers[id] = ch

	return ch, func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
}

// SendOrderDelivered emits orderDelivered with extra merged into the payload.
// Nothing waits for an acknowledgment; while disconnected the frame is
// dropped.
func (c *Channel) SendOrderDelivered(orderID int, extra map[string]any) {
	payload := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		payload[k] = v
	}
	payload["orderId"] = orderID

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("Dropping orderDelivered with unencodable payload", "error", err)
		return
	}

	if err := c.write(Frame{Event: OrderDelivered, Data: data}); err != nil {
		c.logger.Debug("orderDelivered not sent", "order_id", orderID, "error", err)
	}
}

func (c *Channel) write(frame Frame) error {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

func (c *Channel) setState(state ConnState, attempt int) {
	c.mutex.Lock()
	if c.state == state {
		c.mutex.Unlock()
		return
	}
	c.state = state
	for _, sub := range c.subscribers {
		select {
		case sub <- state:
		default:
		}
	}
	c.mutex.Unlock()

	c.logger.LogConnectionState(c.url, state.String(), attempt)
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mutex.Lock()
	c.conn = conn
	c.mutex.Unlock()
}

// run dials, reads until the connection drops and redials per policy
func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mutex.Lock()
		if c.done == done {
			c.cancel()
			c.cancel, c.done = nil, nil
		}
		c.mutex.Unlock()
		c.setState(Disconnected, 0)
	}()

	failures := 0
	for {
		c.setState(Connecting, failures)

		conn, err := c.dial(ctx)
		if err == nil {
			failures = 0
			c.setConn(conn)
			c.setState(Connected, 0)
			c.readLoop(ctx, conn)
			c.setConn(nil)
		} else if ctx.Err() == nil {
			c.logger.Debug("Realtime dial failed", "error", err)
		}

		if ctx.Err() != nil {
			return
		}

		c.setState(Disconnected, failures)
		failures++
		if c.policy.MaxAttempts > 0 && failures > c.policy.MaxAttempts {
			c.logger.Warn("Realtime reconnect attempts exhausted", "attempts", c.policy.MaxAttempts)
			return
		}
		if err := apperrors.Wait(ctx, c.policy.Delay); err != nil {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.tokenSource != nil {
		if token, ok := c.tokenSource(); ok {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop dispatches frames until the connection fails or ctx ends
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.writeMutex.Lock()
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				c.writeMutex.Unlock()
				conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				c.writeMutex.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				c.writeMutex.Unlock()
				if err != nil {
					conn.Close()
					return
				}
			}
		}
	}()
	defer func() {
		close(stop)
		conn.Close()
		wg.Wait()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("Realtime connection lost", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatch(message)
	}
}

// dispatch decodes one message and hands it to the registered handler.
// Frames that fail validation are dropped.
func (c *Channel) dispatch(message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.logger.Debug("Dropping unreadable realtime frame", "error", err)
		return
	}

	c.mutex.Lock()
	handler := c.handlers[frame.Event]
	c.mutex.Unlock()

	if handler == nil {
		return
	}

	event, err := Decode(frame, time.Now())
	if err != nil {
		c.logger.Debug("Dropping malformed realtime event", "event", string(frame.Event), "error", err)
		return
	}
	handler(event)
}
