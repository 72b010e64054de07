package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer accepts websocket clients and hands each connection to the test.
type wsServer struct {
	server   *httptest.Server
	conns    chan *websocket.Conn
	upgrades atomic.Int32
	auth     atomic.Value
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.auth.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.upgrades.Add(1)
		s.conns <- conn
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func send(t *testing.T, conn *websocket.Conn, event EventName, data string) {
	t.Helper()
	frame := Frame{Event: event}
	if data != "" {
		frame.Data = json.RawMessage(data)
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func fastPolicy() Option {
	return WithReconnectPolicy(ReconnectPolicy{Delay: 10 * time.Millisecond})
}

func waitState(t *testing.T, c *Channel, want ConnState) {
	t.Helper()
	assert.Eventually(t, func() bool { return c.State() == want }, 2*time.Second, 5*time.Millisecond)
}

// --- Connection lifecycle ---

func TestConnectIsIdempotent(t *testing.T) {
	s := newWSServer(t)
	c := NewChannel(s.url(), fastPolicy())
	defer c.Disconnect()

	c.Connect(context.Background())
	c.Connect(context.Background())
	s.accept(t)
	waitState(t, c, Connected)

	c.Connect(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, s.upgrades.Load())
}

func TestDisconnectIsIdempotentAndKeepsHandlers(t *testing.T) {
	s := newWSServer(t)
	c := NewChannel(s.url(), fastPolicy())

	events := make(chan Event, 1)
	c.On(OrderAccepted, func(e Event) { events <- e })

	c.Disconnect()
	c.Connect(context.Background())
	s.accept(t)
	waitState(t, c, Connected)

	c.Disconnect()
	c.Disconnect()
	assert.Equal(t, Disconnected, c.State())
	assert.False(t, c.Active())

	c.Connect(context.Background())
	defer c.Disconnect()
	conn := s.accept(t)
	waitState(t, c, Connected)

	send(t, conn, OrderAccepted, `{"orderId":5}`)
	select {
	case e := <-events:
		assert.Equal(t, 5, e.(StatusEvent).OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called after reconnect")
	}
}

func TestReconnectsAfterConnectionLoss(t *testing.T) {
	s := newWSServer(t)
	c := NewChannel(s.url(), fastPolicy())
	defer c.Disconnect()

	states, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Connect(context.Background())
	first := s.accept(t)
	waitState(t, c, Connected)

	first.Close()
	s.accept(t)

	assert.EqualValues(t, 2, s.upgrades.Load())
	waitState(t, c, Connected)

	var seen []ConnState
	for len(states) > 0 {
		seen = append(seen, <-states)
	}
	assert.Contains(t, seen, Disconnected)
	assert.Contains(t, seen, Connected)
}

func TestReconnectPolicyGivesUp(t *testing.T) {
	s := newWSServer(t)
	target := s.url()
	s.server.Close()

	c := NewChannel(target, WithReconnectPolicy(ReconnectPolicy{MaxAttempts: 2, Delay: 5 * time.Millisecond}))
	c.Connect(context.Background())

	assert.Eventually(t, func() bool { return !c.Active() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Disconnected, c.State())
}

func TestDialSendsBearerToken(t *testing.T) {
	s := newWSServer(t)
	c := NewChannel(s.url(), fastPolicy(), WithTokenSource(func() (string, bool) { return "tok", true }))
	defer c.Disconnect()

	c.Connect(context.Background())
	s.accept(t)
	assert.Equal(t, "Bearer tok", s.auth.Load())
}

// --- Handlers ---

func TestOnReplacesAndOffClears(t *testing.T) {
	s := newWSServer(t)
	c := NewChannel(s.url(), fastPolicy())
	defer c.Disconnect()

	var mu sync.Mutex
	var calls []string
	record := func(tag string) Handler {
		return func(Event) {
			mu.Lock()
			calls = append(calls, tag)
			mu.Unlock()
		}
	}
	marker := make(chan struct{}, 4)

	c.On(OrderReady, record("first"))
	c.On(OrderReady, record("second"))
	c.On(DropoffReady, func(Event) { marker <- struct{}{} })

	c.Connect(context.Background())
	conn := s.accept(t)
	waitState(t, c, Connected)

	send(t, conn, OrderReady, `{"orderId":1}`)
	c.Off(OrderReady)
	send(t, conn, OrderReady, `{"orderId":1}`)
	send(t, conn, DropoffReady, `{"orderId":1}`)

	select {
	case <-marker:
	case <-time.After(2 * time.Second):
		t.Fatal("marker event not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, len(calls), 1)
	for _, tag := range calls {
		assert.Equal(t, "second", tag)
	}
}

func TestMalformedDriverLocationIsDropped(t *testing.T) {
	s := newWSServer(t)
	c := NewChannel(s.url(), fastPolicy())
	defer c.Disconnect()

	locations := make(chan LocationEvent, 4)
	c.On(DriverLocation, func(e Event) { locations <- e.(LocationEvent) })

	c.Connect(context.Background())
	conn := s.accept(t)
	waitState(t, c, Connected)

	send(t, conn, DriverLocation, `{"locationLng":14.42,"orderId":3}`)
	send(t, conn, DriverLocation, `"not an object"`)
	send(t, conn, DriverLocation, `{"locationLat":50.08,"locationLng":14.42,"orderId":"3"}`)

	select {
	case loc := <-locations:
		assert.Equal(t, 50.08, loc.Location.Lat)
		assert.Equal(t, 3, loc.Location.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("valid location not delivered")
	}
	assert.Empty(t, locations)
}

// --- Outbound ---

func TestSendOrderDelivered(t *testing.T) {
	s := newWSServer(t)
	c := NewChannel(s.url(), fastPolicy())
	defer c.Disconnect()

	c.SendOrderDelivered(1, nil) // dropped while disconnected

	c.Connect(context.Background())
	conn := s.accept(t)
	waitState(t, c, Connected)

	c.SendOrderDelivered(12, map[string]any{"rating": 5, "orderId": 99})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, OrderDelivered, frame.Event)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.EqualValues(t, 12, payload["orderId"])
	assert.EqualValues(t, 5, payload["rating"])
}
