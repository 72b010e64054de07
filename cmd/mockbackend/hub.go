package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/realtime"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	sendBuffer    = 16
	deliveryTicks = 3
)

// cookLocation is where simulated drivers start from
var cookLocation = models.DriverLocation{Lat: 52.5163, Lng: 13.3777}

type wsClient struct {
	userID int
	conn   *websocket.Conn
	send   chan realtime.Frame
}

// hub tracks the websocket connections of each user
type hub struct {
	backend  *Backend
	upgrader websocket.Upgrader
	mutex    sync.Mutex
	clients  map[int]map[*wsClient]struct{}
	logger   *logging.Logger
}

func newHub(backend *Backend, logger *logging.Logger) *hub {
	return &hub{
		backend: backend,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[int]map[*wsClient]struct{}),
		logger:  logger,
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{userID: userIDFrom(r), conn: conn, send: make(chan realtime.Frame, sendBuffer)}
	h.register(client)
	h.logger.Info("Realtime client connected", "user_id", client.userID)

	go h.writePump(client)
	h.readPump(client)
}

func (h *hub) register(c *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*wsClient]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

func (h *hub) unregister(c *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c.userID][c]; ok {
		delete(h.clients[c.userID], c)
		close(c.send)
	}
}

// push sends a frame to every connection of userID. Slow clients lose frames.
func (h *hub) push(userID int, event realtime.EventName, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to encode push", "event", string(event), "error", err)
		return
	}
	frame := realtime.Frame{Event: event, Data: data}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("Dropping push for slow client", "event", string(event), "user_id", userID)
		}
	}
}

// connected reports how many connections userID has open
func (h *hub) connected(userID int) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients[userID])
}

func (h *hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		h.logger.Info("Realtime client disconnected", "user_id", c.userID)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame realtime.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Event != realtime.OrderDelivered {
			h.logger.Debug("Ignoring client frame", "event", string(frame.Event))
			continue
		}

		var payload struct {
			OrderID int `json:"orderId"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			h.push(c.userID, realtime.OrderDeliveredError, map[string]string{"error": "orderId is required"})
			continue
		}
		if err := h.backend.ConfirmDelivered(c.userID, payload.OrderID); err != nil {
			h.push(c.userID, realtime.OrderDeliveredError, map[string]any{"orderId": payload.OrderID, "error": err.Error()})
		}
	}
}

func (h *hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type pendingPush struct {
	userID  int
	event   realtime.EventName
	payload any
}

// Advance moves every current order one step along its lifecycle and pushes
// the matching events. A delivering order reports driver positions for a
// few steps before the driver arrives.
func (b *Backend) Advance() {
	var pushes []pendingPush

	b.mutex.Lock()
	for userID, orderID := range b.current {
		o := b.orders[orderID]
		if o == nil {
			continue
		}
		orderRef := map[string]int{"orderId": o.ID}

		switch o.Status {
		case models.StatusPaid:
			b.setStatus(o, models.StatusAccepted)
			pushes = append(pushes, pendingPush{userID, realtime.OrderAccepted, orderRef})
		case models.StatusAccepted:
			b.setStatus(o, models.StatusWaitingForPickup)
			pushes = append(pushes, pendingPush{userID, realtime.OrderReady, orderRef})
		case models.StatusWaitingForPickup:
			b.setStatus(o, models.StatusDelivering)
			o.deliveryTicks = 0
			pushes = append(pushes, pendingPush{userID, realtime.FoodPickup, orderRef})
		case models.StatusDelivering:
			o.deliveryTicks++
			pushes = append(pushes, pendingPush{userID, realtime.DriverLocation, driverPosition(o)})
			if o.deliveryTicks >= deliveryTicks {
				b.setStatus(o, models.StatusDropoffReady)
				pushes = append(pushes, pendingPush{userID, realtime.DropoffReady, orderRef})
			}
		}
	}
	b.mutex.Unlock()

	for _, p := range pushes {
		b.hub.push(p.userID, p.event, p.payload)
	}
}

// driverPosition interpolates between the cook and the drop-off address
func driverPosition(o *mockOrder) models.DriverLocation {
	progress := float64(o.deliveryTicks) / deliveryTicks
	if progress > 1 {
		progress = 1
	}
	return models.DriverLocation{
		OrderID: o.ID,
		Lat:     cookLocation.Lat + (o.address.Lat-cookLocation.Lat)*progress,
		Lng:     cookLocation.Lng + (o.address.Lng-cookLocation.Lng)*progress,
	}
}

// ConfirmDelivered completes an order the driver has brought to the door
func (b *Backend) ConfirmDelivered(userID, orderID int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	o, ok := b.orders[orderID]
	if !ok || !b.ownedBy(o, userID) {
		return errNoOrder
	}
	switch o.Status {
	case models.StatusDelivering, models.StatusDropoffReady:
		b.setStatus(o, models.StatusDelivered)
		return nil
	default:
		return errNotArrived
	}
}

// Simulate advances the orders every step until ctx ends
func (b *Backend) Simulate(ctx context.Context, step time.Duration) {
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Advance()
		}
	}
}
