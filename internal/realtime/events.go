// Package realtime maintains the push connection to the DeliHood backend and
// dispatches its named events to registered handlers.
package realtime

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/delihood/client/internal/models"
)

// EventName identifies a frame on the realtime channel
type EventName string

// Inbound events
const (
	OrderAccepted       EventName = "orderAccepted"
	OrderAcceptedError  EventName = "orderAcceptedError"
	OrderReady          EventName = "orderReady"
	FoodPickup          EventName = "foodPickup"
	DriverLocation      EventName = "driverLocation"
	DropoffReady        EventName = "dropoffReady"
	OrderDeliveredError EventName = "orderDeliveredError"
)

// Outbound events
const (
	OrderDelivered EventName = "orderDelivered"
)

var inbound = map[EventName]bool{
	OrderAccepted:       true,
	OrderAcceptedError:  true,
	OrderReady:          true,
	FoodPickup:          true,
	DriverLocation:      true,
	DropoffReady:        true,
	OrderDeliveredError: true,
}

// Known reports whether name is one of the inbound events
func (n EventName) Known() bool {
	return inbound[n]
}

// Frame is the wire shape of every message in both directions
type Frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a decoded inbound payload. The concrete type is fixed by the
// event name.
type Event interface {
	Name() EventName
	ReceivedAt() time.Time
}

type received struct {
	at time.Time
}

func (r received) ReceivedAt() time.Time { return r.at }

// StatusEvent carries one of the lifecycle pushes: orderAccepted, orderReady,
// foodPickup or dropoffReady.
type StatusEvent struct {
	received
	Event   EventName
	OrderID int
}

func (e StatusEvent) Name() EventName { return e.Event }

// ErrorEvent carries orderAcceptedError or orderDeliveredError
type ErrorEvent struct {
	received
	Event   EventName
	OrderID int
	Message string
}

func (e ErrorEvent) Name() EventName { return e.Event }

// LocationEvent carries a driverLocation update
type LocationEvent struct {
	received
	Location models.DriverLocation
}

func (e LocationEvent) Name() EventName { return DriverLocation }

// flexibleID accepts an order id sent as a number or a numeric string
type flexibleID int

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexibleID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("order id must be a number or numeric string")
	}
	parsed, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("order id must be numeric: %w", err)
	}
	*f = flexibleID(parsed)
	return nil
}

// lenientID is a flexibleID that decodes an unreadable id as 0 instead of
// failing the payload
type lenientID int

func (l *lenientID) UnmarshalJSON(data []byte) error {
	var id flexibleID
	if err := id.UnmarshalJSON(data); err != nil {
		*l = 0
		return nil
	}
	*l = lenientID(id)
	return nil
}

type orderPayload struct {
	OrderID *flexibleID `json:"orderId"`
	ID      *flexibleID `json:"id"`
	Error   string      `json:"error"`
	Message string      `json:"message"`
}

func (p orderPayload) orderID() int {
	switch {
	case p.OrderID != nil:
		return int(*p.OrderID)
	case p.ID != nil:
		return int(*p.ID)
	default:
		return 0
	}
}

type locationPayload struct {
	Lat     *float64    `json:"locationLat"`
	Lng     *float64    `json:"locationLng"`
	OrderID lenientID `json:"orderId"`
}

// Decode validates a frame and returns its typed event. A payload that does
// not fit its event's shape is an error; the channel drops such frames.
func Decode(frame Frame, at time.Time) (Event, error) {
	base := received{at: at}

	switch frame.Event {
	case OrderAccepted, OrderReady, FoodPickup, DropoffReady:
		var p orderPayload
		if err := unmarshalOptional(frame.Data, &p); err != nil {
			return nil, fmt.Errorf("%s: %w", frame.Event, err)
		}
		return StatusEvent{received: base, Event: frame.Event, OrderID: p.orderID()}, nil

	case OrderAcceptedError, OrderDeliveredError:
		var p orderPayload
		if err := unmarshalOptional(frame.Data, &p); err != nil {
			// The error events are informative even without a readable body.
			var text string
			if json.Unmarshal(frame.Data, &text) != nil {
				text = string(frame.Data)
			}
			return ErrorEvent{received: base, Event: frame.Event, Message: text}, nil
		}
		msg := p.Error
		if msg == "" {
			msg = p.Message
		}
		return ErrorEvent{received: base, Event: frame.Event, OrderID: p.orderID(), Message: msg}, nil

	case DriverLocation:
		var p locationPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, fmt.Errorf("driverLocation: %w", err)
		}
		if p.Lat == nil || p.Lng == nil {
			return nil, fmt.Errorf("driverLocation: missing locationLat or locationLng")
		}
		if !validCoordinate(*p.Lat, 90) || !validCoordinate(*p.Lng, 180) {
			return nil, fmt.Errorf("driverLocation: coordinates out of range")
		}
		loc := models.DriverLocation{OrderID: int(p.OrderID), Lat: *p.Lat, Lng: *p.Lng, ReceivedAt: at}
		return LocationEvent{received: base, Location: loc}, nil

	default:
		return nil, fmt.Errorf("unknown event %q", frame.Event)
	}
}

func unmarshalOptional(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	// Some pushes carry a bare order id instead of an object.
	var id flexibleID
	if err := json.Unmarshal(data, &id); err == nil {
		if p, ok := v.(*orderPayload); ok {
			p.OrderID = &id
			return nil
		}
	}
	return json.Unmarshal(data, v)
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}
