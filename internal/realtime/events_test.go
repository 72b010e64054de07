package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	at := time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		event   EventName
		data    string
		wantErr bool
		check   func(t *testing.T, e Event)
	}{
		{
			name:  "status event with object payload",
			event: FoodPickup,
			data:  `{"orderId":42}`,
			check: func(t *testing.T, e Event) {
				se := e.(StatusEvent)
				assert.Equal(t, FoodPickup, se.Name())
				assert.Equal(t, 42, se.OrderID)
				assert.Equal(t, at, se.ReceivedAt())
			},
		},
		{
			name:  "status event with bare id",
			event: OrderAccepted,
			data:  `"17"`,
			check: func(t *testing.T, e Event) {
				assert.Equal(t, 17, e.(StatusEvent).OrderID)
			},
		},
		{
			name:  "status event without payload",
			event: OrderReady,
			check: func(t *testing.T, e Event) {
				assert.Zero(t, e.(StatusEvent).OrderID)
			},
		},
		{
			name:    "status event with wrong shape",
			event:   DropoffReady,
			data:    `[1,2]`,
			wantErr: true,
		},
		{
			name:  "error event with message",
			event: OrderAcceptedError,
			data:  `{"orderId":3,"error":"cook is offline"}`,
			check: func(t *testing.T, e Event) {
				ee := e.(ErrorEvent)
				assert.Equal(t, 3, ee.OrderID)
				assert.Equal(t, "cook is offline", ee.Message)
			},
		},
		{
			name:  "error event with plain string",
			event: OrderDeliveredError,
			data:  `"order not found"`,
			check: func(t *testing.T, e Event) {
				assert.Equal(t, "order not found", e.(ErrorEvent).Message)
			},
		},
		{
			name:  "driver location",
			event: DriverLocation,
			data:  `{"locationLat":50.08,"locationLng":14.42,"orderId":3}`,
			check: func(t *testing.T, e Event) {
				loc := e.(LocationEvent).Location
				assert.Equal(t, 50.08, loc.Lat)
				assert.Equal(t, 14.42, loc.Lng)
				assert.Equal(t, 3, loc.OrderID)
				assert.Equal(t, at, loc.ReceivedAt)
			},
		},
		{
			name:  "driver location with non-numeric order id",
			event: DriverLocation,
			data:  `{"locationLat":50.1,"locationLng":14.4,"orderId":"ord-7"}`,
			check: func(t *testing.T, e Event) {
				loc := e.(LocationEvent).Location
				assert.Equal(t, 50.1, loc.Lat)
				assert.Equal(t, 14.4, loc.Lng)
				assert.Zero(t, loc.OrderID)
			},
		},
		{
			name:  "driver location with numeric string order id",
			event: DriverLocation,
			data:  `{"locationLat":50.1,"locationLng":14.4,"orderId":"9"}`,
			check: func(t *testing.T, e Event) {
				assert.Equal(t, 9, e.(LocationEvent).Location.OrderID)
			},
		},
		{
			name:  "driver location with null order id",
			event: DriverLocation,
			data:  `{"locationLat":50.1,"locationLng":14.4,"orderId":null}`,
			check: func(t *testing.T, e Event) {
				assert.Zero(t, e.(LocationEvent).Location.OrderID)
			},
		},
		{"driver location missing lat", DriverLocation, `{"locationLng":14.42}`, true, nil},
		{"driver location missing lng", DriverLocation, `{"locationLat":50.08}`, true, nil},
		{"driver location string coords", DriverLocation, `{"locationLat":"50","locationLng":"14"}`, true, nil},
		{"driver location out of range", DriverLocation, `{"locationLat":95,"locationLng":14.42}`, true, nil},
		{"unknown event", EventName("orderTeleported"), `{}`, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Frame{Event: tt.event}
			if tt.data != "" {
				frame.Data = json.RawMessage(tt.data)
			}
			event, err := Decode(frame, at)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, event)
		})
	}
}

func TestKnownEvents(t *testing.T) {
	assert.True(t, OrderAccepted.Known())
	assert.True(t, DriverLocation.Known())
	assert.False(t, OrderDelivered.Known())
	assert.False(t, EventName("nope").Known())
}
