package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPaid, StatusAccepted, true},
		{StatusAccepted, StatusDelivering, true},
		{StatusDelivering, StatusDelivering, true},
		{StatusDelivering, StatusAccepted, false},
		{StatusDropoffReady, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPaid, false},
		{StatusCancelled, StatusCancelled, true},
		{StatusPaid, OrderStatus("lost"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestLifecycle(t *testing.T) {
	states := Lifecycle()
	require.Len(t, states, 6)
	assert.Equal(t, StatusPaid, states[0])
	assert.Equal(t, StatusDelivered, states[5])

	states[0] = StatusCancelled
	assert.Equal(t, StatusPaid, Lifecycle()[0])

	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.False(t, StatusDropoffReady.Terminal())
	assert.Equal(t, -1, StatusCancelled.Rank())
}

func TestStatusDecoding(t *testing.T) {
	var order Order
	require.NoError(t, json.Unmarshal([]byte(`{"serverId":3,"status":"waitingForPickup","items":[]}`), &order))
	assert.Equal(t, StatusWaitingForPickup, order.Status)

	err := json.Unmarshal([]byte(`{"status":"preparing"}`), &order)
	assert.Error(t, err)
}

func TestOrderTotalAndClone(t *testing.T) {
	order := &Order{
		ServerID: 1,
		Items: []Item{
			{FoodID: 1, Quantity: 2, Price: decimal.RequireFromString("99.90")},
			{FoodID: 2, Quantity: 1, Price: decimal.RequireFromString("45")},
		},
		Address: &Address{Street: "Vodickova 1", City: "Praha"},
	}
	assert.True(t, order.Total().Equal(decimal.RequireFromString("244.80")))

	clone := order.Clone()
	clone.Items[0].Quantity = 10
	clone.Address.City = "Brno"
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "Praha", order.Address.City)

	var nilOrder *Order
	assert.Nil(t, nilOrder.Clone())
}

func TestCredentialsComplete(t *testing.T) {
	assert.True(t, Credentials{AccessToken: "a", RefreshToken: "r"}.Complete())
	assert.False(t, Credentials{AccessToken: "a"}.Complete())
}
