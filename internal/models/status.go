package models

import "fmt"

// OrderStatus is the closed set of lifecycle states of an order.
type OrderStatus string

const (
	StatusPaid             OrderStatus = "paid"
	StatusAccepted         OrderStatus = "accepted"
	StatusWaitingForPickup OrderStatus = "waitingForPickup"
	StatusDelivering       OrderStatus = "delivering"
	StatusDropoffReady     OrderStatus = "dropoffReady"
	StatusDelivered        OrderStatus = "delivered"
	StatusCancelled        OrderStatus = "cancelled"
)

// lifecycle lists the non-cancelled states in order.
var lifecycle = []OrderStatus{
	StatusPaid,
	StatusAccepted,
	StatusWaitingForPickup,
	StatusDelivering,
	StatusDropoffReady,
	StatusDelivered,
}

// Lifecycle returns the forward lifecycle, paid through delivered.
func Lifecycle() []OrderStatus {
	return append([]OrderStatus(nil), lifecycle...)
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	return s == StatusCancelled || s.Rank() >= 0
}

// Rank is the position of s along the lifecycle. Cancelled and unknown
// statuses have rank -1.
func (s OrderStatus) Rank() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether no further transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether moving from s to next follows the lifecycle:
// forward moves (or staying put), and cancelled from any non-terminal state.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return next.Rank() > s.Rank()
}

// UnmarshalText rejects statuses outside the closed set.
func (s *OrderStatus) UnmarshalText(text []byte) error {
	st := OrderStatus(text)
	if !st.Valid() {
		return fmt.Errorf("unknown order status %q", string(text))
	}
	*s = st
	return nil
}

func (s OrderStatus) String() string {
	return string(s)
}
