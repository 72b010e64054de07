// Package models holds the DeliHood domain types shared by the protocol client,
// the order state machine and the terminal UI.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Credentials is the access/refresh token pair issued by the backend.
// Both tokens are present or both are absent.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both tokens are set.
func (c Credentials) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// User is the signed-in account as returned by /api/me.
type User struct {
	ID        int     `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	ImageURL  *string `json:"image_url,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// Food is a single dish offered by a cook.
type Food struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
}

// Cook is a home cook listed on the main screen.
type Cook struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Foods       []Food `json:"foods"`
}

// Item is one line of an order.
type Item struct {
	FoodID   int             `json:"foodId"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Notes    string          `json:"notes,omitempty"`
}

// Subtotal returns price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Address is the drop-off location attached to a new order.
type Address struct {
	Street string  `json:"street"`
	City   string  `json:"city"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// Order is the client-side view of the current order.
type Order struct {
	ServerID int         `json:"serverId,omitempty"`
	CookID   int         `json:"cookId"`
	Status   OrderStatus `json:"status,omitempty"`
	Items    []Item      `json:"items"`
	Address  *Address    `json:"address,omitempty"`
}

// Total sums the item subtotals.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Clone returns a deep copy so snapshots never share item slices.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	if o.Address != nil {
		addr := *o.Address
		c.Address = &addr
	}
	return &c
}

// OrderHistory is a past or present order as listed by /api/me/orders.
type OrderHistory struct {
	ID        int             `json:"id"`
	CookID    int             `json:"cookId"`
	CookName  string          `json:"cookName"`
	Status    OrderStatus     `json:"status"`
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DriverLocation is the last known courier position for an order.
type DriverLocation struct {
	OrderID    int       `json:"orderId"`
	Lat        float64   `json:"locationLat"`
	Lng        float64   `json:"locationLng"`
	ReceivedAt time.Time `json:"-"`
}

// EditField names an account field that can be changed via /api/change/{field}.
type EditField string

const (
	EditUsername EditField = "username"
	EditEmail    EditField = "email"
	EditPhone    EditField = "phone"
)
