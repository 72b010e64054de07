// Package interfaces defines the contracts between the DeliHood client
// components so each can be constructed explicitly and replaced in tests.
package interfaces

import (
	"context"
	"time"

	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/realtime"
)

// Profile is one backend environment the client can talk to.
type Profile struct {
	Name            string          `yaml:"name"`
	BaseURL         string          `yaml:"base_url"`
	RealtimeURL     string          `yaml:"realtime_url"`
	RequestTimeout  time.Duration   `yaml:"request_timeout"`
	PollInterval    time.Duration   `yaml:"poll_interval"`
	Reconnect       ReconnectConfig `yaml:"reconnect"`
	OrderingPolicy  string          `yaml:"ordering_policy"` // "ordered" or "last_write_wins"
	ActivityWebhook string          `yaml:"activity_webhook,omitempty"`
	Theme           string          `yaml:"theme"`
}

// ReconnectConfig is the realtime reconnection policy. MaxAttempts 0 retries
// forever.
type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// LogSettings is the logging section of the config file.
type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ConfigManager handles profile loading and persistence
type ConfigManager interface {
	// LoadProfile retrieves a profile by name, with defaults and environment
	// overrides applied
	LoadProfile(name string) (*Profile, error)

	// SaveProfile persists a profile to the configuration file
	SaveProfile(profile *Profile) error

	// ListProfiles returns all available profile names
	ListProfiles() ([]string, error)

	// LogSettings returns the logging section
	LogSettings() (LogSettings, error)

	// GetConfigPath returns the path to the configuration file
	GetConfigPath() string
}

// TokenStore persists the credential pair. Save writes both tokens as one
// record; Clear removes both.
type TokenStore interface {
	Save(creds models.Credentials) error
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	Clear() error
}

// OrderAPI is the slice of the backend the order state machine needs.
type OrderAPI interface {
	// OrderUpdate fetches the status of the caller's current order
	OrderUpdate(ctx context.Context) (*OrderUpdate, error)

	// NewOrder places an order and returns its payment intent
	NewOrder(ctx context.Context, order *models.Order) (*PaymentIntent, error)

	// CancelOrder cancels the order with the given server id
	CancelOrder(ctx context.Context, orderID int) error
}

// OrderUpdate is the body of GET /api/order/update.
type OrderUpdate struct {
	OrderID int                `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
}

// PaymentIntent is returned when an order is placed or its payment fetched.
type PaymentIntent struct {
	ClientSecret string `json:"clientSecret"`
	OrderID      int    `json:"orderId"`
}

// RealtimeChannel is the push connection to the backend.
type RealtimeChannel interface {
	// Connect starts the connection; a no-op when already started
	Connect(ctx context.Context)

	// Disconnect closes the connection, keeping registered handlers
	Disconnect()

	// On registers the handler for an event, replacing any previous one
	On(name realtime.EventName, handler realtime.Handler)

	// Off clears the handler for an event
	Off(name realtime.EventName)

	// SendOrderDelivered emits orderDelivered without waiting for an ack
	SendOrderDelivered(orderID int, extra map[string]any)

	// State returns the current connection state
	State() realtime.ConnState
}

// ActivityNotifier receives every applied order mutation, the way a platform
// live activity would. Errors never roll back the mutation.
type ActivityNotifier interface {
	Notify(ctx context.Context, orderID int, status models.OrderStatus) error
}

// SessionAPI is the slice of the backend the login and account screens need.
type SessionAPI interface {
	// Login exchanges credentials for a token pair and stores it
	Login(ctx context.Context, email, password string) error

	// Logout clears the stored tokens and tells the backend, best effort
	Logout(ctx context.Context) error

	// Me returns the signed-in user
	Me(ctx context.Context) (*models.User, error)
}

// OrderInspector fetches the raw order document shown by the inspector.
type OrderInspector interface {
	OrderDetailRaw(ctx context.Context, orderID int) ([]byte, error)
}
