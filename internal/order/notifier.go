package order

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/models"
)

// activityPayload is the body posted by WebhookNotifier
type activityPayload struct {
	OrderID int                `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
	SentAt  time.Time          `json:"sentAt"`
}

// Webhook delivery defaults
const (
	DefaultWebhookAttempts   = 3
	DefaultWebhookRetryDelay = 500 * time.Millisecond
)

// WebhookNotifier posts every applied order change to a URL, standing in for
// a platform live activity. Failed deliveries are retried; every attempt of
// one change carries the same X-Request-ID.
type WebhookNotifier struct {
	url         string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
}

// WebhookOption configures a WebhookNotifier
type WebhookOption func(*WebhookNotifier)

// WithWebhookRetries sets the attempts per change and the delay between them
func WithWebhookRetries(maxAttempts int, retryDelay time.Duration) WebhookOption {
	return func(n *WebhookNotifier) {
		if maxAttempts > 0 {
			n.maxAttempts = maxAttempts
		}
		if retryDelay >= 0 {
			n.retryDelay = retryDelay
		}
	}
}

// NewWebhookNotifier creates a notifier posting to url
func NewWebhookNotifier(url string, httpClient *http.Client, opts ...WebhookOption) *WebhookNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: notifyTimeout}
	}
	n := &WebhookNotifier{
		url:         url,
		httpClient:  httpClient,
		maxAttempts: DefaultWebhookAttempts,
		retryDelay:  DefaultWebhookRetryDelay,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify implements interfaces.ActivityNotifier
func (n *WebhookNotifier) Notify(ctx context.Context, orderID int, status models.OrderStatus) error {
	body, err := json.Marshal(activityPayload{OrderID: orderID, Status: status, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}
	requestID := uuid.NewString()

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		lastErr = n.deliver(ctx, body, requestID)
		if lastErr == nil {
			return nil
		}
		if attempt == n.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("activity webhook gave up after %d attempts: %w", attempt, lastErr)
		case <-time.After(n.retryDelay):
		}
	}
	return fmt.Errorf("activity webhook gave up after %d attempts: %w", n.maxAttempts, lastErr)
}

func (n *WebhookNotifier) deliver(ctx context.Context, body []byte, requestID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create activity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("activity webhook unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("activity webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NotifierFunc adapts a function to interfaces.ActivityNotifier
type NotifierFunc func(ctx context.Context, orderID int, status models.OrderStatus) error

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, orderID int, status models.OrderStatus) error {
	return f(ctx, orderID, status)
}

// MultiNotifier fans a change out to every notifier. Each one is called even
// when an earlier one fails; the failures are joined.
type MultiNotifier []interfaces.ActivityNotifier

// Notify implements interfaces.ActivityNotifier
func (m MultiNotifier) Notify(ctx context.Context, orderID int, status models.OrderStatus) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, orderID, status); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
