package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/models"
)

// refreshKey is the single-flight key; one refresh runs per client at a time.
const refreshKey = "refresh"

// refreshTimeout bounds one token exchange
const refreshTimeout = DefaultRequestTimeout

// Refresh exchanges the stored refresh token for a new pair. Concurrent
// callers share one in-flight exchange.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refresh(ctx)
}

func (c *Client) refresh(ctx context.Context) error {
	// The exchange is detached from the caller that started it: joined
	// callers get its result even when that caller is cancelled.
	results := c.refreshes.DoChan(refreshKey, func() (any, error) {
		exchangeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		startTime := time.Now()
		err := c.exchangeRefreshToken(exchangeCtx)
		c.logger.LogRefresh(err, time.Since(startTime))
		if err == nil {
			c.stats.refresh()
		}
		return nil, err
	})

	select {
	case result := <-results:
		if result.Shared {
			c.logger.Debug("Joined in-flight token refresh")
		}
		return result.Err
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.KindNetwork, "refresh", ctx.Err())
	}
}

// exchangeRefreshToken posts the refresh token and persists the new pair. The
// token store is only written after a complete pair has been decoded.
func (c *Client) exchangeRefreshToken(ctx context.Context) error {
	const op = "refresh"

	refreshToken, ok := c.tokens.RefreshToken()
	if !ok || refreshToken == "" {
		return apperrors.Wrap(apperrors.KindCannotRefresh, op, fmt.Errorf("no refresh token stored"))
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return apperrors.Wrap(apperrors.KindCannotRefresh, op, err)
	}

	resp, err := c.Raw(ctx, Request{
		Method:      http.MethodPost,
		Path:        EndpointRefresh,
		Body:        payload,
		ContentType: "application/json",
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindCannotRefresh, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.Status(apperrors.KindCannotRefresh, op, resp.StatusCode)
	}

	var creds models.Credentials
	if err := json.Unmarshal(resp.Body, &creds); err != nil {
		return apperrors.Wrap(apperrors.KindCannotRefresh, op, fmt.Errorf("failed to decode token pair: %w", err))
	}
	if !creds.Complete() {
		return apperrors.Wrap(apperrors.KindCannotRefresh, op, fmt.Errorf("refresh response is missing a token"))
	}

	if err := c.tokens.Save(creds); err != nil {
		return apperrors.Wrap(apperrors.KindPersistFailed, op, err)
	}
	return nil
}
