package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("loading orders: %w", Status(KindUnexpectedResponse, "GET /api/me/orders", 500))

	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.NotErrorIs(t, err, ErrDecodeFailure)
	assert.Equal(t, KindUnexpectedResponse, KindOf(err))
	assert.Contains(t, err.Error(), "status 500")
}

func TestIsMatchesApplicationMessage(t *testing.T) {
	err := Application("POST /api/change/phone", "phone is invalid")

	assert.ErrorIs(t, err, ErrApplication)
	assert.ErrorIs(t, err, &Error{Kind: KindApplicationError, Message: "phone is invalid"})
	assert.NotErrorIs(t, err, &Error{Kind: KindApplicationError, Message: "other"})
	assert.Equal(t, "phone is invalid", MessageOf(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(KindNetwork, "GET /api/me", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "GET /api/me: network: connection refused", err.Error())
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
	assert.Empty(t, MessageOf(nil))
}

// --- Alerts ---

func TestEveryKindHasAlert(t *testing.T) {
	kinds := []Kind{
		KindMissingCredentials, KindRefreshExhausted, KindCannotRefresh, KindPersistFailed,
		KindEmailNotVerified, KindDuplicateValue, KindUnexpectedResponse, KindApplicationError,
		KindWrongPasswordOrEmail, KindUserAlreadyExists, KindDecodeFailure, KindNetwork,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			alert := AlertFor(New(kind, "op"))
			assert.NotEmpty(t, alert.Title)
			assert.NotEmpty(t, alert.Message)
		})
	}
}

func TestAlertFallback(t *testing.T) {
	assert.Equal(t, CannotGetData, AlertFor(stderrors.New("boom")))
	assert.Equal(t, CannotGetData, AlertFor(New(KindDecodeFailure, "op")))
	assert.Equal(t, Alert{}, AlertFor(nil))
	assert.Equal(t, "Wrong password or email", AlertFor(ErrWrongPasswordOrEmail).Title)
}

// --- Backoff ---

func TestBackoff(t *testing.T) {
	assert.Zero(t, NoBackoff(3))
	assert.Equal(t, time.Second, ConstantBackoff(time.Second)(5))

	exp := ExponentialBackoff(100*time.Millisecond, 2, 300*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, exp(1))
	assert.Equal(t, 200*time.Millisecond, exp(2))
	assert.Equal(t, 300*time.Millisecond, exp(3))
	assert.Equal(t, 300*time.Millisecond, exp(6))
}

func TestWaitHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.ErrorIs(t, Wait(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, Wait(context.Background(), time.Millisecond))
}
