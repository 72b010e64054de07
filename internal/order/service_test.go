package order

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/realtime"
)

// fakeAPI serves OrderUpdate replies from a queue
type fakeAPI struct {
	mutex     sync.Mutex
	updates   []interfaces.OrderUpdate
	delays    []time.Duration
	updateErr error
	placed    []*models.Order
	cancelled []int
	cancelErr error
	nextID    int
}

func (f *fakeAPI) OrderUpdate(ctx context.Context) (*interfaces.OrderUpdate, error) {
	f.mutex.Lock()
	if f.updateErr != nil {
		f.mutex.Unlock()
		return nil, f.updateErr
	}
	reply := f.updates[0]
	f.updates = f.updates[1:]
	var delay time.Duration
	if len(f.delays) > 0 {
		delay = f.delays[0]
		f.delays = f.delays[1:]
	}
	f.mutex.Unlock()

	time.Sleep(delay)
	return &reply, nil
}

func (f *fakeAPI) NewOrder(ctx context.Context, order *models.Order) (*interfaces.PaymentIntent, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.placed = append(f.placed, order)
	return &interfaces.PaymentIntent{ClientSecret: "pi_secret", OrderID: f.nextID}, nil
}

func (f *fakeAPI) CancelOrder(ctx context.Context, orderID int) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

// recordingNotifier keeps every pair it is handed
type recordingNotifier struct {
	mutex sync.Mutex
	calls []interfaces.OrderUpdate
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, orderID int, status models.OrderStatus) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.calls = append(r.calls, interfaces.OrderUpdate{OrderID: orderID, Status: status})
	return r.err
}

func (r *recordingNotifier) received() []interfaces.OrderUpdate {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]interfaces.OrderUpdate(nil), r.calls...)
}

// fakeChannel is an in-memory realtime channel
type fakeChannel struct {
	mutex     sync.Mutex
	handlers  map[realtime.EventName]realtime.Handler
	connected bool
	sent      []map[string]any
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[realtime.EventName]realtime.Handler)}
}

func (c *fakeChannel) Connect(ctx context.Context) {
	c.mutex.Lock()
	c.connected = true
	c.mutex.Unlock()
}

func (c *fakeChannel) Disconnect() {
	c.mutex.Lock()
	c.connected = false
	c.mutex.Unlock()
}

func (c *fakeChannel) On(name realtime.EventName, handler realtime.Handler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.handlers[name] = handler
}

func (c *fakeChannel) Off(name realtime.EventName) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.handlers, name)
}

func (c *fakeChannel) SendOrderDelivered(orderID int, extra map[string]any) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	payload := map[string]any{"orderId": orderID}
	for k, v := range extra {
		payload[k] = v
	}
	c.sent = append(c.sent, payload)
}

func (c *fakeChannel) State() realtime.ConnState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.connected {
		return realtime.Connected
	}
	return realtime.Disconnected
}

func (c *fakeChannel) fire(event realtime.Event) bool {
	c.mutex.Lock()
	handler := c.handlers[event.Name()]
	c.mutex.Unlock()
	if handler == nil {
		return false
	}
	handler(event)
	return true
}

func newTestService(t *testing.T, api interfaces.OrderAPI, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithServiceLogger(logging.Discard())}, opts...)
	return NewService(api, newTestStore(t), opts...)
}

func pushed(name realtime.EventName, orderID int) realtime.Event {
	frame := realtime.Frame{Event: name}
	if orderID != 0 {
		frame.Data = []byte(`{"orderId":` + strconv.Itoa(orderID) + `}`)
	}
	event, err := realtime.Decode(frame, time.Now())
	if err != nil {
		panic(err)
	}
	return event
}

// --- Pushed transitions ---

func TestFoodPickupIsIdempotent(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	api := &fakeAPI{updates: []interfaces.OrderUpdate{{OrderID: 4, Status: models.StatusWaitingForPickup}}}
	svc := newTestService(t, api, WithNotifier(notifier))

	_, err := svc.UpdateStatus(ctx)
	require.NoError(t, err)

	result, err := svc.ApplyPushedTransition(ctx, pushed(realtime.FoodPickup, 4))
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, models.StatusDelivering, result.Snapshot.Status())

	result, err = svc.ApplyPushedTransition(ctx, pushed(realtime.FoodPickup, 4))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.False(t, result.Changed)
	assert.Equal(t, models.StatusDelivering, result.Snapshot.Status())

	assert.Equal(t, []interfaces.OrderUpdate{
		{OrderID: 4, Status: models.StatusWaitingForPickup},
		{OrderID: 4, Status: models.StatusDelivering},
	}, notifier.received())
}

func TestPushedEventMapping(t *testing.T) {
	tests := []struct {
		event realtime.EventName
		want  models.OrderStatus
	}{
		{realtime.OrderAccepted, models.StatusAccepted},
		{realtime.OrderReady, models.StatusWaitingForPickup},
		{realtime.FoodPickup, models.StatusDelivering},
		{realtime.DropoffReady, models.StatusDropoffReady},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			api := &fakeAPI{updates: []interfaces.OrderUpdate{{OrderID: 1, Status: models.StatusPaid}}}
			svc := newTestService(t, api)
			_, err := svc.UpdateStatus(context.Background())
			require.NoError(t, err)

			result, err := svc.ApplyPushedTransition(context.Background(), pushed(tt.event, 0))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Snapshot.Status())
		})
	}

	_, ok := StatusForEvent(realtime.DriverLocation)
	assert.False(t, ok)
}

func TestNonStatusEventIsRefused(t *testing.T) {
	svc := newTestService(t, &fakeAPI{})
	event, err := realtime.Decode(realtime.Frame{Event: realtime.OrderAcceptedError, Data: []byte(`"x"`)}, time.Now())
	require.NoError(t, err)

	_, err = svc.ApplyPushedTransition(context.Background(), event)
	assert.Error(t, err)
}

// --- Polling ---

func TestUpdateStatusReplacesIDAndStatus(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{updates: []interfaces.OrderUpdate{
		{OrderID: 4, Status: models.StatusAccepted},
		{OrderID: 5, Status: models.StatusPaid},
	}}
	svc := newTestService(t, api)

	result, err := svc.UpdateStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Snapshot.Order.ServerID)

	result, err = svc.UpdateStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Snapshot.Order.ServerID)
	assert.Equal(t, models.StatusPaid, result.Snapshot.Status())
}

func TestUpdateStatusSurfacesFailure(t *testing.T) {
	api := &fakeAPI{updateErr: apperrors.New(apperrors.KindRefreshExhausted, "GET /api/order/update")}
	svc := newTestService(t, api)

	_, err := svc.UpdateStatus(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrRefreshExhausted)

	snap, err := svc.Store().Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.HasOrder())
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	api := &fakeAPI{updates: []interfaces.OrderUpdate{{OrderID: 4, Status: models.OrderStatus("teleported")}}}
	svc := newTestService(t, api)

	_, err := svc.UpdateStatus(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDecodeFailure)
}

func TestConcurrentUpdateStatus(t *testing.T) {
	responses := []interfaces.OrderUpdate{
		{OrderID: 4, Status: models.StatusAccepted},
		{OrderID: 9, Status: models.StatusDelivering},
	}
	api := &fakeAPI{
		updates: append([]interfaces.OrderUpdate(nil), responses...),
		delays:  []time.Duration{30 * time.Millisecond, 0},
	}
	svc := newTestService(t, api)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			results[i], err = svc.UpdateStatus(context.Background())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := svc.Store().Snapshot(context.Background())
	require.NoError(t, err)
	final := interfaces.OrderUpdate{OrderID: snap.Order.ServerID, Status: snap.Status()}
	assert.Contains(t, responses, final)
	assert.Equal(t, responses[0], final, "slow response arrived last")
}

// --- Notifications ---

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{err: stderrors.New("widget gone")}
	api := &fakeAPI{updates: []interfaces.OrderUpdate{{OrderID: 4, Status: models.StatusAccepted}}}
	svc := newTestService(t, api, WithNotifier(notifier))

	result, err := svc.UpdateStatus(ctx)
	require.NoError(t, err)
	assert.True(t, result.Changed)

	snap, err := svc.Store().Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, snap.Status())
	assert.Len(t, notifier.received(), 1)
}

func TestRejectedUpdateIsNotNotified(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	api := &fakeAPI{updates: []interfaces.OrderUpdate{{OrderID: 4, Status: models.StatusDelivered}}}
	svc := newTestService(t, api, WithNotifier(notifier))

	_, err := svc.UpdateStatus(ctx)
	require.NoError(t, err)

	result, err := svc.ApplyPushedTransition(ctx, pushed(realtime.OrderReady, 4))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Len(t, notifier.received(), 1)
}

// --- Placing and cancelling ---

func TestPlaceOrderBecomesCurrentOrder(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	api := &fakeAPI{nextID: 31}
	svc := newTestService(t, api, WithNotifier(notifier))

	order := &models.Order{
		CookID: 2,
		Items:  []models.Item{{FoodID: 1, Name: "Svickova", Quantity: 2, Price: decimal.RequireFromString("129.50")}},
	}
	intent, err := svc.PlaceOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, "pi_secret", intent.ClientSecret)

	snap, err := svc.Store().Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 31, snap.Order.ServerID)
	assert.Equal(t, models.StatusPaid, snap.Status())
	assert.True(t, snap.Order.Total().Equal(decimal.RequireFromString("259")))
	assert.Zero(t, order.ServerID, "caller's order is not modified")
	assert.Equal(t, []interfaces.OrderUpdate{{OrderID: 31, Status: models.StatusPaid}}, notifier.received())
}

func TestPlaceOrderRequiresItems(t *testing.T) {
	svc := newTestService(t, &fakeAPI{})
	_, err := svc.PlaceOrder(context.Background(), &models.Order{CookID: 1})
	assert.Error(t, err)
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{updates: []interfaces.OrderUpdate{{OrderID: 4, Status: models.StatusAccepted}}}
	svc := newTestService(t, api)

	_, err := svc.CancelOrder(ctx)
	assert.Error(t, err, "nothing to cancel")

	_, err = svc.UpdateStatus(ctx)
	require.NoError(t, err)

	result, err := svc.CancelOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, result.Snapshot.Status())
	assert.Equal(t, []int{4}, api.cancelled)

	_, err = svc.CancelOrder(ctx)
	assert.Error(t, err, "already cancelled")
}

func TestCancelOrderServerFailureKeepsStatus(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		updates:   []interfaces.OrderUpdate{{OrderID: 4, Status: models.StatusAccepted}},
		cancelErr: apperrors.Application("POST /api/order/cancel", "too late"),
	}
	svc := newTestService(t, api)
	_, err := svc.UpdateStatus(ctx)
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx)
	assert.ErrorIs(t, err, apperrors.ErrApplication)

	snap, err := svc.Store().Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, snap.Status())
}

func TestConfirmDeliveredSendsOnly(t *testing.T) {
	ctx := context.Background()
	channel := newFakeChannel()
	api := &fakeAPI{updates: []interfaces.OrderUpdate{{OrderID: 4, Status: models.StatusDropoffReady}}}
	svc := newTestService(t, api, WithChannel(channel))

	assert.Error(t, svc.ConfirmDelivered(ctx, nil))

	_, err := svc.UpdateStatus(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmDelivered(ctx, map[string]any{"rating": 5}))

	assert.Equal(t, []map[string]any{{"orderId": 4, "rating": 5}}, channel.sent)
	snap, err := svc.Store().Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDropoffReady, snap.Status())
}
