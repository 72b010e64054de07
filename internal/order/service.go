package order

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/realtime"
)

// notifyTimeout bounds one activity notification
const notifyTimeout = 5 * time.Second

// pushedStatus maps each lifecycle push to its fixed target status
var pushedStatus = map[realtime.EventName]models.OrderStatus{
	realtime.OrderAccepted: models.StatusAccepted,
	realtime.OrderReady:    models.StatusWaitingForPickup,
	realtime.FoodPickup:    models.StatusDelivering,
	realtime.DropoffReady:  models.StatusDropoffReady,
}

// StatusForEvent returns the status a lifecycle push moves the order to
func StatusForEvent(name realtime.EventName) (models.OrderStatus, bool) {
	status, ok := pushedStatus[name]
	return status, ok
}

// Service drives the Store from the backend and the realtime channel and
// forwards applied changes to the activity notifiers.
type Service struct {
	api      interfaces.OrderAPI
	store    *Store
	channel  interfaces.RealtimeChannel
	notifier interfaces.ActivityNotifier
	logger   *logging.Logger
	now      func() time.Time
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// WithChannel sets the realtime channel used by ConfirmDelivered
func WithChannel(channel interfaces.RealtimeChannel) ServiceOption {
	return func(s *Service) { s.channel = channel }
}

// WithNotifier sets the activity notifier. Use MultiNotifier for several.
func WithNotifier(notifier interfaces.ActivityNotifier) ServiceOption {
	return func(s *Service) { s.notifier = notifier }
}

// WithServiceLogger sets the service logger
func WithServiceLogger(logger *logging.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithServiceClock replaces the clock stamping polled and pushed updates
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a service over api and store
func NewService(api interfaces.OrderAPI, store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		api:    api,
		store:  store,
		logger: logging.GetOrderLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store
func (s *Service) Store() *Store {
	return s.store
}

// UpdateStatus polls the backend and applies the result as an authoritative
// update. Transport failures are returned as is.
func (s *Service) UpdateStatus(ctx context.Context) (Result, error) {
	reply, err := s.api.OrderUpdate(ctx)
	if err != nil {
		return Result{}, err
	}
	if !reply.Status.Valid() {
		return Result{}, apperrors.Wrap(apperrors.KindDecodeFailure, "order.UpdateStatus",
			fmt.Errorf("unknown status %q", reply.Status))
	}

	return s.apply(ctx, Update{
		Source:  SourcePoll,
		OrderID: reply.OrderID,
		Status:  reply.Status,
		At:      s.now(),
	})
}

// ApplyPushedTransition writes the fixed target status of a lifecycle push
// into the current order.
func (s *Service) ApplyPushedTransition(ctx context.Context, event realtime.Event) (Result, error) {
	status, ok := pushedStatus[event.Name()]
	if !ok {
		return Result{}, fmt.Errorf("event %s is not a status transition", event.Name())
	}

	var orderID int
	if se, ok := event.(realtime.StatusEvent); ok {
		orderID = se.OrderID
	}

	at := event.ReceivedAt()
	if at.IsZero() {
		at = s.now()
	}
	return s.apply(ctx, Update{
		Source:  SourcePush,
		OrderID: orderID,
		Status:  status,
		At:      at,
	})
}

// PlaceOrder submits order and, once the backend accepts it, makes it the
// current order in the paid state.
func (s *Service) PlaceOrder(ctx context.Context, order *models.Order) (*interfaces.PaymentIntent, error) {
	if order == nil || len(order.Items) == 0 {
		return nil, fmt.Errorf("order has no items")
	}

	intent, err := s.api.NewOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	placed := order.Clone()
	placed.ServerID = intent.OrderID
	placed.Status = models.StatusPaid

	snap, err := s.store.Replace(ctx, placed)
	if err != nil {
		return intent, err
	}
	s.notify(ctx, snap.Order.ServerID, snap.Order.Status)
	return intent, nil
}

// CancelOrder cancels the current order on the backend, then locally
func (s *Service) CancelOrder(ctx context.Context) (Result, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	if !snap.HasOrder() || snap.Order.ServerID == 0 {
		return Result{Reason: ReasonNoOrder, Snapshot: snap}, fmt.Errorf("cancel: %s", ReasonNoOrder)
	}
	if snap.Order.Status.Terminal() {
		return Result{Reason: ReasonTerminal, Snapshot: snap}, fmt.Errorf("cancel: %s", ReasonTerminal)
	}

	if err := s.api.CancelOrder(ctx, snap.Order.ServerID); err != nil {
		return Result{}, err
	}
	return s.apply(ctx, Update{
		Source:  SourceLocal,
		OrderID: snap.Order.ServerID,
		Status:  models.StatusCancelled,
		At:      s.now(),
	})
}

// ConfirmDelivered tells the backend the current order was received. The
// status itself only changes when the backend confirms through the poll or
// push paths.
func (s *Service) ConfirmDelivered(ctx context.Context, extra map[string]any) error {
	if s.channel == nil {
		return fmt.Errorf("confirm delivered: no realtime channel")
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.HasOrder() || snap.Order.ServerID == 0 {
		return fmt.Errorf("confirm delivered: %s", ReasonNoOrder)
	}
	s.channel.SendOrderDelivered(snap.Order.ServerID, extra)
	return nil
}

// TrackDriver records a driverLocation push
func (s *Service) TrackDriver(ctx context.Context, loc models.DriverLocation) error {
	_, err := s.store.SetDriverLocation(ctx, loc)
	return err
}

// ReportError surfaces an error push as a notice without touching the status
func (s *Service) ReportError(ctx context.Context, event realtime.ErrorEvent) error {
	return s.store.PostNotice(ctx, Notice{
		Event:   string(event.Event),
		OrderID: event.OrderID,
		Message: event.Message,
		At:      event.ReceivedAt(),
	})
}

func (s *Service) apply(ctx context.Context, u Update) (Result, error) {
	result, err := s.store.Apply(ctx, u)
	if err != nil {
		return result, err
	}
	if result.Changed {
		order := result.Snapshot.Order
		s.notify(ctx, order.ServerID, order.Status)
	}
	return result, nil
}

// notify hands the applied pair to the notifier. Failures are logged only.
func (s *Service) notify(ctx context.Context, orderID int, status models.OrderStatus) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, orderID, status); err != nil {
		s.logger.Warn("Activity notification failed",
			"order_id", orderID,
			"status", status.String(),
			"error", err,
		)
	}
}
