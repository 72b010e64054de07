package order

import (
	"context"
	"sync"
	"time"

	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/realtime"
)

// handlerTimeout bounds the work of one realtime event
const handlerTimeout = 10 * time.Second

// Tracker binds the realtime channel's order events to a Service while an
// order is on screen.
type Tracker struct {
	channel interfaces.RealtimeChannel
	service *Service
	logger  *logging.Logger

	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

var trackedEvents = []realtime.EventName{
	realtime.OrderAccepted,
	realtime.OrderReady,
	realtime.FoodPickup,
	realtime.DropoffReady,
	realtime.DriverLocation,
	realtime.OrderAcceptedError,
	realtime.OrderDeliveredError,
}

// NewTracker creates a tracker; nothing is registered until Start
func NewTracker(channel interfaces.RealtimeChannel, service *Service) *Tracker {
	return &Tracker{
		channel: channel,
		service: service,
		logger:  logging.GetOrderLogger(),
	}
}

// Start registers the handlers and connects the channel. Handler work runs
// until Stop or until ctx ends.
func (t *Tracker) Start(ctx context.Context) {
	t.mutex.Lock()
	if t.cancel != nil {
		t.mutex.Unlock()
		return
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mutex.Unlock()

	t.channel.On(realtime.OrderAccepted, t.onStatus)
	t.channel.On(realtime.OrderReady, t.onStatus)
	t.channel.On(realtime.FoodPickup, t.onStatus)
	t.channel.On(realtime.DropoffReady, t.onStatus)
	t.channel.On(realtime.DriverLocation, t.onLocation)
	t.channel.On(realtime.OrderAcceptedError, t.onError)
	t.channel.On(realtime.OrderDeliveredError, t.onError)

	t.channel.Connect(ctx)
}

// Stop clears the handlers. The connection itself stays up.
func (t *Tracker) Stop() {
	t.mutex.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mutex.Unlock()

	if cancel == nil {
		return
	}
	for _, name := range trackedEvents {
		t.channel.Off(name)
	}
	cancel()
}

// handlerContext derives the context of one handler call from the tracking
// context, bounded by handlerTimeout
func (t *Tracker) handlerContext() (context.Context, context.CancelFunc) {
	t.mutex.Lock()
	parent := t.ctx
	t.mutex.Unlock()

	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, handlerTimeout)
}

func (t *Tracker) onStatus(event realtime.Event) {
	ctx, cancel := t.handlerContext()
	defer cancel()

	result, err := t.service.ApplyPushedTransition(ctx, event)
	if err != nil {
		t.logger.Debug("Push not applied", "event", string(event.Name()), "error", err)
		return
	}
	if !result.Applied {
		t.logger.Debug("Push rejected", "event", string(event.Name()), "reason", result.Reason)
	}
}

func (t *Tracker) onLocation(event realtime.Event) {
	loc, ok := event.(realtime.LocationEvent)
	if !ok {
		return
	}
	ctx, cancel := t.handlerContext()
	defer cancel()

	if err := t.service.TrackDriver(ctx, loc.Location); err != nil {
		t.logger.Debug("Driver location not stored", "error", err)
	}
}

func (t *Tracker) onError(event realtime.Event) {
	ee, ok := event.(realtime.ErrorEvent)
	if !ok {
		return
	}
	ctx, cancel := t.handlerContext()
	defer cancel()

	if err := t.service.ReportError(ctx, ee); err != nil {
		t.logger.Debug("Notice not stored", "event", string(ee.Event), "error", err)
	}
}
