// Package order owns the current order. A single goroutine applies status
// updates from the poll and push paths under an explicit ordering policy and
// publishes snapshots to the presentation layer.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
)

// ErrStoreClosed is returned by every Store call after Close.
var ErrStoreClosed = errors.New("order store closed")

// Source tags where a status update came from
type Source string

const (
	SourcePoll  Source = "poll"
	SourcePush  Source = "push"
	SourceLocal Source = "local"
)

// Policy decides whether an update may replace the applied state
type Policy string

const (
	// PolicyOrdered rejects stale and backwards updates
	PolicyOrdered Policy = "ordered"
	// PolicyLastWriteWins applies every update unconditionally
	PolicyLastWriteWins Policy = "last_write_wins"
)

// ParsePolicy maps a config value to a Policy. Empty and unknown values mean
// PolicyOrdered.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyLastWriteWins {
		return PolicyLastWriteWins
	}
	return PolicyOrdered
}

// Update is one tagged status transition. At is stamped when the update
// reaches the client; a zero At is stamped by the store.
type Update struct {
	Source  Source
	OrderID int
	Status  models.OrderStatus
	At      time.Time
}

// Notice is an informative server event that does not change the status
type Notice struct {
	Event   string
	OrderID int
	Message string
	At      time.Time
}

// Snapshot is an immutable copy of the store state
type Snapshot struct {
	Order     *models.Order
	AppliedAt time.Time
	Source    Source
	Driver    *models.DriverLocation
	Notice    *Notice
	Version   uint64
}

// HasOrder reports whether a current order exists
func (s Snapshot) HasOrder() bool {
	return s.Order != nil
}

// Status returns the current status, or "" without an order
func (s Snapshot) Status() models.OrderStatus {
	if s.Order == nil {
		return ""
	}
	return s.Order.Status
}

// Result describes the outcome of Apply
type Result struct {
	Applied  bool
	Changed  bool
	Reason   string
	Snapshot Snapshot
}

// Rejection reasons
const (
	ReasonNoOrder      = "no current order"
	ReasonOtherOrder   = "update for another order"
	ReasonStale        = "older than applied update"
	ReasonTerminal     = "order already finished"
	ReasonBackwards    = "moves lifecycle backwards"
	ReasonInvalid      = "unknown status"
	ReasonLocationDrop = "location for another order"
)

type command struct {
	run func(*state)
}

type state struct {
	order     *models.Order
	appliedAt time.Time
	source    Source
	driver    *models.DriverLocation
	notice    *Notice
	version   uint64
}

func (s *state) snapshot() Snapshot {
	snap := Snapshot{
		Order:     s.order.Clone(),
		AppliedAt: s.appliedAt,
		Source:    s.source,
		Version:   s.version,
	}
	if s.driver != nil {
		d := *s.driver
		snap.Driver = &d
	}
	if s.notice != nil {
		n := *s.notice
		snap.Notice = &n
	}
	return snap
}

// Store is the single owner of the current order. All reads and writes are
// commands executed on its goroutine.
type Store struct {
	policy   Policy
	logger   *logging.Logger
	now      func() time.Time
	commands chan command
	done     chan struct{}

	// owned by the run goroutine
	state       state
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// StoreOption customizes a Store
type StoreOption func(*Store)

// WithPolicy sets the ordering policy
func WithPolicy(policy Policy) StoreOption {
	return func(s *Store) { s.policy = policy }
}

// WithClock replaces the clock used to stamp updates
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithStoreLogger sets the store logger
func WithStoreLogger(logger *logging.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore starts the store goroutine. Close stops it.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		policy:      PolicyOrdered,
		logger:      logging.GetOrderLogger(),
		now:         time.Now,
		commands:    make(chan command),
		done:        make(chan struct{}),
		subscribers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Policy returns the ordering policy in effect
func (s *Store) Policy() Policy {
	return s.policy
}

func (s *Store) run() {
	for {
		select {
		case cmd := <-s.commands:
			cmd.run(&s.state)
		case <-s.done:
			for id, sub := range s.subscribers {
				close(sub)
				delete(s.subscribers, id)
			}
			return
		}
	}
}

// exec runs fn on the store goroutine and waits for it
func (s *Store) exec(ctx context.Context, fn func(*state)) error {
	select {
	case <-s.done:
		return ErrStoreClosed
	default:
	}

	finished := make(chan struct{})
	cmd := command{run: func(st *state) {
		defer close(finished)
		fn(st)
	}}

	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Close stops the store goroutine and closes every subscription
func (s *Store) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Apply is the one status mutation entry point
func (s *Store) Apply(ctx context.Context, u Update) (Result, error) {
	var result Result
	err := s.exec(ctx, func(st *state) {
		if u.At.IsZero() {
			u.At = s.now()
		}
		result = s.apply(st, u)
	})
	return result, err
}

func (s *Store) apply(st *state, u Update) Result {
	var from models.OrderStatus
	if st.order != nil {
		from = st.order.Status
	}

	reason := s.admit(st, u)
	if reason != "" {
		s.logger.LogTransition(u.OrderID, from.String(), u.Status.String(), string(u.Source), false, reason)
		return Result{Reason: reason, Snapshot: st.snapshot()}
	}

	changed := false
	switch {
	case st.order == nil:
		st.order = &models.Order{ServerID: u.OrderID, Status: u.Status}
		changed = true
	case u.Source == SourcePoll && u.OrderID != 0 && u.OrderID != st.order.ServerID:
		// A polled id that differs from ours means the server moved on to
		// another order; the polled state supersedes the local one.
		st.order = &models.Order{ServerID: u.OrderID, Status: u.Status}
		st.driver = nil
		st.notice = nil
		changed = true
	default:
		if st.order.ServerID == 0 && u.OrderID != 0 {
			st.order.ServerID = u.OrderID
			changed = true
		}
		if st.order.Status != u.Status {
			st.order.Status = u.Status
			changed = true
		}
	}

	st.appliedAt = u.At
	st.source = u.Source
	if changed {
		if u.Status != models.StatusDelivering && u.Status != models.StatusDropoffReady {
			st.driver = nil
		}
		s.publish(st)
	}

	s.logger.LogTransition(st.order.ServerID, from.String(), u.Status.String(), string(u.Source), true, "")
	return Result{Applied: true, Changed: changed, Snapshot: st.snapshot()}
}

// admit returns the rejection reason for u, or "" when it may be applied
func (s *Store) admit(st *state, u Update) string {
	if !u.Status.Valid() {
		return ReasonInvalid
	}
	if st.order == nil {
		if u.Source == SourcePush || u.OrderID == 0 {
			return ReasonNoOrder
		}
		return ""
	}

	if s.policy == PolicyLastWriteWins {
		return ""
	}

	otherOrder := u.OrderID != 0 && st.order.ServerID != 0 && u.OrderID != st.order.ServerID
	if otherOrder {
		if u.Source == SourcePoll {
			return ""
		}
		return ReasonOtherOrder
	}
	if u.At.Before(st.appliedAt) {
		return ReasonStale
	}
	current := st.order.Status
	if current.Terminal() && u.Status != current {
		return ReasonTerminal
	}
	if u.Source == SourcePush && !current.CanTransition(u.Status) {
		return ReasonBackwards
	}
	return ""
}

// Replace makes order the current order, superseding any previous one
func (s *Store) Replace(ctx context.Context, order *models.Order) (Snapshot, error) {
	if order == nil {
		return Snapshot{}, errors.New("replace: nil order")
	}
	var snap Snapshot
	err := s.exec(ctx, func(st *state) {
		var from string
		if st.order != nil {
			from = st.order.Status.String()
		}
		st.order = order.Clone()
		st.appliedAt = s.now()
		st.source = SourceLocal
		st.driver = nil
		st.notice = nil
		s.publish(st)
		s.logger.LogTransition(order.ServerID, from, order.Status.String(), string(SourceLocal), true, "new order")
		snap = st.snapshot()
	})
	return snap, err
}

// SetDriverLocation records the courier position. Locations for another order
// are dropped. It reports whether the location was kept.
func (s *Store) SetDriverLocation(ctx context.Context, loc models.DriverLocation) (bool, error) {
	kept := false
	err := s.exec(ctx, func(st *state) {
		if st.order == nil {
			s.logger.Debug("Dropping driver location", "reason", ReasonNoOrder)
			return
		}
		if loc.OrderID != 0 && st.order.ServerID != 0 && loc.OrderID != st.order.ServerID {
			s.logger.Debug("Dropping driver location", "reason", ReasonLocationDrop, "order_id", loc.OrderID)
			return
		}
		if loc.ReceivedAt.IsZero() {
			loc.ReceivedAt = s.now()
		}
		st.driver = &loc
		s.publish(st)
		kept = true
	})
	return kept, err
}

// PostNotice attaches an informative event to the snapshot
func (s *Store) PostNotice(ctx context.Context, notice Notice) error {
	return s.exec(ctx, func(st *state) {
		if notice.At.IsZero() {
			notice.At = s.now()
		}
		st.notice = &notice
		s.publish(st)
	})
}

// DismissNotice clears the current notice
func (s *Store) DismissNotice(ctx context.Context) error {
	return s.exec(ctx, func(st *state) {
		if st.notice == nil {
			return
		}
		st.notice = nil
		s.publish(st)
	})
}

// Snapshot returns the current state
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.exec(ctx, func(st *state) {
		snap = st.snapshot()
	})
	return snap, err
}

// Subscribe returns a channel that always holds the latest snapshot, starting
// with the current one. Intermediate snapshots are skipped when the reader
// falls behind. The cancel function ends the subscription.
func (s *Store) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, 1)
	var id int
	err := s.exec(ctx, func(st *state) {
		id = s.nextSubID
		s.nextSubID++
		s.subscribers[id] = ch
		ch <- st.snapshot()
	})
	if err != nil {
		return nil, func() {}, err
	}

	cancel := func() {
		s.exec(context.Background(), func(*state) {
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel, nil
}

// publish bumps the version and hands the snapshot to every subscriber,
// replacing a snapshot the subscriber has not read yet
func (s *Store) publish(st *state) {
	st.version++
	snap := st.snapshot()
	for _, sub := range s.subscribers {
		select {
		case <-sub:
		default:
		}
		sub <- snap
	}
}
