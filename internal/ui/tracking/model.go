// Package tracking implements the live order screen. It renders the store's
// snapshots as they are published and drives the order service from the
// keyboard.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/order"
	"github.com/delihood/client/internal/realtime"
	"github.com/delihood/client/internal/ui/actions"
	"github.com/delihood/client/internal/ui/components"
)

const actionTimeout = 30 * time.Second

// ConnectionWatcher publishes realtime connection states
type ConnectionWatcher interface {
	Subscribe() (<-chan realtime.ConnState, func())
	State() realtime.ConnState
}

// Deps are the services the order screen drives
type Deps struct {
	Service     *order.Service
	Session     interfaces.SessionAPI
	Inspector   interfaces.OrderInspector
	Connection  ConnectionWatcher
	Highlighter *components.SyntaxHighlighter
	User        *models.User
}

// Messages handled by the order screen
type (
	// SnapshotMsg carries a snapshot published by the order store
	SnapshotMsg struct {
		Snapshot order.Snapshot
	}

	// ConnStateMsg carries a realtime connection state change
	ConnStateMsg struct {
		State realtime.ConnState
	}

	// ActivityMsg is posted for every applied order change
	ActivityMsg struct {
		OrderID int
		Status  models.OrderStatus
		At      time.Time
	}

	// PollFailedMsg reports a failed background poll
	PollFailedMsg struct {
		Err error
	}

	// LoggedOutMsg asks the controller to return to the sign-in screen
	LoggedOutMsg struct {
		Err error
	}

	actionDoneMsg struct {
		action string
		err    error
	}

	inspectMsg struct {
		body string
		err  error
	}

	subscriptionClosedMsg struct{}
)

// ActivityEntry is one line of the activity log
type ActivityEntry struct {
	At      time.Time
	OrderID int
	Status  models.OrderStatus
}

const maxActivity = 8

// Model is the state of the order screen
type Model struct {
	deps Deps

	snapshot      order.Snapshot
	snapshots     <-chan order.Snapshot
	unsubscribe   func()
	connStates    <-chan realtime.ConnState
	unwatch       func()
	connState     realtime.ConnState
	activity      []ActivityEntry
	actions       *actions.Pane
	spinner       spinner.Model
	busy          string
	confirmCancel bool
	err           error
	showDetails   bool
	inspecting    bool
	inspection    string
	status        string

	width  int
	height int
}

// New subscribes to the store and, when given, to the connection watcher
func New(ctx context.Context, deps Deps) (*Model, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("order service is required")
	}
	if deps.Highlighter == nil {
		deps.Highlighter = components.NewSyntaxHighlighter(components.DefaultTheme, "terminal256")
	}

	snapshots, unsubscribe, err := deps.Service.Store().Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to order store: %w", err)
	}

	s := spinner.New()
	s.Spinner = spinner.MiniDot

	m := &Model{
		deps:        deps,
		snapshots:   snapshots,
		unsubscribe: unsubscribe,
		unwatch:     func() {},
		actions:     actions.NewPane(),
		spinner:     s,
	}
	if deps.Connection != nil {
		m.connStates, m.unwatch = deps.Connection.Subscribe()
		m.connState = deps.Connection.State()
	}
	m.syncActions()
	return m, nil
}

// Init starts listening for snapshots and connection changes
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForSnapshot(), m.refresh()}
	if m.connStates != nil {
		cmds = append(cmds, m.waitForConnState())
	}
	return tea.Batch(cmds...)
}

// Close ends the subscriptions
func (m *Model) Close() {
	m.unsubscribe()
	m.unwatch()
}

// Snapshot returns the last rendered snapshot
func (m *Model) Snapshot() order.Snapshot {
	return m.snapshot
}

// Activity returns the recent activity log, newest last
func (m *Model) Activity() []ActivityEntry {
	return append([]ActivityEntry(nil), m.activity...)
}

// Err returns the error currently shown
func (m *Model) Err() error {
	return m.err
}

func (m *Model) waitForSnapshot() tea.Cmd {
	snapshots := m.snapshots
	return func() tea.Msg {
		snap, ok := <-snapshots
		if !ok {
			return subscriptionClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func (m *Model) waitForConnState() tea.Cmd {
	states := m.connStates
	return func() tea.Msg {
		state, ok := <-states
		if !ok {
			return nil
		}
		return ConnStateMsg{State: state}
	}
}

// run wraps a service call as a command reporting actionDoneMsg
func (m *Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	m.busy = action
	m.err = nil
	return tea.Batch(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}, m.spinner.Tick)
}

func (m *Model) refresh() tea.Cmd {
	service := m.deps.Service
	return m.run("Refreshing", func(ctx context.Context) error {
		_, err := service.UpdateStatus(ctx)
		return err
	})
}

func (m *Model) cancelOrder() tea.Cmd {
	service := m.deps.Service
	return m.run("Cancelling", func(ctx context.Context) error {
		_, err := service.CancelOrder(ctx)
		return err
	})
}

func (m *Model) confirmDelivered() tea.Cmd {
	service := m.deps.Service
	return m.run("Confirming", func(ctx context.Context) error {
		return service.ConfirmDelivered(ctx, nil)
	})
}

func (m *Model) dismissNotice() tea.Cmd {
	store := m.deps.Service.Store()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := store.DismissNotice(ctx); err != nil {
			logging.GetUILogger().Debug("Notice not dismissed", "error", err)
		}
		return nil
	}
}

func (m *Model) inspect() tea.Cmd {
	inspector := m.deps.Inspector
	highlighter := m.deps.Highlighter
	orderID := 0
	if m.snapshot.HasOrder() {
		orderID = m.snapshot.Order.ServerID
	}
	if inspector == nil || orderID == 0 {
		return nil
	}

	m.busy = "Loading order"
	return tea.Batch(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		body, err := inspector.OrderDetailRaw(ctx, orderID)
		if err != nil {
			return inspectMsg{err: err}
		}
		rendered, err := highlighter.HighlightJSON(body)
		if err != nil {
			logging.GetUILogger().Debug("Order detail not highlighted", "error", err)
		}
		return inspectMsg{body: rendered}
	}, m.spinner.Tick)
}

func (m *Model) logout() tea.Cmd {
	session := m.deps.Session
	m.busy = "Signing out"
	return func() tea.Msg {
		if session == nil {
			return LoggedOutMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return LoggedOutMsg{Err: session.Logout(ctx)}
	}
}

func (m *Model) recordActivity(msg ActivityMsg) {
	at := msg.At
	if at.IsZero() {
		at = time.Now()
	}
	m.activity = append(m.activity, ActivityEntry{At: at, OrderID: msg.OrderID, Status: msg.Status})
	if len(m.activity) > maxActivity {
		m.activity = m.activity[len(m.activity)-maxActivity:]
	}
}
