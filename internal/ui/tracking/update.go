package tracking

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/ui/actions"
)

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.actions.SetWidth(msg.Width)

	case tea.KeyMsg:
		return m, m.handleKeyInput(msg)

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		if m.confirmCancel && !m.cancellable() {
			m.confirmCancel = false
		}
		m.syncActions()
		return m, m.waitForSnapshot()

	case subscriptionClosedMsg:
		m.status = "Order updates stopped"

	case ConnStateMsg:
		m.connState = msg.State
		return m, m.waitForConnState()

	case ActivityMsg:
		m.recordActivity(msg)

	case PollFailedMsg:
		m.err = msg.Err

	case actionDoneMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = msg.err
			logging.GetUILogger().Debug("Order action failed", "action", msg.action, "error", msg.err)
		}

	case inspectMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.inspecting = true
		m.inspection = msg.body

	case spinner.TickMsg:
		if m.busy != "" {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// Action ids of the action bar
const (
	actionRefresh       = "refresh"
	actionCancel        = "cancel"
	actionDelivered     = "delivered"
	actionInspect       = "inspect"
	actionLogout        = "logout"
	actionConfirmCancel = "confirm-cancel"
	actionKeepOrder     = "keep-order"
)

// hotkeys map letter keys to action ids
var hotkeys = map[string]string{
	"r":  actionRefresh,
	"f5": actionRefresh,
	"c":  actionCancel,
	"d":  actionDelivered,
	"i":  actionInspect,
	"l":  actionLogout,
}

// syncActions rebuilds the action bar from the snapshot and confirmation
// state
func (m *Model) syncActions() {
	if m.confirmCancel {
		m.actions.SetActions([]actions.Action{
			{ID: actionConfirmCancel, Name: "Yes, cancel it", Kind: actions.KindConfirmation},
			{ID: actionKeepOrder, Name: "Keep my order", Kind: actions.KindCancel},
		})
		return
	}

	hasOrder := m.snapshot.HasOrder() && m.snapshot.Order.ServerID != 0
	m.actions.SetActions([]actions.Action{
		{ID: actionRefresh, Name: "Refresh", Kind: actions.KindPrimary},
		{ID: actionCancel, Name: "Cancel order", Kind: actions.KindCancel, Disabled: !m.cancellable()},
		{ID: actionDelivered, Name: "Got my order", Kind: actions.KindConfirmation, Disabled: !m.awaitingHandover()},
		{ID: actionInspect, Name: "Inspect", Kind: actions.KindInfo, Disabled: !hasOrder || m.deps.Inspector == nil},
		{ID: actionLogout, Name: "Log out", Kind: actions.KindAlternative},
	})
}

// handleKeyInput maps keys to order actions
func (m *Model) handleKeyInput(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}

	if m.inspecting {
		if key == "esc" || key == "i" || key == "q" {
			m.inspecting = false
			m.inspection = ""
		}
		return nil
	}

	if m.confirmCancel {
		switch key {
		case "y":
			return m.perform(actionConfirmCancel)
		case "tab", "right", "shift+tab", "left", "enter", "1", "2":
			return m.handleActionKeys(key)
		}
		return m.perform(actionKeepOrder)
	}

	if m.busy != "" && key != "q" {
		return nil
	}

	m.status = ""
	if id, ok := hotkeys[key]; ok {
		return m.perform(id)
	}

	switch key {
	case "q":
		return tea.Quit

	case "x", "esc":
		m.err = nil
		if m.snapshot.Notice != nil {
			return m.dismissNotice()
		}

	case "ctrl+d":
		m.showDetails = !m.showDetails

	default:
		return m.handleActionKeys(key)
	}
	return nil
}

// handleActionKeys drives the action bar: focus movement, enter and number
// keys
func (m *Model) handleActionKeys(key string) tea.Cmd {
	switch key {
	case "tab", "right":
		m.actions.Next()
	case "shift+tab", "left":
		m.actions.Previous()
	case "enter":
		action, err := m.actions.Selected()
		if err != nil {
			return nil
		}
		return m.perform(action.ID)
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			if action, ok := m.actions.ByNumber(int(key[0] - '0')); ok {
				return m.perform(action.ID)
			}
		}
	}
	return nil
}

// perform runs the action with the given id
func (m *Model) perform(id string) tea.Cmd {
	switch id {
	case actionRefresh:
		return m.refresh()

	case actionCancel:
		if !m.cancellable() {
			m.status = "There is no order to cancel"
			return nil
		}
		m.confirmCancel = true
		m.syncActions()
		return nil

	case actionConfirmCancel:
		m.confirmCancel = false
		m.syncActions()
		return m.cancelOrder()

	case actionKeepOrder:
		m.confirmCancel = false
		m.status = "Cancellation aborted"
		m.syncActions()
		return nil

	case actionDelivered:
		if !m.awaitingHandover() {
			m.status = "Your order has not arrived yet"
			return nil
		}
		return m.confirmDelivered()

	case actionInspect:
		return m.inspect()

	case actionLogout:
		return m.logout()
	}
	return nil
}

func (m *Model) cancellable() bool {
	return m.snapshot.HasOrder() && m.snapshot.Order.ServerID != 0 && !m.snapshot.Status().Terminal()
}

func (m *Model) awaitingHandover() bool {
	status := m.snapshot.Status()
	return m.snapshot.HasOrder() && (status == models.StatusDelivering || status == models.StatusDropoffReady)
}
