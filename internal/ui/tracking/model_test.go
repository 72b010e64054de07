package tracking

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/order"
	"github.com/delihood/client/internal/ui/components"
)

type fakeAPI struct {
	mutex     sync.Mutex
	status    models.OrderStatus
	cancelled []int
}

func (f *fakeAPI) OrderUpdate(ctx context.Context) (*interfaces.OrderUpdate, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return &interfaces.OrderUpdate{OrderID: 4, Status: f.status}, nil
}

func (f *fakeAPI) NewOrder(ctx context.Context, o *models.Order) (*interfaces.PaymentIntent, error) {
	return &interfaces.PaymentIntent{OrderID: 4}, nil
}

func (f *fakeAPI) CancelOrder(ctx context.Context, orderID int) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type fakeInspector struct{}

func (fakeInspector) OrderDetailRaw(ctx context.Context, orderID int) ([]byte, error) {
	return []byte(`{"data":{"id":4,"status":"accepted"}}`), nil
}

func newModel(t *testing.T, status models.OrderStatus) (*Model, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{status: status}
	store := order.NewStore(order.WithStoreLogger(logging.Discard()))
	t.Cleanup(store.Close)
	service := order.NewService(api, store, order.WithServiceLogger(logging.Discard()))

	m, err := New(context.Background(), Deps{
		Service:     service,
		Inspector:   fakeInspector{},
		Highlighter: components.NewSyntaxHighlighter("", "noop"),
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, api
}

// runFirst executes cmd and, for a batch, only its first command
func runFirst(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		require.NotEmpty(t, batch)
		return batch[0]()
	}
	return msg
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// pull reads the next snapshot from the store into the model
func pull(t *testing.T, m *Model) {
	t.Helper()
	m.Update(m.waitForSnapshot()())
}

func refreshed(t *testing.T, m *Model) {
	t.Helper()
	m.Update(runFirst(t, m.refresh()))
	pull(t, m)
}

func TestInitialViewWithoutOrder(t *testing.T) {
	m, _ := newModel(t, models.StatusAccepted)
	pull(t, m)

	assert.False(t, m.Snapshot().HasOrder())
	assert.Contains(t, m.View(), "No order status")
}

func TestRefreshRendersStatus(t *testing.T) {
	m, _ := newModel(t, models.StatusAccepted)
	pull(t, m)
	refreshed(t, m)

	assert.Equal(t, models.StatusAccepted, m.Snapshot().Status())
	assert.Contains(t, m.View(), "Your order is being prepared...")
	assert.Contains(t, m.View(), "Order #4")
}

func TestCancelNeedsConfirmation(t *testing.T) {
	m, api := newModel(t, models.StatusAccepted)
	pull(t, m)
	refreshed(t, m)

	_, cmd := m.Update(key("c"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Cancel this order?")

	_, cmd = m.Update(key("n"))
	assert.Nil(t, cmd)
	assert.Empty(t, api.cancelled)

	m.Update(key("c"))
	_, cmd = m.Update(key("y"))
	m.Update(runFirst(t, cmd))
	pull(t, m)

	assert.Equal(t, []int{4}, api.cancelled)
	assert.Equal(t, models.StatusCancelled, m.Snapshot().Status())
	assert.NoError(t, m.Err())
}

func TestConfirmDeliveredOnlyWhenArriving(t *testing.T) {
	m, _ := newModel(t, models.StatusAccepted)
	pull(t, m)
	refreshed(t, m)

	_, cmd := m.Update(key("d"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "has not arrived yet")
}

func TestInspectorShowsOrderDocument(t *testing.T) {
	m, _ := newModel(t, models.StatusAccepted)
	pull(t, m)
	refreshed(t, m)

	_, cmd := m.Update(key("i"))
	m.Update(runFirst(t, cmd))
	assert.Contains(t, m.View(), `"status": "accepted"`)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotContains(t, m.View(), `"status": "accepted"`)
}

func TestActivityLogIsCapped(t *testing.T) {
	m, _ := newModel(t, models.StatusAccepted)
	for i := 0; i < maxActivity+3; i++ {
		m.Update(ActivityMsg{OrderID: i, Status: models.StatusAccepted, At: time.Now()})
	}
	activity := m.Activity()
	require.Len(t, activity, maxActivity)
	assert.Equal(t, maxActivity+2, activity[len(activity)-1].OrderID)
}

func TestPollFailureShowsAlert(t *testing.T) {
	m, _ := newModel(t, models.StatusAccepted)
	m.Update(PollFailedMsg{Err: apperrors.New(apperrors.KindNetwork, "GET /api/order/update")})

	assert.ErrorIs(t, m.Err(), apperrors.ErrNetwork)
	assert.Contains(t, m.View(), "No Network")

	m.Update(key("x"))
	assert.NoError(t, m.Err())
}

func TestProgramBridgeWithoutProgram(t *testing.T) {
	var bridge ProgramBridge
	assert.ErrorIs(t, bridge.Notify(context.Background(), 1, models.StatusPaid), errNoProgram)
}

func TestActionBarNumberKeys(t *testing.T) {
	m, api := newModel(t, models.StatusAccepted)
	pull(t, m)
	refreshed(t, m)

	assert.Contains(t, m.View(), "[2] ❌ Cancel order")

	_, cmd := m.Update(key("3"))
	assert.Nil(t, cmd, "confirming delivery is unavailable before the driver arrives")

	m.Update(key("2"))
	assert.Contains(t, m.View(), "Confirmation Required")

	m.Update(key("2"))
	assert.NotContains(t, m.View(), "Confirmation Required")
	assert.Contains(t, m.View(), "Cancellation aborted")
	assert.Empty(t, api.cancelled)
}

func TestActionBarFocusAndEnter(t *testing.T) {
	m, api := newModel(t, models.StatusAccepted)
	pull(t, m)
	refreshed(t, m)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Cancel this order?")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(runFirst(t, cmd))
	pull(t, m)

	assert.Equal(t, []int{4}, api.cancelled)
	assert.Equal(t, models.StatusCancelled, m.Snapshot().Status())
}

type notifyInUpdate struct {
	bridge   *ProgramBridge
	notified chan error
	received chan ActivityMsg
}

type startNotifyMsg struct{}

func (m notifyInUpdate) Init() tea.Cmd {
	return func() tea.Msg { return startNotifyMsg{} }
}

func (m notifyInUpdate) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startNotifyMsg:
		m.notified <- m.bridge.Notify(context.Background(), 7, models.StatusAccepted)
	case ActivityMsg:
		m.received <- msg
		return m, tea.Quit
	}
	return m, nil
}

func (m notifyInUpdate) View() string { return "" }

func TestProgramBridgeDoesNotWaitForEventLoop(t *testing.T) {
	bridge := &ProgramBridge{}
	model := notifyInUpdate{
		bridge:   bridge,
		notified: make(chan error, 1),
		received: make(chan ActivityMsg, 1),
	}
	program := tea.NewProgram(model,
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler())
	bridge.Attach(program)
	t.Cleanup(bridge.Detach)

	done := make(chan error, 1)
	go func() {
		_, err := program.Run()
		done <- err
	}()
	t.Cleanup(program.Kill)

	select {
	case err := <-model.notified:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked inside Update")
	}

	select {
	case msg := <-model.received:
		assert.Equal(t, 7, msg.OrderID)
		assert.Equal(t, models.StatusAccepted, msg.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("activity never reached the program")
	}

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("program did not quit")
	}
}

func TestProgramBridgeDetach(t *testing.T) {
	bridge := &ProgramBridge{}
	program := tea.NewProgram(nil, tea.WithInput(nil), tea.WithOutput(io.Discard))
	bridge.Attach(program)
	bridge.Detach()

	assert.ErrorIs(t, bridge.Notify(context.Background(), 1, models.StatusPaid), errNoProgram)
}

func TestProgramBridgeRefusesWhenQueueIsFull(t *testing.T) {
	bridge := &ProgramBridge{queue: make(chan tea.Msg, 1)}

	require.NoError(t, bridge.Notify(context.Background(), 1, models.StatusPaid))
	assert.ErrorIs(t, bridge.Notify(context.Background(), 1, models.StatusAccepted), errBridgeFull)
}
