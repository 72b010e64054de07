package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/delihood/client/internal/models"
)

// bridgeBuffer is how many messages may wait for the program's event loop
const bridgeBuffer = 64

var (
	errNoProgram  = errors.New("terminal UI not running")
	errBridgeFull = errors.New("terminal UI message queue full")
)

// ProgramBridge forwards order activity and poll failures into a running
// bubbletea program. It implements interfaces.ActivityNotifier.
//
// Messages are queued and handed to the program by a forwarding goroutine,
// so callers never wait on the event loop. That loop may itself be blocked
// stopping the goroutine that is notifying.
type ProgramBridge struct {
	mutex sync.Mutex
	queue chan tea.Msg
}

// Attach starts forwarding to program. Attaching nil detaches.
func (b *ProgramBridge) Attach(program *tea.Program) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.queue != nil {
		close(b.queue)
		b.queue = nil
	}
	if program == nil {
		return
	}

	b.queue = make(chan tea.Msg, bridgeBuffer)
	go forward(program, b.queue)
}

// Detach stops forwarding; later messages are refused
func (b *ProgramBridge) Detach() {
	b.Attach(nil)
}

func forward(program *tea.Program, queue <-chan tea.Msg) {
	for msg := range queue {
		program.Send(msg)
	}
}

func (b *ProgramBridge) send(msg tea.Msg) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.queue == nil {
		return errNoProgram
	}
	select {
	case b.queue <- msg:
		return nil
	default:
		return errBridgeFull
	}
}

// Notify queues an ActivityMsg
func (b *ProgramBridge) Notify(ctx context.Context, orderID int, status models.OrderStatus) error {
	return b.send(ActivityMsg{OrderID: orderID, Status: status, At: time.Now()})
}

// PollFailed queues a PollFailedMsg
func (b *ProgramBridge) PollFailed(err error) {
	b.send(PollFailedMsg{Err: err})
}
