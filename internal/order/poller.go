package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/delihood/client/internal/logging"
)

// PollStatistics counts poll cycles
type PollStatistics struct {
	Polls       int64
	Failures    int64
	LastPoll    time.Time
	LastError   string
	LastApplied bool
}

// Poller calls Service.UpdateStatus on a fixed interval
type Poller struct {
	service  *Service
	interval time.Duration
	onError  func(error)
	logger   *logging.Logger

	mutex  sync.RWMutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}
	stats  PollStatistics
}

// NewPoller creates a poller. onError, when set, receives every failed poll.
func NewPoller(service *Service, interval time.Duration, onError func(error)) *Poller {
	return &Poller{
		service:  service,
		interval: interval,
		onError:  onError,
		logger:   logging.GetOrderLogger(),
	}
}

// Start polls once immediately and then every interval until Stop or ctx ends
func (p *Poller) Start(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.active {
		return fmt.Errorf("order polling is already active")
	}
	if p.interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.active = true

	p.logger.Debug("Order polling started", "interval", p.interval)
	go p.run(pollCtx, p.done)
	return nil
}

// Stop ends polling and waits for an in-flight poll to return
func (p *Poller) Stop() {
	p.mutex.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.active = false
	p.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Debug("Order polling stopped")
}

// Active reports whether the loop is running
func (p *Poller) Active() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.active
}

// Statistics returns a copy of the poll counters
func (p *Poller) Statistics() PollStatistics {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.stats
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	result, err := p.service.UpdateStatus(ctx)
	if ctx.Err() != nil {
		return
	}

	p.mutex.Lock()
	p.stats.Polls++
	p.stats.LastPoll = time.Now()
	p.stats.LastApplied = result.Applied
	if err != nil {
		p.stats.Failures++
		p.stats.LastError = err.Error()
	} else {
		p.stats.LastError = ""
	}
	p.mutex.Unlock()

	if err != nil {
		p.logger.Debug("Order poll failed", "error", err)
		if p.onError != nil {
			p.onError(err)
		}
	}
}
