package joint

import (
	"errors"
	"sync"
	"time"
)

// TickPeriod is one overflow of a 10-bit counter clocked at 16 MHz / 64.
const TickPeriod = 4096 * time.Microsecond

// CyclePeriod is the time to visit every multiplexer line once.
const CyclePeriod = Lines * TickPeriod

// Timer delivers overflow interrupts to a handler.
type Timer interface {
	// Start begins calling handler once per period. Calling Start on a
	// running timer replaces the handler.
	Start(handler func()) error
	Stop()
}

// ErrNoHandler is returned when a timer is started without a handler.
var ErrNoHandler = errors.New("timer: nil handler")

// TickerTimer emulates the overflow interrupt with a goroutine. Handlers
// never overlap, matching a non-nesting interrupt.
type TickerTimer struct {
	period time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTickerTimer returns a stopped timer. A zero period selects TickPeriod.
func NewTickerTimer(period time.Duration) *TickerTimer {
	if period <= 0 {
		period = TickPeriod
	}
	return &TickerTimer{period: period}
}

func (t *TickerTimer) Start(handler func()) error {
	if handler == nil {
		return ErrNoHandler
	}
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(handler, t.stop, t.done)
	return nil
}

func (t *TickerTimer) run(handler func(), stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			handler()
		}
	}
}

func (t *TickerTimer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// ManualTimer only ticks when Fire is called. Used by tests and replay tools.
type ManualTimer struct {
	mu      sync.Mutex
	handler func()
	starts  int
}

func (t *ManualTimer) Start(handler func()) error {
	if handler == nil {
		return ErrNoHandler
	}
	t.mu.Lock()
	t.handler = handler
	t.starts++
	t.mu.Unlock()
	return nil
}

func (t *ManualTimer) Stop() {
	t.mu.Lock()
	t.handler = nil
	t.mu.Unlock()
}

// Fire runs the handler n times. It does nothing while stopped.
func (t *ManualTimer) Fire(n int) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h == nil {
		return
	}
	for i := 0; i < n; i++ {
		h()
	}
}

// Running reports whether the timer has a handler.
func (t *ManualTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handler != nil
}

// Starts returns how many times Start was called.
func (t *ManualTimer) Starts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.starts
}
