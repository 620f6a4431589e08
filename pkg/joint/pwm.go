package joint

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Multiplexer geometry: one timer drives Banks compare outputs, each fanned
// out to Lines servos through a 3-bit multiplexer.
const (
	Banks = 3
	Lines = 8
)

// Handoff is the pulse buffer shared between the main loop, which is the
// only writer, and the tick handler, which is the only reader. Writes for
// the next cycle are only allowed after CycleFinished reports true.
type Handoff struct {
	pulses     [Sum]atomic.Uint32
	cycle      atomic.Bool
	generation atomic.Uint32
}

// NewHandoff returns a buffer with every joint at the neutral pulse.
func NewHandoff() *Handoff {
	h := &Handoff{}
	for i := range h.pulses {
		h.pulses[i].Store(PWMNeutral)
	}
	return h
}

// Store publishes the pulse width of a joint.
func (h *Handoff) Store(id int, pulse uint16) {
	h.pulses[id].Store(uint32(pulse))
}

// Load returns the pulse width of a joint.
func (h *Handoff) Load(id int) uint16 {
	return uint16(h.pulses[id].Load())
}

// CycleFinished reports whether the tick handler completed a full pass
// over all lines since the last ClearCycle.
func (h *Handoff) CycleFinished() bool {
	return h.cycle.Load()
}

// ClearCycle hands the buffer back to the tick handler.
func (h *Handoff) ClearCycle() {
	h.cycle.Store(false)
}

// Generation counts completed cycles.
func (h *Handoff) Generation() uint32 {
	return h.generation.Load()
}

func (h *Handoff) finishCycle() {
	h.generation.Inc()
	h.cycle.Store(true)
}

// Outputs is the hardware behind the multiplexer: three select lines and
// one compare register per bank.
type Outputs interface {
	Select(line uint8) error
	Compare(bank int, pulse uint16) error
}

// Multiplexer is the timer overflow handler.
//
// The compare registers are double buffered: a value loaded on this tick is
// applied on the next one. jointSelect therefore runs one line ahead of
// outputSelect.
type Multiplexer struct {
	out     Outputs
	handoff *Handoff
	logger  *zap.SugaredLogger

	outputSelect uint8
	jointSelect  uint8
	faults       atomic.Uint64
}

// NewMultiplexer returns a handler that reads pulses from handoff.
func NewMultiplexer(out Outputs, handoff *Handoff, logger *zap.SugaredLogger) *Multiplexer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Multiplexer{
		out:         out,
		handoff:     handoff,
		logger:      logger,
		jointSelect: 1,
	}
}

// Tick runs one timer overflow.
func (m *Multiplexer) Tick() {
	// Switch lines first so the new line is settled before the pulse starts.
	if err := m.out.Select(m.outputSelect); err != nil {
		m.fault("select", err)
	}
	for bank := 0; bank < Banks; bank++ {
		pulse := m.handoff.Load(int(m.jointSelect) + bank*Lines)
		if err := m.out.Compare(bank, pulse); err != nil {
			m.fault("compare", err)
		}
	}

	m.outputSelect = (m.outputSelect + 1) & (Lines - 1)
	m.jointSelect = (m.jointSelect + 1) & (Lines - 1)

	if m.jointSelect == 0 {
		m.handoff.finishCycle()
	}
}

// Faults returns the number of output errors seen by Tick.
func (m *Multiplexer) Faults() uint64 {
	return m.faults.Load()
}

func (m *Multiplexer) fault(op string, err error) {
	// Only the first fault of a run is logged; the tick rate would flood the log.
	if m.faults.Inc() == 1 {
		m.logger.Warnw("multiplexer output failed", "op", op, "error", err)
	}
}
