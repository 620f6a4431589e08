package hw

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/gwillem/motioncore/pkg/joint"
)

// Recorder decodes the multiplexer output back into one pulse per joint.
// A compare value loaded while line n is selected belongs to line n+1.
type Recorder struct {
	mu      sync.Mutex
	line    uint8
	pulses  [joint.Sum]uint16
	cycles  uint64
	onCycle func([joint.Sum]uint16)
}

// NewRecorder returns a recorder with every joint at the neutral pulse.
// onCycle, if not nil, receives the pulses each time all joints were
// refreshed. It runs on the timer goroutine and must not block.
func NewRecorder(onCycle func([joint.Sum]uint16)) *Recorder {
	r := &Recorder{onCycle: onCycle}
	for id := range r.pulses {
		r.pulses[id] = joint.PWMNeutral
	}
	return r
}

func (r *Recorder) Select(line uint8) error {
	if line >= joint.Lines {
		return fmt.Errorf("line %d out of range", line)
	}
	r.mu.Lock()
	r.line = line
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Compare(bank int, pulse uint16) error {
	if bank < 0 || bank >= joint.Banks {
		return fmt.Errorf("bank %d out of range", bank)
	}
	r.mu.Lock()
	next := int(r.line+1) & (joint.Lines - 1)
	r.pulses[next+bank*joint.Lines] = pulse
	var snapshot [joint.Sum]uint16
	done := next == 0 && bank == joint.Banks-1
	if done {
		r.cycles++
		snapshot = r.pulses
	}
	r.mu.Unlock()

	if done && r.onCycle != nil {
		r.onCycle(snapshot)
	}
	return nil
}

// Pulses returns the last pulse seen for every joint.
func (r *Recorder) Pulses() [joint.Sum]uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulses
}

// Cycles returns the number of completed output cycles.
func (r *Recorder) Cycles() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles
}

// Multi fans the multiplexer out to several backends. Every backend sees
// every call; errors are combined.
func Multi(outs ...joint.Outputs) joint.Outputs {
	return multi(outs)
}

type multi []joint.Outputs

func (m multi) Select(line uint8) error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.Select(line))
	}
	return err
}

func (m multi) Compare(bank int, pulse uint16) error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.Compare(bank, pulse))
	}
	return err
}
