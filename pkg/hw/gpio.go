// Package hw provides joint.Outputs backends: GPIO pins driving the
// multiplexer board, an in-memory recorder and a bus servo mirror.
package hw

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"

	"github.com/gwillem/motioncore/pkg/joint"
)

// SelectLines is the number of address pins of the line multiplexers.
const SelectLines = 3

// CounterTop is the compare value of a full duty cycle.
const CounterTop = 1024

// PWMFrequency is one compare period per timer tick.
var PWMFrequency = physic.PeriodToFrequency(joint.TickPeriod)

// PinOutputs drives the multiplexer board. The select pins carry the line
// number in binary, least significant bit first; each bank pin carries the
// pulse of the selected joint of that bank.
type PinOutputs struct {
	selects [SelectLines]gpio.PinOut
	banks   [joint.Banks]gpio.PinOut
	freq    physic.Frequency
}

// NewPinOutputs wraps already opened pins. A zero freq selects
// PWMFrequency.
func NewPinOutputs(selects [SelectLines]gpio.PinOut, banks [joint.Banks]gpio.PinOut, freq physic.Frequency) *PinOutputs {
	if freq == 0 {
		freq = PWMFrequency
	}
	return &PinOutputs{selects: selects, banks: banks, freq: freq}
}

// OpenPinOutputs looks up pins by name. The host drivers must be
// initialized first.
func OpenPinOutputs(selectNames, bankNames []string, freq physic.Frequency) (*PinOutputs, error) {
	if len(selectNames) != SelectLines || len(bankNames) != joint.Banks {
		return nil, fmt.Errorf("need %d select and %d pwm pins, got %d and %d",
			SelectLines, joint.Banks, len(selectNames), len(bankNames))
	}
	var selects [SelectLines]gpio.PinOut
	for i, name := range selectNames {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("select pin %q not found", name)
		}
		selects[i] = p
	}
	var banks [joint.Banks]gpio.PinOut
	for i, name := range bankNames {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("pwm pin %q not found", name)
		}
		banks[i] = p
	}
	return NewPinOutputs(selects, banks, freq), nil
}

// Select drives the address pins.
func (o *PinOutputs) Select(line uint8) error {
	for bit, p := range o.selects {
		if err := p.Out(gpio.Level(line>>bit&1 == 1)); err != nil {
			return fmt.Errorf("select %s: %w", p, err)
		}
	}
	return nil
}

// Compare sets the duty cycle of a bank pin.
func (o *PinOutputs) Compare(bank int, pulse uint16) error {
	if bank < 0 || bank >= joint.Banks {
		return fmt.Errorf("bank %d out of range", bank)
	}
	if err := o.banks[bank].PWM(Duty(pulse), o.freq); err != nil {
		return fmt.Errorf("pwm %s: %w", o.banks[bank], err)
	}
	return nil
}

// Halt stops every pin.
func (o *PinOutputs) Halt() error {
	for _, p := range o.banks {
		if err := p.Halt(); err != nil {
			return err
		}
	}
	return nil
}

// Duty converts a compare value into a periph duty cycle.
func Duty(pulse uint16) gpio.Duty {
	if pulse >= CounterTop {
		return gpio.DutyMax
	}
	return gpio.Duty(int64(pulse) * int64(gpio.DutyMax) / CounterTop)
}
