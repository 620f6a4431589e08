package hw

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/gwillem/motioncore/pkg/joint"
)

func TestDuty(t *testing.T) {
	tests := []struct {
		pulse uint16
		want  gpio.Duty
	}{
		{0, 0},
		{512, gpio.DutyMax / 2},
		{256, gpio.DutyMax / 4},
		{CounterTop, gpio.DutyMax},
		{2000, gpio.DutyMax},
	}
	for _, tt := range tests {
		if got := Duty(tt.pulse); got != tt.want {
			t.Errorf("Duty(%d) = %d, want %d", tt.pulse, got, tt.want)
		}
	}
}

func newPins() ([SelectLines]*gpiotest.Pin, [joint.Banks]*gpiotest.Pin, *PinOutputs) {
	var sel [SelectLines]*gpiotest.Pin
	var selOut [SelectLines]gpio.PinOut
	for i := range sel {
		sel[i] = &gpiotest.Pin{N: "SEL", Num: i}
		selOut[i] = sel[i]
	}
	var banks [joint.Banks]*gpiotest.Pin
	var bankOut [joint.Banks]gpio.PinOut
	for i := range banks {
		banks[i] = &gpiotest.Pin{N: "PWM", Num: i}
		bankOut[i] = banks[i]
	}
	return sel, banks, NewPinOutputs(selOut, bankOut, 0)
}

func TestPinOutputs(t *testing.T) {
	sel, banks, out := newPins()

	tests := []struct {
		line uint8
		want [SelectLines]gpio.Level
	}{
		{0, [SelectLines]gpio.Level{gpio.Low, gpio.Low, gpio.Low}},
		{5, [SelectLines]gpio.Level{gpio.High, gpio.Low, gpio.High}},
		{6, [SelectLines]gpio.Level{gpio.Low, gpio.High, gpio.High}},
		{7, [SelectLines]gpio.Level{gpio.High, gpio.High, gpio.High}},
	}
	for _, tt := range tests {
		if err := out.Select(tt.line); err != nil {
			t.Fatal(err)
		}
		for bit, p := range sel {
			if p.L != tt.want[bit] {
				t.Errorf("line %d: select bit %d = %v, want %v", tt.line, bit, p.L, tt.want[bit])
			}
		}
	}

	if err := out.Compare(1, joint.PWMMax); err != nil {
		t.Fatal(err)
	}
	if banks[1].D != Duty(joint.PWMMax) || banks[1].F != PWMFrequency {
		t.Errorf("bank 1 pwm = %v at %v", banks[1].D, banks[1].F)
	}
	if banks[0].D != 0 {
		t.Error("compare touched another bank")
	}
	if err := out.Compare(joint.Banks, 0); err == nil {
		t.Error("out of range bank accepted")
	}
}

func TestPinOutputsWithMultiplexer(t *testing.T) {
	sel, banks, out := newPins()
	handoff := joint.NewHandoff()
	handoff.Store(3, 700)
	handoff.Store(3+joint.Lines, 600)
	mux := joint.NewMultiplexer(out, handoff, zaptest.NewLogger(t).Sugar())

	// The third tick selects line 2 and loads the compares for line 3.
	for i := 0; i < 3; i++ {
		mux.Tick()
	}
	if sel[0].L != gpio.Low || sel[1].L != gpio.High || sel[2].L != gpio.Low {
		t.Errorf("select pins = %v %v %v", sel[0].L, sel[1].L, sel[2].L)
	}
	if banks[0].D != Duty(700) || banks[1].D != Duty(600) || banks[2].D != Duty(joint.PWMNeutral) {
		t.Errorf("bank duties = %v %v %v", banks[0].D, banks[1].D, banks[2].D)
	}
	if mux.Faults() != 0 {
		t.Errorf("faults = %d", mux.Faults())
	}
}

func TestRecorder(t *testing.T) {
	handoff := joint.NewHandoff()
	var want [joint.Sum]uint16
	for id := range want {
		want[id] = uint16(500 + id)
		handoff.Store(id, want[id])
	}

	var cycles [][joint.Sum]uint16
	rec := NewRecorder(func(p [joint.Sum]uint16) { cycles = append(cycles, p) })
	mux := joint.NewMultiplexer(rec, handoff, nil)

	for i := 0; i < joint.Lines-1; i++ {
		mux.Tick()
	}
	if rec.Cycles() != 0 || len(cycles) != 0 {
		t.Fatal("cycle reported before line 0 was loaded")
	}
	mux.Tick()
	if rec.Cycles() != 1 || len(cycles) != 1 {
		t.Fatalf("cycles = %d", rec.Cycles())
	}
	if diff := cmp.Diff(want, cycles[0]); diff != "" {
		t.Errorf("recorded pulses mismatch (-want +got):\n%s", diff)
	}
	if rec.Pulses() != want {
		t.Error("Pulses differs from the cycle snapshot")
	}

	if err := rec.Select(joint.Lines); err == nil {
		t.Error("out of range line accepted")
	}
}

type failingOutputs struct{}

func (failingOutputs) Select(uint8) error        { return errors.New("select") }
func (failingOutputs) Compare(int, uint16) error { return errors.New("compare") }

func TestMulti(t *testing.T) {
	a, b := NewRecorder(nil), NewRecorder(nil)
	out := Multi(a, failingOutputs{}, b)

	if err := out.Select(4); err == nil {
		t.Error("select error lost")
	}
	if err := out.Compare(2, 777); err == nil {
		t.Error("compare error lost")
	}
	for _, r := range []*Recorder{a, b} {
		if got := r.Pulses()[5+2*joint.Lines]; got != 777 {
			t.Errorf("recorder got %d, want 777", got)
		}
	}
}

func TestServoPosition(t *testing.T) {
	tests := []struct {
		pulse uint16
		want  int
	}{
		{joint.PWMNeutral, ServoCenter},
		{joint.PWMMax, 2844},
		{joint.PWMMin, 1252},
	}
	for _, tt := range tests {
		if got := ServoPosition(tt.pulse); got != tt.want {
			t.Errorf("ServoPosition(%d) = %d, want %d", tt.pulse, got, tt.want)
		}
	}
}

type fakeGroup struct {
	mu    sync.Mutex
	got   []feetech.PositionMap
	wrote chan struct{}
	err   error
}

func (g *fakeGroup) SetPositions(ctx context.Context, p feetech.PositionMap) error {
	g.mu.Lock()
	g.got = append(g.got, p)
	g.mu.Unlock()
	select {
	case g.wrote <- struct{}{}:
	default:
	}
	return g.err
}

func (g *fakeGroup) last() feetech.PositionMap {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.got[len(g.got)-1]
}

func TestMirror(t *testing.T) {
	group := &fakeGroup{wrote: make(chan struct{}, 1)}
	m := NewMirror(group, MirrorConfig{
		Servos: map[int]int{0: 1, 12: 2, 30: 3},
		Logger: zaptest.NewLogger(t).Sugar(),
	})
	defer m.Close()

	handoff := joint.NewHandoff()
	handoff.Store(0, joint.PWMMax)
	handoff.Store(12, joint.PWMMin)
	mux := joint.NewMultiplexer(m, handoff, nil)
	for i := 0; i < joint.Lines; i++ {
		mux.Tick()
	}

	select {
	case <-group.wrote:
	case <-time.After(5 * time.Second):
		t.Fatal("mirror did not write")
	}
	want := feetech.PositionMap{1: 2844, 2: 1252}
	if diff := cmp.Diff(want, group.last()); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	writes, _, failed := m.Stats()
	if writes == 0 || failed != 0 {
		t.Errorf("writes %d failed %d", writes, failed)
	}
}

func TestMirrorWriteFailure(t *testing.T) {
	group := &fakeGroup{wrote: make(chan struct{}, 1), err: errors.New("bus timeout")}
	m := NewMirror(group, MirrorConfig{Servos: map[int]int{0: 1}, Logger: zaptest.NewLogger(t).Sugar()})

	mux := joint.NewMultiplexer(m, joint.NewHandoff(), nil)
	for i := 0; i < joint.Lines; i++ {
		mux.Tick()
	}
	<-group.wrote
	m.Close()

	if _, _, failed := m.Stats(); failed == 0 {
		t.Error("failed write not counted")
	}
	if mux.Faults() != 0 {
		t.Error("bus failure reached the multiplexer")
	}
}
