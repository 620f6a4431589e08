package joint

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type compare struct {
	bank  int
	pulse uint16
}

type recordingOutputs struct {
	selects  []uint8
	compares []compare
	err      error
}

func (r *recordingOutputs) Select(line uint8) error {
	r.selects = append(r.selects, line)
	return r.err
}

func (r *recordingOutputs) Compare(bank int, pulse uint16) error {
	r.compares = append(r.compares, compare{bank, pulse})
	return r.err
}

func TestMultiplexer_Tick(t *testing.T) {
	h := NewHandoff()
	for id := 0; id < Sum; id++ {
		h.Store(id, uint16(500+id))
	}
	out := &recordingOutputs{}
	m := NewMultiplexer(out, h, zaptest.NewLogger(t).Sugar())

	for tick := 0; tick < Lines; tick++ {
		m.Tick()

		wantLine := uint8(tick)
		if got := out.selects[tick]; got != wantLine {
			t.Errorf("tick %d selected line %d, want %d", tick, got, wantLine)
		}
		// Compare registers run one line ahead of the select lines.
		joint := (tick + 1) % Lines
		for bank := 0; bank < Banks; bank++ {
			got := out.compares[tick*Banks+bank]
			want := compare{bank, uint16(500 + joint + bank*Lines)}
			if got != want {
				t.Errorf("tick %d bank %d = %+v, want %+v", tick, bank, got, want)
			}
		}

		finished := tick >= Lines-2
		if h.CycleFinished() != finished {
			t.Errorf("tick %d cycle finished = %v, want %v", tick, h.CycleFinished(), finished)
		}
	}
}

func TestMultiplexer_CycleFlag(t *testing.T) {
	h := NewHandoff()
	m := NewMultiplexer(&recordingOutputs{}, h, nil)
	timer := &ManualTimer{}
	if err := timer.Start(m.Tick); err != nil {
		t.Fatal(err)
	}

	// joint-select starts at 1, so the first wrap comes after 7 ticks.
	timer.Fire(Lines - 2)
	if h.CycleFinished() {
		t.Fatal("cycle finished early")
	}
	timer.Fire(1)
	if !h.CycleFinished() || h.Generation() != 1 {
		t.Fatalf("cycle finished = %v, generation = %d", h.CycleFinished(), h.Generation())
	}

	h.ClearCycle()
	timer.Fire(Lines - 1)
	if h.CycleFinished() {
		t.Fatal("cycle finished after 7 of 8 ticks")
	}
	timer.Fire(1)
	if !h.CycleFinished() || h.Generation() != 2 {
		t.Fatalf("cycle finished = %v, generation = %d", h.CycleFinished(), h.Generation())
	}

	timer.Stop()
	timer.Fire(Lines)
	if h.Generation() != 2 {
		t.Error("stopped timer still ticks")
	}
}

func TestMultiplexer_Faults(t *testing.T) {
	out := &recordingOutputs{err: errors.New("bus gone")}
	m := NewMultiplexer(out, NewHandoff(), zaptest.NewLogger(t).Sugar())

	m.Tick()
	m.Tick()

	if got := m.Faults(); got != 2*(1+Banks) {
		t.Errorf("faults = %d, want %d", got, 2*(1+Banks))
	}
	// Failing outputs never stop the scan.
	if len(out.compares) != 2*Banks {
		t.Errorf("compares = %d, want %d", len(out.compares), 2*Banks)
	}
}

func TestHandoff_Defaults(t *testing.T) {
	h := NewHandoff()
	for id := 0; id < Sum; id++ {
		if got := h.Load(id); got != PWMNeutral {
			t.Errorf("pulse %d = %d, want %d", id, got, PWMNeutral)
		}
	}
	if h.CycleFinished() {
		t.Error("new handoff reports a finished cycle")
	}
}

func TestTickerTimer(t *testing.T) {
	timer := NewTickerTimer(time.Millisecond)
	if err := timer.Start(nil); !errors.Is(err, ErrNoHandler) {
		t.Fatalf("Start(nil) = %v", err)
	}

	ticks := make(chan struct{}, 16)
	err := timer.Start(func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer timer.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("timer did not tick")
		}
	}
	timer.Stop()
	timer.Stop()
}
