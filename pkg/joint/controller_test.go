package joint

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

type nopOutputs struct{}

func (nopOutputs) Select(uint8) error        { return nil }
func (nopOutputs) Compare(int, uint16) error { return nil }

func newTestController(t *testing.T, mem Memory, opts ...Option) (*Controller, *ManualTimer) {
	t.Helper()
	timer := &ManualTimer{}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)
	return NewController(mem, nopOutputs{}, timer, opts...), timer
}

func TestPulse(t *testing.T) {
	tests := []struct {
		angle    int
		rotation Rotation
		expected uint16
	}{
		{AngleMin, Clockwise, PWMMin},
		{AngleMax, Clockwise, PWMMax},
		{AngleNeutral, Clockwise, PWMNeutral},
		{100, Clockwise, 674},
		{AngleMin, CounterClockwise, PWMMax},
		{AngleMax, CounterClockwise, PWMMin},
		{AngleNeutral, CounterClockwise, PWMNeutral},
		{100, CounterClockwise, 626},
	}

	for _, tt := range tests {
		if got := Pulse(tt.angle, tt.rotation); got != tt.expected {
			t.Errorf("Pulse(%d, %s) = %d, want %d", tt.angle, tt.rotation, got, tt.expected)
		}
	}
}

func TestParseRotation(t *testing.T) {
	for in, want := range map[string]Rotation{"": Clockwise, "cw": Clockwise, "ccw": CounterClockwise} {
		got, err := ParseRotation(in)
		if err != nil || got != want {
			t.Errorf("ParseRotation(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseRotation("sideways"); err == nil {
		t.Error("ParseRotation should reject unknown values")
	}
}

func TestController_LoadSettingsInitializesMemory(t *testing.T) {
	mem := NewMapMemory()
	c, timer := newTestController(t, mem)

	if timer.Running() {
		t.Fatal("timer started by constructor")
	}
	if mem.Writes() != 0 {
		t.Fatal("constructor wrote to memory")
	}

	if err := c.LoadSettings(); err != nil {
		t.Fatal(err)
	}
	if !timer.Running() {
		t.Error("LoadSettings did not start the timer")
	}

	sentinel, _ := mem.LoadByte(SentinelAddress)
	if sentinel != SentinelValue {
		t.Errorf("sentinel = %#x, want %#x", sentinel, SentinelValue)
	}
	if mem.Writes() != MemorySize {
		t.Errorf("writes = %d, want %d", mem.Writes(), MemorySize)
	}

	// Joint 6 home 500 -> pulse 771
	if got := c.Handoff().Load(6); got != Pulse(500, Clockwise) {
		t.Errorf("pulse of joint 6 = %d, want %d", got, Pulse(500, Clockwise))
	}
}

func TestController_LoadSettingsReadsStored(t *testing.T) {
	mem := NewMapMemory()
	stored := DefaultSettings()
	stored[1] = Setting{Min: -200, Max: 200, Home: 10}
	stored[2] = Setting{Min: 300, Max: 100, Home: 0} // unusable
	mem.StoreByte(SentinelAddress, SentinelValue)
	for i, b := range stored.Encode() {
		mem.StoreByte(SettingsAddress+i, b)
	}
	before := mem.Writes()

	c, _ := newTestController(t, mem)
	if err := c.LoadSettings(); err != nil {
		t.Fatal(err)
	}
	if mem.Writes() != before {
		t.Error("LoadSettings rewrote initialized memory")
	}

	got := c.Settings()
	if got[1] != stored[1] {
		t.Errorf("joint 1 = %+v, want %+v", got[1], stored[1])
	}
	if got[2] != DefaultSettings()[2] {
		t.Errorf("invalid joint 2 = %+v, want factory setting", got[2])
	}
	if a, _ := c.Angle(1); a != 10 {
		t.Errorf("joint 1 angle = %d, want home 10", a)
	}
}

type failingMemory struct{ *MapMemory }

func (failingMemory) StoreByte(int, byte) error { return errors.New("write protected") }

func TestController_SetAngleClamps(t *testing.T) {
	c, _ := newTestController(t, NewMapMemory())
	if err := c.LoadSettings(); err != nil {
		t.Fatal(err)
	}
	if !c.SetMinAngle(4, -400) || !c.SetMaxAngle(4, 300) {
		t.Fatal("could not narrow joint 4")
	}

	tests := []struct {
		angle    int
		expected int
	}{
		{0, 0},
		{-400, -400},
		{-700, -400},
		{299, 299},
		{5000, 300},
	}
	for _, tt := range tests {
		if !c.SetAngle(4, tt.angle) {
			t.Fatalf("SetAngle(4, %d) failed", tt.angle)
		}
		if got, _ := c.Angle(4); got != tt.expected {
			t.Errorf("SetAngle(4, %d) applied %d, want %d", tt.angle, got, tt.expected)
		}
		pulse := c.Handoff().Load(4)
		if pulse != Pulse(tt.expected, Clockwise) {
			t.Errorf("SetAngle(4, %d) pulse = %d, want %d", tt.angle, pulse, Pulse(tt.expected, Clockwise))
		}
		if pulse < Pulse(-400, Clockwise) || pulse > Pulse(300, Clockwise) {
			t.Errorf("pulse %d outside the boundary pulses", pulse)
		}
	}
}

func TestController_SetAngleDiff(t *testing.T) {
	c, _ := newTestController(t, NewMapMemory(), WithRotation(CounterClockwise))

	// Joint 6 home is 500.
	c.SetAngleDiff(6, 100)
	if got, _ := c.Angle(6); got != 600 {
		t.Errorf("angle = %d, want 600", got)
	}
	c.SetAngleDiff(6, 1000)
	if got, _ := c.Angle(6); got != AngleMax {
		t.Errorf("angle = %d, want clamp to %d", got, AngleMax)
	}
	if got := c.Handoff().Load(6); got != PWMMin {
		t.Errorf("ccw pulse at max = %d, want %d", got, PWMMin)
	}
}

func TestController_BadJoint(t *testing.T) {
	c, _ := newTestController(t, NewMapMemory())
	before := make([]uint16, Sum)
	for id := range before {
		before[id] = c.Handoff().Load(id)
	}

	for _, id := range []int{-1, Sum, 255} {
		if c.SetAngle(id, 0) || c.SetAngleDiff(id, 0) {
			t.Errorf("joint %d accepted", id)
		}
		if c.SetMinAngle(id, 0) || c.SetMaxAngle(id, 0) || c.SetHomeAngle(id, 0) {
			t.Errorf("setter for joint %d accepted", id)
		}
		if _, ok := c.MinAngle(id); ok {
			t.Errorf("MinAngle(%d) reported ok", id)
		}
	}

	for id := range before {
		if got := c.Handoff().Load(id); got != before[id] {
			t.Errorf("pulse of joint %d changed to %d", id, got)
		}
	}
}

func TestController_Setters(t *testing.T) {
	mem := NewMapMemory()
	c, _ := newTestController(t, mem)
	if err := c.LoadSettings(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		set  func() bool
		ok   bool
	}{
		{"min above max", func() bool { return c.SetMinAngle(0, AngleMax) }, false},
		{"min below travel", func() bool { return c.SetMinAngle(0, AngleMin-1) }, false},
		{"min", func() bool { return c.SetMinAngle(0, -500) }, true},
		{"max below min", func() bool { return c.SetMaxAngle(0, -500) }, false},
		{"max above travel", func() bool { return c.SetMaxAngle(0, AngleMax+1) }, false},
		{"max", func() bool { return c.SetMaxAngle(0, 450) }, true},
		{"min above home", func() bool { return c.SetMinAngle(0, 1) }, false},
		{"max below home", func() bool { return c.SetMaxAngle(0, -1) }, false},
		{"home outside", func() bool { return c.SetHomeAngle(0, 451) }, false},
		{"home at max", func() bool { return c.SetHomeAngle(0, 450) }, true},
	}
	for _, tt := range tests {
		if got := tt.set(); got != tt.ok {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.ok)
		}
	}

	want := Setting{Min: -500, Max: 450, Home: 450}
	if got := c.Settings()[0]; got != want {
		t.Errorf("setting = %+v, want %+v", got, want)
	}

	// Reload from memory to check the mirrored bytes.
	c2, _ := newTestController(t, mem)
	if err := c2.LoadSettings(); err != nil {
		t.Fatal(err)
	}
	if got := c2.Settings()[0]; got != want {
		t.Errorf("reloaded setting = %+v, want %+v", got, want)
	}
}

func TestController_LimitsKeepHomeInside(t *testing.T) {
	mem := NewMapMemory()
	c, _ := newTestController(t, mem)
	if err := c.LoadSettings(); err != nil {
		t.Fatal(err)
	}

	// Joint 0 home is 0.
	if c.SetMinAngle(0, 100) {
		t.Error("min above home accepted")
	}
	if !c.SetMaxAngle(0, 600) {
		t.Fatal("SetMaxAngle failed")
	}

	want := Setting{Min: AngleMin, Max: 600, Home: 0}
	c2, _ := newTestController(t, mem)
	if err := c2.LoadSettings(); err != nil {
		t.Fatal(err)
	}
	if got := c2.Settings()[0]; got != want {
		t.Errorf("reloaded setting = %+v, want %+v", got, want)
	}
}

func TestController_AngleDiff(t *testing.T) {
	c, _ := newTestController(t, NewMapMemory())

	// Joint 6 home is 500.
	c.SetAngle(6, 620)
	if got, ok := c.AngleDiff(6); !ok || got != 120 {
		t.Errorf("AngleDiff(6) = %d, %v, want 120, true", got, ok)
	}
	if _, ok := c.AngleDiff(Sum); ok {
		t.Error("AngleDiff accepted a bad joint")
	}
}

func TestController_SetterMirrorsOnlyField(t *testing.T) {
	mem := NewMapMemory()
	c, _ := newTestController(t, mem)
	if err := c.LoadSettings(); err != nil {
		t.Fatal(err)
	}
	before := mem.Writes()

	if !c.SetHomeAngle(5, 20) {
		t.Fatal("SetHomeAngle failed")
	}
	if got := mem.Writes() - before; got != fieldSize {
		t.Errorf("SetHomeAngle wrote %d bytes, want %d", got, fieldSize)
	}
	lo, _ := mem.LoadByte(fieldAddress(5, fieldHome))
	hi, _ := mem.LoadByte(fieldAddress(5, fieldHome) + 1)
	if lo != 20 || hi != 0 {
		t.Errorf("home bytes = %#x %#x, want 0x14 0x00", lo, hi)
	}
}

func TestController_SetterWriteFailure(t *testing.T) {
	c, _ := newTestController(t, failingMemory{NewMapMemory()})

	if c.SetHomeAngle(0, 10) {
		t.Error("SetHomeAngle succeeded on failing memory")
	}
	if got, _ := c.HomeAngle(0); got != 0 {
		t.Errorf("home changed to %d after failed write", got)
	}
	if err := c.LoadSettings(); err == nil {
		t.Error("LoadSettings succeeded on failing memory")
	}
}

func TestController_ResetSettings(t *testing.T) {
	mem := NewMapMemory()
	c, timer := newTestController(t, mem)
	if err := c.LoadSettings(); err != nil {
		t.Fatal(err)
	}
	c.SetMinAngle(7, 0)
	c.SetAngle(7, 650)

	if err := c.ResetSettings(); err != nil {
		t.Fatal(err)
	}
	if got := c.Settings(); got != DefaultSettings() {
		t.Errorf("settings not reset: %+v", got[7])
	}
	if got, _ := c.Angle(7); got != 300 {
		t.Errorf("joint 7 angle = %d, want home 300", got)
	}
	if timer.Starts() != 2 {
		t.Errorf("timer started %d times, want 2", timer.Starts())
	}
}
