package joint

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Rotation selects the sense of the angle to pulse map.
type Rotation int

const (
	// Clockwise maps AngleMin to PWMMin.
	Clockwise Rotation = iota
	// CounterClockwise maps AngleMin to PWMMax, for older frames with
	// mirrored servo horns.
	CounterClockwise
)

// ParseRotation converts "cw"/"ccw" into a Rotation.
func ParseRotation(s string) (Rotation, error) {
	switch s {
	case "", "cw", "clockwise":
		return Clockwise, nil
	case "ccw", "counterclockwise":
		return CounterClockwise, nil
	}
	return Clockwise, fmt.Errorf("unknown rotation %q", s)
}

func (r Rotation) String() string {
	if r == CounterClockwise {
		return "ccw"
	}
	return "cw"
}

// Pulse maps an absolute angle onto the timer compare range. The result is
// only guaranteed inside [PWMMin, PWMMax] for angles inside the absolute
// travel limits.
func Pulse(angle int, r Rotation) uint16 {
	outMin, outMax := PWMMin, PWMMax
	if r == CounterClockwise {
		outMin, outMax = PWMMax, PWMMin
	}
	return uint16((angle-AngleMin)*(outMax-outMin)/(AngleMax-AngleMin) + outMin)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for memory and timer failures.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRotation sets the rotation sense of every joint.
func WithRotation(r Rotation) Option {
	return func(c *Controller) {
		c.rotation = r
	}
}

// Controller owns the joint calibration and publishes pulse widths to the
// multiplexer. Construction has no side effects; LoadSettings reads the
// calibration and starts the timer.
type Controller struct {
	mem      Memory
	timer    Timer
	handoff  *Handoff
	mux      *Multiplexer
	logger   *zap.SugaredLogger
	rotation Rotation

	mu       sync.Mutex
	settings Settings
	angles   [Sum]int
}

// NewController creates a controller with factory settings. Pulses are
// delivered to out from the timer handler.
func NewController(mem Memory, out Outputs, timer Timer, opts ...Option) *Controller {
	c := &Controller{
		mem:      mem,
		timer:    timer,
		handoff:  NewHandoff(),
		settings: DefaultSettings(),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mux = NewMultiplexer(out, c.handoff, c.logger)
	for id := range c.settings {
		c.setAngle(id, c.settings[id].Home)
	}
	return c
}

// Handoff returns the pulse buffer shared with the timer handler.
func (c *Controller) Handoff() *Handoff {
	return c.handoff
}

// Multiplexer returns the timer handler.
func (c *Controller) Multiplexer() *Multiplexer {
	return c.mux
}

// LoadSettings reads the calibration from memory, writing factory settings
// first when the memory was never initialized. Every joint is moved to its
// home angle and the timer is started.
func (c *Controller) LoadSettings() error {
	sentinel, err := c.mem.LoadByte(SentinelAddress)
	if err != nil {
		return fmt.Errorf("read calibration sentinel: %w", err)
	}

	c.mu.Lock()
	if sentinel != SentinelValue {
		c.logger.Infow("calibration memory not initialized, writing defaults")
		err = c.writeAll(c.settings)
	} else {
		err = c.readAll()
	}
	if err == nil {
		for id := range c.settings {
			c.setAngle(id, c.settings[id].Home)
		}
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	return c.startTimer()
}

// ResetSettings rewrites the factory calibration, moves every joint home
// and (re)starts the timer.
func (c *Controller) ResetSettings() error {
	defaults := DefaultSettings()

	c.mu.Lock()
	err := c.writeAll(defaults)
	c.settings = defaults
	for id := range c.settings {
		c.setAngle(id, c.settings[id].Home)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	return c.startTimer()
}

// Stop halts the timer. Pulses stay in the handoff buffer.
func (c *Controller) Stop() {
	c.timer.Stop()
}

func (c *Controller) startTimer() error {
	if err := c.timer.Start(c.mux.Tick); err != nil {
		return fmt.Errorf("start joint timer: %w", err)
	}
	return nil
}

// writeAll stores the sentinel and every setting, one byte at a time.
// Caller holds mu.
func (c *Controller) writeAll(s Settings) error {
	if err := c.mem.StoreByte(SentinelAddress, SentinelValue); err != nil {
		return fmt.Errorf("write calibration sentinel: %w", err)
	}
	for i, b := range s.Encode() {
		if err := c.mem.StoreByte(SettingsAddress+i, b); err != nil {
			return fmt.Errorf("write calibration: %w", err)
		}
	}
	return nil
}

// readAll loads every setting. Joints with an unusable stored range keep
// their factory setting. Caller holds mu.
func (c *Controller) readAll() error {
	buf := make([]byte, MemorySize-SettingsAddress)
	for i := range buf {
		b, err := c.mem.LoadByte(SettingsAddress + i)
		if err != nil {
			return fmt.Errorf("read calibration: %w", err)
		}
		buf[i] = b
	}
	stored, err := DecodeSettings(buf)
	if err != nil {
		return err
	}

	defaults := DefaultSettings()
	for id, st := range stored {
		if !st.Valid() {
			c.logger.Warnw("ignoring invalid stored calibration",
				"joint", NameOf(id), "min", st.Min, "max", st.Max, "home", st.Home)
			stored[id] = defaults[id]
		}
	}
	c.settings = stored
	return nil
}

// storeField mirrors a single field of a setting to memory. Caller holds mu.
func (c *Controller) storeField(id int, f field, value int) error {
	addr := fieldAddress(id, f)
	v := uint16(int16(value))
	if err := c.mem.StoreByte(addr, byte(v)); err != nil {
		return err
	}
	return c.mem.StoreByte(addr+1, byte(v>>8))
}

// MinAngle returns the lower limit of a joint.
func (c *Controller) MinAngle(id int) (int, bool) {
	if !Valid(id) {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings[id].Min, true
}

// MaxAngle returns the upper limit of a joint.
func (c *Controller) MaxAngle(id int) (int, bool) {
	if !Valid(id) {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings[id].Max, true
}

// HomeAngle returns the home angle of a joint.
func (c *Controller) HomeAngle(id int) (int, bool) {
	if !Valid(id) {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings[id].Home, true
}

// SetMinAngle sets the lower limit of a joint. The limit must stay below
// the upper limit, at or below home and inside the absolute travel.
func (c *Controller) SetMinAngle(id, angle int) bool {
	if !Valid(id) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.settings[id]
	if angle >= s.Max || angle > s.Home || angle < AngleMin {
		return false
	}
	return c.updateField(id, fieldMin, angle, &c.settings[id].Min)
}

// SetMaxAngle sets the upper limit of a joint. The limit must stay above
// the lower limit, at or above home and inside the absolute travel.
func (c *Controller) SetMaxAngle(id, angle int) bool {
	if !Valid(id) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.settings[id]
	if angle <= s.Min || angle < s.Home || angle > AngleMax {
		return false
	}
	return c.updateField(id, fieldMax, angle, &c.settings[id].Max)
}

// SetHomeAngle sets the home angle of a joint, which must lie inside the
// joint's limits.
func (c *Controller) SetHomeAngle(id, angle int) bool {
	if !Valid(id) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if angle < c.settings[id].Min || angle > c.settings[id].Max {
		return false
	}
	return c.updateField(id, fieldHome, angle, &c.settings[id].Home)
}

func (c *Controller) updateField(id int, f field, angle int, dst *int) bool {
	if err := c.storeField(id, f, angle); err != nil {
		c.logger.Warnw("calibration write failed", "joint", NameOf(id), "error", err)
		return false
	}
	*dst = angle
	return true
}

// SetAngle drives a joint to an absolute angle, clamped to its limits.
func (c *Controller) SetAngle(id, angle int) bool {
	if !Valid(id) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAngle(id, angle)
	return true
}

// SetAngleDiff drives a joint to home+diff, clamped to its limits.
func (c *Controller) SetAngleDiff(id, diff int) bool {
	if !Valid(id) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAngle(id, c.settings[id].Home+diff)
	return true
}

// setAngle clamps and publishes. Caller holds mu or owns c exclusively.
func (c *Controller) setAngle(id, angle int) {
	angle = c.settings[id].Clamp(angle)
	c.angles[id] = angle
	c.handoff.Store(id, Pulse(angle, c.rotation))
}

// Angle returns the last applied absolute angle of a joint.
func (c *Controller) Angle(id int) (int, bool) {
	if !Valid(id) {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.angles[id], true
}

// AngleDiff returns the last applied angle of a joint as an offset from
// its home angle.
func (c *Controller) AngleDiff(id int) (int, bool) {
	if !Valid(id) {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.angles[id] - c.settings[id].Home, true
}

// Angles returns the last applied absolute angle of every joint.
func (c *Controller) Angles() [Sum]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.angles
}

// Settings returns a copy of the calibration.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Dump writes the calibration as JSON.
func (c *Controller) Dump(w io.Writer) error {
	s := c.Settings()
	return s.Dump(w)
}
