// Package playback interpolates stored motions frame by frame.
//
// Positions are kept in 16.16 fixed point. A transition is split into one
// step per multiplexer cycle, and each step is only taken after the timer
// handler reports a finished cycle.
//
// A Controller is owned by the main loop and is not safe for concurrent
// use.
package playback

import (
	"go.uber.org/zap"

	"github.com/gwillem/motioncore/pkg/joint"
	"github.com/gwillem/motioncore/pkg/motion"
)

// Precision is the number of fractional bits of a position.
const Precision = 16

func fixed(v int) int32 {
	return int32(v) << Precision
}

func unfixed(v int32) int {
	return int(v >> Precision)
}

// Joints receives interpolated positions as offsets from home and reports
// the offsets last applied, whoever set them.
type Joints interface {
	SetAngleDiff(id, diff int) bool
	AngleDiff(id int) (int, bool)
}

// Cycle is the handshake with the timer handler.
type Cycle interface {
	CycleFinished() bool
	ClearCycle()
}

// Motions reads stored motion records.
type Motions interface {
	Header(slot int) (motion.Header, error)
	Frame(slot, index int) (motion.Frame, error)
}

// Snapshot describes the playback state for monitoring.
type Snapshot struct {
	Playing   bool
	Slot      int
	Name      string
	Frame     int
	Remaining int
	Angles    [joint.Sum]int
}

// Controller is the playback state machine. It is Idle until Play and
// returns to Idle when a motion ends or Stop is called.
type Controller struct {
	joints  Joints
	cycle   Cycle
	motions Motions
	logger  *zap.SugaredLogger

	playing bool
	header  motion.Header

	// buffer holds the frame moved from and the frame moved to.
	buffer        [2]motion.Frame
	current, next int

	count   int
	applied [joint.Sum]int
	pos     [joint.Sum]int32
	delta   [joint.Sum]int32
}

// New returns an idle controller. The current frame starts at home.
func New(joints Joints, cycle Cycle, motions Motions, logger *zap.SugaredLogger) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Controller{
		joints:  joints,
		cycle:   cycle,
		motions: motions,
		logger:  logger,
		current: 0,
		next:    1,
	}
}

// Playing reports whether a motion is being played.
func (c *Controller) Playing() bool {
	return c.playing
}

// FrameUpdatable reports whether the timer finished a cycle since the last
// update.
func (c *Controller) FrameUpdatable() bool {
	return c.cycle.CycleFinished()
}

// UpdatingFinished reports whether the current transition is complete.
func (c *Controller) UpdatingFinished() bool {
	return c.count == 0
}

// NextFrameLoadable reports whether LoadNextFrame has somewhere to go.
func (c *Controller) NextFrameLoadable() bool {
	if c.header.UseLoop || c.header.UseJump {
		return true
	}
	return c.buffer[c.next].Index+1 < c.header.FrameLength
}

// Header returns the header of the motion being played, including any
// loop and jump changes made during playback.
func (c *Controller) Header() motion.Header {
	return c.header
}

// Play starts the motion in slot from its first frame. It does nothing and
// returns false while playing, for an invalid slot, or when the motion
// cannot be read.
func (c *Controller) Play(slot int) bool {
	if c.playing || !motion.ValidSlot(slot) {
		return false
	}

	h, err := c.motions.Header(slot)
	if err != nil {
		c.logger.Warnw("cannot play motion", "slot", slot, "error", err)
		return false
	}
	prev := c.header
	c.header = h
	c.sync()
	if err := c.setupFrame(0); err != nil {
		c.header = prev
		c.logger.Warnw("cannot play motion", "slot", slot, "error", err)
		return false
	}

	c.playing = true
	c.logger.Debugw("motion started", "slot", slot, "name", h.Name, "frames", h.FrameLength)
	return true
}

// WillStop lets the motion finish at its last frame by turning off loop and
// jump.
func (c *Controller) WillStop() {
	c.header.UseLoop = false
	c.header.UseJump = false
}

// Stop returns to Idle at once. The current frame is set to the positions
// the joints hold so the next motion starts from there.
func (c *Controller) Stop() {
	if c.playing {
		c.logger.Debugw("motion stopped", "slot", c.header.Slot)
	}
	c.playing = false
	c.count = 0
	c.sync()
}

// sync reads the joint positions back into the current frame. Joints may
// have been moved directly while idle.
func (c *Controller) sync() {
	for id := 0; id < joint.Sum; id++ {
		if diff, ok := c.joints.AngleDiff(id); ok {
			c.applied[id] = diff
		}
	}
	c.buffer[c.current].Angles = c.applied
}

// ConfigureLoop replaces the loop window of the motion being played. A
// count of zero turns looping off. It returns false when idle or when the
// window lies outside the motion.
func (c *Controller) ConfigureLoop(begin, end, count int) bool {
	if !c.playing {
		return false
	}
	if count < 0 || count > 0xFF || begin < 0 || begin > end || end >= c.header.FrameLength {
		return false
	}
	if count == 0 {
		c.header.UseLoop = false
		return true
	}
	c.header.UseLoop = true
	c.header.LoopBegin = begin
	c.header.LoopEnd = end
	c.header.LoopCount = count
	return true
}

// DisableJump turns off the jump of the motion being played.
func (c *Controller) DisableJump() {
	c.header.UseJump = false
}

// UpdateFrame takes one interpolation step and hands the cycle back to the
// timer handler. The last step lands exactly on the target frame.
func (c *Controller) UpdateFrame() {
	if !c.playing || c.count == 0 {
		return
	}
	c.count--

	target := &c.buffer[c.next]
	for id := 0; id < joint.Sum; id++ {
		if c.count == 0 {
			c.pos[id] = fixed(target.Angles[id])
		} else {
			c.pos[id] += c.delta[id]
		}
		c.applied[id] = unfixed(c.pos[id])
		c.joints.SetAngleDiff(id, c.applied[id])
	}

	c.cycle.ClearCycle()
}

// LoadNextFrame moves on once a transition is finished. Loop takes
// precedence over jump, and jump over the next frame in sequence. Past the
// last frame the controller goes Idle.
func (c *Controller) LoadNextFrame() {
	if !c.playing {
		return
	}
	c.current, c.next = c.next, c.current
	now := c.buffer[c.current].Index

	if c.header.UseLoop && c.header.LoopCount == 0 {
		c.header.UseLoop = false
	}

	if c.header.UseLoop && now >= c.header.LoopEnd {
		if c.header.LoopCount != motion.LoopInfinite {
			c.header.LoopCount--
		}
		if c.header.LoopCount == 0 {
			c.header.UseLoop = false
		}
		c.load(c.header.LoopBegin)
		return
	}

	if !c.header.UseLoop && c.header.UseJump && now >= c.header.FrameLength-1 {
		h, err := c.motions.Header(c.header.JumpSlot)
		if err != nil {
			c.logger.Warnw("cannot jump", "from", c.header.Slot, "to", c.header.JumpSlot, "error", err)
			c.Stop()
			return
		}
		c.logger.Debugw("motion jumped", "from", c.header.Slot, "to", h.Slot)
		c.header = h
		c.load(0)
		return
	}

	if now+1 >= c.header.FrameLength {
		c.Stop()
		return
	}
	c.load(now + 1)
}

func (c *Controller) load(index int) {
	if err := c.setupFrame(index); err != nil {
		c.logger.Warnw("cannot load frame", "slot", c.header.Slot, "frame", index, "error", err)
		c.Stop()
	}
}

// setupFrame reads frame index into the next buffer and computes the
// per-step delta from the current frame.
func (c *Controller) setupFrame(index int) error {
	f, err := c.motions.Frame(c.header.Slot, index)
	if err != nil {
		return err
	}
	c.buffer[c.next] = f
	c.count = f.TransitionTicks()

	from := &c.buffer[c.current]
	for id := 0; id < joint.Sum; id++ {
		c.pos[id] = fixed(from.Angles[id])
		diff := int64(f.Angles[id]-from.Angles[id]) << Precision
		c.delta[id] = int32(diff / int64(c.count))
	}
	return nil
}

// Snapshot returns the state for display.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Playing:   c.playing,
		Slot:      c.header.Slot,
		Name:      c.header.Name,
		Frame:     c.buffer[c.next].Index,
		Remaining: c.count,
		Angles:    c.applied,
	}
}
