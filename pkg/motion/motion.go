// Package motion defines motion records and stores them in a slot store.
//
// A motion is a header followed by up to FrameLengthMax keyframes. Every
// motion owns the same number of slots, so its position in the store only
// depends on its slot number.
package motion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gwillem/motioncore/pkg/joint"
)

const (
	SlotBegin = 0
	SlotEnd   = 90

	NameLength = 20

	FrameLengthMin = 1
	FrameLengthMax = 20
	FrameBegin     = 0
	FrameEnd       = 20

	// FrameInterval is the playback step, one multiplexer cycle rounded to
	// whole milliseconds.
	FrameInterval = 32 * time.Millisecond

	// LoopInfinite as a loop count never runs out.
	LoopInfinite = 255
)

var (
	ErrSlotRange  = errors.New("motion slot out of range")
	ErrFrameRange = errors.New("frame index out of range")
	ErrInvalid    = errors.New("invalid motion record")
	// ErrVersion is returned when a stored record has an unknown layout,
	// which includes never written memory.
	ErrVersion = errors.New("unknown record version")
	ErrCorrupt = errors.New("corrupt motion record")
)

// Header describes a motion and its control flow.
type Header struct {
	Slot        int
	Name        string
	FrameLength int

	UseExtra bool
	UseJump  bool
	UseLoop  bool

	LoopBegin int
	LoopEnd   int
	LoopCount int
	JumpSlot  int

	StopFlags [3]byte
}

// Frame is one keyframe. Angles are offsets from each joint's home angle.
type Frame struct {
	Index int
	// TransitionTime is the time to move from the previous frame, in ms.
	TransitionTime int
	Angles         [joint.Sum]int
}

// ValidSlot reports whether slot addresses a motion.
func ValidSlot(slot int) bool {
	return slot >= SlotBegin && slot < SlotEnd
}

// ValidFrame reports whether index addresses a frame.
func ValidFrame(index int) bool {
	return index >= FrameBegin && index < FrameEnd
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func byteWide(v int) bool {
	return v >= 0 && v <= 0xFF
}

// Validate checks ranges and the loop window.
func (h *Header) Validate() error {
	if !ValidSlot(h.Slot) {
		return fmt.Errorf("slot %d: %w", h.Slot, ErrSlotRange)
	}
	if len(h.Name) > NameLength {
		return invalid("name %q longer than %d bytes", h.Name, NameLength)
	}
	if strings.IndexByte(h.Name, 0) >= 0 {
		return invalid("name %q contains NUL", h.Name)
	}
	if h.FrameLength < FrameLengthMin || h.FrameLength > FrameLengthMax {
		return invalid("frame length %d", h.FrameLength)
	}
	if !byteWide(h.LoopBegin) || !byteWide(h.LoopEnd) || !byteWide(h.LoopCount) || !byteWide(h.JumpSlot) {
		return invalid("loop or jump field wider than a byte")
	}
	if h.UseLoop && (h.LoopBegin > h.LoopEnd || h.LoopEnd >= h.FrameLength) {
		return invalid("loop window [%d, %d] outside %d frames", h.LoopBegin, h.LoopEnd, h.FrameLength)
	}
	if h.UseJump && !ValidSlot(h.JumpSlot) {
		return invalid("jump slot %d", h.JumpSlot)
	}
	return nil
}

// Validate checks the frame index, transition time and angle width.
func (f *Frame) Validate() error {
	if !ValidFrame(f.Index) {
		return fmt.Errorf("frame %d: %w", f.Index, ErrFrameRange)
	}
	if f.TransitionTime <= 0 || f.TransitionTime > 0xFFFF {
		return invalid("transition time %d ms", f.TransitionTime)
	}
	for id, a := range f.Angles {
		if a < -0x8000 || a > 0x7FFF {
			return invalid("angle %d of joint %d", a, id)
		}
	}
	return nil
}

// TransitionTicks is the number of playback steps a transition takes,
// never less than one.
func (f *Frame) TransitionTicks() int {
	ticks := f.TransitionTime / int(FrameInterval/time.Millisecond)
	if ticks < 1 {
		return 1
	}
	return ticks
}
