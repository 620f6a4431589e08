package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gwillem/motioncore/pkg/joint"
	"github.com/gwillem/motioncore/pkg/motion"
)

// ErrArguments is returned for argument bytes of the wrong length or
// content.
var ErrArguments = errors.New("malformed arguments")

// Field widths in hex digits.
const (
	jointIDDigits = 2
	angleDigits   = 3
	slotDigits    = 2
	indexDigits   = 2
	timeDigits    = 4
	frameAngle    = 4
	flagDigits    = 1
	countDigits   = 2
)

// cursor walks an argument string field by field.
type cursor struct {
	b   []byte
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if len(c.b) < n {
		c.err = fmt.Errorf("%w: short by %d bytes", ErrArguments, n-len(c.b))
		return nil
	}
	f := c.b[:n]
	c.b = c.b[n:]
	return f
}

func (c *cursor) hex(n int) []byte {
	f := c.take(n)
	if c.err == nil && !IsHex(f) {
		c.err = fmt.Errorf("%w: %q is not hex", ErrArguments, f)
	}
	return f
}

func (c *cursor) unsigned(n int) int { return int(HexToUint(c.hex(n))) }
func (c *cursor) signed(n int) int   { return int(HexToInt(c.hex(n))) }
func (c *cursor) flag() bool         { return c.unsigned(flagDigits) != 0 }

func (c *cursor) done() error {
	if c.err == nil && len(c.b) != 0 {
		c.err = fmt.Errorf("%w: %d trailing bytes", ErrArguments, len(c.b))
	}
	return c.err
}

// JointArguments decodes a joint id and a signed angle.
func JointArguments(args []byte) (id, angle int, err error) {
	c := cursor{b: args}
	id = c.unsigned(jointIDDigits)
	angle = c.signed(angleDigits)
	return id, angle, c.done()
}

// SlotArguments decodes a slot number.
func SlotArguments(args []byte) (int, error) {
	c := cursor{b: args}
	slot := c.unsigned(slotDigits)
	return slot, c.done()
}

// PushArguments decodes a slot and a loop count.
func PushArguments(args []byte) (slot, loopCount int, err error) {
	c := cursor{b: args}
	slot = c.unsigned(slotDigits)
	loopCount = c.unsigned(countDigits)
	return slot, loopCount, c.done()
}

// HeaderArguments decodes a motion header. The name field is raw and ends
// at the first NUL; trailing spaces are dropped. Stop flags are not sent
// and stay zero.
func HeaderArguments(args []byte) (motion.Header, error) {
	c := cursor{b: args}
	var h motion.Header
	h.Slot = c.unsigned(slotDigits)
	name := c.take(motion.NameLength)
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	h.Name = string(bytes.TrimRight(name, " "))
	h.FrameLength = c.unsigned(slotDigits)
	h.UseExtra = c.flag()
	h.UseJump = c.flag()
	h.UseLoop = c.flag()
	h.LoopBegin = c.unsigned(indexDigits)
	h.LoopEnd = c.unsigned(indexDigits)
	h.LoopCount = c.unsigned(countDigits)
	h.JumpSlot = c.unsigned(slotDigits)
	return h, c.done()
}

// FrameArguments decodes the slot a frame belongs to and the frame.
func FrameArguments(args []byte) (int, motion.Frame, error) {
	c := cursor{b: args}
	var f motion.Frame
	slot := c.unsigned(slotDigits)
	f.Index = c.unsigned(indexDigits)
	f.TransitionTime = c.unsigned(timeDigits)
	for id := 0; id < joint.Sum; id++ {
		f.Angles[id] = c.signed(frameAngle)
	}
	return slot, f, c.done()
}

func line(symbol byte, name string, fields ...[]byte) []byte {
	out := append([]byte{symbol}, name...)
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

func flagHex(b bool) []byte {
	if b {
		return []byte{'1'}
	}
	return []byte{'0'}
}

// JointLine encodes a joint command such as "$AN0003C".
func JointLine(symbol byte, name string, id, angle int) []byte {
	return line(symbol, name, UintToHex(uint32(id), jointIDDigits), IntToHex(int32(angle), angleDigits))
}

// SlotLine encodes a command taking a slot, such as "$PM05".
func SlotLine(symbol byte, name string, slot int) []byte {
	return line(symbol, name, UintToHex(uint32(slot), slotDigits))
}

// PushLine encodes a queue push.
func PushLine(slot, loopCount int) []byte {
	return line(SymbolInterpreter, PushCode,
		UintToHex(uint32(slot), slotDigits), UintToHex(uint32(loopCount), countDigits))
}

// HeaderLine encodes a header install. The name is cut or NUL padded to
// its field.
func HeaderLine(h *motion.Header) []byte {
	name := make([]byte, motion.NameLength)
	copy(name, h.Name)
	return line(SymbolSetter, MotionHeader,
		UintToHex(uint32(h.Slot), slotDigits),
		name,
		UintToHex(uint32(h.FrameLength), slotDigits),
		flagHex(h.UseExtra),
		flagHex(h.UseJump),
		flagHex(h.UseLoop),
		UintToHex(uint32(h.LoopBegin), indexDigits),
		UintToHex(uint32(h.LoopEnd), indexDigits),
		UintToHex(uint32(h.LoopCount), countDigits),
		UintToHex(uint32(h.JumpSlot), slotDigits),
	)
}

// FrameLine encodes a frame install.
func FrameLine(slot int, f *motion.Frame) []byte {
	fields := [][]byte{
		UintToHex(uint32(slot), slotDigits),
		UintToHex(uint32(f.Index), indexDigits),
		UintToHex(uint32(f.TransitionTime), timeDigits),
	}
	for _, a := range f.Angles {
		fields = append(fields, IntToHex(int32(a), frameAngle))
	}
	return line(SymbolSetter, MotionFrame, fields...)
}
