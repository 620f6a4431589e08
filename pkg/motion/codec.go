package motion

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gwillem/motioncore/pkg/joint"
)

// Version is the layout version written in the first byte of every record.
const Version = 1

// Encoded record sizes.
const (
	HeaderSize = 1 + 1 + NameLength + 1 + 1 + 4 + 3 // 31
	FrameSize  = 1 + 1 + 2 + joint.Sum*2             // 52
)

const (
	flagExtra = 1 << iota
	flagJump
	flagLoop

	flagMask = flagExtra | flagJump | flagLoop
)

// header byte offsets
const (
	hVersion     = 0
	hSlot        = 1
	hName        = 2
	hFrameLength = hName + NameLength
	hFlags       = hFrameLength + 1
	hLoopBegin   = hFlags + 1
	hLoopEnd     = hLoopBegin + 1
	hLoopCount   = hLoopEnd + 1
	hJumpSlot    = hLoopCount + 1
	hStopFlags   = hJumpSlot + 1
)

// frame byte offsets
const (
	fVersion = 0
	fIndex   = 1
	fTime    = 2
	fAngles  = 4
)

// EncodeHeader validates h and returns its stored form.
func EncodeHeader(h *Header) ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, HeaderSize)
	buf[hVersion] = Version
	buf[hSlot] = byte(h.Slot)
	copy(buf[hName:hName+NameLength], h.Name)
	buf[hFrameLength] = byte(h.FrameLength)

	var flags byte
	if h.UseExtra {
		flags |= flagExtra
	}
	if h.UseJump {
		flags |= flagJump
	}
	if h.UseLoop {
		flags |= flagLoop
	}
	buf[hFlags] = flags
	buf[hLoopBegin] = byte(h.LoopBegin)
	buf[hLoopEnd] = byte(h.LoopEnd)
	buf[hLoopCount] = byte(h.LoopCount)
	buf[hJumpSlot] = byte(h.JumpSlot)
	copy(buf[hStopFlags:], h.StopFlags[:])
	return buf, nil
}

// DecodeHeader parses a stored header.
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) != HeaderSize {
		return h, fmt.Errorf("%w: header of %d bytes", ErrCorrupt, len(buf))
	}
	if buf[hVersion] != Version {
		return h, fmt.Errorf("header version %#x: %w", buf[hVersion], ErrVersion)
	}
	flags := buf[hFlags]
	if flags&^flagMask != 0 {
		return h, fmt.Errorf("%w: reserved header flags %#x", ErrCorrupt, flags)
	}

	name := buf[hName : hName+NameLength]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	h = Header{
		Slot:        int(buf[hSlot]),
		Name:        string(name),
		FrameLength: int(buf[hFrameLength]),
		UseExtra:    flags&flagExtra != 0,
		UseJump:     flags&flagJump != 0,
		UseLoop:     flags&flagLoop != 0,
		LoopBegin:   int(buf[hLoopBegin]),
		LoopEnd:     int(buf[hLoopEnd]),
		LoopCount:   int(buf[hLoopCount]),
		JumpSlot:    int(buf[hJumpSlot]),
	}
	copy(h.StopFlags[:], buf[hStopFlags:])

	if err := h.Validate(); err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return h, nil
}

// EncodeFrame validates f and returns its stored form.
func EncodeFrame(f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, FrameSize)
	buf[fVersion] = Version
	buf[fIndex] = byte(f.Index)
	binary.LittleEndian.PutUint16(buf[fTime:], uint16(f.TransitionTime))
	for id, a := range f.Angles {
		binary.LittleEndian.PutUint16(buf[fAngles+id*2:], uint16(int16(a)))
	}
	return buf, nil
}

// DecodeFrame parses a stored frame.
func DecodeFrame(buf []byte) (Frame, error) {
	var f Frame
	if len(buf) != FrameSize {
		return f, fmt.Errorf("%w: frame of %d bytes", ErrCorrupt, len(buf))
	}
	if buf[fVersion] != Version {
		return f, fmt.Errorf("frame version %#x: %w", buf[fVersion], ErrVersion)
	}
	f.Index = int(buf[fIndex])
	f.TransitionTime = int(binary.LittleEndian.Uint16(buf[fTime:]))
	for id := range f.Angles {
		f.Angles[id] = int(int16(binary.LittleEndian.Uint16(buf[fAngles+id*2:])))
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return f, nil
}
