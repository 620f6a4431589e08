package motion

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gwillem/motioncore/pkg/storage"
)

// Slot map. Records are split into storage.SlotSize chunks; the last chunk
// of a record carries the remainder.
const (
	HeaderSlots = (HeaderSize + storage.SlotSize - 1) / storage.SlotSize
	FrameSlots  = (FrameSize + storage.SlotSize - 1) / storage.SlotSize
	MotionSlots = HeaderSlots + FrameSlots*FrameLengthMax
)

// HeaderAddress returns the storage slot of chunk i of a motion header.
func HeaderAddress(slot, i int) int {
	return slot*MotionSlots + i
}

// FrameAddress returns the storage slot of chunk i of a frame.
func FrameAddress(slot, index, i int) int {
	return slot*MotionSlots + HeaderSlots + index*FrameSlots + i
}

// Store reads and writes motions in a slot store.
type Store struct {
	slots  storage.SlotStore
	logger *zap.SugaredLogger
}

// NewStore checks that slots can hold every motion.
func NewStore(slots storage.SlotStore, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if slots.SlotSize() != storage.SlotSize {
		return nil, fmt.Errorf("slot store payload %d, want %d", slots.SlotSize(), storage.SlotSize)
	}
	if need := SlotEnd * MotionSlots; slots.Slots() < need {
		return nil, fmt.Errorf("slot store has %d slots, need %d", slots.Slots(), need)
	}
	return &Store{slots: slots, logger: logger}, nil
}

// Header reads the header of a motion.
func (s *Store) Header(slot int) (Header, error) {
	if !ValidSlot(slot) {
		return Header{}, fmt.Errorf("slot %d: %w", slot, ErrSlotRange)
	}
	buf := make([]byte, HeaderSize)
	if err := s.read(HeaderAddress(slot, 0), buf); err != nil {
		return Header{}, fmt.Errorf("read header %d: %w", slot, err)
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return h, fmt.Errorf("read header %d: %w", slot, err)
	}
	if h.Slot != slot {
		return h, fmt.Errorf("read header %d: %w: stored slot %d", slot, ErrCorrupt, h.Slot)
	}
	return h, nil
}

// SetHeader writes the header to the motion slot it names.
func (s *Store) SetHeader(h *Header) error {
	buf, err := EncodeHeader(h)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := s.write(HeaderAddress(h.Slot, 0), buf); err != nil {
		return fmt.Errorf("write header %d: %w", h.Slot, err)
	}
	return nil
}

// Frame reads frame index of a motion.
func (s *Store) Frame(slot, index int) (Frame, error) {
	if !ValidSlot(slot) {
		return Frame{}, fmt.Errorf("slot %d: %w", slot, ErrSlotRange)
	}
	if !ValidFrame(index) {
		return Frame{}, fmt.Errorf("frame %d: %w", index, ErrFrameRange)
	}
	buf := make([]byte, FrameSize)
	if err := s.read(FrameAddress(slot, index, 0), buf); err != nil {
		return Frame{}, fmt.Errorf("read frame %d/%d: %w", slot, index, err)
	}
	f, err := DecodeFrame(buf)
	if err != nil {
		return f, fmt.Errorf("read frame %d/%d: %w", slot, index, err)
	}
	if f.Index != index {
		return f, fmt.Errorf("read frame %d/%d: %w: stored index %d", slot, index, ErrCorrupt, f.Index)
	}
	return f, nil
}

// SetFrame writes a frame of a motion at f.Index.
func (s *Store) SetFrame(slot int, f *Frame) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("slot %d: %w", slot, ErrSlotRange)
	}
	buf, err := EncodeFrame(f)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := s.write(FrameAddress(slot, f.Index, 0), buf); err != nil {
		return fmt.Errorf("write frame %d/%d: %w", slot, f.Index, err)
	}
	return nil
}

// read fills buf from consecutive slots starting at base. It stops at the
// first failing chunk.
func (s *Store) read(base int, buf []byte) error {
	size := s.slots.SlotSize()
	for i := 0; i*size < len(buf); i++ {
		end := min((i+1)*size, len(buf))
		if err := s.slots.ReadSlot(base+i, buf[i*size:end]); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}

// write stores data in consecutive slots starting at base. A failing chunk
// leaves the earlier chunks written.
func (s *Store) write(base int, data []byte) error {
	size := s.slots.SlotSize()
	for i := 0; i*size < len(data); i++ {
		end := min((i+1)*size, len(data))
		if err := s.slots.WriteSlot(base+i, data[i*size:end]); err != nil {
			s.logger.Warnw("record partially written", "slot", base, "chunks", i)
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}
