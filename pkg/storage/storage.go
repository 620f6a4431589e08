// Package storage provides slot-addressed access to the external motion
// memory.
//
// The memory is split into fixed-size chunks. One chunk is the largest
// block moved in a single bus transaction, and part of it is taken by the
// address bytes, so the usable payload per slot is smaller than the chunk.
// Records larger than one slot are split by the caller.
package storage

import "errors"

// SlotStore reads and writes whole slots.
type SlotStore interface {
	// ReadSlot fills buf from the start of slot. len(buf) must not exceed
	// SlotSize.
	ReadSlot(slot int, buf []byte) error
	// WriteSlot writes data at the start of slot. len(data) must not
	// exceed SlotSize.
	WriteSlot(slot int, data []byte) error
	// SlotSize is the maximum payload of one transfer.
	SlotSize() int
	// Slots is the number of addressable slots.
	Slots() int
}

var (
	// ErrSlotRange is returned for a slot index outside the memory.
	ErrSlotRange = errors.New("slot out of range")
	// ErrSizeRange is returned for a transfer larger than one slot.
	ErrSizeRange = errors.New("transfer size out of range")
	// ErrTransfer wraps a failed bus transaction.
	ErrTransfer = errors.New("slot transfer failed")
)
