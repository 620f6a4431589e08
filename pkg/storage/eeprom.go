package storage

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Geometry of a 24FC1025 style serial EEPROM: two 64 KiB blocks behind one
// bus address, with the block chosen by a select bit of the device address.
const (
	Size         = 0x20000
	ChunkSize    = 32
	AddressBytes = 2
	SlotSize     = ChunkSize - AddressBytes
	SlotCount    = Size / ChunkSize

	DeviceAddress = 0x50
	SelectBit     = 2

	// BusSpeed is the clock used for the device.
	BusSpeed = 400 * physic.KiloHertz
	// WriteCycle is the worst case internal write time after a transfer.
	WriteCycle = 5 * time.Millisecond
)

// EEPROMOption configures an EEPROM.
type EEPROMOption func(*EEPROM)

// WithWriteCycle overrides the delay after each write. Emulated devices
// need no delay.
func WithWriteCycle(d time.Duration) EEPROMOption {
	return func(e *EEPROM) {
		e.writeCycle = d
	}
}

// WithEEPROMLogger sets the logger.
func WithEEPROMLogger(logger *zap.SugaredLogger) EEPROMOption {
	return func(e *EEPROM) {
		e.logger = logger
	}
}

// EEPROM is a SlotStore on an I²C serial EEPROM.
type EEPROM struct {
	bus        i2c.Bus
	writeCycle time.Duration
	logger     *zap.SugaredLogger
}

// NewEEPROM wraps an open bus. The bus speed is set to BusSpeed when the
// bus supports it.
func NewEEPROM(bus i2c.Bus, opts ...EEPROMOption) *EEPROM {
	e := &EEPROM{
		bus:        bus,
		writeCycle: WriteCycle,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := bus.SetSpeed(BusSpeed); err != nil {
		e.logger.Debugw("bus speed unchanged", "bus", bus.String(), "error", err)
	}
	return e
}

func (e *EEPROM) SlotSize() int { return SlotSize }

func (e *EEPROM) Slots() int { return SlotCount }

// locate returns the device address and the in-block address of a slot.
func locate(slot int) (uint16, uint16) {
	addr := uint16(DeviceAddress)
	offset := slot * ChunkSize
	if offset >= Size/2 {
		addr |= 1 << SelectBit
		offset -= Size / 2
	}
	return addr, uint16(offset)
}

func check(slot, size int) error {
	if slot < 0 || slot >= SlotCount {
		return fmt.Errorf("slot %d: %w", slot, ErrSlotRange)
	}
	if size > SlotSize {
		return fmt.Errorf("%d bytes: %w", size, ErrSizeRange)
	}
	return nil
}

func (e *EEPROM) ReadSlot(slot int, buf []byte) error {
	if err := check(slot, len(buf)); err != nil {
		return err
	}
	dev, offset := locate(slot)
	if err := e.bus.Tx(dev, []byte{byte(offset >> 8), byte(offset)}, buf); err != nil {
		return fmt.Errorf("read slot %d: %w: %v", slot, ErrTransfer, err)
	}
	return nil
}

func (e *EEPROM) WriteSlot(slot int, data []byte) error {
	if err := check(slot, len(data)); err != nil {
		return err
	}
	dev, offset := locate(slot)

	w := make([]byte, 0, AddressBytes+len(data))
	w = append(w, byte(offset>>8), byte(offset))
	w = append(w, data...)

	err := e.bus.Tx(dev, w, nil)
	if e.writeCycle > 0 {
		time.Sleep(e.writeCycle)
	}
	if err != nil {
		return fmt.Errorf("write slot %d: %w: %v", slot, ErrTransfer, err)
	}
	return nil
}
