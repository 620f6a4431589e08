package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"periph.io/x/conn/v3/physic"
)

// PageSize is the write page of the emulated device. Writes wrap inside a
// page, like the real part.
const PageSize = 128

// ErrNoDevice is returned by ImageBus for an address it does not answer.
var ErrNoDevice = errors.New("no device acknowledged")

// ImageBus emulates the EEPROM on an in-memory image and implements
// i2c.Bus. When opened with OpenImage the image is also kept in a file.
type ImageBus struct {
	mu      sync.Mutex
	image   []byte
	pointer int
	file    *os.File
	txs     int
}

// NewImageBus returns an erased device.
func NewImageBus() *ImageBus {
	image := make([]byte, Size)
	for i := range image {
		image[i] = 0xFF
	}
	return &ImageBus{image: image}
}

// OpenImage opens or creates an image file. A short file is padded with
// erased bytes.
func OpenImage(path string) (*ImageBus, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open eeprom image: %w", err)
	}
	b := NewImageBus()
	n, err := f.ReadAt(b.image, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("read eeprom image: %w", err)
	}
	if n < Size {
		if _, err := f.WriteAt(b.image[n:], int64(n)); err != nil {
			f.Close()
			return nil, fmt.Errorf("initialize eeprom image: %w", err)
		}
	}
	b.file = f
	return b, nil
}

func (b *ImageBus) String() string {
	if b.file != nil {
		return "image(" + b.file.Name() + ")"
	}
	return "image"
}

// SetSpeed accepts any speed.
func (b *ImageBus) SetSpeed(f physic.Frequency) error {
	return nil
}

// Tx writes the address pointer and any data, then reads sequentially.
func (b *ImageBus) Tx(addr uint16, w, r []byte) error {
	if addr&^(1<<SelectBit) != DeviceAddress {
		return fmt.Errorf("address %#x: %w", addr, ErrNoDevice)
	}
	block := 0
	if addr&(1<<SelectBit) != 0 {
		block = Size / 2
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.txs++

	if len(w) == 1 {
		return fmt.Errorf("address %#x: incomplete address pointer", addr)
	}
	if len(w) >= AddressBytes {
		b.pointer = int(w[0])<<8 | int(w[1])
		if data := w[AddressBytes:]; len(data) > 0 {
			if err := b.write(block, data); err != nil {
				return err
			}
		}
	}

	for i := range r {
		r[i] = b.image[block+b.pointer]
		b.pointer = (b.pointer + 1) % (Size / 2)
	}
	return nil
}

// write stores data at the pointer, wrapping inside the current page.
func (b *ImageBus) write(block int, data []byte) error {
	page := b.pointer &^ (PageSize - 1)
	col := b.pointer & (PageSize - 1)
	for _, v := range data {
		b.image[block+page+col] = v
		col = (col + 1) & (PageSize - 1)
	}
	b.pointer = page + col

	if b.file == nil {
		return nil
	}
	if _, err := b.file.WriteAt(b.image[block+page:block+page+PageSize], int64(block+page)); err != nil {
		return fmt.Errorf("persist eeprom page: %w", err)
	}
	return b.file.Sync()
}

// Bytes returns a copy of the image.
func (b *ImageBus) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.image))
	copy(out, b.image)
	return out
}

// Transactions returns the number of Tx calls seen.
func (b *ImageBus) Transactions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.txs
}

// Close closes the backing file, if any.
func (b *ImageBus) Close() error {
	if b.file == nil {
		return nil
	}
	return b.file.Close()
}
