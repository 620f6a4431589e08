package joint

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Memory is the byte-addressable on-chip memory holding the calibration.
type Memory interface {
	LoadByte(addr int) (byte, error)
	StoreByte(addr int, b byte) error
}

// ErrAddress is returned for accesses outside the memory.
var ErrAddress = errors.New("memory address out of range")

// InternalMemorySize is the capacity of the calibration memory.
const InternalMemorySize = 1024

// MapMemory is an in-process Memory. Unwritten bytes read as 0xFF, like an
// erased EEPROM.
type MapMemory struct {
	mu     sync.Mutex
	data   map[int]byte
	writes int
}

// NewMapMemory returns an erased memory.
func NewMapMemory() *MapMemory {
	return &MapMemory{data: make(map[int]byte)}
}

func (m *MapMemory) LoadByte(addr int) (byte, error) {
	if addr < 0 || addr >= InternalMemorySize {
		return 0, ErrAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[addr]
	if !ok {
		return 0xFF, nil
	}
	return b, nil
}

func (m *MapMemory) StoreByte(addr int, b byte) error {
	if addr < 0 || addr >= InternalMemorySize {
		return ErrAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[addr] = b
	m.writes++
	return nil
}

// Writes returns how many single-byte writes the memory has seen.
func (m *MapMemory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FileMemory keeps the calibration memory in an image file. Every write
// touches exactly one byte of the file.
type FileMemory struct {
	f *os.File
}

// OpenFileMemory opens or creates an image file of InternalMemorySize
// bytes. A new image is filled with 0xFF.
func OpenFileMemory(path string) (*FileMemory, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open calibration memory: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat calibration memory: %w", err)
	}
	if info.Size() < InternalMemorySize {
		erased := make([]byte, InternalMemorySize-info.Size())
		for i := range erased {
			erased[i] = 0xFF
		}
		if _, err := f.WriteAt(erased, info.Size()); err != nil {
			f.Close()
			return nil, fmt.Errorf("initialize calibration memory: %w", err)
		}
	}
	return &FileMemory{f: f}, nil
}

func (m *FileMemory) LoadByte(addr int) (byte, error) {
	if addr < 0 || addr >= InternalMemorySize {
		return 0, ErrAddress
	}
	var b [1]byte
	if _, err := m.f.ReadAt(b[:], int64(addr)); err != nil {
		return 0, fmt.Errorf("read calibration byte %d: %w", addr, err)
	}
	return b[0], nil
}

func (m *FileMemory) StoreByte(addr int, b byte) error {
	if addr < 0 || addr >= InternalMemorySize {
		return ErrAddress
	}
	if _, err := m.f.WriteAt([]byte{b}, int64(addr)); err != nil {
		return fmt.Errorf("write calibration byte %d: %w", addr, err)
	}
	return nil
}

// Close closes the image file.
func (m *FileMemory) Close() error {
	return m.f.Close()
}
