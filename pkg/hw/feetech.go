package hw

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/gwillem/motioncore/pkg/joint"
)

// Bus servo position scale: 4096 steps per turn, centered at 2048.
const (
	ServoCenter       = 2048
	ServoStepsPerTurn = 4096
)

// ServoPosition converts a multiplexer pulse into a bus servo position. The
// pulse range PWMMin..PWMMax spans AngleMin..AngleMax.
func ServoPosition(pulse uint16) int {
	const (
		tenthsPerTurn = 3600
		angleSpan     = joint.AngleMax - joint.AngleMin
		pulseSpan     = joint.PWMMax - joint.PWMMin
	)
	offset := (int(pulse) - joint.PWMNeutral) * angleSpan * ServoStepsPerTurn / (tenthsPerTurn * pulseSpan)
	return ServoCenter + offset
}

// PositionWriter is the part of a feetech servo group the mirror uses.
type PositionWriter interface {
	SetPositions(ctx context.Context, positions feetech.PositionMap) error
}

// MirrorConfig configures a bus servo mirror.
type MirrorConfig struct {
	Port     string
	BaudRate int
	// Servos maps joint ids to servo ids. Joints without a servo are not
	// mirrored.
	Servos map[int]int
	// WriteTimeout bounds one sync write. Defaults to 100ms.
	WriteTimeout time.Duration
	Logger       *zap.SugaredLogger
}

// Mirror copies every completed multiplexer cycle onto feetech bus servos,
// for bench rigs without the multiplexer board. It implements joint.Outputs;
// writes happen on a separate goroutine and a slow bus only drops cycles.
type Mirror struct {
	*Recorder

	group   PositionWriter
	servos  map[int]int
	timeout time.Duration
	logger  *zap.SugaredLogger
	closer  func() error

	pending chan [joint.Sum]uint16
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	writes  atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// OpenMirror opens the serial bus and enables torque on the mapped servos.
func OpenMirror(ctx context.Context, cfg MirrorConfig) (*Mirror, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1_000_000
	}
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	ids := make([]int, 0, len(cfg.Servos))
	for _, id := range cfg.Servos {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	group := feetech.NewServoGroupByIDs(bus, ids...)
	if err := group.EnableAll(ctx); err != nil {
		bus.Close()
		return nil, fmt.Errorf("enable servos: %w", err)
	}

	m := NewMirror(group, cfg)
	m.closer = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := group.DisableAll(ctx); err != nil {
			m.logger.Warnw("disable servos failed", "error", err)
		}
		return bus.Close()
	}
	return m, nil
}

// NewMirror starts a mirror writing to group. Port and BaudRate of cfg are
// ignored.
func NewMirror(group PositionWriter, cfg MirrorConfig) *Mirror {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 100 * time.Millisecond
	}
	m := &Mirror{
		group:   group,
		servos:  cfg.Servos,
		timeout: cfg.WriteTimeout,
		logger:  cfg.Logger,
		pending: make(chan [joint.Sum]uint16, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	m.Recorder = NewRecorder(m.offer)
	go m.run()
	return m
}

// offer queues a cycle, replacing one the writer has not picked up yet.
func (m *Mirror) offer(pulses [joint.Sum]uint16) {
	select {
	case m.pending <- pulses:
		return
	default:
	}
	select {
	case <-m.pending:
		m.dropped.Inc()
	default:
	}
	select {
	case m.pending <- pulses:
	default:
		m.dropped.Inc()
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		case pulses := <-m.pending:
			m.write(pulses)
		}
	}
}

func (m *Mirror) write(pulses [joint.Sum]uint16) {
	positions := make(feetech.PositionMap, len(m.servos))
	for id, servo := range m.servos {
		if joint.Valid(id) {
			positions[servo] = ServoPosition(pulses[id])
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.group.SetPositions(ctx, positions); err != nil {
		if m.failed.Inc() == 1 {
			m.logger.Warnw("servo write failed", "error", err)
		}
		return
	}
	m.writes.Inc()
}

// Stats returns the number of written, dropped and failed cycles.
func (m *Mirror) Stats() (writes, dropped, failed uint64) {
	return m.writes.Load(), m.dropped.Load(), m.failed.Load()
}

// Close stops the writer and, for an opened mirror, releases the bus.
func (m *Mirror) Close() error {
	var err error
	m.once.Do(func() {
		close(m.stop)
		<-m.done
		if m.closer != nil {
			err = m.closer()
		}
	})
	return err
}
