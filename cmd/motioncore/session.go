package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/gwillem/motioncore/pkg/config"
	"github.com/gwillem/motioncore/pkg/hw"
	"github.com/gwillem/motioncore/pkg/joint"
	"github.com/gwillem/motioncore/pkg/motion"
	"github.com/gwillem/motioncore/pkg/storage"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// session holds the opened hardware of one command. Closers run in
// reverse order of opening.
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	motions  *motion.Store
	joints   *joint.Controller
	recorder *hw.Recorder
	mirror   *hw.Mirror
	closers  []io.Closer
	hostInit bool
}

func newSession(cfg *config.Config) (*session, error) {
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &session{cfg: cfg, logger: logger}, nil
}

// initHost loads the periph drivers once.
func (r *session) initHost() error {
	if r.hostInit {
		return nil
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init host drivers: %w", err)
	}
	r.hostInit = true
	return nil
}

// openMotions opens the motion memory: the EEPROM on the configured I2C
// bus, or the image file.
func (r *session) openMotions() (*motion.Store, error) {
	sc := r.cfg.Storage
	logger := r.logger.Sugar()

	var eeprom *storage.EEPROM
	if sc.I2CBus != "" {
		if err := r.initHost(); err != nil {
			return nil, err
		}
		bus, err := i2creg.Open(sc.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("open i2c bus %q: %w", sc.I2CBus, err)
		}
		r.closers = append(r.closers, bus)
		eeprom = storage.NewEEPROM(bus,
			storage.WithWriteCycle(r.cfg.WriteCycle()),
			storage.WithEEPROMLogger(logger.Named("eeprom")))
	} else {
		img, err := storage.OpenImage(sc.Image)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, img)
		eeprom = storage.NewEEPROM(img,
			storage.WithWriteCycle(0),
			storage.WithEEPROMLogger(logger.Named("eeprom")))
	}

	store, err := motion.NewStore(eeprom, logger.Named("motion"))
	if err != nil {
		return nil, err
	}
	r.motions = store
	return store, nil
}

// openOutputs builds the joint outputs. The recorder is always present;
// gpio pins and bus servos are added when configured.
func (r *session) openOutputs(ctx context.Context, onCycle func([joint.Sum]uint16)) (joint.Outputs, error) {
	oc := r.cfg.Outputs
	r.recorder = hw.NewRecorder(onCycle)
	outs := []joint.Outputs{r.recorder}

	if oc.GPIO != nil {
		if err := r.initHost(); err != nil {
			return nil, err
		}
		pins, err := hw.OpenPinOutputs(oc.GPIO.SelectPins, oc.GPIO.PWMPins, 0)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, closerFunc(pins.Halt))
		outs = append(outs, pins)
	}

	if oc.Feetech != nil {
		mirror, err := hw.OpenMirror(ctx, hw.MirrorConfig{
			Port:     oc.Feetech.Port,
			BaudRate: oc.Feetech.BaudRate,
			Servos:   oc.Feetech.Servos,
			Logger:   r.logger.Sugar().Named("feetech"),
		})
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, mirror)
		r.mirror = mirror
		outs = append(outs, mirror)
	}

	if len(outs) == 1 {
		return outs[0], nil
	}
	return hw.Multi(outs...), nil
}

// openJoints opens the calibration memory and loads the settings, which
// starts the timer.
func (r *session) openJoints(out joint.Outputs, timer joint.Timer) (*joint.Controller, error) {
	rotation, err := joint.ParseRotation(r.cfg.Calibration.Rotation)
	if err != nil {
		return nil, err
	}
	mem, err := joint.OpenFileMemory(r.cfg.Calibration.Path)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, mem)

	joints := joint.NewController(mem, out, timer,
		joint.WithLogger(r.logger.Sugar().Named("joint")),
		joint.WithRotation(rotation))
	if err := joints.LoadSettings(); err != nil {
		return nil, err
	}
	r.joints = joints
	return joints, nil
}

// takeClosers hands the opened resources over, in closing order.
func (r *session) takeClosers() []io.Closer {
	out := make([]io.Closer, 0, len(r.closers))
	for i := len(r.closers) - 1; i >= 0; i-- {
		out = append(out, r.closers[i])
	}
	r.closers = nil
	return out
}

// Close stops the joints and releases everything not taken.
func (r *session) Close() error {
	if r.joints != nil {
		r.joints.Stop()
	}
	var err error
	for _, c := range r.takeClosers() {
		err = multierr.Append(err, c.Close())
	}
	r.logger.Sync()
	return err
}
