package config

import (
	"github.com/gwillem/motioncore/pkg/joint"
	"github.com/gwillem/motioncore/pkg/storage"
)

// Defaults applied by Normalize.
const (
	DefaultBaudRate        = 115200
	DefaultFeetechBaudRate = 1_000_000
	DefaultImage           = "motioncore.eeprom"
	DefaultCalibration     = "motioncore.calib"
	DefaultPollMs          = 1
	DefaultLogLevel        = "info"
)

// Normalize fills in defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Serial.BaudRate == 0 {
		cfg.Serial.BaudRate = DefaultBaudRate
	}

	if cfg.Storage.Image == "" && cfg.Storage.I2CBus == "" {
		cfg.Storage.Image = DefaultImage
	}
	if cfg.Storage.WriteCycleMs == 0 && cfg.Storage.I2CBus != "" {
		cfg.Storage.WriteCycleMs = int(storage.WriteCycle.Milliseconds())
	}

	if cfg.Calibration.Path == "" {
		cfg.Calibration.Path = DefaultCalibration
	}
	if cfg.Calibration.Rotation == "" {
		cfg.Calibration.Rotation = joint.Clockwise.String()
	}

	if f := cfg.Outputs.Feetech; f != nil && f.BaudRate == 0 {
		f.BaudRate = DefaultFeetechBaudRate
	}

	if cfg.Timing.TickUs == 0 {
		cfg.Timing.TickUs = int(joint.TickPeriod.Microseconds())
	}
	if cfg.Timing.PollMs == 0 {
		cfg.Timing.PollMs = DefaultPollMs
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}
