package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/gwillem/motioncore/pkg/joint"
)

// Largest id a feetech servo can take; 254 is the broadcast id.
const maxServoID = 253

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg.Serial.BaudRate < 0 {
		return fmt.Errorf("serial: baud_rate must not be negative")
	}

	if cfg.Storage.Image != "" && cfg.Storage.I2CBus != "" {
		return fmt.Errorf("storage: image and i2c_bus are exclusive")
	}
	if cfg.Storage.WriteCycleMs < 0 {
		return fmt.Errorf("storage: write_cycle_ms must not be negative")
	}

	if _, err := joint.ParseRotation(cfg.Calibration.Rotation); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	if g := cfg.Outputs.GPIO; g != nil {
		if len(g.SelectPins) != 3 {
			return fmt.Errorf("outputs.gpio: need 3 select_pins, got %d", len(g.SelectPins))
		}
		if len(g.PWMPins) != joint.Banks {
			return fmt.Errorf("outputs.gpio: need %d pwm_pins, got %d", joint.Banks, len(g.PWMPins))
		}
		seen := make(map[string]bool)
		for _, p := range append(append([]string{}, g.SelectPins...), g.PWMPins...) {
			if p == "" {
				return fmt.Errorf("outputs.gpio: empty pin name")
			}
			if seen[p] {
				return fmt.Errorf("outputs.gpio: pin %q used twice", p)
			}
			seen[p] = true
		}
	}

	if f := cfg.Outputs.Feetech; f != nil {
		if f.Port == "" {
			return fmt.Errorf("outputs.feetech: port is required")
		}
		if len(f.Servos) == 0 {
			return fmt.Errorf("outputs.feetech: no servos mapped")
		}
		owner := make(map[int]int)
		for id, servo := range f.Servos {
			if !joint.Valid(id) {
				return fmt.Errorf("outputs.feetech: joint %d out of range", id)
			}
			if servo < 0 || servo > maxServoID {
				return fmt.Errorf("outputs.feetech: joint %d: servo id %d out of range", id, servo)
			}
			if prev, exists := owner[servo]; exists {
				return fmt.Errorf("outputs.feetech: servo %d mapped to joints %d and %d",
					servo, min(prev, id), max(prev, id))
			}
			owner[servo] = id
		}
	}

	if cfg.Timing.TickUs < 0 || cfg.Timing.PollMs < 0 {
		return fmt.Errorf("timing: periods must not be negative")
	}

	if cfg.Log.Level != "" {
		if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	return nil
}
