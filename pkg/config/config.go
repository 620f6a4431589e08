// Package config holds the motioncore runtime configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "motioncore.yaml"

// Config holds the runtime configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Storage     StorageConfig     `yaml:"storage"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Outputs     OutputsConfig     `yaml:"outputs"`
	Timing      TimingConfig      `yaml:"timing"`
	Log         LogConfig         `yaml:"log"`
}

// SerialConfig selects the command input. An empty port reads stdin.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// StorageConfig selects the motion memory: an image file emulating the
// EEPROM, or a real EEPROM on an I2C bus.
type StorageConfig struct {
	Image        string `yaml:"image"`
	I2CBus       string `yaml:"i2c_bus"`
	WriteCycleMs int    `yaml:"write_cycle_ms"`
}

// CalibrationConfig locates the joint calibration memory.
type CalibrationConfig struct {
	Path     string `yaml:"path"`
	Rotation string `yaml:"rotation"`
}

// OutputsConfig enables output backends. With neither set the pulses are
// only recorded.
type OutputsConfig struct {
	GPIO    *GPIOConfig    `yaml:"gpio,omitempty"`
	Feetech *FeetechConfig `yaml:"feetech,omitempty"`
}

// GPIOConfig names the multiplexer board pins.
type GPIOConfig struct {
	SelectPins []string `yaml:"select_pins"`
	PWMPins    []string `yaml:"pwm_pins"`
}

// FeetechConfig maps joints onto bus servos.
type FeetechConfig struct {
	Port     string      `yaml:"port"`
	BaudRate int         `yaml:"baud_rate"`
	Servos   map[int]int `yaml:"servos"`
}

type TimingConfig struct {
	TickUs int `yaml:"tick_us"`
	PollMs int `yaml:"poll_ms"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a normalized configuration for a machine without
// hardware: stdin input, image file storage, no outputs.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom reads, validates and normalizes a config file.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	Normalize(&cfg)
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}

func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.Timing.TickUs) * time.Microsecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Timing.PollMs) * time.Millisecond
}

func (c *Config) WriteCycle() time.Duration {
	return time.Duration(c.Storage.WriteCycleMs) * time.Millisecond
}

// NewLogger builds the process logger from the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
