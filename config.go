package comm

import (
	"time"

	"github.com/allbin/go-comm/logger"
)

// Config holds the configuration of a Manager and the ports it opens
type Config struct {
	Logger logger.Logger

	// PollInterval is the cadence of the device poller and of reads in
	// polling mode (threshold or timeout enabled with value 0).
	PollInterval time.Duration

	// InputBufferSize caps the bytes buffered between the device and Read.
	InputBufferSize int

	// SerialConfig is applied to serial ports when they are acquired.
	SerialConfig SerialConfig

	Drivers []Driver
}

// Option is a functional option for configuring a Manager
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Logger:          logger.Nop(),
		PollInterval:    10 * time.Millisecond,
		InputBufferSize: 4096,
		SerialConfig:    DefaultSerialConfig(),
	}
}

// WithLogger sets the logger used by the manager and its ports
func WithLogger(l logger.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return ErrInvalidConfig
		}
		c.Logger = l
		return nil
	}
}

// WithPollInterval sets the device poll cadence (1ms - 1s)
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d < time.Millisecond || d > time.Second {
			return ErrInvalidConfig
		}
		c.PollInterval = d
		return nil
	}
}

// WithInputBufferSize sets the input buffer capacity of opened ports
func WithInputBufferSize(n int) Option {
	return func(c *Config) error {
		if n < 1 || n > 1<<20 {
			return ErrInvalidConfig
		}
		c.InputBufferSize = n
		return nil
	}
}

// WithDefaultSerialConfig sets the line parameters applied on acquire
func WithDefaultSerialConfig(sc SerialConfig) Option {
	return func(c *Config) error {
		if err := sc.Validate(); err != nil {
			return err
		}
		c.SerialConfig = sc
		return nil
	}
}

// WithDrivers adds drivers whose Initialize is called by NewManager
func WithDrivers(drivers ...Driver) Option {
	return func(c *Config) error {
		for _, d := range drivers {
			if d == nil {
				return ErrInvalidConfig
			}
		}
		c.Drivers = append(c.Drivers, drivers...)
		return nil
	}
}
