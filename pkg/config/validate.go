package config

import (
	"fmt"
)

const (
	maxMeterNumber = 999999

	minLogInterval = 5
	maxLogInterval = 255
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("no configuration: %w", ErrInvalid)
	}

	// ---- meter ----
	if cfg.Meter.Port == "" {
		return fmt.Errorf("meter.port is empty: %w", ErrInvalid)
	}
	if cfg.Meter.Number > maxMeterNumber {
		return fmt.Errorf("meter.number %d exceeds %d: %w", cfg.Meter.Number, maxMeterNumber, ErrInvalid)
	}
	if i, ok := BaudIndex(cfg.Meter.Baud); !ok || i > maxMeterBaudIndex {
		return fmt.Errorf("meter.baud %d not supported: %w", cfg.Meter.Baud, ErrInvalid)
	}
	if cfg.Meter.PollPeriodMs <= 0 {
		return fmt.Errorf("meter.poll_period_ms must be > 0: %w", ErrInvalid)
	}
	if cfg.Meter.TimeoutMs <= 0 || cfg.Meter.TimeoutMs >= cfg.Meter.PollPeriodMs {
		return fmt.Errorf("meter.timeout_ms %d must be > 0 and below poll_period_ms %d: %w",
			cfg.Meter.TimeoutMs, cfg.Meter.PollPeriodMs, ErrInvalid)
	}

	// ---- modbus ----
	if cfg.Modbus.Port == "" {
		return fmt.Errorf("modbus.port is empty: %w", ErrInvalid)
	}
	if cfg.Modbus.Address < 1 || cfg.Modbus.Address > 247 {
		return fmt.Errorf("modbus.address %d outside 1-247: %w", cfg.Modbus.Address, ErrInvalid)
	}
	if _, ok := BaudIndex(cfg.Modbus.Baud); !ok {
		return fmt.Errorf("modbus.baud %d not supported: %w", cfg.Modbus.Baud, ErrInvalid)
	}
	if cfg.Modbus.Port == cfg.Meter.Port {
		return fmt.Errorf("meter and modbus share port %s: %w", cfg.Meter.Port, ErrInvalid)
	}

	// ---- datalog ----
	if cfg.DataLog.IntervalSec != 0 &&
		(cfg.DataLog.IntervalSec < minLogInterval || cfg.DataLog.IntervalSec > maxLogInterval) {
		return fmt.Errorf("datalog.interval_s %d outside %d-%d: %w",
			cfg.DataLog.IntervalSec, minLogInterval, maxLogInterval, ErrInvalid)
	}
	if cfg.DataLog.Enabled && cfg.DataLog.Dir == "" && cfg.DataLog.SQLite == "" {
		return fmt.Errorf("datalog enabled without dir or sqlite: %w", ErrInvalid)
	}

	// ---- gpio ----
	if cfg.GPIO.Chip != "" {
		for name, line := range map[string]*int{
			"heartbeat_line":   cfg.GPIO.HeartbeatLine,
			"card_detect_line": cfg.GPIO.CardDetectLine,
		} {
			if line != nil && *line < 0 {
				return fmt.Errorf("gpio.%s %d is negative: %w", name, *line, ErrInvalid)
			}
		}
	}

	return nil
}
