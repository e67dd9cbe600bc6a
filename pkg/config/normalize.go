package config

import "path/filepath"

const defaultLogInterval = 60

// Normalize applies post-validation defaults.
// It must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.DataLog.IntervalSec == 0 {
		cfg.DataLog.IntervalSec = defaultLogInterval
	}
	if cfg.DataLog.Dir != "" {
		cfg.DataLog.Dir = filepath.Clean(cfg.DataLog.Dir)
	}
	if cfg.ModbusTCP.MaxClients == 0 {
		cfg.ModbusTCP.MaxClients = 1
	}
	// lines are meaningless without a chip
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.HeartbeatLine = nil
		cfg.GPIO.CardDetectLine = nil
	}
}
