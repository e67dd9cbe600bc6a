// Package config holds the gateway settings, stored as a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Meter     MeterConfig     `yaml:"meter"`
	Modbus    ModbusConfig    `yaml:"modbus"`
	DataLog   DataLogConfig   `yaml:"datalog"`
	HTTP      HTTPConfig      `yaml:"http"`
	ModbusTCP ModbusTCPConfig `yaml:"modbus_tcp"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	// Watchdog is the bootstatus file the reset cause is read from.
	// Empty reports a power-on reset.
	Watchdog string `yaml:"watchdog_bootstatus"`
}

// ---- METER ----

type MeterConfig struct {
	Port string `yaml:"port"`
	// Number is the meter serial number used as device id.
	Number       uint32 `yaml:"number"`
	Baud         int    `yaml:"baud"`
	PollPeriodMs int    `yaml:"poll_period_ms"`
	TimeoutMs    int    `yaml:"timeout_ms"`
}

func (m MeterConfig) PollPeriod() time.Duration {
	return time.Duration(m.PollPeriodMs) * time.Millisecond
}

func (m MeterConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

// ---- MODBUS RTU ----

type ModbusConfig struct {
	Port    string `yaml:"port"`
	Address uint8  `yaml:"address"`
	Baud    int    `yaml:"baud"`
}

// ---- DATA LOG ----

type DataLogConfig struct {
	Enabled bool `yaml:"enabled"`
	// IntervalSec between two rows of instant values.
	IntervalSec int    `yaml:"interval_s"`
	Dir         string `yaml:"dir"`
	// SQLite is an optional database file receiving the same rows.
	SQLite string `yaml:"sqlite"`
}

// ---- OUTER SURFACES ----

// HTTPConfig serves metrics, the telemetry json and the websocket feed.
// An empty Listen disables the server.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// ModbusTCPConfig mirrors the registers on Modbus TCP when Listen is set.
type ModbusTCPConfig struct {
	Listen     string `yaml:"listen"`
	MaxClients uint   `yaml:"max_clients"`
}

// GPIOConfig names the board lines. Without a chip no line is used.
type GPIOConfig struct {
	Chip           string `yaml:"chip"`
	HeartbeatLine  *int   `yaml:"heartbeat_line"`
	CardDetectLine *int   `yaml:"card_detect_line"`
}

// Default returns the settings of a freshly erased device.
func Default() *Config {
	return &Config{
		Meter: MeterConfig{
			Port:         "/dev/ttyUSB0",
			Number:       0,
			Baud:         9600,
			PollPeriodMs: 500,
			TimeoutMs:    150,
		},
		Modbus: ModbusConfig{
			Port:    "/dev/ttyUSB1",
			Address: 10,
			Baud:    19200,
		},
		DataLog: DataLogConfig{
			Enabled:     false,
			IntervalSec: 60,
			Dir:         "/var/lib/mercury-gw",
		},
		ModbusTCP: ModbusTCPConfig{
			MaxClients: 4,
		},
	}
}

// Load reads the configuration from path. A missing file is created with
// the default settings.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Msg("created configuration with defaults")
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	Normalize(cfg)
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
