package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "mercury-gw.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.FileExists(t, path)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Meter, again.Meter)
	assert.Equal(t, cfg.Modbus, again.Modbus)
	assert.Equal(t, 60, again.DataLog.IntervalSec)
}

func TestLoad_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
meter:
  number: 123456
  baud: 4800
modbus:
  address: 17
datalog:
  enabled: true
  dir: /tmp/log/
gpio:
  heartbeat_line: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(123456), cfg.Meter.Number)
	assert.Equal(t, 4800, cfg.Meter.Baud)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Meter.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Meter.PollPeriod())
	assert.Equal(t, 150*time.Millisecond, cfg.Meter.Timeout())
	assert.Equal(t, uint8(17), cfg.Modbus.Address)
	assert.Equal(t, 19200, cfg.Modbus.Baud)
	assert.True(t, cfg.DataLog.Enabled)
	assert.Equal(t, "/tmp/log", cfg.DataLog.Dir)
	assert.Nil(t, cfg.GPIO.HeartbeatLine, "no chip configured")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("meter: [1, 2"), 0o644))
	_, err := Load(broken)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("modbus:\n  baud: 1000\n"), 0o644))
	_, err = Load(invalid)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	line := -1
	for _, tc := range []struct {
		name   string
		modify func(*Config)
	}{
		{"meter port", func(c *Config) { c.Meter.Port = "" }},
		{"meter number", func(c *Config) { c.Meter.Number = 1000000 }},
		{"meter baud not in table", func(c *Config) { c.Meter.Baud = 9601 }},
		{"meter baud too fast", func(c *Config) { c.Meter.Baud = 19200 }},
		{"poll period", func(c *Config) { c.Meter.PollPeriodMs = 0 }},
		{"timeout zero", func(c *Config) { c.Meter.TimeoutMs = 0 }},
		{"timeout not below period", func(c *Config) { c.Meter.TimeoutMs = 500 }},
		{"modbus port", func(c *Config) { c.Modbus.Port = "" }},
		{"modbus address 0", func(c *Config) { c.Modbus.Address = 0 }},
		{"modbus address 248", func(c *Config) { c.Modbus.Address = 248 }},
		{"modbus baud", func(c *Config) { c.Modbus.Baud = 100 }},
		{"shared port", func(c *Config) { c.Modbus.Port = c.Meter.Port }},
		{"log interval low", func(c *Config) { c.DataLog.IntervalSec = 4 }},
		{"log interval high", func(c *Config) { c.DataLog.IntervalSec = 256 }},
		{"log without target", func(c *Config) { c.DataLog.Enabled = true; c.DataLog.Dir = "" }},
		{"negative line", func(c *Config) { c.GPIO.Chip = "gpiochip0"; c.GPIO.CardDetectLine = &line }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			require.ErrorIs(t, Validate(cfg), ErrInvalid)
		})
	}

	require.NoError(t, Validate(Default()))
	require.ErrorIs(t, Validate(nil), ErrInvalid)
}

func TestNormalize(t *testing.T) {
	line := 3
	cfg := Default()
	cfg.DataLog.IntervalSec = 0
	cfg.ModbusTCP.MaxClients = 0
	cfg.GPIO.Chip = "gpiochip0"
	cfg.GPIO.HeartbeatLine = &line
	Normalize(cfg)
	assert.Equal(t, 60, cfg.DataLog.IntervalSec)
	assert.Equal(t, uint(1), cfg.ModbusTCP.MaxClients)
	assert.Equal(t, &line, cfg.GPIO.HeartbeatLine)
}

func TestBaud(t *testing.T) {
	assert.Equal(t, 9600, BaudRate(4))
	assert.Equal(t, 19200, BaudRate(6))
	assert.Equal(t, 115200, BaudRate(11))
	assert.Equal(t, 0, BaudRate(12))
	assert.Equal(t, 0, BaudRate(-1))

	for i, rate := range BaudRates() {
		idx, ok := BaudIndex(rate)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
	_, ok := BaudIndex(9601)
	assert.False(t, ok)
}

func TestGet(t *testing.T) {
	cfg := Default()
	cfg.Meter.Number = 4711
	cfg.DataLog.Enabled = true

	assert.Equal(t, uint32(4711), cfg.Get(MeterNumber))
	assert.Equal(t, uint32(4), cfg.Get(MeterSpeed))
	assert.Equal(t, uint32(10), cfg.Get(BusAddress))
	assert.Equal(t, uint32(6), cfg.Get(BusSpeed))
	assert.Equal(t, uint32(1), cfg.Get(DataLog))
	assert.Equal(t, uint32(60), cfg.Get(LogInterval))
	assert.Equal(t, uint32(0), cfg.Get(Param(0)))
	assert.Equal(t, uint32(0), cfg.Get(Param(42)))

	for _, p := range Params {
		assert.NotContains(t, p.String(), "param(")
	}
	assert.Equal(t, "param(42)", Param(42).String())
}
