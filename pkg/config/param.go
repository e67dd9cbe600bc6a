package config

import "fmt"

// Param identifies a single setting for readers that address settings by id.
type Param uint8

const (
	MeterNumber Param = iota + 1
	// MeterSpeed is the baud table index of the meter link.
	MeterSpeed
	BusAddress
	// BusSpeed is the baud table index of the Modbus link.
	BusSpeed
	DataLog
	LogInterval
)

var params = map[Param]struct {
	name string
	get  func(*Config) uint32
}{
	MeterNumber: {"meter-number", func(c *Config) uint32 { return c.Meter.Number }},
	MeterSpeed:  {"meter-speed", func(c *Config) uint32 { return baudIndex(c.Meter.Baud) }},
	BusAddress:  {"bus-address", func(c *Config) uint32 { return uint32(c.Modbus.Address) }},
	BusSpeed:    {"bus-speed", func(c *Config) uint32 { return baudIndex(c.Modbus.Baud) }},
	DataLog: {"data-log", func(c *Config) uint32 {
		if c.DataLog.Enabled {
			return 1
		}
		return 0
	}},
	LogInterval: {"log-interval", func(c *Config) uint32 { return uint32(c.DataLog.IntervalSec) }},
}

// Params lists all parameters in id order.
var Params = []Param{MeterNumber, MeterSpeed, BusAddress, BusSpeed, DataLog, LogInterval}

func baudIndex(rate int) uint32 {
	i, _ := BaudIndex(rate)
	return uint32(i)
}

func (p Param) String() string {
	if d, ok := params[p]; ok {
		return d.name
	}
	return fmt.Sprintf("param(%d)", uint8(p))
}

// Get returns the value of p, 0 for an unknown parameter.
func (c *Config) Get(p Param) uint32 {
	d, ok := params[p]
	if !ok {
		return 0
	}
	return d.get(c)
}
