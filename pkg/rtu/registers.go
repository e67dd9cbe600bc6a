package rtu

import (
	"fmt"

	"github.com/yvesf/mercury-gw/pkg/resetcause"
	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

// Sample is the data a single read is served from. Taking it once per
// request keeps a multi register read consistent.
type Sample struct {
	Telemetry telemetry.Snapshot
	Reset     resetcause.Flags
}

// Register is one 16 bit holding register.
type Register struct {
	Name  string
	Value func(Sample) uint16
}

// RegisterMap is the fixed ordered table of holding registers, starting at
// address 0.
type RegisterMap struct {
	cache     *telemetry.Cache
	reset     resetcause.Source
	registers []Register
}

func field(f telemetry.Field) Register {
	return Register{
		Name: f.String(),
		// wider values are truncated to the low 16 bits
		Value: func(s Sample) uint16 { return uint16(s.Telemetry.Get(f)) },
	}
}

// NewRegisterMap publishes the reset flags followed by current, voltage,
// power and the two tariffs.
func NewRegisterMap(cache *telemetry.Cache, reset resetcause.Source) RegisterMap {
	return RegisterMap{
		cache: cache,
		reset: reset,
		registers: []Register{
			{Name: "reset-status", Value: func(s Sample) uint16 { return uint16(s.Reset) }},
			field(telemetry.FieldCurrent),
			field(telemetry.FieldVoltage),
			field(telemetry.FieldPower),
			field(telemetry.FieldTariffDay),
			field(telemetry.FieldTariffNight),
		},
	}
}

// Len returns the number of registers.
func (m RegisterMap) Len() int {
	return len(m.registers)
}

// Registers returns the table in address order.
func (m RegisterMap) Registers() []Register {
	return append([]Register(nil), m.registers...)
}

func (m RegisterMap) sample() Sample {
	s := Sample{Telemetry: m.cache.Snapshot()}
	if m.reset != nil {
		s.Reset = m.reset.ResetFlags()
	}
	return s
}

// Read returns count registers starting at start. A span reaching past the
// table is rejected as a whole. count 0 at a valid start returns no values.
func (m RegisterMap) Read(start, count uint16) ([]uint16, error) {
	size := len(m.registers)
	if int(start) >= size || int(start)+int(count) > size {
		return nil, fmt.Errorf("read %d registers at %d of %d: %w", count, start, size, ErrIllegalDataAddress)
	}
	s := m.sample()
	values := make([]uint16, count)
	for i := range values {
		values[i] = m.registers[int(start)+i].Value(s)
	}
	return values, nil
}
