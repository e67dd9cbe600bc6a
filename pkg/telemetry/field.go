package telemetry

import "fmt"

// Field identifies a single value for readers that only need one.
type Field uint8

const (
	FieldVoltage Field = iota + 1
	FieldCurrent
	FieldPower
	FieldTariffDay
	FieldTariffNight
)

var fieldAccessors = map[Field]func(Snapshot) uint32{
	FieldVoltage:     func(s Snapshot) uint32 { return s.Instant.Voltage },
	FieldCurrent:     func(s Snapshot) uint32 { return s.Instant.Current },
	FieldPower:       func(s Snapshot) uint32 { return s.Instant.Power },
	FieldTariffDay:   func(s Snapshot) uint32 { return s.Tariffs.Day },
	FieldTariffNight: func(s Snapshot) uint32 { return s.Tariffs.Night },
}

var fieldNames = map[Field]string{
	FieldVoltage:     "voltage",
	FieldCurrent:     "current",
	FieldPower:       "power",
	FieldTariffDay:   "tariff-day",
	FieldTariffNight: "tariff-night",
}

// Fields lists all fields in a stable order.
var Fields = []Field{FieldVoltage, FieldCurrent, FieldPower, FieldTariffDay, FieldTariffNight}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Get returns the value of f from the snapshot, 0 for unknown fields.
func (s Snapshot) Get(f Field) uint32 {
	if get, ok := fieldAccessors[f]; ok {
		return get(s)
	}
	return 0
}

// Get returns the current value of f, 0 for unknown fields.
func (c *Cache) Get(f Field) uint32 {
	return c.Snapshot().Get(f)
}
