package main

import (
	"fmt"
	"time"

	"github.com/yvesf/mercury-gw/pkg/crc"
	"github.com/yvesf/mercury-gw/pkg/mercury"
)

type fault uint8

const (
	faultNone fault = iota
	// faultSilent sends nothing, not even the echo.
	faultSilent
	faultNoAnswer
	faultCRC
	faultMismatch
)

var faultNames = map[fault]string{
	faultNone:     "none",
	faultSilent:   "silent",
	faultNoAnswer: "no-answer",
	faultCRC:      "crc",
	faultMismatch: "mismatch",
}

func (f fault) String() string {
	return faultNames[f]
}

func parseFault(s string) (fault, error) {
	for f, name := range faultNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown fault %q", s)
}

// meter answers requests like the real device would, with the echo of the
// request the RS-485 line produces in front of every answer.
type meter struct {
	id      uint32
	instant mercury.InstantValues
	fault   fault

	// energy in Wh per tariff
	day, night float64
	last       time.Time

	pending []byte
}

func newMeter(id, voltage, current, power uint32, f fault) *meter {
	return &meter{
		id:      id,
		instant: mercury.InstantValues{Voltage: voltage, Current: current, Power: power},
		fault:   f,
		day:     1234567,
		night:   765432,
	}
}

// accumulate adds the energy consumed since the last call. Night tariff runs
// from 23:00 to 07:00.
func (m *meter) accumulate(now time.Time) {
	if !m.last.IsZero() && now.After(m.last) {
		wh := float64(m.instant.Power) * now.Sub(m.last).Hours()
		if h := now.Hour(); h >= 23 || h < 7 {
			m.night += wh
		} else {
			m.day += wh
		}
	}
	m.last = now
}

func (m *meter) tariffs() mercury.Tariffs {
	// 0.01 kWh units
	return mercury.Tariffs{Day: uint32(m.day / 10), Night: uint32(m.night / 10)}
}

// feed consumes received bytes and returns the transmissions to make.
// Bytes not forming a valid request are skipped one at a time.
func (m *meter) feed(data []byte, now time.Time) [][]byte {
	m.accumulate(now)
	m.pending = append(m.pending, data...)

	var out [][]byte
	for len(m.pending) >= mercury.RequestSize {
		frame := m.pending[:mercury.RequestSize]
		if !crc.Valid(frame) {
			m.pending = m.pending[1:]
			continue
		}
		m.pending = m.pending[mercury.RequestSize:]

		header, err := mercury.ParseHeader(frame)
		if err != nil || header.DeviceID != m.id {
			continue
		}
		if answer := m.answer(mercury.Request{DeviceID: header.DeviceID, Command: header.Command}); answer != nil {
			out = append(out, answer)
		}
	}
	return out
}

func (m *meter) answer(req mercury.Request) []byte {
	metricRequests.With(req.Command.String()).Add(1)

	var frame []byte
	switch req.Command {
	case mercury.CommandInstantValues:
		frame = mercury.InstantValuesFrame(req, m.instant)
	case mercury.CommandTariffs:
		frame = mercury.TariffsFrame(req, m.tariffs())
	default:
		frame = req.Marshal()
	}

	switch m.fault {
	case faultSilent:
		return nil
	case faultNoAnswer:
		return req.Marshal()
	case faultCRC:
		frame[len(frame)-1] ^= 0xff
	case faultMismatch:
		frame[4] ^= 0xff
	}
	return frame
}
