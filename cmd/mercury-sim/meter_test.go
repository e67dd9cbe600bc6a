package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvesf/mercury-gw/pkg/mercury"
)

func TestMeter_Answers(t *testing.T) {
	m := newMeter(42, 2300, 435, 1000, faultNone)
	now := time.Date(2024, 3, 21, 12, 0, 0, 0, time.Local)

	req := mercury.CommandInstantValues.Request(42)
	out := m.feed(req.Marshal(), now)
	require.Len(t, out, 1)
	v, err := mercury.ParseInstantValues(req, out[0])
	require.NoError(t, err)
	assert.Equal(t, mercury.InstantValues{Voltage: 2300, Current: 435, Power: 1000}, v)

	// split over two reads and preceded by noise
	treq := mercury.CommandTariffs.Request(42)
	raw := append([]byte{0x00, 0xff}, treq.Marshal()...)
	assert.Empty(t, m.feed(raw[:4], now))
	out = m.feed(raw[4:], now.Add(time.Hour))
	require.Len(t, out, 1)
	tariffs, err := mercury.ParseTariffs(treq, out[0])
	require.NoError(t, err)
	assert.Equal(t, uint32(123456+100), tariffs.Day, "1 kWh in one hour of day tariff")
	assert.Equal(t, uint32(76543), tariffs.Night)
}

func TestMeter_OtherDevice(t *testing.T) {
	m := newMeter(42, 2300, 435, 1000, faultNone)
	assert.Empty(t, m.feed(mercury.CommandInstantValues.Request(43).Marshal(), time.Now()))
}

func TestMeter_Faults(t *testing.T) {
	req := mercury.CommandInstantValues.Request(1)
	for _, tc := range []struct {
		fault fault
		check func(t *testing.T, out [][]byte)
	}{
		{faultSilent, func(t *testing.T, out [][]byte) { assert.Empty(t, out) }},
		{faultNoAnswer, func(t *testing.T, out [][]byte) {
			require.Len(t, out, 1)
			assert.Equal(t, req.Marshal(), out[0])
		}},
		{faultCRC, func(t *testing.T, out [][]byte) {
			require.Len(t, out, 1)
			_, err := mercury.ParseInstantValues(req, out[0])
			assert.ErrorIs(t, err, mercury.ErrCRC)
		}},
		{faultMismatch, func(t *testing.T, out [][]byte) {
			require.Len(t, out, 1)
			_, err := mercury.ParseInstantValues(req, out[0])
			assert.ErrorIs(t, err, mercury.ErrMismatch)
		}},
	} {
		t.Run(tc.fault.String(), func(t *testing.T) {
			m := newMeter(1, 2300, 435, 1000, tc.fault)
			tc.check(t, m.feed(req.Marshal(), time.Now()))
		})
	}
}

func TestParseFault(t *testing.T) {
	for f, name := range faultNames {
		got, err := parseFault(name)
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := parseFault("fire")
	assert.Error(t, err)
}
