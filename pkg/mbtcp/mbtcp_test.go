package mbtcp

import (
	"net"
	"testing"
	"time"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvesf/mercury-gw/pkg/resetcause"
	"github.com/yvesf/mercury-gw/pkg/rtu"
	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

func testHandler() *Handler {
	cache := new(telemetry.Cache)
	cache.SetInstant(telemetry.Instant{Voltage: 2301, Current: 456, Power: 1050})
	cache.SetTariffs(telemetry.Tariffs{Day: 7, Night: 8})
	return NewHandler(func() byte { return 10 }, rtu.NewRegisterMap(cache, resetcause.Static(resetcause.Watchdog)))
}

func TestHandler_HoldingRegisters(t *testing.T) {
	h := testHandler()

	values, err := h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 10, Addr: 0, Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0008, 456, 2301, 1050, 7, 8}, values)

	values, err = h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 0xff, Addr: 4, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint16{7, 8}, values)
}

func TestHandler_Rejects(t *testing.T) {
	h := testHandler()

	_, err := h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 10, Addr: 4, Quantity: 4})
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)

	_, err = h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 10, Addr: 6, Quantity: 1})
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)

	_, err = h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 10, Addr: 0, Quantity: 1, IsWrite: true, Args: []uint16{1}})
	assert.ErrorIs(t, err, modbus.ErrIllegalFunction)

	_, err = h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 11, Addr: 0, Quantity: 1})
	assert.ErrorIs(t, err, modbus.ErrBadUnitId)

	_, err = h.HandleCoils(&modbus.CoilsRequest{UnitId: 10})
	assert.ErrorIs(t, err, modbus.ErrIllegalFunction)
	_, err = h.HandleDiscreteInputs(&modbus.DiscreteInputsRequest{UnitId: 10})
	assert.ErrorIs(t, err, modbus.ErrIllegalFunction)
	_, err = h.HandleInputRegisters(&modbus.InputRegistersRequest{UnitId: 10})
	assert.ErrorIs(t, err, modbus.ErrIllegalFunction)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServer_RoundTrip(t *testing.T) {
	addr := freeAddr(t)
	s, err := NewServer(addr, 2, testHandler())
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	client, err := modbus.NewClient(&modbus.ClientConfiguration{URL: "tcp://" + addr, Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, client.Open())
	defer client.Close()
	require.NoError(t, client.SetUnitId(10))

	values, err := client.ReadRegisters(1, 3, modbus.HOLDING_REGISTER)
	require.NoError(t, err)
	assert.Equal(t, []uint16{456, 2301, 1050}, values)

	_, err = client.ReadRegisters(5, 2, modbus.HOLDING_REGISTER)
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)
}
