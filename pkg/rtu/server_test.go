package rtu

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvesf/mercury-gw/pkg/crc"
	"github.com/yvesf/mercury-gw/pkg/resetcause"
	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

const testAddress = 10

func testServer() *Server {
	cache := new(telemetry.Cache)
	cache.SetInstant(telemetry.Instant{Voltage: 2376, Current: 123, Power: 234560})
	cache.SetTariffs(telemetry.Tariffs{Day: 123456, Night: 9876})
	return NewServer(func() byte { return testAddress }, NewRegisterMap(cache, resetcause.Static(resetcause.PowerOn|resetcause.Pin)))
}

func request(address, function byte, start, count uint16) []byte {
	return crc.Append([]byte{address, function, byte(start >> 8), byte(start), byte(count >> 8), byte(count)})
}

func TestHandle_ReadAll(t *testing.T) {
	s := testServer()
	response := s.Handle(request(testAddress, FuncReadHoldingRegisters, 0, 6))
	require.True(t, crc.Valid(response))
	assert.Equal(t, []byte{
		testAddress, 0x03, 12,
		0x00, 0x03, // reset flags
		0x00, 0x7b, // current 123
		0x09, 0x48, // voltage 2376
		0x94, 0x40, // power 234560 truncated to 0x9440
		0xe2, 0x40, // tariff day 123456 truncated to 0xe240
		0x26, 0x94, // tariff night 9876
	}, response[:len(response)-2])
}

func TestHandle_Partial(t *testing.T) {
	s := testServer()
	response := s.Handle(request(testAddress, FuncReadHoldingRegisters, 2, 1))
	assert.Equal(t, crc.Append([]byte{testAddress, 0x03, 2, 0x09, 0x48}), response)
}

func TestHandle_UnsupportedFunction(t *testing.T) {
	s := testServer()
	response := s.Handle(request(testAddress, 0x10, 0, 1))
	assert.Equal(t, crc.Append([]byte{testAddress, 0x90, ExceptionIllegalFunction}), response)
	assert.True(t, crc.Valid(response))
}

func TestHandle_OutOfRange(t *testing.T) {
	s := testServer()
	response := s.Handle(request(testAddress, FuncReadHoldingRegisters, 4, 4))
	assert.Equal(t, crc.Append([]byte{testAddress, 0x83, ExceptionIllegalDataAddress}), response)
}

func TestHandle_Bounds(t *testing.T) {
	s := testServer()
	size := uint16(s.Registers.Len())
	for start := uint16(0); start <= size+2; start++ {
		for count := uint16(0); count <= size+2; count++ {
			response := s.Handle(request(testAddress, FuncReadHoldingRegisters, start, count))
			require.True(t, crc.Valid(response))
			if start < size && start+count <= size {
				assert.Equal(t, byte(0x03), response[1], "start %d count %d", start, count)
				assert.Equal(t, byte(2*count), response[2], "start %d count %d", start, count)
				assert.Len(t, response, 5+2*int(count))
			} else {
				assert.Equal(t, []byte{testAddress, 0x83, ExceptionIllegalDataAddress}, response[:3],
					"start %d count %d", start, count)
			}
		}
	}
	response := s.Handle(request(testAddress, FuncReadHoldingRegisters, 0xffff, 2))
	assert.Equal(t, byte(0x83), response[1])
}

func TestHandle_Ignored(t *testing.T) {
	s := testServer()
	good := request(testAddress, FuncReadHoldingRegisters, 0, 1)

	badCRC := append([]byte(nil), good...)
	badCRC[len(badCRC)-1] ^= 0xff

	for name, frame := range map[string][]byte{
		"other address":         request(testAddress+1, FuncReadHoldingRegisters, 0, 1),
		"other address, bad fn": request(testAddress+1, 0x10, 0, 1),
		"crc":                   badCRC,
		"short":                 crc.Append([]byte{testAddress, 0x03, 0x00, 0x00, 0x00}),
		"empty":                 nil,
	} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, s.ValidateFrame(frame))
			assert.Nil(t, s.Handle(frame))
		})
	}
	assert.True(t, s.ValidateFrame(good))
}

func TestSilence(t *testing.T) {
	assert.Equal(t, 1750*time.Microsecond, Silence(115200))
	assert.Equal(t, 1750*time.Microsecond, Silence(38400))
	assert.Equal(t, 1750*time.Microsecond, Silence(0))
	// 38.5 bit times
	assert.Equal(t, 4010*time.Microsecond, Silence(9600))
	assert.Equal(t, 2005*time.Microsecond, Silence(19200))
	assert.Equal(t, 32083*time.Microsecond, Silence(1200))
}

// linePort hands out what the test pushes and records writes.
type linePort struct {
	in chan []byte

	m       sync.Mutex
	written [][]byte
}

func (p *linePort) Read(b []byte) (int, error) {
	select {
	case chunk, ok := <-p.in:
		if !ok {
			return 0, io.EOF
		}
		return copy(b, chunk), nil
	case <-time.After(time.Millisecond):
		return 0, serial.ErrTimeout
	}
}

func (p *linePort) Write(b []byte) (int, error) {
	p.m.Lock()
	defer p.m.Unlock()
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *linePort) responses() [][]byte {
	p.m.Lock()
	defer p.m.Unlock()
	return append([][]byte(nil), p.written...)
}

func TestServe(t *testing.T) {
	s := testServer()
	port := &linePort{in: make(chan []byte, 8)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, port, 20*time.Millisecond) }()

	req := request(testAddress, FuncReadHoldingRegisters, 1, 2)
	port.in <- req[:3]
	port.in <- req[3:]
	require.Eventually(t, func() bool { return len(port.responses()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, crc.Append([]byte{testAddress, 0x03, 4, 0x00, 0x7b, 0x09, 0x48}), port.responses()[0])

	// not for us, no answer
	port.in <- request(testAddress+1, FuncReadHoldingRegisters, 0, 1)
	time.Sleep(60 * time.Millisecond)
	port.in <- request(testAddress, 0x06, 0, 1)
	require.Eventually(t, func() bool { return len(port.responses()) == 2 }, time.Second, time.Millisecond)
	assert.True(t, bytes.Equal(crc.Append([]byte{testAddress, 0x86, ExceptionIllegalFunction}), port.responses()[1]))

	close(port.in)
	select {
	case err := <-done:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
}
