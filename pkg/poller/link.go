package poller

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// receiveBufferSize bounds a reception. Nothing the meter sends comes close,
// a fuller buffer means line noise and is dropped.
const receiveBufferSize = 64

// Link is the meter side transport: send a request, collect what comes back.
type Link interface {
	// Reset drops everything received so far.
	Reset()
	Send(data []byte) error
	// Received returns a copy of the bytes collected since the last Reset.
	Received() []byte
}

// SerialLink collects bytes from a serial port in the background.
type SerialLink struct {
	port io.ReadWriter

	m   sync.Mutex
	buf []byte

	log zerolog.Logger
}

func NewSerialLink(port io.ReadWriter) *SerialLink {
	return &SerialLink{
		port: port,
		buf:  make([]byte, 0, receiveBufferSize),
		log:  log.With().Str("component", "meter-link").Logger(),
	}
}

// Run reads from the port until ctx is done or the port is closed.
func (l *SerialLink) Run(ctx context.Context) {
	frameBuf := make([]byte, receiveBufferSize)
	for ctx.Err() == nil {
		n, err := l.port.Read(frameBuf)
		if n > 0 {
			l.receive(frameBuf[:n])
		}
		switch {
		case err == nil:
		case errors.Is(err, serial.ErrTimeout):
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
			l.log.Debug().Err(err).Msg("reader exits")
			return
		default:
			l.log.Warn().Err(err).Msg("error reading")
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
	l.log.Debug().Msg("reader exits")
}

func (l *SerialLink) receive(data []byte) {
	l.m.Lock()
	defer l.m.Unlock()
	l.log.Trace().Str("data", hex.EncodeToString(data)).Int("len", len(data)).Msg("received bytes")
	l.buf = append(l.buf, data...)
	if len(l.buf) > receiveBufferSize-2 {
		l.log.Warn().Int("len", len(l.buf)).Msg("receive buffer overflow, dropping")
		l.buf = l.buf[:0]
	}
}

func (l *SerialLink) Reset() {
	l.m.Lock()
	defer l.m.Unlock()
	l.buf = l.buf[:0]
}

func (l *SerialLink) Send(data []byte) error {
	n, err := l.port.Write(data)
	if err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("write request: incomplete write %d of %d bytes", n, len(data))
	}
	l.log.Trace().Str("data", hex.EncodeToString(data)).Msg("sent bytes")
	return nil
}

func (l *SerialLink) Received() []byte {
	l.m.Lock()
	defer l.m.Unlock()
	return append([]byte(nil), l.buf...)
}
