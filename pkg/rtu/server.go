// Package rtu implements a Modbus RTU slave serving the telemetry as read
// only holding registers.
package rtu

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goburrow/serial"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/mercury-gw/pkg/crc"
)

// Silence returns the gap of 3.5 characters that ends a frame at the given
// baud rate, with 11 bits per character. Above 19200 baud (or for an unknown
// rate) the gap is fixed at 1750us.
func Silence(baud int) time.Duration {
	if baud <= 0 || baud > 19200 {
		return 1750 * time.Microsecond
	}
	return time.Duration(38500000/baud) * time.Microsecond
}

type Server struct {
	// Address returns the configured slave address.
	Address   func() byte
	Registers RegisterMap

	buf []byte
	log zerolog.Logger
}

func NewServer(address func() byte, registers RegisterMap) *Server {
	return &Server{
		Address:   address,
		Registers: registers,
		buf:       make([]byte, 0, MaxFrameSize),
		log:       log.With().Str("component", "modbus-rtu").Logger(),
	}
}

// check tests length, crc and address, in that order.
func (s *Server) check(frame []byte) error {
	if len(frame) < MinFrameSize {
		return fmt.Errorf("%d bytes: %w", len(frame), ErrShortFrame)
	}
	if !crc.Valid(frame) {
		return ErrCRC
	}
	if frame[0] != s.Address() {
		return fmt.Errorf("address %d: %w", frame[0], ErrNotForUs)
	}
	return nil
}

// ValidateFrame reports whether frame is a complete request for this slave.
func (s *Server) ValidateFrame(frame []byte) bool {
	return s.check(frame) == nil
}

// Handle returns the response to a request frame, or nil if the frame is
// not answered at all.
func (s *Server) Handle(frame []byte) []byte {
	if err := s.check(frame); err != nil {
		s.log.Debug().Err(err).Str("frame", hex.EncodeToString(frame)).Msg("ignore frame")
		metricFrames.With("ignored").Add(1)
		return nil
	}

	address, function := frame[0], frame[1]
	if function != FuncReadHoldingRegisters {
		s.log.Debug().Uint8("function", function).Msg("unsupported function")
		metricFrames.With("exception").Add(1)
		return exceptionResponse(address, function, ExceptionIllegalFunction)
	}

	start := binary.BigEndian.Uint16(frame[2:4])
	count := binary.BigEndian.Uint16(frame[4:6])
	values, err := s.Registers.Read(start, count)
	if err != nil {
		s.log.Debug().Err(err).Msg("read rejected")
		metricFrames.With("exception").Add(1)
		return exceptionResponse(address, function, ExceptionIllegalDataAddress)
	}

	metricFrames.With("ok").Add(1)
	return readResponse(address, function, values)
}

func exceptionResponse(address, function, code byte) []byte {
	return crc.Append([]byte{address, function | exceptionFlag, code})
}

func readResponse(address, function byte, values []uint16) []byte {
	out := make([]byte, 3, 3+2*len(values)+2)
	out[0], out[1], out[2] = address, function, byte(2*len(values))
	for _, v := range values {
		out = binary.BigEndian.AppendUint16(out, v)
	}
	return crc.Append(out)
}

// Serve reads requests from port until ctx is done or reading fails. A
// frame ends after silence without bytes. Each frame gets at most one
// response, written with a single Write.
func (s *Server) Serve(ctx context.Context, port io.ReadWriter, silence time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readChunks(ctx, port, chunks)
		close(chunks)
	}()

	timer := time.NewTimer(silence)
	timer.Stop()
	defer timer.Stop()

	s.buf = s.buf[:0]
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return <-readErr
			}
			if len(s.buf)+len(chunk) > MaxFrameSize {
				s.log.Warn().Int("len", len(s.buf)+len(chunk)).Msg("frame too long, dropping")
				metricFrames.With("ignored").Add(1)
				s.buf = s.buf[:0]
				timer.Reset(silence)
				continue
			}
			s.buf = append(s.buf, chunk...)
			timer.Reset(silence)
		case <-timer.C:
			if len(s.buf) == 0 {
				continue
			}
			s.log.Trace().Str("frame", hex.EncodeToString(s.buf)).Msg("received frame")
			response := s.Handle(s.buf)
			s.buf = s.buf[:0]
			if response == nil {
				continue
			}
			s.log.Trace().Str("frame", hex.EncodeToString(response)).Msg("send response")
			if _, err := port.Write(response); err != nil {
				s.log.Error().Err(err).Msg("failed to write response")
			}
		}
	}
}

func readChunks(ctx context.Context, port io.Reader, out chan<- []byte) error {
	buf := make([]byte, MaxFrameSize)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			select {
			case out <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		switch {
		case err == nil, errors.Is(err, serial.ErrTimeout):
		default:
			return fmt.Errorf("read modbus port: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
