// Package mercury implements the binary request/response protocol of the
// Mercury single phase electricity meter.
//
// Every request is answered on a half-duplex RS-485 line, so a reception
// always starts with the local echo of the request itself. The answer
// follows directly after the echo.
package mercury

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/yvesf/mercury-gw/pkg/crc"
)

var (
	ErrLength   = errors.New("unexpected frame length")
	ErrCRC      = errors.New("payload crc mismatch")
	ErrMismatch = errors.New("echo does not match request")
)

// Request is sent to the meter and also serves as the reference the echo of
// an answer is compared against.
type Request struct {
	DeviceID uint32
	Command  Command
}

// Marshal returns the 7 byte wire representation.
func (r Request) Marshal() []byte {
	buf := make([]byte, 5, RequestSize)
	binary.BigEndian.PutUint32(buf, r.DeviceID)
	buf[4] = byte(r.Command)
	return crc.Append(buf)
}

func (r Request) String() string {
	return fmt.Sprintf("Request(device=%d, %v)", r.DeviceID, r.Command)
}

// Header is the echo at the start of every answer. Reserved holds two bytes
// that are passed through without interpretation.
type Header struct {
	DeviceID uint32
	Command  Command
	Reserved [2]byte
}

// ParseHeader reads the echo header from the first HeaderSize bytes.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header of %d bytes: %w", len(data), ErrLength)
	}
	return Header{
		DeviceID: binary.BigEndian.Uint32(data[0:4]),
		Command:  Command(data[4]),
		Reserved: [2]byte{data[5], data[6]},
	}, nil
}

// Matches reports whether the echo belongs to req.
func (h Header) Matches(req Request) bool {
	return h.DeviceID == req.DeviceID && h.Command == req.Command
}

type InstantValues struct {
	Voltage uint32 // 0.1 V
	Current uint32 // 0.01 A
	Power   uint32 // W
}

type Tariffs struct {
	Day   uint32 // 0.01 kWh
	Night uint32 // 0.01 kWh
}

// checkPayload validates the answer part of a frame of the given size: the
// crc over the value bytes first, the echo second.
func checkPayload(req Request, frame []byte, size int) error {
	if len(frame) != size {
		return fmt.Errorf("frame of %d bytes, expected %d: %w", len(frame), size, ErrLength)
	}
	if !crc.Valid(frame[HeaderSize:]) {
		return ErrCRC
	}
	h, err := ParseHeader(frame)
	if err != nil {
		return err
	}
	if !h.Matches(req) {
		return fmt.Errorf("got device=%d command=0x%02x: %w", h.DeviceID, byte(h.Command), ErrMismatch)
	}
	return nil
}

// ParseInstantValues validates and decodes a 16 byte instant values frame.
func ParseInstantValues(req Request, frame []byte) (InstantValues, error) {
	if err := checkPayload(req, frame, InstantValuesSize); err != nil {
		return InstantValues{}, err
	}
	p := frame[HeaderSize:]
	return InstantValues{
		Voltage: DecodeBCD(p[0:2]),
		Current: DecodeBCD(p[2:4]),
		Power:   DecodeBCD(p[4:7]),
	}, nil
}

// ParseTariffs validates and decodes a 17 byte tariff frame.
func ParseTariffs(req Request, frame []byte) (Tariffs, error) {
	if err := checkPayload(req, frame, TariffsSize); err != nil {
		return Tariffs{}, err
	}
	p := frame[HeaderSize:]
	return Tariffs{
		Day:   DecodeBCD(p[0:4]),
		Night: DecodeBCD(p[4:8]),
	}, nil
}

// InstantValuesFrame builds the reception a meter produces for req: the echo
// followed by the encoded values.
func InstantValuesFrame(req Request, v InstantValues) []byte {
	frame := req.Marshal()
	payload := make([]byte, 0, InstantValuesSize-HeaderSize)
	payload = append(payload, EncodeBCD(v.Voltage, 2)...)
	payload = append(payload, EncodeBCD(v.Current, 2)...)
	payload = append(payload, EncodeBCD(v.Power, 3)...)
	return append(frame, crc.Append(payload)...)
}

// TariffsFrame builds the reception a meter produces for req.
func TariffsFrame(req Request, t Tariffs) []byte {
	frame := req.Marshal()
	payload := make([]byte, 0, TariffsSize-HeaderSize)
	payload = append(payload, EncodeBCD(t.Day, 4)...)
	payload = append(payload, EncodeBCD(t.Night, 4)...)
	return append(frame, crc.Append(payload)...)
}
