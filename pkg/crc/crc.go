// Package crc implements the CRC-16/MODBUS checksum shared by the meter link
// and the RS-485 field bus.
package crc

import "github.com/sigurn/crc16"

var table = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the CRC-16/MODBUS of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, table)
}

// Append appends the checksum of data, low byte first.
func Append(data []byte) []byte {
	sum := Checksum(data)
	return append(data, byte(sum), byte(sum>>8))
}

// Trailer returns the checksum stored in the last two bytes of frame.
// The frame must be at least two bytes long.
func Trailer(frame []byte) uint16 {
	n := len(frame)
	return uint16(frame[n-2]) | uint16(frame[n-1])<<8
}

// Valid reports whether the trailing two bytes of frame hold the checksum of
// the bytes before them.
func Valid(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	return Checksum(frame[:len(frame)-2]) == Trailer(frame)
}
