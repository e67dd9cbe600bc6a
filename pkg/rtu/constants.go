package rtu

import "errors"

const (
	FuncReadHoldingRegisters = 0x03

	ExceptionIllegalFunction    = 0x01
	ExceptionIllegalDataAddress = 0x02

	// exceptionFlag is or-ed into the function code of an exception response.
	exceptionFlag = 0x80

	// MinFrameSize is address, function, two 16 bit fields and crc.
	MinFrameSize = 8
	// MaxFrameSize is the largest RTU frame on the line.
	MaxFrameSize = 256
)

var (
	ErrShortFrame = errors.New("frame too short")
	ErrCRC        = errors.New("frame crc mismatch")
	ErrNotForUs   = errors.New("frame addressed to another slave")

	// ErrIllegalDataAddress is returned for reads outside the register map.
	ErrIllegalDataAddress = errors.New("illegal data address")
)
