// Package serialport opens the RS-485 lines with the settings both the meter
// and the Modbus bus use.
package serialport

import (
	"fmt"
	"time"

	"github.com/goburrow/serial"
)

// Config returns the 8N1 settings for device. timeout bounds a single Read,
// it ends with serial.ErrTimeout when nothing arrived.
func Config(device string, baud int, timeout time.Duration) serial.Config {
	config := serial.Config{}
	config.Address = device
	config.BaudRate = baud
	config.DataBits = 8
	config.Parity = "N"
	config.StopBits = 1
	config.Timeout = timeout
	return config
}

// Open opens device at baud.
func Open(device string, baud int, timeout time.Duration) (serial.Port, error) {
	config := Config(device, baud, timeout)
	port, err := serial.Open(&config)
	if err != nil {
		return nil, fmt.Errorf("open %s at %d baud: %w", device, baud, err)
	}
	return port, nil
}
