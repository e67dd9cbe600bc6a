package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/modbus"

	"github.com/yvesf/mercury-gw/pkg/resetcause"
	"github.com/yvesf/mercury-gw/pkg/rtu"
	"github.com/yvesf/mercury-gw/pkg/timemock"
)

// registerNames is the holding register layout of the gateway.
var registerNames = func() []string {
	var names []string
	for _, r := range rtu.NewRegisterMap(nil, nil).Registers() {
		names = append(names, r.Name)
	}
	return names
}()

type c struct {
	command string
	// args is the exact number of arguments, -1 for any.
	args int
	fun  func(ctx context.Context, client modbus.Client, args ...string) error
	help string
}

var commands []c

func init() {
	commands = []c{
		{
			command: "help",
			args:    0,
			help:    "help display this help",
			fun:     func(context.Context, modbus.Client, ...string) error { help(); return nil },
		},
		{
			command: "regs",
			args:    -1,
			help:    "regs [start count] read raw holding registers, all by default",
			fun: func(ctx context.Context, client modbus.Client, args ...string) error {
				start, count := uint16(0), uint16(len(registerNames))
				switch len(args) {
				case 0:
				case 2:
					s, err := strconv.ParseUint(args[0], 0, 16)
					if err != nil {
						return fmt.Errorf("invalid start: %w", err)
					}
					n, err := strconv.ParseUint(args[1], 0, 16)
					if err != nil {
						return fmt.Errorf("invalid count: %w", err)
					}
					start, count = uint16(s), uint16(n)
				default:
					return fmt.Errorf("expected no or two arguments")
				}
				values, err := readRegisters(client, start, count)
				if err != nil {
					return err
				}
				for i, v := range values {
					fmt.Printf("%3d %-14s 0x%04x %6d\n", int(start)+i, registerName(int(start)+i), v, v)
				}
				return nil
			},
		},
		{
			command: "status",
			args:    0,
			help:    "status read all registers and print them in units",
			fun: func(ctx context.Context, client modbus.Client, args ...string) error {
				values, err := readRegisters(client, 0, uint16(len(registerNames)))
				if err != nil {
					return err
				}
				printStatus(values)
				return nil
			},
		},
		{
			command: "watch",
			args:    1,
			help:    "watch n print the status n times, once a second",
			fun: func(ctx context.Context, client modbus.Client, args ...string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid count %q", args[0])
				}
				for i := 0; i < n && ctx.Err() == nil; i++ {
					if i > 0 {
						timemock.Sleep(time.Second)
					}
					values, err := readRegisters(client, 0, uint16(len(registerNames)))
					if err != nil {
						fmt.Printf("%s error: %v\n", time.Now().Format(time.TimeOnly), err)
						continue
					}
					fmt.Printf("%s ", time.Now().Format(time.TimeOnly))
					printStatus(values)
				}
				return nil
			},
		},
		{
			command: "quit",
			args:    0,
			help:    "quit leave the shell",
			fun:     func(context.Context, modbus.Client, ...string) error { return nil },
		},
	}
}

func registerName(i int) string {
	if i >= 0 && i < len(registerNames) {
		return registerNames[i]
	}
	return "-"
}

// readRegisters decodes the big endian register block. Exception responses
// are reported by name.
func readRegisters(client modbus.Client, start, count uint16) ([]uint16, error) {
	raw, err := client.ReadHoldingRegisters(start, count)
	if err != nil {
		var mbErr *modbus.ModbusError
		if errors.As(err, &mbErr) {
			return nil, fmt.Errorf("slave answered exception 0x%02x: %w", mbErr.ExceptionCode, err)
		}
		return nil, err
	}
	return decodeRegisters(raw), nil
}

func decodeRegisters(raw []byte) []uint16 {
	values := make([]uint16, len(raw)/2)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return values
}

// formatStatus renders a full register block, values as transmitted are
// truncated to 16 bits.
func formatStatus(values []uint16) string {
	if len(values) < len(registerNames) {
		return fmt.Sprintf("incomplete status %v", values)
	}
	return fmt.Sprintf("reset=%s current=%.2fA voltage=%.1fV power=%dW tariff-day=%.2fkWh tariff-night=%.2fkWh",
		resetcause.Flags(values[0]),
		float64(values[1])/100,
		float64(values[2])/10,
		values[3],
		float64(values[4])/100,
		float64(values[5])/100,
	)
}

func printStatus(values []uint16) {
	fmt.Println(formatStatus(values))
}

func help() {
	fmt.Printf("CLI flags help:\n")
	flag.PrintDefaults()

	fmt.Printf("\nCommands help:\n")
	for _, c := range commands {
		fmt.Printf("\t%s\n", strings.ReplaceAll(c.help, "\n", "\n\t"))
	}
}
