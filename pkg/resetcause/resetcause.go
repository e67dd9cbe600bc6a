// Package resetcause reports why the controller last started, as the bitmask
// published in the first Modbus holding register.
package resetcause

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Flags is the reset cause bitmask.
type Flags uint16

const (
	PowerOn  Flags = 0x0001
	Pin      Flags = 0x0002
	Software Flags = 0x0004
	Watchdog Flags = 0x0008
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{PowerOn, "power-on"},
	{Pin, "pin"},
	{Software, "software"},
	{Watchdog, "watchdog"},
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	rest := f
	for _, n := range flagNames {
		if f&n.f != 0 {
			parts = append(parts, n.name)
			rest &^= n.f
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%04x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// Source supplies the reset flags. They do not change while running.
type Source interface {
	ResetFlags() Flags
}

// Static is a Source with fixed flags.
type Static Flags

func (s Static) ResetFlags() Flags { return Flags(s) }

// Bits of the watchdog bootstatus, see linux/watchdog.h.
const (
	wdiofExtern1   = 0x0004
	wdiofExtern2   = 0x0008
	wdiofCardReset = 0x0020
)

// FromWatchdog reads the bootstatus attribute of a Linux watchdog device,
// usually /sys/class/watchdog/watchdog0/bootstatus.
func FromWatchdog(path string) (Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read watchdog bootstatus: %w", err)
	}
	status, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parse watchdog bootstatus %q: %w", strings.TrimSpace(string(raw)), err)
	}
	return Static(fromBootstatus(uint32(status))), nil
}

func fromBootstatus(status uint32) Flags {
	var f Flags
	if status&wdiofCardReset != 0 {
		f |= Watchdog
	}
	if status&(wdiofExtern1|wdiofExtern2) != 0 {
		f |= Pin
	}
	if f == 0 {
		f = PowerOn
	}
	return f
}
