package mercury

import "fmt"

// Command selects the data set the meter answers with.
type Command byte

// Request addresses the command to the meter with serial number deviceID.
func (c Command) Request(deviceID uint32) Request {
	return Request{DeviceID: deviceID, Command: c}
}

func (c Command) String() string {
	switch c {
	case CommandInstantValues:
		return "instant-values"
	case CommandTariffs:
		return "tariffs"
	default:
		return fmt.Sprintf("command(0x%02x)", byte(c))
	}
}

const (
	// CommandInstantValues reads voltage, current and power.
	CommandInstantValues Command = 0x63
	// CommandTariffs reads the day and night energy accumulators.
	CommandTariffs Command = 0x27
)

// DefaultCycle is the order in which commands are sent to the meter.
var DefaultCycle = []Command{CommandInstantValues, CommandTariffs}

// Frame sizes on the wire. The three sizes are distinct so the length of a
// reception tells which frame it is.
const (
	RequestSize       = 7
	HeaderSize        = RequestSize
	InstantValuesSize = HeaderSize + 2 + 2 + 3 + 2
	TariffsSize       = HeaderSize + 4 + 4 + 2

	// MaxFrameSize is the largest frame the meter sends.
	MaxFrameSize = TariffsSize
)
