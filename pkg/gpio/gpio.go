// gpio drives the board signals: a heartbeat LED following the meter link
// and the card detect switch of the log storage.

package gpio

import (
	"fmt"
	"strconv"

	"github.com/bsm/openmetrics"
	"github.com/rs/zerolog/log"
	"github.com/warthog618/gpiod"

	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

var metricGpioState = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
	Name:   "gateway_gpio_state",
	Help:   "logical level of the board gpio lines",
	Labels: []string{"gpio", "function"},
})

// line is the part of *gpiod.Line in use.
type line interface {
	Offset() int
	Value() (int, error)
	SetValue(int) error
	Close() error
}

// Heartbeat blinks once per poll while the meter link fails and stays lit
// while it is ok. A nil *Heartbeat does nothing.
type Heartbeat struct {
	gpio line
	on   bool
}

func NewHeartbeat(chip string, offset int) (*Heartbeat, error) {
	l, err := gpiod.RequestLine(chip, offset, gpiod.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gpio %v: %w", offset, err)
	}
	return &Heartbeat{gpio: l}, nil
}

// Update is called after every poll with its outcome.
func (h *Heartbeat) Update(status telemetry.LinkStatus) {
	if h == nil {
		return
	}
	if status == telemetry.LinkOK {
		h.on = true
	} else {
		h.on = !h.on
	}
	h.write()
}

func (h *Heartbeat) write() {
	value := 0
	if h.on {
		value = 1
	}
	metricGpioState.With(strconv.Itoa(h.gpio.Offset()), "heartbeat").Set(float64(value))
	if err := h.gpio.SetValue(value); err != nil {
		log.Error().Err(err).Int("gpio", h.gpio.Offset()).Msg("failed to write heartbeat gpio")
	}
}

func (h *Heartbeat) Close() {
	if h == nil {
		return
	}
	_ = h.gpio.SetValue(0)
	_ = h.gpio.Close()
}

// CardDetect reads the active low card detect switch. A nil *CardDetect
// always reports a card.
type CardDetect struct {
	gpio line
}

func NewCardDetect(chip string, offset int) (*CardDetect, error) {
	l, err := gpiod.RequestLine(chip, offset, gpiod.AsInput, gpiod.AsActiveLow)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gpio %v: %w", offset, err)
	}
	return &CardDetect{gpio: l}, nil
}

// Present reports whether a card is inserted. A read error counts as no
// card.
func (c *CardDetect) Present() bool {
	if c == nil {
		return true
	}
	v, err := c.gpio.Value()
	if err != nil {
		log.Error().Err(err).Int("gpio", c.gpio.Offset()).Msg("failed to read card detect gpio")
		return false
	}
	metricGpioState.With(strconv.Itoa(c.gpio.Offset()), "card-detect").Set(float64(v))
	return v == 1
}

func (c *CardDetect) Close() {
	if c == nil {
		return
	}
	_ = c.gpio.Close()
}
