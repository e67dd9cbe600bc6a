// mercury-sim simulates a Mercury meter on a serial line, for testing a
// gateway without the hardware.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/openmetrics"
	"github.com/goburrow/serial"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/mercury-gw/cmd"
	"github.com/yvesf/mercury-gw/pkg/serialport"
)

var (
	flagSerialDevice = flag.String("serialDevice", "/dev/ttyUSB0", "Device the gateway polls on")
	flagBaud         = flag.Int("baud", 9600, "Baud rate")
	flagDeviceID     = flag.Uint("device", 0, "Serial number to answer to")
	flagVoltage      = flag.Uint("voltage", 2300, "Voltage in 0.1 V")
	flagCurrent      = flag.Uint("current", 435, "Current in 0.01 A")
	flagPower        = flag.Uint("power", 1000, "Power in W")
	flagFault        = flag.String("fault", "none", "Simulated fault: none, silent, no-answer, crc, mismatch")
)

var metricRequests = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
	Name:   "sim_requests",
	Help:   "Requests answered by the simulator",
	Labels: []string{"command"},
})

func main() {
	cmd.CommonInit()

	fault, err := parseFault(*flagFault)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -fault")
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGINT)
	defer cancel()

	cmd.ServeMetrics(ctx, cmd.MetricsAddr(""))

	port, err := serialport.Open(*flagSerialDevice, *flagBaud, 100*time.Millisecond)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open port")
	}
	go func() {
		<-ctx.Done()
		_ = port.Close()
	}()

	m := newMeter(uint32(*flagDeviceID), uint32(*flagVoltage), uint32(*flagCurrent), uint32(*flagPower), fault)
	log.Info().Str("device", *flagSerialDevice).Uint("id", *flagDeviceID).Stringer("fault", fault).Msg("simulating meter")

	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := port.Read(buf)
		for _, answer := range m.feed(buf[:n], time.Now()) {
			if _, err := port.Write(answer); err != nil {
				log.Error().Err(err).Msg("failed to write answer")
			}
		}
		switch {
		case err == nil, errors.Is(err, serial.ErrTimeout):
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			log.Info().Msg("shutdown")
			return
		default:
			log.Error().Err(err).Msg("failed to read")
			time.Sleep(time.Second)
		}
	}
}
