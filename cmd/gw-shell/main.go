// gw-shell is an interactive Modbus master for checking a gateway from the
// bus side, over RTU or TCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/goburrow/modbus"
	"github.com/google/shlex"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/mercury-gw/cmd"
)

var (
	flagSerialDevice = flag.String("serialDevice", "/dev/ttyUSB1", "RS-485 device of the Modbus line")
	flagBaud         = flag.Int("baud", 19200, "Baud rate of the Modbus line")
	flagTCP          = flag.String("tcp", "", "Use Modbus TCP on host:port instead of the serial line")
	flagAddress      = flag.Int("address", 10, "Slave address (unit id) of the gateway")
	flagTimeout      = flag.Duration("timeout", time.Second, "Response timeout")
)

type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

func mustConnect() handler {
	var h handler
	if *flagTCP != "" {
		tcp := modbus.NewTCPClientHandler(*flagTCP)
		tcp.SlaveId = byte(*flagAddress)
		tcp.Timeout = *flagTimeout
		h = tcp
	} else {
		rtu := modbus.NewRTUClientHandler(*flagSerialDevice)
		rtu.BaudRate = *flagBaud
		rtu.DataBits = 8
		rtu.Parity = "N"
		rtu.StopBits = 1
		rtu.SlaveId = byte(*flagAddress)
		rtu.Timeout = *flagTimeout
		h = rtu
	}
	if err := h.Connect(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	return h
}

func main() {
	flag.CommandLine.Usage = help
	cmd.CommonInit()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	h := mustConnect()
	defer h.Close()
	client := modbus.NewClient(h)

	// if arguments passed then execute as command
	if args := flag.Args(); len(args) > 0 {
		if err := execute(ctx, client, args); err != nil {
			log.Error().Err(err).Msg("failed")
		}
		return
	}

	line := liner.NewLiner()
	defer line.Close()

	// otherwise: start repl
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(line string) (c []string) {
		for _, comm := range commands {
			if strings.HasPrefix(comm.command, line) {
				c = append(c, comm.command)
			}
		}
		return c
	})

	for ctx.Err() == nil {
		if response, err := line.Prompt("Modbus> "); err == nil {
			inputTokens, err := shlex.Split(response)
			if err != nil {
				log.Error().Err(err).Msg("failed to parse input")
				continue
			}
			if len(inputTokens) == 0 {
				continue
			}
			if len(inputTokens) == 1 && inputTokens[0] == `quit` {
				cancel()
				break
			}
			err = execute(ctx, client, inputTokens)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if err == nil {
				line.AppendHistory(response)
			}
		} else if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Printf("Send EOF (CTRL-D) or execute 'quit' to exit\n")
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Printf("\n")
			cancel()
			break
		} else {
			log.Error().Err(err).Msg("error reading line")
		}
	}
}

func execute(ctx context.Context, client modbus.Client, tokens []string) error {
	for _, comm := range commands {
		if comm.command != tokens[0] {
			continue
		}
		if comm.args >= 0 && comm.args != len(tokens)-1 {
			return fmt.Errorf("invalid number of arguments for command %v, expected %v got %v",
				comm.command, comm.args, len(tokens)-1)
		}
		err := comm.fun(ctx, client, tokens[1:]...)
		if err != nil {
			return fmt.Errorf("command failed %v: %w", tokens, err)
		}
		return nil
	}
	return fmt.Errorf("command not found: %v", tokens[0])
}
