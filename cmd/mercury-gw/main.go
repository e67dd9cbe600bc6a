// mercury-gw polls a Mercury electricity meter and serves its readings as
// Modbus RTU holding registers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yvesf/mercury-gw/cmd"
	"github.com/yvesf/mercury-gw/pkg/api"
	"github.com/yvesf/mercury-gw/pkg/config"
	"github.com/yvesf/mercury-gw/pkg/datalog"
	"github.com/yvesf/mercury-gw/pkg/gpio"
	"github.com/yvesf/mercury-gw/pkg/mbtcp"
	"github.com/yvesf/mercury-gw/pkg/poller"
	"github.com/yvesf/mercury-gw/pkg/resetcause"
	"github.com/yvesf/mercury-gw/pkg/rtu"
	"github.com/yvesf/mercury-gw/pkg/serialport"
	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

var flagConfig = flag.String("config", "/etc/mercury-gw.yaml", "Configuration file, created with defaults if missing")

// portReadTimeout bounds a single read so the readers notice shutdown.
const portReadTimeout = 50 * time.Millisecond

func main() {
	cmd.CommonInit()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var reset resetcause.Source = resetcause.Static(resetcause.PowerOn)
	if cfg.Watchdog != "" {
		s, err := resetcause.FromWatchdog(cfg.Watchdog)
		if err != nil {
			log.Warn().Err(err).Msg("reset cause unknown, reporting power-on")
		} else {
			reset = s
		}
	}
	log.Info().Stringer("cause", reset.ResetFlags()).Msg("started")

	meterPort, err := serialport.Open(cfg.Meter.Port, cfg.Meter.Baud, portReadTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open meter port")
	}
	defer meterPort.Close()

	busPort, err := serialport.Open(cfg.Modbus.Port, cfg.Modbus.Baud, portReadTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open modbus port")
	}
	defer busPort.Close()

	cache := new(telemetry.Cache)

	link := poller.NewSerialLink(meterPort)
	meterPoller, err := poller.New(poller.Config{
		DeviceID: cfg.Get(config.MeterNumber),
		Period:   cfg.Meter.PollPeriod(),
		Timeout:  cfg.Meter.Timeout(),
	}, link, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up poller")
	}

	registers := rtu.NewRegisterMap(cache, reset)
	busAddress := func() byte { return byte(cfg.Get(config.BusAddress)) }
	rtuServer := rtu.NewServer(busAddress, registers)

	var heartbeat *gpio.Heartbeat
	var cardDetect *gpio.CardDetect
	if cfg.GPIO.Chip != "" {
		if l := cfg.GPIO.HeartbeatLine; l != nil {
			if heartbeat, err = gpio.NewHeartbeat(cfg.GPIO.Chip, *l); err != nil {
				log.Fatal().Err(err).Msg("failed to set up heartbeat led")
			}
			defer heartbeat.Close()
		}
		if l := cfg.GPIO.CardDetectLine; l != nil {
			if cardDetect, err = gpio.NewCardDetect(cfg.GPIO.Chip, *l); err != nil {
				log.Fatal().Err(err).Msg("failed to set up card detect")
			}
			defer cardDetect.Close()
		}
	}
	meterPoller.Observe(func(s telemetry.Snapshot) { heartbeat.Update(s.Link) })

	var sinks []datalog.Sink
	if cfg.DataLog.Dir != "" {
		sinks = append(sinks, datalog.NewCSVSink(cfg.DataLog.Dir))
	}
	if cfg.DataLog.SQLite != "" {
		db, err := datalog.OpenSQLite(cfg.DataLog.SQLite)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open reading database")
		}
		defer db.Close()
		sinks = append(sinks, db)
	}
	logger := datalog.New(datalog.Config{
		Enabled:  cfg.Get(config.DataLog) == 1,
		Interval: int(cfg.Get(config.LogInterval)),
		Presence: cardDetect.Present,
	}, cache, sinks...)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("task", name).Msg("task failed, shutting down")
				cancel()
			}
		}()
	}

	if addr := cmd.MetricsAddr(cfg.HTTP.Listen); addr != "" {
		apiServer := api.New(cache, meterPoller.LinkQuality)
		meterPoller.Observe(apiServer.Broadcast)
		run("http", func(ctx context.Context) error { return apiServer.ListenAndServe(ctx, addr) })
	}

	if cfg.ModbusTCP.Listen != "" {
		tcpServer, err := mbtcp.NewServer(cfg.ModbusTCP.Listen, cfg.ModbusTCP.MaxClients,
			mbtcp.NewHandler(busAddress, registers))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up modbus tcp")
		}
		if err := tcpServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start modbus tcp")
		}
		defer tcpServer.Stop()
	}

	run("meter-link", func(ctx context.Context) error { link.Run(ctx); return nil })
	run("poller", meterPoller.Run)
	run("modbus-rtu", func(ctx context.Context) error {
		return rtuServer.Serve(ctx, busPort, rtu.Silence(cfg.Modbus.Baud))
	})
	run("datalog", logger.Run)

	log.Info().
		Uint32("meter", cfg.Meter.Number).
		Uint8("address", cfg.Modbus.Address).
		Int("baud", cfg.Modbus.Baud).
		Msg("gateway running")

	<-ctx.Done()
	log.Info().Msg("start shutdown")
	// unblock the port readers
	_ = meterPort.Close()
	_ = busPort.Close()
	wg.Wait()
}
