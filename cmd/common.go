package cmd

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/bsm/openmetrics"
	"github.com/bsm/openmetrics/omhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	flagDebug       = flag.Bool("debug", false, "Set log level to debug")
	flagTrace       = flag.Bool("trace", false, "Set log level to trace (overrides -debug)")
	flagMetricsHTTP = flag.String("metricsHTTP", "", "Address of a http server serving metrics under /metrics")
)

// CommonInit parses the flags and sets up the global logger.
func CommonInit() {
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *flagTrace {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

// MetricsAddr returns the -metricsHTTP flag, or fallback if it is unset.
func MetricsAddr(fallback string) string {
	if *flagMetricsHTTP != "" {
		return *flagMetricsHTTP
	}
	return fallback
}

// ServeMetrics serves /metrics on addr in the background until ctx is done.
// An empty addr does nothing.
func ServeMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", omhttp.NewHandler(openmetrics.DefaultRegistry()))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("Listen on http failed")
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
}
