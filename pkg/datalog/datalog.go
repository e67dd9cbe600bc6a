// Package datalog records the telemetry periodically: instant values every
// interval, the tariff counters once a day at midnight.
package datalog

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/mercury-gw/pkg/telemetry"
	"github.com/yvesf/mercury-gw/pkg/timemock"
)

// Sink stores readings.
type Sink interface {
	WriteInstant(at time.Time, v telemetry.Instant) error
	WriteTariffs(at time.Time, v telemetry.Tariffs) error
}

type Config struct {
	Enabled bool
	// Interval is the number of seconds between two instant rows.
	Interval int
	// Presence reports whether the storage is available. nil means always.
	Presence func() bool
}

type Logger struct {
	cfg   Config
	cache *telemetry.Cache
	sinks []Sink

	countdown int
	// day is the date of the last tick, tariffs are recorded when it changes.
	day time.Time
	log zerolog.Logger
}

func New(cfg Config, cache *telemetry.Cache, sinks ...Sink) *Logger {
	return &Logger{
		cfg:       cfg,
		cache:     cache,
		sinks:     sinks,
		countdown: cfg.Interval,
		log:       log.With().Str("component", "datalog").Logger(),
	}
}

// Run calls Tick once a second until ctx is done.
func (l *Logger) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick(timemock.Now())
		}
	}
}

// Tick advances the logger by one second. Nothing is counted while logging
// is disabled or the storage is missing. Tariffs are recorded on the first
// tick of a new day, which need not be exactly 00:00:00.
func (l *Logger) Tick(now time.Time) {
	newDay := l.newDay(now)
	if !l.cfg.Enabled {
		return
	}
	if l.cfg.Presence != nil && !l.cfg.Presence() {
		return
	}

	if newDay {
		tariffs := l.cache.Tariffs()
		for _, sink := range l.sinks {
			if err := sink.WriteTariffs(now, tariffs); err != nil {
				l.log.Warn().Err(err).Msg("failed to record tariffs")
			}
		}
	}

	if l.countdown > 0 {
		l.countdown--
		return
	}
	l.countdown = l.cfg.Interval

	instant := l.cache.Instant()
	for _, sink := range l.sinks {
		if err := sink.WriteInstant(now, instant); err != nil {
			l.log.Warn().Err(err).Msg("failed to record instant values")
		}
	}
}

// newDay reports whether now is on a later date than any tick before. The
// first tick only sets the date. A clock stepping back does not repeat a day.
func (l *Logger) newDay(now time.Time) bool {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if l.day.IsZero() {
		l.day = day
		return false
	}
	if !day.After(l.day) {
		return false
	}
	l.day = day
	return true
}
