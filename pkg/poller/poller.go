// Package poller drives the request/response cycle against the meter and
// keeps the telemetry cache current.
package poller

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/mercury-gw/pkg/mercury"
	"github.com/yvesf/mercury-gw/pkg/ringbuf"
	"github.com/yvesf/mercury-gw/pkg/telemetry"
	"github.com/yvesf/mercury-gw/pkg/timemock"
)

// qualityWindow is the number of recent polls the link quality is computed over.
const qualityWindow = 20

type Config struct {
	DeviceID uint32
	// Period between two requests.
	Period time.Duration
	// Timeout to wait for the answer, shorter than Period.
	Timeout time.Duration
	// Commands are sent in this order, repeating. Defaults to mercury.DefaultCycle.
	Commands []mercury.Command
}

// Poller is the only writer of the telemetry cache.
type Poller struct {
	cfg   Config
	link  Link
	cache *telemetry.Cache

	m         sync.Mutex
	next      int
	state     State
	quality   *ringbuf.Ringbuf[float64]
	observers []func(telemetry.Snapshot)

	log zerolog.Logger
}

func New(cfg Config, link Link, cache *telemetry.Cache) (*Poller, error) {
	if cfg.Period <= 0 {
		return nil, errors.New("poller: period must be > 0")
	}
	if cfg.Timeout <= 0 || cfg.Timeout >= cfg.Period {
		return nil, fmt.Errorf("poller: timeout %v must be > 0 and shorter than period %v", cfg.Timeout, cfg.Period)
	}
	if len(cfg.Commands) == 0 {
		cfg.Commands = mercury.DefaultCycle
	}
	return &Poller{
		cfg:     cfg,
		link:    link,
		cache:   cache,
		quality: ringbuf.NewRingbuf[float64](qualityWindow),
		log:     log.With().Str("component", "poller").Uint32("device", cfg.DeviceID).Logger(),
	}, nil
}

// Observe registers fn to be called with the cache contents after every
// cycle. Must be called before Run.
func (p *Poller) Observe(fn func(telemetry.Snapshot)) {
	p.m.Lock()
	defer p.m.Unlock()
	p.observers = append(p.observers, fn)
}

// State returns the current phase of the cycle.
func (p *Poller) State() State {
	p.m.Lock()
	defer p.m.Unlock()
	return p.state
}

func (p *Poller) setState(s State) {
	p.m.Lock()
	defer p.m.Unlock()
	p.state = s
}

// LinkQuality returns the share of successful polls in the recent window,
// NaN before the first poll.
func (p *Poller) LinkQuality() float64 {
	p.m.Lock()
	defer p.m.Unlock()
	return ringbuf.Mean(p.quality)
}

// nextRequest returns the request for the next command of the cycle and
// advances the cycle.
func (p *Poller) nextRequest() mercury.Request {
	p.m.Lock()
	defer p.m.Unlock()
	cmd := p.cfg.Commands[p.next]
	p.next = (p.next + 1) % len(p.cfg.Commands)
	return cmd.Request(p.cfg.DeviceID)
}

// Run executes one cycle per period until ctx is done. There is no retry and
// no backoff: every period sends a request regardless of earlier outcomes.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one full cycle: send the next request, wait for the answer
// and classify whatever arrived within the timeout. If ctx is done while
// waiting the cycle is abandoned and the previous status is kept.
func (p *Poller) Tick(ctx context.Context) telemetry.LinkStatus {
	defer p.setState(StateIdle)

	p.setState(StateSending)
	p.link.Reset()
	req := p.nextRequest()
	if err := p.link.Send(req.Marshal()); err != nil {
		// nothing went out, the missing echo will tell
		p.log.Error().Err(err).Stringer("request", req).Msg("failed to send request")
	}

	p.setState(StateAwaitingResponse)
	select {
	case <-ctx.Done():
		return p.cache.LinkStatus()
	case <-timemock.After(p.cfg.Timeout):
	}

	p.setState(StateClassifying)
	data := p.link.Received()
	p.log.Trace().Stringer("request", req).Str("data", hex.EncodeToString(data)).Msg("classify")

	previous := p.cache.LinkStatus()
	status := p.Classify(req, data)

	if status != previous {
		p.log.Info().Stringer("status", status).Stringer("previous", previous).Msg("link status changed")
	}

	p.m.Lock()
	if status == telemetry.LinkOK {
		p.quality.Add(1)
	} else {
		p.quality.Add(0)
	}
	quality := ringbuf.Mean(p.quality)
	observers := p.observers
	p.m.Unlock()

	snapshot := p.cache.Snapshot()
	updateMetrics(snapshot, quality)
	for _, fn := range observers {
		fn(snapshot)
	}
	return status
}

// Classify interprets a reception by its length and stores the outcome in
// the cache together with the value group the frame belongs to. A group is
// zeroed when its frame fails the crc or echo check. A missing echo, a
// missing answer or an unknown length leave all values untouched.
//
// An unknown length is the one fault status that does not imply zeroed
// values: AnswerMismatch is then reported next to the last good values,
// because the length does not tell which group the frame was meant for.
func (p *Poller) Classify(req mercury.Request, data []byte) telemetry.LinkStatus {
	status, apply := classify(req, data)
	p.cache.Update(status, timemock.Now(), apply)
	return status
}

func classify(req mercury.Request, data []byte) (telemetry.LinkStatus, func(*telemetry.Instant, *telemetry.Tariffs)) {
	switch len(data) {
	case 0:
		return telemetry.LinkNoEcho, nil
	case mercury.RequestSize:
		return telemetry.LinkNoAnswer, nil
	case mercury.InstantValuesSize:
		var instant telemetry.Instant
		status := telemetry.LinkOK
		if v, err := mercury.ParseInstantValues(req, data); err != nil {
			status = statusOf(err)
		} else {
			instant = telemetry.Instant{Voltage: v.Voltage, Current: v.Current, Power: v.Power}
		}
		return status, func(i *telemetry.Instant, _ *telemetry.Tariffs) { *i = instant }
	case mercury.TariffsSize:
		var tariffs telemetry.Tariffs
		status := telemetry.LinkOK
		if v, err := mercury.ParseTariffs(req, data); err != nil {
			status = statusOf(err)
		} else {
			tariffs = telemetry.Tariffs{Day: v.Day, Night: v.Night}
		}
		return status, func(_ *telemetry.Instant, t *telemetry.Tariffs) { *t = tariffs }
	default:
		return telemetry.LinkAnswerMismatch, nil
	}
}

func statusOf(err error) telemetry.LinkStatus {
	if errors.Is(err, mercury.ErrCRC) {
		return telemetry.LinkCRCError
	}
	return telemetry.LinkAnswerMismatch
}
