// Package telemetry holds the most recent meter readings shared between the
// meter poller (single writer) and its readers: the Modbus server, the data
// logger and the local HTTP interface.
package telemetry

import (
	"sync"
	"time"
)

// Instant is the group of instantaneous values. It is always written and
// read as a whole.
type Instant struct {
	Voltage uint32 `json:"voltage"` // 0.1 V
	Current uint32 `json:"current"` // 0.01 A
	Power   uint32 `json:"power"`   // W
}

// Tariffs is the group of energy accumulators.
type Tariffs struct {
	Day   uint32 `json:"tariffDay"`   // 0.01 kWh
	Night uint32 `json:"tariffNight"` // 0.01 kWh
}

// Snapshot is a consistent copy of the whole cache.
type Snapshot struct {
	Instant   Instant    `json:"instant"`
	Tariffs   Tariffs    `json:"tariffs"`
	Link      LinkStatus `json:"-"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Cache is safe for concurrent use. A zero Cache is ready to use and reports
// LinkOK with all values 0.
type Cache struct {
	m         sync.RWMutex
	instant   Instant
	tariffs   Tariffs
	link      LinkStatus
	updatedAt time.Time
}

func (c *Cache) SetInstant(v Instant) {
	c.m.Lock()
	defer c.m.Unlock()
	c.instant = v
}

func (c *Cache) SetTariffs(v Tariffs) {
	c.m.Lock()
	defer c.m.Unlock()
	c.tariffs = v
}

// SetLinkStatus records the outcome of a poll cycle and its time.
func (c *Cache) SetLinkStatus(s LinkStatus, at time.Time) {
	c.m.Lock()
	defer c.m.Unlock()
	c.link = s
	c.updatedAt = at
}

// Update records the outcome of a poll cycle together with its effect on the
// value groups, so a reader never sees one without the other. apply may be
// nil when no group changes.
func (c *Cache) Update(s LinkStatus, at time.Time, apply func(*Instant, *Tariffs)) {
	c.m.Lock()
	defer c.m.Unlock()
	if apply != nil {
		apply(&c.instant, &c.tariffs)
	}
	c.link = s
	c.updatedAt = at
}

func (c *Cache) Instant() Instant {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.instant
}

func (c *Cache) Tariffs() Tariffs {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.tariffs
}

func (c *Cache) LinkStatus() LinkStatus {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.link
}

func (c *Cache) Snapshot() Snapshot {
	c.m.RLock()
	defer c.m.RUnlock()
	return Snapshot{
		Instant:   c.instant,
		Tariffs:   c.tariffs,
		Link:      c.link,
		UpdatedAt: c.updatedAt,
	}
}
