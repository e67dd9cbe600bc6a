package poller

import (
	"github.com/bsm/openmetrics"

	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

var (
	metricLinkStatus = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "mercury_link_status",
		Help: "Outcome of the last meter poll, 0=ok 1=no answer 2=crc error 3=answer error 4=no echo",
	})
	metricLinkQuality = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "mercury_link_quality",
		Unit: "ratio",
		Help: "Share of successful polls among the recent ones",
	})
	metricPolls = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name:   "mercury_polls",
		Help:   "Meter polls by outcome",
		Labels: []string{"outcome"},
	})
	metricVoltage = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "mercury_voltage",
		Unit: "volt",
		Help: "Mains voltage",
	})
	metricCurrent = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "mercury_current",
		Unit: "ampere",
		Help: "Load current",
	})
	metricPower = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "mercury_power",
		Unit: "watt",
		Help: "Load power",
	})
	metricEnergy = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name:   "mercury_energy",
		Unit:   "kilowatthours",
		Help:   "Energy accumulated per tariff",
		Labels: []string{"tariff"},
	})
)

func updateMetrics(s telemetry.Snapshot, quality float64) {
	metricLinkStatus.With().Set(float64(s.Link.Code()))
	metricLinkQuality.With().Set(quality)
	metricPolls.With(s.Link.Name()).Add(1)
	metricVoltage.With().Set(float64(s.Instant.Voltage) / 10)
	metricCurrent.With().Set(float64(s.Instant.Current) / 100)
	metricPower.With().Set(float64(s.Instant.Power))
	metricEnergy.With("day").Set(float64(s.Tariffs.Day) / 100)
	metricEnergy.With("night").Set(float64(s.Tariffs.Night) / 100)
}
