package rtu

import "github.com/bsm/openmetrics"

var metricFrames = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
	Name:   "modbus_rtu_frames",
	Help:   "Modbus RTU frames by result: ok, exception or ignored",
	Labels: []string{"result"},
})
