package scheduler

import (
	"os"
	"strconv"
	"strings"
)

// loadAverage reports the one-minute load average. It is a variable so
// tests can substitute a fixed reading.
var loadAverage = readLoadAverage

// readLoadAverage parses /proc/loadavg. On platforms without it the gate
// reads zero and never throttles.
func readLoadAverage() float64 {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return load
}
