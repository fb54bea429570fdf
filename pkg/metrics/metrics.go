// Metrics collection for the rail controller
//
// Counters and gauges with Prometheus text exposition. The controller
// feeds motion and homing counters; the web layer serves /metrics.
//
// Copyright (C) 2026 railctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing value.
type Counter struct {
	value uint64
}

// Inc increments the counter by one.
func (c *Counter) Inc() { atomic.AddUint64(&c.value, 1) }

// Add increments the counter by n.
func (c *Counter) Add(n uint64) { atomic.AddUint64(&c.value, n) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return atomic.LoadUint64(&c.value) }

// Gauge is a value that can go up and down.
type Gauge struct {
	bits uint64
}

// Set sets the gauge.
func (g *Gauge) Set(v float64) { atomic.StoreUint64(&g.bits, math.Float64bits(v)) }

// Value returns the current value.
func (g *Gauge) Value() float64 { return math.Float64frombits(atomic.LoadUint64(&g.bits)) }

type metric struct {
	name    string
	help    string
	counter *Counter
	gauge   *Gauge
}

// Registry holds named metrics and renders them in Prometheus text
// format.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]*metric
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]*metric)}
}

// Counter registers (or returns the existing) counter with this name.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[name]; ok && m.counter != nil {
		return m.counter
	}
	c := &Counter{}
	r.metrics[name] = &metric{name: name, help: help, counter: c}
	return c
}

// Gauge registers (or returns the existing) gauge with this name.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[name]; ok && m.gauge != nil {
		return m.gauge
	}
	g := &Gauge{}
	r.metrics[name] = &metric{name: name, help: help, gauge: g}
	return g
}

// Render writes all metrics in Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.RLock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		m := r.metrics[name]
		if m.help != "" {
			fmt.Fprintf(&sb, "# HELP %s %s\n", name, m.help)
		}
		if m.counter != nil {
			fmt.Fprintf(&sb, "# TYPE %s counter\n", name)
			fmt.Fprintf(&sb, "%s %d\n", name, m.counter.Value())
		} else {
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", name)
			fmt.Fprintf(&sb, "%s %g\n", name, m.gauge.Value())
		}
	}
	r.mu.RUnlock()
	return sb.String()
}

// Handler returns an http.Handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, r.Render())
	})
}

// Rail groups the controller's metrics.
type Rail struct {
	Registry *Registry

	MovesStarted       *Counter
	HomingRuns         *Counter
	CalibrationsOK     *Counter
	CalibrationsAbort  *Counter
	StopsRequested     *Counter
	SwitchTriggers     [3]*Counter
	PositionDisplayMm  *Gauge
	DriverEnabled      *Gauge
}

// NewRail builds the standard metric set.
func NewRail() *Rail {
	reg := NewRegistry()
	r := &Rail{
		Registry:          reg,
		MovesStarted:      reg.Counter("rail_moves_started_total", "Move commands accepted"),
		HomingRuns:        reg.Counter("rail_homing_runs_total", "Single-switch homing moves started"),
		CalibrationsOK:    reg.Counter("rail_calibrations_completed_total", "Full calibration sweeps completed"),
		CalibrationsAbort: reg.Counter("rail_calibrations_aborted_total", "Full calibration sweeps aborted"),
		StopsRequested:    reg.Counter("rail_stops_total", "Stop commands received"),
		PositionDisplayMm: reg.Gauge("rail_position_display_mm", "Current position in display millimeters"),
		DriverEnabled:     reg.Gauge("rail_driver_enabled", "Driver output state, 1 when energized"),
	}
	for i := range r.SwitchTriggers {
		r.SwitchTriggers[i] = reg.Counter(
			fmt.Sprintf("rail_switch%d_triggers_total", i+1),
			fmt.Sprintf("Observed triggers of switch %d", i+1))
	}
	return r
}
