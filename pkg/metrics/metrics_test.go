package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	c := &Counter{}
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("Value = %d, want 5", c.Value())
	}
}

func TestGauge(t *testing.T) {
	g := &Gauge{}
	g.Set(-118)
	if g.Value() != -118 {
		t.Errorf("Value = %v, want -118", g.Value())
	}
	g.Set(12.5)
	if g.Value() != 12.5 {
		t.Errorf("Value = %v, want 12.5", g.Value())
	}
}

func TestRegistryReusesMetric(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("x_total", "")
	b := r.Counter("x_total", "")
	if a != b {
		t.Error("same name returned distinct counters")
	}
}

func TestRenderFormat(t *testing.T) {
	r := NewRegistry()
	r.Counter("rail_moves_started_total", "Move commands accepted").Add(3)
	r.Gauge("rail_position_display_mm", "Current position").Set(-118)

	out := r.Render()
	for _, want := range []string{
		"# HELP rail_moves_started_total Move commands accepted",
		"# TYPE rail_moves_started_total counter",
		"rail_moves_started_total 3",
		"# TYPE rail_position_display_mm gauge",
		"rail_position_display_mm -118",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	rail := NewRail()
	rail.StopsRequested.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	rail.Registry.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rail_stops_total 1") {
		t.Errorf("body missing stop counter:\n%s", rec.Body.String())
	}
}
