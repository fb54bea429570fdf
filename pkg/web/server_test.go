package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"railctl/pkg/metrics"
)

// fakeRail records the last command and answers with canned text.
type fakeRail struct {
	lastPos   *int
	lastSpeed *int
	lastHome  int
	homeAlls  int
	stops     int
}

func (f *fakeRail) Move(posMm, speedPct *int) string {
	f.lastPos, f.lastSpeed = posMm, speedPct
	return "OK"
}

func (f *fakeRail) Home(n int) string {
	f.lastHome = n
	return "Homing"
}

func (f *fakeRail) HomeAll() string {
	f.homeAlls++
	return "Full homing"
}

func (f *fakeRail) Stop() string {
	f.stops++
	return "-42"
}

func (f *fakeRail) Pos() string { return "-42" }

func (f *fakeRail) Status() map[string]any {
	return map[string]any{
		"position_mm":   -42,
		"homing":        "idle",
		"calibration":   "idle",
		"calibrated":    false,
		"speed_percent": 50,
		"driver_on":     true,
	}
}

func newTestServer(t *testing.T) (*Server, *fakeRail, *httptest.Server) {
	t.Helper()
	rail := &fakeRail{}
	s, err := New(Config{Rail: rail, Metrics: metrics.NewRegistry()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, rail, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func TestMoveCommand(t *testing.T) {
	_, rail, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/api/move?pos=80&spd=60")
	if code != http.StatusOK || body != "OK" {
		t.Fatalf("move: code=%d body=%q", code, body)
	}
	if rail.lastPos == nil || *rail.lastPos != 80 {
		t.Errorf("pos not forwarded: %v", rail.lastPos)
	}
	if rail.lastSpeed == nil || *rail.lastSpeed != 60 {
		t.Errorf("spd not forwarded: %v", rail.lastSpeed)
	}
}

func TestMoveSpeedOnly(t *testing.T) {
	_, rail, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/api/move?spd=25")
	if code != http.StatusOK || body != "OK" {
		t.Fatalf("move: code=%d body=%q", code, body)
	}
	if rail.lastPos != nil {
		t.Errorf("pos should be nil, got %v", *rail.lastPos)
	}
	if rail.lastSpeed == nil || *rail.lastSpeed != 25 {
		t.Errorf("spd not forwarded: %v", rail.lastSpeed)
	}
}

func TestMoveBadParams(t *testing.T) {
	_, _, ts := newTestServer(t)

	for _, path := range []string{
		"/api/move",
		"/api/move?pos=abc",
		"/api/move?spd=fast",
	} {
		if code, _ := get(t, ts.URL+path); code != http.StatusBadRequest {
			t.Errorf("%s: code=%d, want 400", path, code)
		}
	}
}

func TestHomeCommands(t *testing.T) {
	_, rail, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/api/home?n=2")
	if code != http.StatusOK || body != "Homing" {
		t.Fatalf("home: code=%d body=%q", code, body)
	}
	if rail.lastHome != 2 {
		t.Errorf("home index not forwarded: %d", rail.lastHome)
	}

	if code, _ := get(t, ts.URL+"/api/home"); code != http.StatusBadRequest {
		t.Errorf("home without index: code=%d, want 400", code)
	}

	code, body = get(t, ts.URL+"/api/homeall")
	if code != http.StatusOK || body != "Full homing" {
		t.Fatalf("homeall: code=%d body=%q", code, body)
	}
	if rail.homeAlls != 1 {
		t.Errorf("homeAlls = %d", rail.homeAlls)
	}
}

func TestStopAndPos(t *testing.T) {
	_, rail, ts := newTestServer(t)

	if _, body := get(t, ts.URL+"/api/stop"); body != "-42" {
		t.Errorf("stop body = %q", body)
	}
	if rail.stops != 1 {
		t.Errorf("stops = %d", rail.stops)
	}
	if _, body := get(t, ts.URL+"/api/pos"); body != "-42" {
		t.Errorf("pos body = %q", body)
	}
}

func TestControlPage(t *testing.T) {
	_, _, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/")
	if code != http.StatusOK {
		t.Fatalf("index: code=%d", code)
	}
	for _, want := range []string{"-42 mm", "railctl", "/api/homeall"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	if code, _ := get(t, ts.URL+"/nosuch"); code != http.StatusNotFound {
		t.Errorf("unknown path: code=%d, want 404", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	reg := metrics.NewRegistry()
	reg.Counter("rail_test_total", "test counter").Inc()
	s.metrics = reg

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	code, body := get(t, ts.URL+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, "rail_test_total") {
		t.Errorf("metrics: code=%d body=%q", code, body)
	}
}

func TestWebSocketPush(t *testing.T) {
	s, _, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var ev positionEvent

	// Connecting seeds the feed with the current position.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read seed event: %v", err)
	}
	if ev.Event != "position" || ev.PositionMm != "-42" {
		t.Fatalf("seed event = %+v", ev)
	}

	// Wait for registration before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Broadcast("7")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if ev.PositionMm != "7" {
		t.Errorf("broadcast position = %q", ev.PositionMm)
	}

	// The payload stays valid JSON on the wire.
	raw, _ := json.Marshal(ev)
	if !strings.Contains(string(raw), `"position_mm"`) {
		t.Errorf("payload = %s", raw)
	}
}
