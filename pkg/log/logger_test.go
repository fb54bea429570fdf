package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger() (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New("rail")
	l.SetWriter(buf)
	l.SetColorize(false)
	return l, buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger()
	l.SetLevel(WARN)

	l.Debugf("debug message")
	l.Infof("info message")
	l.Warnf("warn message")
	l.Errorf("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below WARN leaked:\n%s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("WARN/ERROR messages missing:\n%s", out)
	}
}

func TestTextFormat(t *testing.T) {
	l, buf := newTestLogger()

	l.Info("position updated", Fields{"mm": -118, "state": "idle"})

	out := buf.String()
	for _, want := range []string{"[INFO ]", "rail: position updated", "{mm=-118, state=idle}"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	l, buf := newTestLogger()
	l.SetFormat(FormatJSON)

	l.Warn("sweep bound reached", Fields{"steps": 95200})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" || entry["logger"] != "rail" {
		t.Errorf("entry = %v", entry)
	}
	if entry["message"] != "sweep bound reached" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warning", WARN},
		{"error", ERROR},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentSharesWriter(t *testing.T) {
	l, buf := newTestLogger()

	web := l.Component("web")
	web.Infof("listening on :8080")

	if !strings.Contains(buf.String(), "web: listening on :8080") {
		t.Errorf("component output missing:\n%s", buf.String())
	}
}
