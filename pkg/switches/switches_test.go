package switches

import (
	"testing"
	"time"
)

// fakeReader holds raw line levels, true = high (not triggered).
type fakeReader struct {
	levels [Count]bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{levels: [Count]bool{true, true, true}}
}

func (r *fakeReader) ReadLevel(n int) (bool, error) {
	return r.levels[n-1], nil
}

func (r *fakeReader) set(n int, level bool) {
	r.levels[n-1] = level
}

func TestTriggeredActiveLow(t *testing.T) {
	r := newFakeReader()
	b := NewBank(r, time.Millisecond)
	now := time.Now()

	b.Poll(now)
	if b.Triggered(Switch1) {
		t.Error("high line reported triggered")
	}

	r.set(Switch1, false)
	b.Poll(now.Add(2 * time.Millisecond))
	b.Poll(now.Add(4 * time.Millisecond))
	if !b.Triggered(Switch1) {
		t.Error("low line not reported triggered after debounce")
	}
	if b.Triggered(Switch2) || b.Triggered(Switch3) {
		t.Error("unrelated switches triggered")
	}
}

func TestDebounceRejectsGlitch(t *testing.T) {
	r := newFakeReader()
	b := NewBank(r, 5*time.Millisecond)
	now := time.Now()

	b.Poll(now)
	r.set(Switch2, false)
	b.Poll(now.Add(1 * time.Millisecond))
	r.set(Switch2, true)
	b.Poll(now.Add(2 * time.Millisecond))
	b.Poll(now.Add(3 * time.Millisecond))

	if b.Triggered(Switch2) {
		t.Error("glitch shorter than debounce reported triggered")
	}
}

func TestTriggerCount(t *testing.T) {
	r := newFakeReader()
	b := NewBank(r, time.Millisecond)
	now := time.Now()
	b.Poll(now)

	for i := 0; i < 3; i++ {
		r.set(Switch3, false)
		now = now.Add(2 * time.Millisecond)
		b.Poll(now)
		now = now.Add(2 * time.Millisecond)
		b.Poll(now)
		r.set(Switch3, true)
		now = now.Add(2 * time.Millisecond)
		b.Poll(now)
		now = now.Add(2 * time.Millisecond)
		b.Poll(now)
	}

	n, err := b.TriggerCount(Switch3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("trigger count = %d, want 3", n)
	}

	if _, err := b.TriggerCount(7); err == nil {
		t.Error("expected error for switch 7")
	}
}

func TestOutOfRangeTriggered(t *testing.T) {
	b := NewBank(newFakeReader(), time.Millisecond)
	if b.Triggered(0) || b.Triggered(4) {
		t.Error("out of range switch reported triggered")
	}
}
