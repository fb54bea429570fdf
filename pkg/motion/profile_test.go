package motion

import (
	"testing"
	"time"

	"railctl/pkg/geometry"
	"railctl/pkg/stepper"
)

type countingDriver struct {
	enables int
	lastOn  bool
}

func (d *countingDriver) Step(dir, n int) error { return nil }

func (d *countingDriver) SetEnable(on bool) error {
	d.enables++
	d.lastOn = on
	return nil
}

func newManager() (*Manager, *stepper.Motor, *countingDriver) {
	d := &countingDriver{}
	m := stepper.New(d)
	mgr := NewManager(geometry.DefaultRail(), m, 100.0)
	return mgr, m, d
}

func TestApplyOperationalEnablesDriver(t *testing.T) {
	mgr, m, d := newManager()

	mgr.ApplyOperational(100)

	if !m.Enabled() || !d.lastOn {
		t.Error("operational profile did not energize the driver")
	}
	if mgr.SpeedPercent() != 100 {
		t.Errorf("SpeedPercent = %d, want 100", mgr.SpeedPercent())
	}
}

func TestApplyReturnKeepsPercent(t *testing.T) {
	mgr, _, _ := newManager()

	mgr.ApplyOperational(30)
	mgr.ApplyReturn()

	if mgr.SpeedPercent() != 30 {
		t.Errorf("SpeedPercent after return profile = %d, want 30", mgr.SpeedPercent())
	}
}

func TestIdleDisableAfterDelay(t *testing.T) {
	mgr, m, _ := newManager()
	mgr.ApplyOperational(50)

	now := time.Now()
	mgr.CheckIdle(now.Add(IdleDisableDelay / 2))
	if !m.Enabled() {
		t.Fatal("driver released before the idle delay elapsed")
	}

	mgr.CheckIdle(now.Add(IdleDisableDelay + time.Second))
	if m.Enabled() {
		t.Fatal("driver still energized after the idle delay")
	}
}

func TestMarkActiveResetsTimer(t *testing.T) {
	mgr, m, _ := newManager()
	mgr.ApplyOperational(50)

	// New activity inside the window restarts the countdown.
	time.Sleep(time.Millisecond)
	mgr.MarkActive()
	if mgr.idleFor(time.Now()) > time.Second {
		t.Fatal("idle timer not reset by MarkActive")
	}

	mgr.CheckIdle(time.Now())
	if !m.Enabled() {
		t.Fatal("driver released immediately after activity")
	}
}

func TestProfileSwitchRestartsCountdown(t *testing.T) {
	mgr, m, _ := newManager()
	mgr.ApplyOperational(50)

	mgr.CheckIdle(time.Now().Add(IdleDisableDelay + time.Second))
	if m.Enabled() {
		t.Fatal("driver still energized after the idle delay")
	}

	// Switching profiles is activity: re-energize and restart the
	// countdown.
	mgr.ApplyCalibration()
	if !m.Enabled() {
		t.Fatal("calibration profile did not energize the driver")
	}
	mgr.CheckIdle(time.Now().Add(IdleDisableDelay / 2))
	if !m.Enabled() {
		t.Fatal("idle countdown not restarted by the profile switch")
	}
}

func TestMotionKeepsTimerFresh(t *testing.T) {
	mgr, m, _ := newManager()
	mgr.ApplyOperational(50)
	m.MoveTo(100000)

	// A pending move holds off the idle release indefinitely.
	mgr.CheckIdle(time.Now().Add(2 * IdleDisableDelay))
	if !m.Enabled() {
		t.Fatal("driver released while a move was pending")
	}
}
