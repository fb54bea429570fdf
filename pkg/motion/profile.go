// Motion profiles and driver idle policy
//
// Two named profiles exist. The calibration profile seeks switches at
// a fixed constant speed with no acceleration so the carriage cannot
// overshoot into a switch. The operational profile accelerates and
// scales speed from a user percentage.
//
// Copyright (C) 2026 railctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"log"
	"sync"
	"time"

	"railctl/pkg/geometry"
	"railctl/pkg/stepper"
)

const (
	// SpeedFactorMmS is the mm/s granted per speed percent. 100%
	// stays below the mechanical limit of the screw.
	SpeedFactorMmS = 0.3

	// ReturnSpeedMmS is the fixed speed of the post-calibration
	// return to logical zero.
	ReturnSpeedMmS = 12.0

	// IdleDisableDelay is how long the driver stays energized after
	// the last motion before the coils are released.
	IdleDisableDelay = 4000 * time.Millisecond

	// DefaultSpeedPercent applies until a command supplies one.
	DefaultSpeedPercent = 50
)

// Manager owns the acceleration and speed settings of the motor and
// the enable lifecycle of its driver.
type Manager struct {
	mu    sync.Mutex
	rail  geometry.Rail
	motor *stepper.Motor

	accelMmS2  float64 // operational acceleration
	speedPct   int     // last applied percentage
	lastActive time.Time
}

// NewManager creates a profile manager. accelMmS2 is the operational
// acceleration in mm/s^2.
func NewManager(rail geometry.Rail, motor *stepper.Motor, accelMmS2 float64) *Manager {
	return &Manager{
		rail:       rail,
		motor:      motor,
		accelMmS2:  accelMmS2,
		speedPct:   DefaultSpeedPercent,
		lastActive: time.Now(),
	}
}

// ApplyOperational switches to the accelerated profile at the given
// speed percentage and remembers it. Callers clamp pct to [1,100]
// before conversion. The driver is re-energized.
func (m *Manager) ApplyOperational(pct int) {
	m.mu.Lock()
	m.speedPct = pct
	m.motor.SetAccel(m.rail.AccelSteps(m.accelMmS2))
	m.motor.SetMaxSpeed(m.rail.SpeedSteps(SpeedFactorMmS * float64(pct)))
	m.mu.Unlock()
	m.MarkActive()
}

// ApplyCalibration switches to the constant-speed seek profile. The
// driver is re-energized.
func (m *Manager) ApplyCalibration() {
	m.mu.Lock()
	m.motor.SetAccel(0)
	m.motor.SetMaxSpeed(m.rail.SpeedSteps(m.rail.CalibrationSpeedMmS))
	m.mu.Unlock()
	m.MarkActive()
}

// ApplyReturn switches to the accelerated profile at the fixed
// calibration-return speed without touching the remembered percentage.
func (m *Manager) ApplyReturn() {
	m.mu.Lock()
	m.motor.SetAccel(m.rail.AccelSteps(m.accelMmS2))
	m.motor.SetMaxSpeed(m.rail.SpeedSteps(ReturnSpeedMmS))
	m.mu.Unlock()
	m.MarkActive()
}

// SpeedPercent returns the last applied speed percentage.
func (m *Manager) SpeedPercent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speedPct
}

// MarkActive resets the idle timer and re-energizes the driver. Every
// profile switch routes through here, so any new motion activity
// restarts the idle countdown.
func (m *Manager) MarkActive() {
	m.mu.Lock()
	m.lastActive = time.Now()
	m.mu.Unlock()
	m.motor.Enable()
}

// CheckIdle releases the driver once the motor has been continuously
// idle for IdleDisableDelay. Callers invoke it each control tick while
// no homing is in flight; motion in progress resets the timer.
func (m *Manager) CheckIdle(now time.Time) {
	if m.motor.Moving() {
		m.mu.Lock()
		m.lastActive = now
		m.mu.Unlock()
		return
	}
	if !m.motor.Enabled() {
		return
	}
	m.mu.Lock()
	idleFor := now.Sub(m.lastActive)
	m.mu.Unlock()
	if idleFor >= IdleDisableDelay {
		log.Printf("motion: idle for %v, releasing driver", idleFor.Round(time.Millisecond))
		m.motor.Disable()
	}
}

// idleFor reports how long the motor has been idle.
func (m *Manager) idleFor(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Sub(m.lastActive)
}
