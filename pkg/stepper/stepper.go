// Stepper motion primitive
//
// Open-loop step counting over a driver backend. Position is validated
// only by limit switch triggers during calibration.
//
// Copyright (C) 2026 railctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package stepper

import (
	"log"
	"math"
	"sync"
)

// Driver is the hardware backend emitting step pulses.
type Driver interface {
	// Step emits n microsteps in direction dir (+1 or -1).
	Step(dir int, n int) error

	// SetEnable energizes or releases the motor coils.
	SetEnable(on bool) error
}

// Motor tracks absolute position in microsteps and generates the steps
// due each control tick. It supports two regimes: an accelerated
// move-to-target trapezoid and a constant-speed run used while seeking
// switches.
type Motor struct {
	mu  sync.Mutex
	drv Driver

	position int64 // absolute microsteps, zero set by calibration
	target   int64
	frac     float64 // fractional step carry between ticks

	maxSpeed float64 // steps/s
	accel    float64 // steps/s^2, 0 means constant speed
	speed    float64 // current cruise speed magnitude, steps/s

	runSpeed float64 // signed constant-run speed, 0 when in target mode

	enabled bool
}

// New creates a motor over the given driver backend.
func New(drv Driver) *Motor {
	return &Motor{drv: drv}
}

// SetMaxSpeed sets the cruise speed ceiling in steps/s.
func (m *Motor) SetMaxSpeed(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSpeed = v
	if m.speed > v {
		m.speed = v
	}
}

// SetAccel sets the acceleration in steps/s^2. Zero selects
// constant-speed motion.
func (m *Motor) SetAccel(a float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accel = a
}

// MoveTo sets the absolute step target and leaves constant-run mode.
func (m *Motor) MoveTo(target int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target = target
	m.runSpeed = 0
}

// SetRunSpeed enters constant-speed run mode with a signed speed in
// steps/s. A speed of zero returns to target mode.
func (m *Motor) SetRunSpeed(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runSpeed = v
	if v == 0 {
		m.speed = 0
		m.frac = 0
	}
}

// SetCurrentPosition redefines the current position, collapsing the
// target onto it. Used when calibration establishes a new origin.
func (m *Motor) SetCurrentPosition(p int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = p
	m.target = p
	m.speed = 0
	m.frac = 0
}

// Position returns the current absolute position in microsteps.
func (m *Motor) Position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Target returns the current step target.
func (m *Motor) Target() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// TargetReached reports whether a target-mode move has completed.
func (m *Motor) TargetReached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runSpeed == 0 && m.position == m.target
}

// Moving reports whether the motor has pending motion this tick.
func (m *Motor) Moving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runSpeed != 0 || m.position != m.target
}

// Enable energizes the driver outputs.
func (m *Motor) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled {
		return
	}
	if err := m.drv.SetEnable(true); err != nil {
		log.Printf("stepper: enable failed: %v", err)
		return
	}
	m.enabled = true
}

// Disable releases the driver outputs.
func (m *Motor) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	if err := m.drv.SetEnable(false); err != nil {
		log.Printf("stepper: disable failed: %v", err)
		return
	}
	m.enabled = false
}

// Enabled reports whether the driver outputs are energized.
func (m *Motor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Advance generates the steps due for a tick of dt seconds and returns
// the signed step count emitted. In target mode the speed follows a
// trapezoid bounded by maxSpeed and accel; with accel zero the motor
// cruises at maxSpeed. Emission never overshoots the target.
func (m *Motor) Advance(dt float64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runSpeed != 0 {
		return m.emit(m.runSpeed, dt, math.MaxInt64)
	}

	rem := m.target - m.position
	if rem == 0 {
		m.speed = 0
		m.frac = 0
		return 0
	}

	dir := 1.0
	limit := rem
	if rem < 0 {
		dir = -1.0
		limit = -rem
	}

	v := m.maxSpeed
	if m.accel > 0 {
		stopDist := m.speed * m.speed / (2 * m.accel)
		if float64(limit) <= stopDist {
			v = m.speed - m.accel*dt
		} else {
			v = m.speed + m.accel*dt
		}
		// Floor keeps the final approach from stalling.
		if floor := m.accel * dt; v < floor {
			v = floor
		}
		if v > m.maxSpeed {
			v = m.maxSpeed
		}
		m.speed = v
	}

	n := m.emit(dir*v, dt, limit)
	if m.position == m.target {
		m.speed = 0
		m.frac = 0
	}
	return n
}

// emit steps at signed speed v for dt seconds, capped at limit steps.
// Caller holds the lock.
func (m *Motor) emit(v, dt float64, limit int64) int64 {
	m.frac += v * dt
	n := int64(m.frac)
	m.frac -= float64(n)

	dir := 1
	mag := n
	if n < 0 {
		dir = -1
		mag = -n
	}
	if mag > limit {
		mag = limit
		m.frac = 0
	}
	if mag == 0 {
		return 0
	}
	if err := m.drv.Step(dir, int(mag)); err != nil {
		log.Printf("stepper: step burst failed: %v", err)
	}
	m.position += int64(dir) * mag
	return int64(dir) * mag
}
