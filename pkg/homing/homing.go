// Single-switch homing state machine
//
// Drives the interactive "home to switch N" moves. Switch 1 homing is
// a return to the calibrated origin, not a raw switch search; switches
// 2 and 3 are reached via the positions recorded by the last full
// calibration sweep.
//
// Copyright (C) 2026 railctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package homing

import (
	"log"

	"railctl/pkg/geometry"
	"railctl/pkg/motion"
	"railctl/pkg/stepper"
	"railctl/pkg/switches"
)

// State is the homing machine state. Exactly one state is active at a
// time; a new StartHome preempts silently.
type State int

const (
	Idle State = iota
	SeekingSwitch1
	SeekingSwitch2
	SeekingSwitch3
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SeekingSwitch1:
		return "seeking_switch1"
	case SeekingSwitch2:
		return "seeking_switch2"
	case SeekingSwitch3:
		return "seeking_switch3"
	default:
		return "unknown"
	}
}

// Result records what the full calibration sweep discovered: the step
// positions of switches 2 and 3 relative to the switch-1 origin. It is
// valid only after a sweep completed without abort.
type Result struct {
	Switch2Steps int64
	Switch3Steps int64
	Calibrated   bool
}

// Machine is the single-switch homing state machine. All methods are
// invoked from the controller's own goroutine.
type Machine struct {
	rail     geometry.Rail
	motor    *stepper.Motor
	profiles *motion.Manager
	abort    *AbortFlag
	result   *Result

	state State

	// onDone fires when a homing move completes and returns to Idle.
	onDone func()
}

// NewMachine creates the homing machine. result is shared with the
// calibration sequencer.
func NewMachine(rail geometry.Rail, motor *stepper.Motor, profiles *motion.Manager,
	abort *AbortFlag, result *Result, onDone func()) *Machine {
	return &Machine{
		rail:     rail,
		motor:    motor,
		profiles: profiles,
		abort:    abort,
		result:   result,
		state:    Idle,
		onDone:   onDone,
	}
}

// State returns the current machine state.
func (m *Machine) State() State { return m.state }

// Active reports whether a homing move is in flight.
func (m *Machine) Active() bool { return m.state != Idle }

// StartHome begins homing toward switch n. Values outside 1..3 leave
// the machine untouched. Homing to switch 2 or 3 before a full
// calibration has ever completed is refused rather than silently
// moving to the uninitialized step 0 default.
func (m *Machine) StartHome(n int) {
	var target int64
	var next State

	switch n {
	case switches.Switch1:
		target = 0
		next = SeekingSwitch1
	case switches.Switch2:
		target = m.result.Switch2Steps
		next = SeekingSwitch2
	case switches.Switch3:
		target = m.result.Switch3Steps
		next = SeekingSwitch3
	default:
		return
	}

	if n != switches.Switch1 && !m.result.Calibrated {
		log.Printf("homing: refusing home to switch %d, rail not calibrated", n)
		return
	}

	m.abort.Clear()
	m.profiles.ApplyOperational(m.profiles.SpeedPercent())
	m.motor.MoveTo(target)
	m.state = next
	log.Printf("homing: %s -> step %d", next, target)
}

// Step advances the machine one control tick. The in-flight move is
// completed by the motor; the machine only watches for arrival or
// abort and falls back to Idle.
func (m *Machine) Step() {
	if m.state == Idle {
		return
	}
	if m.abort.Aborted() {
		m.state = Idle
		return
	}
	if !m.motor.TargetReached() {
		return
	}
	log.Printf("homing: %s complete at step %d", m.state, m.motor.Position())
	m.state = Idle
	if m.onDone != nil {
		m.onDone()
	}
}

// Reset forces the machine back to Idle without completing the move.
// The stop coordinator uses this.
func (m *Machine) Reset() { m.state = Idle }
