// Full calibration sequencer
//
// Three phases establish absolute zero after a power cycle: a constant
// negative seek to switch 1 which becomes the origin, a bounded
// positive sweep discovering switches 2 and 3, and an accelerated
// return to logical zero. The sequencer is a per-tick state machine;
// each tick polls switches, checks the abort flag, then lets the
// control loop advance the motor, preserving the original iteration
// ordering without blocking the process.
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

// Phase is the calibration sequencer phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSeekOrigin
	PhaseSweep
	PhaseReturn
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSeekOrigin:
		return "seek_origin"
	case PhaseSweep:
		return "sweep"
	case PhaseReturn:
		return "return"
	default:
		return "unknown"
	}
}

// Sequencer runs the full calibration. All methods are invoked from
// the controller's own goroutine.
type Sequencer struct {
	rail     geometry.Rail
	motor    *stepper.Motor
	profiles *motion.Manager
	bank     *switches.Bank
	abort    *AbortFlag
	result   *Result

	phase       Phase
	sweepBound  int64
	switch2Seen bool // first trigger wins, later re-triggers ignored

	// onPhaseDone fires after every completed phase and once more
	// when the sequence ends (success or abort).
	onPhaseDone func(Phase)
}

// NewSequencer creates the calibration sequencer.
func NewSequencer(rail geometry.Rail, motor *stepper.Motor, profiles *motion.Manager,
	bank *switches.Bank, abort *AbortFlag, result *Result, onPhaseDone func(Phase)) *Sequencer {
	return &Sequencer{
		rail:        rail,
		motor:       motor,
		profiles:    profiles,
		bank:        bank,
		abort:       abort,
		result:      result,
		phase:       PhaseIdle,
		onPhaseDone: onPhaseDone,
	}
}

// Phase returns the current sequencer phase.
func (s *Sequencer) Phase() Phase { return s.phase }

// Active reports whether a calibration run is in flight.
func (s *Sequencer) Active() bool { return s.phase != PhaseIdle }

// Start begins a calibration run: calibration profile, constant
// negative seek toward switch 1.
func (s *Sequencer) Start() {
	s.abort.Clear()
	s.switch2Seen = false
	s.sweepBound = s.rail.SweepBoundSteps()
	s.profiles.ApplyCalibration()
	s.motor.SetRunSpeed(-s.rail.SpeedSteps(s.rail.CalibrationSpeedMmS))
	s.phase = PhaseSeekOrigin
	log.Printf("calibrate: seeking switch 1 at %.1f mm/s", s.rail.CalibrationSpeedMmS)
}

// Tick advances the sequencer one control tick. The caller has already
// polled the switch bank; the motor is advanced after Tick returns, so
// an abort halts step emission within the same iteration.
func (s *Sequencer) Tick() {
	switch s.phase {
	case PhaseIdle:
		return

	case PhaseSeekOrigin:
		if s.abort.Aborted() {
			// Position stays wherever the motor stopped.
			s.finish(true)
			return
		}
		if !s.bank.Triggered(switches.Switch1) {
			return
		}
		// The trigger point becomes the new absolute origin.
		s.motor.SetCurrentPosition(0)
		s.motor.SetRunSpeed(s.rail.SpeedSteps(s.rail.CalibrationSpeedMmS))
		s.phase = PhaseSweep
		log.Printf("calibrate: origin set, sweeping to step %d", s.sweepBound)
		s.notify(PhaseSeekOrigin)

	case PhaseSweep:
		if s.abort.Aborted() {
			s.finish(true)
			return
		}
		if !s.switch2Seen && s.bank.Triggered(switches.Switch2) {
			s.switch2Seen = true
			s.result.Switch2Steps = s.motor.Position()
			log.Printf("calibrate: switch 2 at step %d", s.result.Switch2Steps)
		}
		// Switch 3 ends the sweep and wins any race with the bound.
		if s.bank.Triggered(switches.Switch3) {
			s.result.Switch3Steps = s.motor.Position()
			log.Printf("calibrate: switch 3 at step %d", s.result.Switch3Steps)
			s.endSweep()
			return
		}
		if s.motor.Position() >= s.sweepBound {
			log.Printf("calibrate: sweep bound reached without switch 3")
			s.endSweep()
		}

	case PhaseReturn:
		if s.abort.Aborted() {
			s.motor.MoveTo(s.motor.Position())
			s.finish(true)
			return
		}
		if s.motor.TargetReached() {
			s.finish(false)
		}
	}
}

// endSweep closes phase 2 and starts the return to logical zero.
func (s *Sequencer) endSweep() {
	s.result.Calibrated = true
	s.motor.SetRunSpeed(0)
	s.profiles.ApplyReturn()
	s.motor.MoveTo(s.rail.DisplayMmToSteps(0))
	s.phase = PhaseReturn
	s.notify(PhaseSweep)
}

// finish ends the sequence. Position changes already applied are never
// rolled back; an abort simply skips the remaining phases.
func (s *Sequencer) finish(aborted bool) {
	s.motor.SetRunSpeed(0)
	s.motor.MoveTo(s.motor.Position())
	s.phase = PhaseIdle
	s.profiles.ApplyOperational(s.profiles.SpeedPercent())
	if aborted {
		log.Printf("calibrate: aborted at step %d", s.motor.Position())
	} else {
		log.Printf("calibrate: complete, switch2=%d switch3=%d",
			s.result.Switch2Steps, s.result.Switch3Steps)
	}
	s.notify(PhaseIdle)
}

func (s *Sequencer) notify(p Phase) {
	if s.onPhaseDone != nil {
		s.onPhaseDone(p)
	}
}
