// Command surface consumed by the transport layer. Validation is
// lenient: out-of-range positions clamp, an unknown homing index is
// ignored, and no command ever fails. While a full calibration is in
// flight only stop takes effect; move and home would retarget the
// motor under the sequencer and strand it mid-sweep.
package controller

import "log"

// clampPct bounds a speed percentage to [1,100].
func clampPct(pct int) int {
	if pct < 1 {
		return 1
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Move sets a new target and/or speed. Either parameter may be nil.
// The position is display millimeters, clamped to the travel range;
// the speed percentage is remembered for later homing moves. A move
// cancels an in-flight single-switch seek and is ignored while a full
// calibration runs.
func (c *Controller) Move(posMm, speedPct *int) string {
	c.do(func() {
		if c.seq.Active() {
			log.Printf("controller: move ignored, calibration in %s", c.seq.Phase())
			return
		}
		c.machine.Reset()
		c.abort.Clear()
		pct := c.profiles.SpeedPercent()
		if speedPct != nil {
			pct = clampPct(*speedPct)
		}
		c.profiles.ApplyOperational(pct)
		if posMm != nil {
			mm := c.rail.ClampDisplayMm(*posMm)
			c.motor.MoveTo(c.rail.DisplayMmToSteps(mm))
		}
		if c.met != nil {
			c.met.MovesStarted.Inc()
		}
	})
	return "OK"
}

// Home starts a single-switch homing move toward switch n. Ignored
// while a full calibration runs.
func (c *Controller) Home(n int) string {
	c.do(func() {
		if c.seq.Active() {
			log.Printf("controller: home %d ignored, calibration in %s", n, c.seq.Phase())
			return
		}
		c.machine.StartHome(n)
		if c.met != nil && c.machine.Active() {
			c.met.HomingRuns.Inc()
		}
	})
	return "Homing"
}

// HomeAll requests a full calibration on the next loop iteration.
func (c *Controller) HomeAll() string {
	c.do(func() {
		c.wantFullHome = true
	})
	return "Full homing"
}

// Stop cancels everything immediately: homing state back to idle, any
// pending full calibration dropped, abort raised, and the motion
// target collapsed onto the current position. Returns the position.
// The abort flag stays set until the next move or homing command.
func (c *Controller) Stop() string {
	var pos string
	c.do(func() {
		c.machine.Reset()
		c.wantFullHome = false
		c.abort.Set()
		c.motor.SetRunSpeed(0)
		c.motor.MoveTo(c.motor.Position())
		if c.met != nil {
			c.met.StopsRequested.Inc()
		}
		pos = c.posText()
	})
	return pos
}

// Pos returns the current position in display millimeters.
func (c *Controller) Pos() string {
	var pos string
	c.do(func() {
		pos = c.posText()
	})
	return pos
}

// Status reports controller state for the page and the API.
func (c *Controller) Status() map[string]any {
	var st map[string]any
	c.do(func() {
		st = map[string]any{
			"position_mm":   c.displayMm(),
			"homing":        c.machine.State().String(),
			"calibration":   c.seq.Phase().String(),
			"calibrated":    c.result.Calibrated,
			"speed_percent": c.profiles.SpeedPercent(),
			"driver_on":     c.motor.Enabled(),
		}
	})
	return st
}
