// Package controller owns the rail's control loop. One goroutine
// advances the stepper, steps the homing machinery, and services
// commands routed in over a channel, serializing all state access.
package controller

import (
	"context"
	"strconv"
	"sync"
	"time"

	"railctl/pkg/geometry"
	"railctl/pkg/homing"
	"railctl/pkg/metrics"
	"railctl/pkg/motion"
	"railctl/pkg/stepper"
	"railctl/pkg/switches"
)

const (
	// DefaultTick is the control loop period.
	DefaultTick = 2 * time.Millisecond

	// Push cadence: fast while the carriage moves or homes, slow
	// while idle.
	pushMoving = 60 * time.Millisecond
	pushIdle   = 250 * time.Millisecond
)

// Config wires a controller.
type Config struct {
	Rail      geometry.Rail
	AccelMmS2 float64       // operational acceleration
	Tick      time.Duration // control loop period, DefaultTick if zero

	// OnPosition receives the display-mm position text on the push
	// cadence and after every completed homing phase. Called from
	// the control goroutine; implementations must not block.
	OnPosition func(posText string)

	// Metrics is optional.
	Metrics *metrics.Rail
}

// Controller is the motion/homing controller.
type Controller struct {
	rail     geometry.Rail
	motor    *stepper.Motor
	bank     *switches.Bank
	profiles *motion.Manager
	abort    *homing.AbortFlag
	result   *homing.Result
	machine  *homing.Machine
	seq      *homing.Sequencer

	tick       time.Duration
	onPosition func(string)
	met        *metrics.Rail

	cmdCh        chan func()
	wantFullHome bool
	lastPush     time.Time
	lastTrig     [switches.Count]uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller over the given hardware backend.
func New(cfg Config, drv stepper.Driver, levels switches.LevelReader) *Controller {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	c := &Controller{
		rail:       cfg.Rail,
		tick:       cfg.Tick,
		onPosition: cfg.OnPosition,
		met:        cfg.Metrics,
		cmdCh:      make(chan func()),
		abort:      &homing.AbortFlag{},
		result:     &homing.Result{},
	}
	c.motor = stepper.New(drv)
	c.bank = switches.NewBank(levels, time.Millisecond)
	c.profiles = motion.NewManager(cfg.Rail, c.motor, cfg.AccelMmS2)
	c.machine = homing.NewMachine(cfg.Rail, c.motor, c.profiles, c.abort, c.result,
		c.pushNow)
	c.seq = homing.NewSequencer(cfg.Rail, c.motor, c.profiles, c.bank, c.abort, c.result,
		c.onPhase)
	return c
}

// Start launches the control goroutine.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Shutdown stops the control goroutine and releases the driver.
func (c *Controller) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.motor.Disable()
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.cmdCh:
			fn()
		case <-ticker.C:
			c.tickOnce(time.Now())
		}
	}
}

// tickOnce is one control loop iteration: switch poll, pending
// full-home dispatch, homing steps, motor advance, idle policy,
// position push.
func (c *Controller) tickOnce(now time.Time) {
	c.bank.Poll(now)
	c.updateSwitchMetrics()

	if c.wantFullHome && !c.seq.Active() {
		c.wantFullHome = false
		c.seq.Start()
	}

	c.machine.Step()
	c.seq.Tick()
	c.motor.Advance(c.tick.Seconds())

	if !c.machine.Active() && !c.seq.Active() {
		c.profiles.CheckIdle(now)
	}

	if c.met != nil {
		c.met.PositionDisplayMm.Set(float64(c.displayMm()))
		if c.motor.Enabled() {
			c.met.DriverEnabled.Set(1)
		} else {
			c.met.DriverEnabled.Set(0)
		}
	}

	interval := pushIdle
	if c.motor.Moving() || c.machine.Active() || c.seq.Active() {
		interval = pushMoving
	}
	if now.Sub(c.lastPush) >= interval {
		c.lastPush = now
		c.pushNow()
	}
}

// do runs fn on the control goroutine and waits for it.
func (c *Controller) do(fn func()) {
	done := make(chan struct{})
	c.cmdCh <- func() {
		fn()
		close(done)
	}
	<-done
}

func (c *Controller) displayMm() int {
	return c.rail.StepsToDisplayMm(c.motor.Position())
}

func (c *Controller) posText() string {
	return strconv.Itoa(c.displayMm())
}

func (c *Controller) pushNow() {
	if c.onPosition != nil {
		c.onPosition(c.posText())
	}
}

// onPhase fires on calibration phase boundaries.
func (c *Controller) onPhase(p homing.Phase) {
	if p == homing.PhaseIdle && c.met != nil {
		if c.result.Calibrated && !c.abort.Aborted() {
			c.met.CalibrationsOK.Inc()
		} else {
			c.met.CalibrationsAbort.Inc()
		}
	}
	c.pushNow()
}

func (c *Controller) updateSwitchMetrics() {
	if c.met == nil {
		return
	}
	for n := switches.Switch1; n <= switches.Switch3; n++ {
		count, err := c.bank.TriggerCount(n)
		if err != nil {
			continue
		}
		if d := count - c.lastTrig[n-1]; d > 0 {
			c.met.SwitchTriggers[n-1].Add(d)
			c.lastTrig[n-1] = count
		}
	}
}
