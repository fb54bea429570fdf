package driver

import (
	"sync"
)

// Zone is a raw step interval in which a simulated switch is pressed.
type Zone struct {
	Min, Max int64
}

func (z Zone) contains(p int64) bool {
	return p >= z.Min && p <= z.Max
}

// Sim is a simulated rail. It keeps a raw physical step counter that
// is independent of the controller's logical frame, so re-zeroing the
// motor during calibration does not move the simulated switches.
type Sim struct {
	mu      sync.Mutex
	pos     int64 // raw physical position
	enabled bool
	zones   [3]Zone
}

// NewSim creates a simulated rail with the given switch zones, indexed
// by switch number minus one.
func NewSim(zones [3]Zone) *Sim {
	return &Sim{zones: zones}
}

// Step implements stepper.Driver.
func (s *Sim) Step(dir, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos += int64(dir) * int64(n)
	return nil
}

// SetEnable implements stepper.Driver.
func (s *Sim) SetEnable(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on
	return nil
}

// ReadLevel implements switches.LevelReader. The line is pulled low
// while the carriage sits inside the switch zone.
func (s *Sim) ReadLevel(n int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.zones) {
		return true, nil
	}
	return !s.zones[n-1].contains(s.pos), nil
}

// RawPosition returns the raw physical step counter.
func (s *Sim) RawPosition() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// SetRawPosition places the carriage at a raw physical position.
func (s *Sim) SetRawPosition(p int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = p
}

// Enabled reports the simulated driver enable line.
func (s *Sim) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}
