// Package switches reads the rail's active-low limit switches.
package switches

import (
	"errors"
	"log"
	"time"
)

// Count is the number of limit switches on the rail.
const Count = 3

// Switch numbers as used by homing commands.
const (
	Switch1 = 1
	Switch2 = 2
	Switch3 = 3
)

var errBadSwitch = errors.New("switches: switch number out of range")

// LevelReader reports the raw electrical level of a switch line.
// true means the line is high; the switches pull the line low when
// triggered.
type LevelReader interface {
	ReadLevel(n int) (bool, error)
}

type switchState struct {
	active      bool // debounced
	rawActive   bool
	rawSince    time.Time
	triggers    uint64
	lastTrigger time.Time
}

// Bank debounces the three switch inputs. Poll once per control tick;
// Triggered then answers from the debounced state without touching
// hardware again within the tick.
type Bank struct {
	reader   LevelReader
	debounce time.Duration
	states   [Count]switchState
}

// NewBank creates a switch bank over the given reader.
func NewBank(reader LevelReader, debounce time.Duration) *Bank {
	if debounce <= 0 {
		debounce = time.Millisecond
	}
	return &Bank{reader: reader, debounce: debounce}
}

// Poll samples all switch lines and updates the debounced states.
func (b *Bank) Poll(now time.Time) {
	for n := Switch1; n <= Switch3; n++ {
		level, err := b.reader.ReadLevel(n)
		if err != nil {
			log.Printf("switches: read switch %d: %v", n, err)
			continue
		}
		s := &b.states[n-1]
		raw := !level // active-low
		if raw != s.rawActive {
			s.rawActive = raw
			s.rawSince = now
			continue
		}
		if raw == s.active {
			continue
		}
		if now.Sub(s.rawSince) >= b.debounce {
			s.active = raw
			if raw {
				s.triggers++
				s.lastTrigger = now
			}
		}
	}
}

// Triggered reports the debounced state of switch n (1-3). An out of
// range n reports false.
func (b *Bank) Triggered(n int) bool {
	if n < Switch1 || n > Switch3 {
		return false
	}
	return b.states[n-1].active
}

// TriggerCount returns how often switch n has gone active.
func (b *Bank) TriggerCount(n int) (uint64, error) {
	if n < Switch1 || n > Switch3 {
		return 0, errBadSwitch
	}
	return b.states[n-1].triggers, nil
}

// LastTrigger returns when switch n last went active.
func (b *Bank) LastTrigger(n int) (time.Time, error) {
	if n < Switch1 || n > Switch3 {
		return time.Time{}, errBadSwitch
	}
	return b.states[n-1].lastTrigger, nil
}
