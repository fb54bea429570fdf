package driver

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"railctl/pkg/errors"
	"railctl/pkg/serial"
)

// switchRefresh bounds how often the switch lines are re-queried over
// the link. Within one control tick all three reads share one query.
const switchRefresh = time.Millisecond

// SerialDriver talks to the step-generator board over a serial line.
// The protocol is ASCII, one command per line:
//
//	EN <0|1>        energize or release the driver outputs
//	ST <dir> <n>    emit n microsteps in direction dir (+1/-1)
//	SW              query switch levels; reply "SW <s1> <s2> <s3>"
type SerialDriver struct {
	mu       sync.Mutex
	port     io.ReadWriteCloser
	rd       *bufio.Reader
	levels   [3]bool
	lastPoll time.Time
}

// NewBoard wraps an already-open link to the board. The caller keeps
// ownership of nothing; Close closes the link.
func NewBoard(rwc io.ReadWriteCloser) *SerialDriver {
	return &SerialDriver{
		port:   rwc,
		rd:     bufio.NewReader(rwc),
		levels: [3]bool{true, true, true},
	}
}

// OpenSerial opens the board on the given serial device.
func OpenSerial(device string, baud int) (*SerialDriver, error) {
	cfg := serial.DefaultConfig()
	cfg.Device = device
	cfg.BaudRate = baud
	cfg.DTROnConnect = true

	port, err := serial.Open(cfg)
	if err != nil {
		return nil, errors.SerialOpen(device, err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, errors.SerialOpen(device, err)
	}
	return NewBoard(port), nil
}

// DialBoard connects to a simulated board serving the line protocol on
// a unix socket.
func DialBoard(socketPath string) (*SerialDriver, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, err
	}
	return NewBoard(conn), nil
}

// Step implements stepper.Driver.
func (d *SerialDriver) Step(dir, n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.port, "ST %d %d\n", dir, n)
	return err
}

// SetEnable implements stepper.Driver.
func (d *SerialDriver) SetEnable(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := 0
	if on {
		v = 1
	}
	_, err := fmt.Fprintf(d.port, "EN %d\n", v)
	return err
}

// ReadLevel implements switches.LevelReader. Levels are cached so the
// three per-tick reads cost a single round trip.
func (d *SerialDriver) ReadLevel(n int) (bool, error) {
	if n < 1 || n > 3 {
		return true, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Since(d.lastPoll) >= switchRefresh {
		if err := d.refreshLevels(); err != nil {
			return d.levels[n-1], err
		}
		d.lastPoll = time.Now()
	}
	return d.levels[n-1], nil
}

// refreshLevels queries the board for switch line levels. Caller holds
// the lock.
func (d *SerialDriver) refreshLevels() error {
	if _, err := fmt.Fprintf(d.port, "SW\n"); err != nil {
		return err
	}
	line, err := d.rd.ReadString('\n')
	if err != nil {
		return fmt.Errorf("driver: switch query: %w", err)
	}
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 4 || fields[0] != "SW" {
		return errors.BoardProtocol(strings.TrimSpace(line))
	}
	for i := 0; i < 3; i++ {
		d.levels[i] = fields[i+1] != "0"
	}
	return nil
}

// Close releases the motor and closes the port.
func (d *SerialDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.port, "EN 0\n")
	return d.port.Close()
}
