// Package serial provides the serial link to the rail's step-generator
// board.
package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Common errors
var (
	ErrTimeout = errors.New("serial: operation timed out")
	ErrClosed  = errors.New("serial: port closed")
)

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., /dev/ttyUSB0, /dev/ttyACM0)
	Device string

	// Baud rate (default: 115200)
	BaudRate int

	// Read timeout for individual operations (default: 1 second)
	ReadTimeout time.Duration

	// Pulse DTR on connect to reset the board
	DTROnConnect bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BaudRate:    115200,
		ReadTimeout: time.Second,
	}
}

// Port represents an open serial port.
type Port struct {
	mu         sync.Mutex
	fd         int
	device     string
	config     Config
	closed     bool
	oldTermios *unix.Termios
}

// ListPorts returns the serial device paths present on this host.
func ListPorts() ([]string, error) {
	var patterns []string
	switch runtime.GOOS {
	case "linux":
		patterns = []string{
			"/dev/ttyUSB*",
			"/dev/ttyACM*",
			"/dev/serial/by-id/*",
		}
	case "darwin":
		patterns = []string{
			"/dev/tty.usbserial*",
			"/dev/tty.usbmodem*",
			"/dev/cu.usbserial*",
			"/dev/cu.usbmodem*",
		}
	default:
		return nil, fmt.Errorf("serial: unsupported platform %s", runtime.GOOS)
	}

	var ports []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			resolved, err := filepath.EvalSymlinks(m)
			if err != nil {
				resolved = m
			}
			if !seen[resolved] {
				seen[resolved] = true
				ports = append(ports, resolved)
			}
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// Open opens a serial port in raw 8N1 mode.
func Open(cfg Config) (*Port, error) {
	if cfg.Device == "" {
		return nil, errors.New("serial: device path required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = time.Second
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}

	oldTermios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: get termios: %w", err)
	}

	termios := *oldTermios

	// Raw mode: no input/output processing, 8N1, no flow control.
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	termios.Oflag &^= unix.OPOST
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	speed, err := baudRateToSpeed(cfg.BaudRate)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	setSpeed(&termios, speed)

	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 1 // 100ms per-character timeout

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &termios); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: set termios: %w", err)
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: set blocking: %w", err)
	}

	port := &Port{
		fd:         fd,
		device:     cfg.Device,
		config:     cfg,
		oldTermios: oldTermios,
	}

	if cfg.DTROnConnect {
		// Pulse DTR to reset the board.
		port.setModemLine(unix.TIOCM_DTR, false)
		time.Sleep(100 * time.Millisecond)
		port.setModemLine(unix.TIOCM_DTR, true)
	}

	return port, nil
}

// Read reads up to len(buf) bytes, honoring the configured timeout.
func (p *Port) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	fd := p.fd
	timeout := p.config.ReadTimeout
	p.mu.Unlock()

	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("serial: poll: %w", err)
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	if pfd[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return 0, io.EOF
	}

	n, err = unix.Read(fd, buf)
	if err != nil {
		return 0, fmt.Errorf("serial: read: %w", err)
	}
	return n, nil
}

// Write writes buf to the port.
func (p *Port) Write(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	fd := p.fd
	p.mu.Unlock()

	n, err := unix.Write(fd, buf)
	if err != nil {
		return 0, fmt.Errorf("serial: write: %w", err)
	}
	return n, nil
}

// Close closes the port, restoring the original termios settings.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.oldTermios != nil {
		_ = unix.IoctlSetTermios(p.fd, ioctlSetTermios, p.oldTermios)
	}
	return unix.Close(p.fd)
}

// Device returns the device path.
func (p *Port) Device() string {
	return p.device
}

// SetReadTimeout sets the read timeout.
func (p *Port) SetReadTimeout(d time.Duration) {
	p.mu.Lock()
	p.config.ReadTimeout = d
	p.mu.Unlock()
}

// Flush discards pending input and output.
func (p *Port) Flush() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	fd := p.fd
	p.mu.Unlock()

	return unix.IoctlSetInt(fd, ioctlTCFlush, unix.TCIOFLUSH)
}

// setModemLine sets or clears a modem control line. Adapters without
// modem control report an error here, which is not fatal.
func (p *Port) setModemLine(line int32, on bool) {
	var status int32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(p.fd),
		uintptr(unix.TIOCMGET), uintptr(unsafe.Pointer(&status)))
	if errno != 0 {
		return
	}
	if on {
		status |= line
	} else {
		status &^= line
	}
	unix.Syscall(unix.SYS_IOCTL, uintptr(p.fd),
		uintptr(unix.TIOCMSET), uintptr(unsafe.Pointer(&status)))
}

// baudRateToSpeed converts a baud rate to the termios speed constant.
func baudRateToSpeed(baud int) (uint32, error) {
	speeds := map[int]uint32{
		9600:   unix.B9600,
		19200:  unix.B19200,
		38400:  unix.B38400,
		57600:  unix.B57600,
		115200: unix.B115200,
		230400: unix.B230400,
	}
	if speed, ok := speeds[baud]; ok {
		return speed, nil
	}
	if runtime.GOOS == "linux" {
		// BOTHER allows arbitrary rates on Linux.
		return 0x1000 | uint32(baud), nil
	}
	return 0, fmt.Errorf("serial: unsupported baud rate %d", baud)
}

// IsDeviceAvailable checks whether a device path exists.
func IsDeviceAvailable(device string) bool {
	info, err := os.Stat(device)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeDevice != 0
}
