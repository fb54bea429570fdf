// rail-sim simulates the step-generator board for testing the host
// without hardware. It serves the board's line protocol on a unix
// socket; point railctl at it with device "unix:<path>".
//
// Protocol, one command per line:
//
//	EN <0|1>        energize or release the driver outputs
//	ST <dir> <n>    emit n microsteps in direction dir (+1/-1)
//	SW              query switch levels; reply "SW <s1> <s2> <s3>"
//
// Usage:
//
//	rail-sim -socket /tmp/rail-sim.sock [-trace]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"railctl/pkg/driver"
	"railctl/pkg/geometry"
	"railctl/pkg/log"
)

func main() {
	socketPath := flag.String("socket", "/tmp/rail-sim.sock", "Unix socket path")
	trace := flag.Bool("trace", false, "Log every command")
	flag.Parse()

	logger := log.New("rail-sim")
	if *trace {
		logger.SetLevel(log.DEBUG)
	}

	rail := geometry.DefaultRail()
	sim := driver.NewSim(defaultZones(rail))

	os.Remove(*socketPath)
	listener, err := net.Listen("unix", *socketPath)
	if err != nil {
		logger.Errorf("listen %s: %v", *socketPath, err)
		os.Exit(1)
	}
	defer listener.Close()
	defer os.Remove(*socketPath)
	logger.Infof("listening on %s", *socketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Info("listener closed")
			return
		}
		logger.Info("host connected")
		go serve(conn, sim, logger)
	}
}

// serve handles one host connection until it closes.
func serve(conn net.Conn, sim *driver.Sim, logger *log.Logger) {
	defer conn.Close()
	defer logger.Info("host disconnected", log.Fields{"raw_pos": sim.RawPosition()})

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debugf("<- %s", line)
		fields := strings.Fields(line)

		switch fields[0] {
		case "EN":
			if len(fields) != 2 {
				continue
			}
			sim.SetEnable(fields[1] != "0")

		case "ST":
			if len(fields) != 3 {
				continue
			}
			dir, err1 := strconv.Atoi(fields[1])
			n, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil {
				continue
			}
			sim.Step(dir, n)

		case "SW":
			var lv [3]int
			for i := 0; i < 3; i++ {
				high, _ := sim.ReadLevel(i + 1)
				if high {
					lv[i] = 1
				}
			}
			fmt.Fprintf(conn, "SW %d %d %d\n", lv[0], lv[1], lv[2])

		default:
			logger.Warnf("unknown command %q", fields[0])
		}
	}
}

// defaultZones places switch 1 just below the power-on position and
// switches 2 and 3 along the positive sweep, mirroring a rail powered
// on near mid-travel.
func defaultZones(rail geometry.Rail) [3]driver.Zone {
	span := rail.SweepBoundSteps()
	start := span / 2
	width := int64(rail.StepsPerMm() * 2)
	return [3]driver.Zone{
		{Min: -start - width, Max: -start},
		{Min: span/3 - start, Max: span/3 - start + width},
		{Min: span - start - width*4, Max: span - start - width*3},
	}
}
