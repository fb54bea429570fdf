// railctl drives a single-axis linear rail: stepper motion, homing
// against three limit switches, and a web control surface with live
// position push.
//
// Usage:
//
//	railctl -config rail.cfg [options]
//
// Options:
//
//	-config string   Rail configuration file (optional, built-in defaults apply)
//	-listen string   Web listen address (overrides config)
//	-sim             Run against the built-in simulator instead of serial hardware
//	-trace           Enable debug logging
//	-json            Log in JSON format
//	-logfile string  Log file path (default: stderr)
//
// Examples:
//
//	# Run against the simulator on the default port
//	railctl -sim
//
//	# Run against hardware described in a config file
//	railctl -config rail.cfg
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"railctl/pkg/config"
	"railctl/pkg/controller"
	"railctl/pkg/driver"
	"railctl/pkg/geometry"
	"railctl/pkg/log"
	"railctl/pkg/metrics"
	"railctl/pkg/stepper"
	"railctl/pkg/switches"
	"railctl/pkg/web"
)

const defaultAccelMmS2 = 50.0

func main() {
	configFile := flag.String("config", "", "Rail configuration file")
	listen := flag.String("listen", "", "Web listen address (overrides config)")
	sim := flag.Bool("sim", false, "Run against the built-in simulator")
	trace := flag.Bool("trace", false, "Enable debug logging")
	jsonLog := flag.Bool("json", false, "Log in JSON format")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	flag.Parse()

	logger := log.New("railctl")
	if *trace {
		logger.SetLevel(log.DEBUG)
	}
	if *jsonLog {
		logger.SetFormat(log.FormatJSON)
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetWriter(f)
		logger.SetColorize(false)
	}

	app := &config.App{
		Rail:      geometry.DefaultRail(),
		AccelMmS2: defaultAccelMmS2,
		Listen:    ":8080",
	}
	if *configFile != "" {
		loaded, err := config.LoadApp(*configFile)
		if err != nil {
			logger.Errorf("config %s: %v", *configFile, err)
			os.Exit(1)
		}
		app = loaded
	}
	if *listen != "" {
		app.Listen = *listen
	}

	rail := app.Rail
	logger.Info("rail geometry", log.Fields{
		"steps_per_mm": rail.StepsPerMm(),
		"min_mm":       rail.MinMm(),
		"max_mm":       rail.MaxMm(),
		"offset_mm":    rail.OffsetMm(),
	})

	var (
		drv    stepper.Driver
		levels switches.LevelReader
	)
	if *sim || app.Device == "" {
		if !*sim {
			logger.Warn("no serial device configured, falling back to simulator")
		}
		s := driver.NewSim(simZones(rail))
		drv, levels = s, s
		logger.Info("driver: simulator")
	} else if path, ok := strings.CutPrefix(app.Device, "unix:"); ok {
		sd, err := driver.DialBoard(path)
		if err != nil {
			logger.Errorf("dial %s: %v", path, err)
			os.Exit(1)
		}
		defer sd.Close()
		drv, levels = sd, sd
		logger.Info("driver: socket", log.Fields{"path": path})
	} else {
		sd, err := driver.OpenSerial(app.Device, app.Baud)
		if err != nil {
			logger.Errorf("open %s: %v", app.Device, err)
			os.Exit(1)
		}
		defer sd.Close()
		drv, levels = sd, sd
		logger.Info("driver: serial", log.Fields{"device": app.Device, "baud": app.Baud})
	}

	met := metrics.NewRail()

	var srv *web.Server
	ctl := controller.New(controller.Config{
		Rail:      rail,
		AccelMmS2: app.AccelMmS2,
		Metrics:   met,
		OnPosition: func(posText string) {
			if srv != nil {
				srv.Broadcast(posText)
			}
		},
	}, drv, levels)

	srv, err := web.New(web.Config{
		Listen:  app.Listen,
		Rail:    ctl,
		Metrics: met.Registry,
		Logger:  logger.Component("web"),
	})
	if err != nil {
		logger.Errorf("web server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctl.Start(ctx)
	if err := srv.Start(); err != nil {
		logger.Errorf("start web server: %v", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("web shutdown: %v", err)
	}
	ctl.Shutdown()
}

// simZones places the three switch zones in the simulator's raw step
// frame, with power-on assumed near the middle of travel. Switch 1
// sits at the negative end, switch 3 near the positive end, switch 2
// partway along the sweep.
func simZones(rail geometry.Rail) [3]driver.Zone {
	span := rail.SweepBoundSteps()
	start := span / 2
	width := int64(rail.StepsPerMm() * 2)
	return [3]driver.Zone{
		{Min: -start - width, Max: -start},
		{Min: span/3 - start, Max: span/3 - start + width},
		{Min: span - start - width*4, Max: span - start - width*3},
	}
}
