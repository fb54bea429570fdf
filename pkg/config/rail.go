package config

import "railctl/pkg/geometry"

// App is the assembled runtime configuration.
type App struct {
	Rail      geometry.Rail
	AccelMmS2 float64

	// Serial link to the step-generator board.
	Device string
	Baud   int

	// Web surface.
	Listen string
}

// LoadApp parses a config file into the runtime configuration. Missing
// options fall back to the reference rail's values.
func LoadApp(path string) (*App, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return buildApp(c)
}

func buildApp(c *Config) (*App, error) {
	def := geometry.DefaultRail()
	rail := c.SectionOrDefault("rail")

	var app App
	var errs []error

	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	app.Rail.ScrewLeadMm, err = rail.GetFloat("screw_lead", def.ScrewLeadMm)
	collect(err)
	app.Rail.FullStepsPerRev, err = rail.GetInt("full_steps_per_rev", def.FullStepsPerRev)
	collect(err)
	app.Rail.Microsteps, err = rail.GetInt("microsteps", def.Microsteps)
	collect(err)
	app.Rail.MinPositionCm, err = rail.GetFloat("min_position", def.MinPositionCm)
	collect(err)
	app.Rail.MaxPositionCm, err = rail.GetFloat("max_position", def.MaxPositionCm)
	collect(err)
	app.Rail.Switch1OffsetCm, err = rail.GetFloat("switch1_offset", def.Switch1OffsetCm)
	collect(err)
	app.Rail.CalibrationSpeedMmS, err = rail.GetFloat("calibration_speed", def.CalibrationSpeedMmS)
	collect(err)
	app.AccelMmS2, err = rail.GetFloat("acceleration", 100.0)
	collect(err)

	stepperSec := c.SectionOrDefault("stepper")
	app.Device, err = stepperSec.Get("device", "")
	collect(err)
	app.Baud, err = stepperSec.GetInt("baud", 115200)
	collect(err)

	web := c.SectionOrDefault("web")
	app.Listen, err = web.Get("listen", ":8080")
	collect(err)

	if len(errs) > 0 {
		return nil, errs[0]
	}
	return &app, nil
}
