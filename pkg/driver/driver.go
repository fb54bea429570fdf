// Package driver provides hardware backends for the rail: a serial
// link to the step-generator MCU and a simulated rail for tests and
// the -sim mode.
package driver

// A backend implements stepper.Driver for step emission and
// switches.LevelReader for the limit switch lines. Both interfaces are
// defined next to their consumers; this package only supplies
// implementations.
