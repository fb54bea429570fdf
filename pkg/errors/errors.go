// Categorized errors for the rail controller
//
// Copyright (C) 2026 railctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import "fmt"

// Code represents the category of error
type Code string

const (
	// Configuration errors
	ErrConfigParse  Code = "CONFIG_PARSE"
	ErrConfigOption Code = "CONFIG_OPTION"
	ErrConfigType   Code = "CONFIG_TYPE"

	// Link errors
	ErrSerialOpen    Code = "SERIAL_OPEN"
	ErrBoardProtocol Code = "BOARD_PROTOCOL"
)

// RailError carries an error category plus the config or link context
// it occurred in.
type RailError struct {
	Code    Code
	Message string
	Section string
	Option  string
	Err     error
}

// Error implements the error interface
func (e *RailError) Error() string {
	if e.Section != "" && e.Option != "" {
		return fmt.Sprintf("[%s] [%s] %s: %s", e.Code, e.Section, e.Option, e.Message)
	}
	if e.Section != "" {
		return fmt.Sprintf("[%s] [%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *RailError) Unwrap() error {
	return e.Err
}

// New creates a new RailError
func New(code Code, message string) *RailError {
	return &RailError{Code: code, Message: message}
}

// Wrap wraps an existing error with a category
func Wrap(err error, code Code, message string) *RailError {
	return &RailError{Code: code, Message: message, Err: err}
}

// ConfigParse reports a malformed configuration file.
func ConfigParse(path string, line int, reason string) *RailError {
	return New(ErrConfigParse, fmt.Sprintf("%s line %d: %s", path, line, reason))
}

// ConfigOption reports a missing configuration option.
func ConfigOption(section, option string) *RailError {
	e := New(ErrConfigOption, "option not found")
	e.Section, e.Option = section, option
	return e
}

// ConfigType reports a configuration value of the wrong type.
func ConfigType(section, option, value, want string) *RailError {
	e := New(ErrConfigType, fmt.Sprintf("%q is not a valid %s", value, want))
	e.Section, e.Option = section, option
	return e
}

// BoardProtocol reports an unparseable reply from the board.
func BoardProtocol(reply string) *RailError {
	return New(ErrBoardProtocol, fmt.Sprintf("malformed reply %q", reply))
}

// SerialOpen reports a failure to open the board's device.
func SerialOpen(device string, err error) *RailError {
	return Wrap(err, ErrSerialOpen, device)
}
