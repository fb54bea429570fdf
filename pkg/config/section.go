package config

import (
	"strconv"
	"strings"

	"railctl/pkg/errors"
)

// Section provides typed access to the options of one config section.
type Section struct {
	name    string
	options map[string]string
}

func newSection(name string, options map[string]string) *Section {
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[strings.ToLower(k)] = v
	}
	return &Section{name: name, options: opts}
}

// Name returns the section name.
func (s *Section) Name() string { return s.name }

// HasOption checks whether an option exists.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// Get returns a string option. Without a fallback, a missing option is
// an error.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	if v, ok := s.options[strings.ToLower(option)]; ok {
		return v, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return "", errors.ConfigOption(s.name, option)
}

// GetInt returns an integer option.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	if v, ok := s.options[strings.ToLower(option)]; ok {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, errors.ConfigType(s.name, option, v, "integer")
		}
		return i, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return 0, errors.ConfigOption(s.name, option)
}

// GetFloat returns a float option.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	if v, ok := s.options[strings.ToLower(option)]; ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errors.ConfigType(s.name, option, v, "number")
		}
		return f, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return 0, errors.ConfigOption(s.name, option)
}

// GetBool returns a boolean option.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	if v, ok := s.options[strings.ToLower(option)]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return false, errors.ConfigType(s.name, option, v, "boolean")
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return false, errors.ConfigOption(s.name, option)
}
