// Package config reads the rail configuration file: an INI-style
// format of [section] headers and "option: value" lines.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"railctl/pkg/errors"
)

// Config provides access to a parsed configuration file.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string
}

// New creates an empty Config.
func New() *Config {
	return &Config{sections: make(map[string]*Section)}
}

// Load reads a configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	defer f.Close()

	c := New()
	var currentSection string
	currentOptions := make(map[string]string)

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}
		if idx := strings.IndexAny(line, "#;"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if currentSection != "" {
				c.addSection(currentSection, currentOptions)
			}
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			if currentSection == "" {
				return nil, errors.ConfigParse(path, lineNum, "empty section header")
			}
			currentOptions = make(map[string]string)
			continue
		}

		sep := strings.IndexAny(line, ":=")
		if sep < 0 {
			return nil, errors.ConfigParse(path, lineNum, fmt.Sprintf("malformed line %q", line))
		}
		if currentSection == "" {
			return nil, errors.ConfigParse(path, lineNum, "option before any section")
		}
		key := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+1:])
		currentOptions[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if currentSection != "" {
		c.addSection(currentSection, currentOptions)
	}

	return c, nil
}

func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := c.sections[key]; !ok {
		c.order = append(c.order, key)
	}
	c.sections[key] = newSection(name, options)
}

// HasSection checks whether a section exists.
func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[strings.ToLower(name)]
	return ok
}

// Section returns a section by name, or an error if absent.
func (c *Config) Section(name string) (*Section, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sections[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("config: section [%s] not found", name)
	}
	return s, nil
}

// SectionOrDefault returns the named section, or an empty one so
// callers can fall back to option defaults.
func (c *Config) SectionOrDefault(name string) *Section {
	if s, err := c.Section(name); err == nil {
		return s
	}
	return newSection(name, nil)
}

// SectionNames returns the section names in file order.
func (c *Config) SectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}
