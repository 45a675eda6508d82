// Package config holds the tunable engine settings: the per-row save
// debounce window, the paste auto-expansion cap, and backend timeouts.
// Settings load from YAML with library defaults merged underneath whatever
// the document provides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the resolved engine tunables for one grid session.
type Settings struct {
	// DebounceWindow is the delay between the last edit to a row and the
	// flush of its accumulated patch.
	DebounceWindow time.Duration
	// MaxAutoExpandRows caps how many rows a single paste may create.
	MaxAutoExpandRows int
	// RequestTimeout bounds each backend call.
	RequestTimeout time.Duration
}

// Default returns the library defaults: 800ms debounce (the platform's save
// delay), 500-row expansion cap, 15s request timeout.
func Default() Settings {
	return Settings{
		DebounceWindow:    800 * time.Millisecond,
		MaxAutoExpandRows: 500,
		RequestTimeout:    15 * time.Second,
	}
}

// fileSettings is the YAML shape; zero values mean "keep the default".
type fileSettings struct {
	Grid struct {
		DebounceMs        int `yaml:"debounce_ms"`
		MaxAutoExpandRows int `yaml:"max_auto_expand_rows"`
		RequestTimeoutMs  int `yaml:"request_timeout_ms"`
	} `yaml:"grid"`
}

// Load decodes settings from a YAML document, merging the document's values
// over Default().
func Load(data []byte) (Settings, error) {
	s := Default()
	var file fileSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	if file.Grid.DebounceMs > 0 {
		s.DebounceWindow = time.Duration(file.Grid.DebounceMs) * time.Millisecond
	}
	if file.Grid.MaxAutoExpandRows > 0 {
		s.MaxAutoExpandRows = file.Grid.MaxAutoExpandRows
	}
	if file.Grid.RequestTimeoutMs > 0 {
		s.RequestTimeout = time.Duration(file.Grid.RequestTimeoutMs) * time.Millisecond
	}
	return s, nil
}

// LoadFile reads and decodes settings from a file path. A missing file is
// not an error; defaults apply.
func LoadFile(path string) (Settings, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), err
	}
	return Load(data)
}
