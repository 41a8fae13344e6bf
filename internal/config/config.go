// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads the CLI driver's own configuration: output
// directories, default boundary values, and live-mode toggles. This is
// distinct from the per-model HPWHSimInput JSON (internal/model), which
// configures a single simulated water heater.
package config

import (
	"encoding/json"
	"os"

	"hpwhsim/internal/herr"
	"hpwhsim/pkg/eventbus"
)

// LiveConfig holds settings for the optional websocket visualization and
// hardware calibration bridge. The CLI does not load it: `run -live` and the
// `bridge` subcommand take these settings from their own flags.
type LiveConfig struct {
	Enabled       bool   `json:"enabled"`
	WebsocketAddr string `json:"websocket_addr"`
	HWBridgeAddr  string `json:"hwbridge_addr"`
}

// Config is the CLI driver's own configuration.
type Config struct {
	OutDir              string     `json:"out_dir"`
	CalibrationFile     string     `json:"calibration_file"`
	DefaultStepSeconds  float64    `json:"default_step_seconds"`
	DefaultAmbientC     float64    `json:"default_ambient_c"`
	NumThermocouples    int        `json:"num_thermocouples"`
	Live                LiveConfig `json:"live"`

	// Not loaded from file; set by the CLI driver before handing this
	// Config to the live-mode service wrappers.
	EventBus *eventbus.Bus
}

// LoadFile reads and decodes path, filling unset fields with defaults.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, herr.NewIOError(path, err.Error())
	}
	defer f.Close()
	var c Config
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return nil, herr.NewIOError(path, err.Error())
	}
	applyDefaults(&c)
	return &c, nil
}

// Default returns a Config with every field at its documented default,
// for invocations that pass no config file.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

func applyDefaults(c *Config) {
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.DefaultStepSeconds == 0 {
		c.DefaultStepSeconds = 60
	}
	if c.DefaultAmbientC == 0 {
		c.DefaultAmbientC = 20
	}
	if c.NumThermocouples == 0 {
		c.NumThermocouples = 6
	}
	if c.Live.WebsocketAddr == "" {
		c.Live.WebsocketAddr = ":8765"
	}
}
