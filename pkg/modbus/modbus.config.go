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

package modbus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Modbus     ModbusConfig           `yaml:"modbus"`
	PollGroups map[string]int         `yaml:"poll_groups"`
	Registers  map[string]RegisterDef `yaml:"registers"`
}

type ModbusConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	SlaveID byte   `yaml:"slave_id"`
	Timeout int    `yaml:"timeout"` // seconds
}

type RegisterDef struct {
	Address     uint16  `yaml:"address"`
	Type        string  `yaml:"type"`      // "holding" // not implemented: "input", "coil", "discrete"
	DataType    string  `yaml:"data_type"` // "uint16", "int16", "bool", "float32" // not implemented: "uint32", "int32",
	Scale       float64 `yaml:"scale"`     // scaling factor (if set, interprets int16 value as scaled float)
	Offset      float64 `yaml:"offset"`    // offset value
	Description string  `yaml:"description"`
	Writable    bool    `yaml:"writable"`
	Group       string  `yaml:"group,omitempty"`
}

// LoadConfig reads and parses a Modbus register-map YAML file, e.g. one
// generated from a DHW controller's register table. It returns an error
// rather than aborting the process, so the hwbridge subcommand can report
// it through the same herr-mapped exit path as any other input error.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read modbus config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse modbus config file: %w", err)
	}

	return &config, nil
}

// Register names for the four live readings internal/hwbridge polls off a
// DHW controller's Modbus map: compressor evaporator-air and condenser-water
// temperatures, and its electrical input power and heating capacity.
const (
	RegEvaporatorAirC = "evaporator_air_c"
	RegCondenserC     = "condenser_c"
	RegInputPowerW    = "input_power_w"
	RegCapacityW      = "capacity_w"
)

// DefaultHWBridgeConfig builds the Modbus register map internal/hwbridge
// expects out of the box, for a controller exposing the four calibration
// readings as back-to-back float32 holding registers starting at 30001 (a
// typical Modicon-style addressing offset). Callers with a differently
// laid out register table should supply their own YAML via LoadConfig
// instead.
func DefaultHWBridgeConfig(host string, port int) *Config {
	return &Config{
		Modbus: ModbusConfig{Host: host, Port: port, SlaveID: 1, Timeout: 5},
		PollGroups: map[string]int{
			"hwbridge": 5, // seconds between calibration polls
		},
		Registers: map[string]RegisterDef{
			RegEvaporatorAirC: {Address: 0, DataType: "float32", Description: "compressor evaporator air temperature, C"},
			RegCondenserC:     {Address: 2, DataType: "float32", Description: "compressor condenser water temperature, C"},
			RegInputPowerW:    {Address: 4, DataType: "float32", Description: "compressor electrical input power, W"},
			RegCapacityW:      {Address: 6, DataType: "float32", Description: "compressor heating capacity, W"},
		},
	}
}
