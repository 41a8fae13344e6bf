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

// Package schedule reads the per-channel CSV boundary schedules and the
// testInfo.txt run parameters described in spec.md §6.
package schedule

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"hpwhsim/internal/herr"
)

// Channel is a minute-indexed series: index 0 is minute 1.
type Channel struct {
	Default float64
	Values  []float64
}

// At returns the value at the given 1-indexed minute, or the channel's
// default if the schedule is shorter than requested.
func (c Channel) At(minute int) float64 {
	i := minute - 1
	if i < 0 || i >= len(c.Values) {
		return c.Default
	}
	return c.Values[i]
}

// ReadChannel parses one schedule CSV: a `default <value>` line, a
// `minutes,<field>` header, and zero or more `<minute>,<value>` override
// rows, pre-filling the array to lengthMinutes with the default.
func ReadChannel(path string, lengthMinutes int) (Channel, error) {
	f, err := os.Open(path)
	if err != nil {
		return Channel{}, herr.NewIOError(path, err.Error())
	}
	defer f.Close()
	return DecodeChannel(f, lengthMinutes, path)
}

// DecodeChannel parses a schedule CSV from r. path is used only in error
// messages.
func DecodeChannel(r io.Reader, lengthMinutes int, path string) (Channel, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return Channel{}, herr.NewIOError(path, "empty schedule file")
	}
	defaultLine := strings.Fields(scanner.Text())
	if len(defaultLine) != 2 || defaultLine[0] != "default" {
		return Channel{}, herr.NewIOError(path, "first line must be \"default <value>\"")
	}
	def, err := strconv.ParseFloat(defaultLine[1], 64)
	if err != nil {
		return Channel{}, herr.NewIOError(path, fmt.Sprintf("invalid default value: %v", err))
	}

	if !scanner.Scan() {
		return Channel{}, herr.NewIOError(path, "missing header line")
	}

	ch := Channel{Default: def, Values: make([]float64, lengthMinutes)}
	for i := range ch.Values {
		ch.Values[i] = def
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return Channel{}, herr.NewIOError(path, fmt.Sprintf("malformed override row: %q", line))
		}
		minute, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return Channel{}, herr.NewIOError(path, fmt.Sprintf("invalid minute in override row: %q", line))
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return Channel{}, herr.NewIOError(path, fmt.Sprintf("invalid value in override row: %q", line))
		}
		if minute >= 1 && minute <= lengthMinutes {
			ch.Values[minute-1] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Channel{}, herr.NewIOError(path, err.Error())
	}
	return ch, nil
}

// TestInfo is the parsed content of testInfo.txt. Fields that can
// meaningfully be left at their zero value (doInversionMixing=0 is a real
// choice, not "absent") are pointers, nil when the key was not present in
// the file; a caller applying overrides should leave the model's own
// setting alone when nil rather than clobbering it with false/zero.
type TestInfo struct {
	SetpointC         float64
	LengthOfTestMin   int
	DoInversionMixing *bool
	DoConduction      *bool
	InletHeightFrac   *float64
	TankSizeGal       *float64
	TimeOnTankLimit   *float64
	UseSoC            *bool
	InitialTankTC     *float64

	// Unrecognized keys, surfaced as diagnostics rather than fatal errors.
	Unknown map[string]string
}

// ReadTestInfo parses testInfo.txt's whitespace-separated key/value pairs.
// Missing length_of_test is fatal; unknown keys are collected, not fatal.
func ReadTestInfo(path string) (TestInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return TestInfo{}, herr.NewIOError(path, err.Error())
	}
	defer f.Close()
	return DecodeTestInfo(f, path)
}

// DecodeTestInfo parses testInfo.txt content from r.
func DecodeTestInfo(r io.Reader, path string) (TestInfo, error) {
	info := TestInfo{Unknown: map[string]string{}}
	haveLength := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) != 2 {
			return TestInfo{}, herr.NewIOError(path, fmt.Sprintf("malformed line: %q", scanner.Text()))
		}
		key, val := fields[0], fields[1]
		var err error
		switch key {
		case "setpoint":
			info.SetpointC, err = parseFloatField(val, path)
		case "length_of_test":
			var n int
			n, err = strconv.Atoi(val)
			info.LengthOfTestMin = n
			haveLength = err == nil
		case "doInversionMixing":
			info.DoInversionMixing = boolField(val)
		case "doConduction":
			info.DoConduction = boolField(val)
		case "inletH":
			info.InletHeightFrac, err = floatField(val, path)
		case "tanksize":
			info.TankSizeGal, err = floatField(val, path)
		case "tot_limit":
			info.TimeOnTankLimit, err = floatField(val, path)
		case "useSoC":
			info.UseSoC = boolField(val)
		case "initialTankT_C":
			info.InitialTankTC, err = floatField(val, path)
		default:
			info.Unknown[key] = val
		}
		if err != nil {
			return TestInfo{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return TestInfo{}, herr.NewIOError(path, err.Error())
	}
	if !haveLength {
		return TestInfo{}, herr.NewConfigError("length_of_test", "required")
	}
	return info, nil
}

func parseFloatField(val, path string) (float64, error) {
	f, e := strconv.ParseFloat(val, 64)
	if e != nil {
		return 0, herr.NewIOError(path, fmt.Sprintf("invalid numeric value %q", val))
	}
	return f, nil
}

func floatField(val, path string) (*float64, error) {
	f, err := parseFloatField(val, path)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func boolField(val string) *bool {
	b := val == "1"
	return &b
}
