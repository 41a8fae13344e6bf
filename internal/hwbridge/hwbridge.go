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

// Package hwbridge is a calibration aid, not part of the simulation core:
// it reads live compressor input power and condenser temperature off a
// real water-heater controller over Modbus TCP and cross-checks them
// against a performance-map preset's predicted values, surfacing
// deviations through a report.Reporter. It never feeds values back into
// a running Step; spec.md §5's synchronous stepping model is untouched.
package hwbridge

import (
	"context"
	"math"

	"hpwhsim/internal/heatsource"
	"hpwhsim/internal/report"
	"hpwhsim/pkg/modbus"
)

// Registers names the four live readings the bridge expects the
// controller's Modbus map to expose, by pkg/modbus.Config register name.
type Registers struct {
	EvaporatorAirC string
	CondenserC     string
	InputPowerW    string
	CapacityW      string
}

// Bridge polls a live controller and compares its readings to a
// performance map.
type Bridge struct {
	client *modbus.Client
	regs   Registers
	perf   *heatsource.PerformanceMap
	rep    report.Reporter

	// ToleranceFraction is the allowed relative deviation before a
	// mismatch is reported as a warning, e.g. 0.1 for 10%.
	ToleranceFraction float64
}

// New builds a Bridge from an already-connected Modbus client.
func New(client *modbus.Client, regs Registers, perf *heatsource.PerformanceMap, rep report.Reporter) *Bridge {
	if rep == nil {
		rep = report.Nop{}
	}
	return &Bridge{client: client, regs: regs, perf: perf, rep: rep, ToleranceFraction: 0.1}
}

// Sample is one live reading paired with the performance map's predicted
// values at the same operating point.
type Sample struct {
	EvaporatorAirC    float64
	CondenserC        float64
	MeasuredInputW    float64
	MeasuredCapacityW float64
	PredictedInputW   float64
	PredictedCapacityW float64
}

// Poll reads one live sample and compares it to the performance map,
// logging a warning through the Reporter when either reading deviates
// from the map's prediction by more than ToleranceFraction.
func (b *Bridge) Poll(ctx context.Context) (Sample, error) {
	evapC, err := modbus.ReadTyped[float32](b.client, b.regs.EvaporatorAirC)
	if err != nil {
		return Sample{}, err
	}
	condC, err := modbus.ReadTyped[float32](b.client, b.regs.CondenserC)
	if err != nil {
		return Sample{}, err
	}
	inputW, err := modbus.ReadTyped[float32](b.client, b.regs.InputPowerW)
	if err != nil {
		return Sample{}, err
	}
	capW, err := modbus.ReadTyped[float32](b.client, b.regs.CapacityW)
	if err != nil {
		return Sample{}, err
	}

	predInput, predCap := b.perf.Lookup(float64(evapC), float64(condC))
	s := Sample{
		EvaporatorAirC:      float64(evapC),
		CondenserC:          float64(condC),
		MeasuredInputW:      float64(inputW),
		MeasuredCapacityW:   float64(capW),
		PredictedInputW:     predInput,
		PredictedCapacityW:  predCap,
	}

	if deviates(s.MeasuredInputW, s.PredictedInputW, b.ToleranceFraction) {
		b.rep.Warnf("hwbridge: measured input power %.1fW deviates from predicted %.1fW at (evap=%.1fC, cond=%.1fC)",
			s.MeasuredInputW, s.PredictedInputW, s.EvaporatorAirC, s.CondenserC)
	}
	if deviates(s.MeasuredCapacityW, s.PredictedCapacityW, b.ToleranceFraction) {
		b.rep.Warnf("hwbridge: measured capacity %.1fW deviates from predicted %.1fW at (evap=%.1fC, cond=%.1fC)",
			s.MeasuredCapacityW, s.PredictedCapacityW, s.EvaporatorAirC, s.CondenserC)
	}
	return s, nil
}

func deviates(measured, predicted, tolerance float64) bool {
	if predicted == 0 {
		return measured != 0
	}
	return math.Abs(measured-predicted)/math.Abs(predicted) > tolerance
}
