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

package heatsource

import "hpwhsim/internal/herr"

// PerformanceMap is a rectilinear 2-D grid keyed on (evaporator-air T,
// condenser-water T), bilinearly interpolated with edge clamping, per
// spec.md §9. Axes must be sorted ascending; InputPowerW and CapacityW are
// indexed [evapIdx][condIdx].
type PerformanceMap struct {
	EvapAxisC []float64
	CondAxisC []float64
	InputPowerW [][]float64
	CapacityW   [][]float64
}

// NewPerformanceMap validates and returns a PerformanceMap.
func NewPerformanceMap(evapAxisC, condAxisC []float64, inputPowerW, capacityW [][]float64) (*PerformanceMap, error) {
	if len(evapAxisC) == 0 || len(condAxisC) == 0 {
		return nil, herr.NewConfigError("performance_map", "grid axes must be non-empty")
	}
	if len(inputPowerW) != len(evapAxisC) || len(capacityW) != len(evapAxisC) {
		return nil, herr.NewConfigError("performance_map", "grid rows must match evaporator axis length")
	}
	for i := range inputPowerW {
		if len(inputPowerW[i]) != len(condAxisC) || len(capacityW[i]) != len(condAxisC) {
			return nil, herr.NewConfigError("performance_map", "grid columns must match condenser axis length")
		}
	}
	for i := 1; i < len(evapAxisC); i++ {
		if evapAxisC[i] <= evapAxisC[i-1] {
			return nil, herr.NewConfigError("performance_map", "evaporator axis must be strictly increasing")
		}
	}
	for i := 1; i < len(condAxisC); i++ {
		if condAxisC[i] <= condAxisC[i-1] {
			return nil, herr.NewConfigError("performance_map", "condenser axis must be strictly increasing")
		}
	}
	return &PerformanceMap{
		EvapAxisC:   evapAxisC,
		CondAxisC:   condAxisC,
		InputPowerW: inputPowerW,
		CapacityW:   capacityW,
	}, nil
}

// Lookup bilinearly interpolates input power and heating capacity at
// (evapC, condC), clamping both inputs to the grid's bounds.
func (m *PerformanceMap) Lookup(evapC, condC float64) (inputPowerW, capacityW float64) {
	ei0, ei1, ef := bracket(m.EvapAxisC, evapC)
	ci0, ci1, cf := bracket(m.CondAxisC, condC)

	inputPowerW = bilerp(m.InputPowerW[ei0][ci0], m.InputPowerW[ei0][ci1], m.InputPowerW[ei1][ci0], m.InputPowerW[ei1][ci1], ef, cf)
	capacityW = bilerp(m.CapacityW[ei0][ci0], m.CapacityW[ei0][ci1], m.CapacityW[ei1][ci0], m.CapacityW[ei1][ci1], ef, cf)
	return
}

// bracket returns the indices bounding v within axis (clamped to the
// axis's own range) and the fractional position between them.
func bracket(axis []float64, v float64) (lo, hi int, frac float64) {
	if v <= axis[0] {
		return 0, 0, 0
	}
	if v >= axis[len(axis)-1] {
		last := len(axis) - 1
		return last, last, 0
	}
	for i := 1; i < len(axis); i++ {
		if v <= axis[i] {
			span := axis[i] - axis[i-1]
			if span == 0 {
				return i - 1, i, 0
			}
			return i - 1, i, (v - axis[i-1]) / span
		}
	}
	last := len(axis) - 1
	return last, last, 0
}

func bilerp(q00, q01, q10, q11, ef, cf float64) float64 {
	top := q00 + cf*(q01-q00)
	bottom := q10 + cf*(q11-q10)
	return top + ef*(bottom-top)
}
