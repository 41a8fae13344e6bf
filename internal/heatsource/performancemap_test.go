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

package heatsource_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/heatsource"
)

func newTestMap(t *testing.T) *heatsource.PerformanceMap {
	t.Helper()
	m, err := heatsource.NewPerformanceMap(
		[]float64{-10, 10, 30},
		[]float64{30, 50},
		[][]float64{{500, 600}, {400, 500}, {350, 450}},
		[][]float64{{1000, 1200}, {1500, 1700}, {1800, 2000}},
	)
	require.NoError(t, err)
	return m
}

func TestNewPerformanceMap_RejectsNonIncreasingAxis(t *testing.T) {
	_, err := heatsource.NewPerformanceMap(
		[]float64{10, 10},
		[]float64{30, 50},
		[][]float64{{1, 2}, {3, 4}},
		[][]float64{{1, 2}, {3, 4}},
	)
	require.Error(t, err)
}

func TestNewPerformanceMap_RejectsMismatchedGrid(t *testing.T) {
	_, err := heatsource.NewPerformanceMap(
		[]float64{10, 30},
		[]float64{30, 50},
		[][]float64{{1, 2}},
		[][]float64{{1, 2}, {3, 4}},
	)
	require.Error(t, err)
}

func TestLookup_ExactGridPoint(t *testing.T) {
	m := newTestMap(t)
	input, cap := m.Lookup(10, 50)
	require.InDelta(t, 500, input, 1e-9)
	require.InDelta(t, 1700, cap, 1e-9)
}

func TestLookup_ClampsOutsideAxisBounds(t *testing.T) {
	m := newTestMap(t)
	belowInput, belowCap := m.Lookup(-50, 0)
	atMinInput, atMinCap := m.Lookup(-10, 30)
	require.InDelta(t, atMinInput, belowInput, 1e-9, "evaluating below the grid must clamp to the minimum axis value")
	require.InDelta(t, atMinCap, belowCap, 1e-9)

	aboveInput, aboveCap := m.Lookup(1000, 1000)
	atMaxInput, atMaxCap := m.Lookup(30, 50)
	require.InDelta(t, atMaxInput, aboveInput, 1e-9, "evaluating above the grid must clamp to the maximum axis value")
	require.InDelta(t, atMaxCap, aboveCap, 1e-9)
}

func TestLookup_InterpolatesBetweenGridPoints(t *testing.T) {
	m := newTestMap(t)
	input, _ := m.Lookup(0, 30)
	// Midway between evap=-10 (500) and evap=10 (400) at cond=30.
	require.InDelta(t, 450, input, 1e-6)
}
