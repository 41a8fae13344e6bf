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

package distribution_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/distribution"
)

func TestNewWeighted_RejectsBadInput(t *testing.T) {
	_, err := distribution.NewWeighted(nil, nil)
	require.Error(t, err)

	_, err = distribution.NewWeighted([]float64{0.5, 0.3}, []float64{1, 1})
	require.Error(t, err, "heights must be strictly increasing")

	_, err = distribution.NewWeighted([]float64{0.5, 0.9}, []float64{1, 1})
	require.Error(t, err, "final height must equal 1.0")
}

func TestNewWeighted_TotalWeightAndOverlap(t *testing.T) {
	d, err := distribution.NewWeighted([]float64{0.5, 1.0}, []float64{1, 0})
	require.NoError(t, err)
	require.InDelta(t, 0.5, d.TotalWeight(), 1e-9)
	require.InDelta(t, 0.5, d.OverlapWeight(0, 0.5), 1e-9)
	require.InDelta(t, 0.0, d.OverlapWeight(0.5, 1.0), 1e-9)
}

func TestFromCondensity_RunLengthEncodes(t *testing.T) {
	d, err := distribution.FromCondensity([]float64{1, 1, 0, 0})
	require.NoError(t, err)
	require.Len(t, d.Bands, 2)
	require.InDelta(t, 0.5, d.Bands[0].Height, 1e-9)
	require.InDelta(t, 1.0, d.Bands[0].Weight, 1e-9)
	require.InDelta(t, 1.0, d.Bands[1].Height, 1e-9)
	require.InDelta(t, 0.0, d.Bands[1].Weight, 1e-9)
}

func TestFromCondensity_RejectsEmpty(t *testing.T) {
	_, err := distribution.FromCondensity(nil)
	require.Error(t, err)
}

func TestIsValid(t *testing.T) {
	require.True(t, distribution.Top().IsValid())
	require.True(t, distribution.Bottom().IsValid())

	zero, err := distribution.NewWeighted([]float64{1.0}, []float64{0})
	require.NoError(t, err)
	require.False(t, zero.IsValid(), "all-zero weights sum to zero total weight")
}

func TestNodeWeights_Sentinels(t *testing.T) {
	top := distribution.Top().NodeWeights(4)
	require.Equal(t, []float64{0, 0, 0, 1}, top)

	bottom := distribution.Bottom().NodeWeights(4)
	require.Equal(t, []float64{1, 0, 0, 0}, bottom)
}

func TestNodeWeights_UniformDistributionSpreadsEvenly(t *testing.T) {
	d, err := distribution.NewWeighted([]float64{1.0}, []float64{1})
	require.NoError(t, err)
	weights := d.NodeWeights(4)
	for _, w := range weights {
		require.InDelta(t, 0.25, w, 1e-9)
	}
}
