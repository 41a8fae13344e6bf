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

// Package distribution represents a weighting over normalized tank height
// [0,1], shared by HeatSource.heat_distribution (where heat is injected)
// and HeatingLogic's tank-side value (which nodes a predicate reads). Both
// consumers resample the same sparse, piecewise-constant representation
// onto however many tank nodes the owning HPWH has.
package distribution

import "hpwhsim/internal/herr"

// Kind discriminates the three distribution shapes the original source
// supports.
type Kind int

const (
	// Weighted is a general piecewise-constant weighting over [0,1].
	Weighted Kind = iota
	// TopOfTank collapses to the single topmost node.
	TopOfTank
	// BottomOfTank collapses to the single bottommost node.
	BottomOfTank
)

// Point is the upper boundary of one constant-weight band: the band
// spans (previous point's Height, Height] and carries Weight.
type Point struct {
	Height float64
	Weight float64
}

// Distribution is the tagged sum described in spec.md §9: a sum of
// {TopOfTank, BottomOfTank, Weighted{heights[], weights[]}}.
type Distribution struct {
	Kind   Kind
	Bands  []Point
}

// Top returns the TopOfTank sentinel distribution.
func Top() Distribution { return Distribution{Kind: TopOfTank} }

// Bottom returns the BottomOfTank sentinel distribution.
func Bottom() Distribution { return Distribution{Kind: BottomOfTank} }

// NewWeighted builds a Weighted distribution from parallel normalized-
// height/weight arrays, as carried directly by the JSON model's
// temperature_weight_distribution field. Heights must be strictly
// increasing and the final height must be 1.0 (within tolerance).
func NewWeighted(heights, weights []float64) (Distribution, error) {
	if len(heights) == 0 || len(heights) != len(weights) {
		return Distribution{}, herr.NewConfigError("heat_distribution", "heights and weights must be non-empty and equal length")
	}
	bands := make([]Point, len(heights))
	prev := 0.0
	for i := range heights {
		if heights[i] <= prev && i > 0 {
			return Distribution{}, herr.NewConfigError("heat_distribution", "heights must be strictly increasing")
		}
		bands[i] = Point{Height: heights[i], Weight: weights[i]}
		prev = heights[i]
	}
	if prev < 0.999999 || prev > 1.000001 {
		return Distribution{}, herr.NewConfigError("heat_distribution", "final height must equal 1.0")
	}
	return Distribution{Kind: Weighted, Bands: bands}, nil
}

// FromCondensity run-length-encodes a dense per-node condensity array
// (the legacy representation) into a sparse Weighted distribution,
// collapsing consecutive equal-weight nodes into a single band, as
// HPWHHeatSource.cc's setCondensity does.
func FromCondensity(condensity []float64) (Distribution, error) {
	n := len(condensity)
	if n == 0 {
		return Distribution{}, herr.NewConfigError("condensity", "must be non-empty")
	}
	bands := make([]Point, 0, n)
	prevWeight := condensity[0]
	for i := 1; i < n; i++ {
		if condensity[i] != prevWeight {
			bands = append(bands, Point{Height: float64(i) / float64(n), Weight: prevWeight})
			prevWeight = condensity[i]
		}
	}
	bands = append(bands, Point{Height: 1.0, Weight: prevWeight})
	return Distribution{Kind: Weighted, Bands: bands}, nil
}

// IsValid reports whether the distribution carries positive total weight,
// per spec.md §3's HeatSource invariant ("sum of heat_distribution weights
// is positive").
func (d Distribution) IsValid() bool {
	switch d.Kind {
	case TopOfTank, BottomOfTank:
		return true
	default:
		return d.TotalWeight() > 0
	}
}

// TotalWeight returns the weight-times-span sum across all bands.
func (d Distribution) TotalWeight() float64 {
	if d.Kind != Weighted {
		return 1.0
	}
	total := 0.0
	prev := 0.0
	for _, p := range d.Bands {
		total += p.Weight * (p.Height - prev)
		prev = p.Height
	}
	return total
}

// OverlapWeight returns this distribution's weight contribution to the
// normalized-height interval [lowFrac, highFrac), used to resample the
// distribution onto a tank's N discrete nodes. Callers handle the
// TopOfTank/BottomOfTank sentinels themselves (direct node_t[N-1] /
// node_t[0] access) rather than calling this method for those kinds.
func (d Distribution) OverlapWeight(lowFrac, highFrac float64) float64 {
	if d.Kind != Weighted {
		return 0
	}
	weight := 0.0
	prev := 0.0
	for _, p := range d.Bands {
		overlapLow := lowFrac
		if prev > overlapLow {
			overlapLow = prev
		}
		overlapHigh := highFrac
		if p.Height < overlapHigh {
			overlapHigh = p.Height
		}
		if overlapHigh > overlapLow {
			weight += p.Weight * (overlapHigh - overlapLow)
		}
		prev = p.Height
	}
	return weight
}

// NodeWeights resamples the distribution onto numNodes equal-height tank
// nodes, returning one weight per node (not yet normalized).
func (d Distribution) NodeWeights(numNodes int) []float64 {
	weights := make([]float64, numNodes)
	switch d.Kind {
	case TopOfTank:
		weights[numNodes-1] = 1.0
	case BottomOfTank:
		weights[0] = 1.0
	default:
		step := 1.0 / float64(numNodes)
		for i := 0; i < numNodes; i++ {
			weights[i] = d.OverlapWeight(float64(i)*step, float64(i+1)*step)
		}
	}
	return weights
}
