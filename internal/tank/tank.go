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

// Package tank implements the stratified storage tank: the node
// temperature vector and the draw, standby-loss, conduction, and
// inversion-mixing operations that advance it by one step.
package tank

import (
	"math"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/distribution"
	"hpwhsim/internal/herr"
	"hpwhsim/internal/report"
)

// Config is the build-time description of a Tank, sourced from a preset
// or a parsed HPWHSimInput JSON document.
type Config struct {
	NumNodes                   int
	VolumeL                    float64
	VolumeFixed                bool
	UAkJPerHC                  float64
	FittingsUAkJPerHC          float64
	InletHeightNode            int
	Inlet2HeightNode           int
	MixesOnDraw                bool
	MixBelowFraction           float64
	DoInversionMixing          bool
	DoConduction               bool
	HasHeatExchanger           bool
	HeatExchangerEffectiveness float64
	InitialTempC               float64
}

// Tank owns the node temperature vector and the per-step accumulators
// produced by advancing it.
type Tank struct {
	cfg   Config
	calib calibration.Constants
	rep   report.Reporter

	nodes       []float64
	nodeVolumeL float64

	// Per-step accumulators, reset by BeginStep.
	StandbyLossKJ float64
	OutletTempC   float64
}

// New builds a Tank, seeding every node to cfg.InitialTempC. It returns a
// *herr.ConfigError if the configuration is invalid per spec.md §3's Tank
// invariants (N >= 1, volume_L > 0).
func New(cfg Config, calib calibration.Constants, rep report.Reporter) (*Tank, error) {
	if cfg.NumNodes < 1 {
		return nil, herr.NewConfigError("num_nodes", "must be >= 1")
	}
	if cfg.VolumeL <= 0 {
		return nil, herr.NewConfigError("volume_l", "must be > 0")
	}
	if cfg.UAkJPerHC < 0 || cfg.FittingsUAkJPerHC < 0 {
		return nil, herr.NewConfigError("ua", "must be non-negative")
	}
	if rep == nil {
		rep = report.Nop{}
	}
	if cfg.MixBelowFraction <= 0 {
		cfg.MixBelowFraction = 1.0 / 3.0
	}
	t := &Tank{
		cfg:         cfg,
		calib:       calib,
		rep:         rep,
		nodes:       make([]float64, cfg.NumNodes),
		nodeVolumeL: cfg.VolumeL / float64(cfg.NumNodes),
	}
	for i := range t.nodes {
		if !isFinite(cfg.InitialTempC) {
			return nil, herr.NewConfigError("initial_temp_c", "must be finite")
		}
		t.nodes[i] = cfg.InitialTempC
	}
	return t, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NumNodes returns the node count N.
func (t *Tank) NumNodes() int { return len(t.nodes) }

// NodeTemps returns a defensive copy of the current node temperature
// vector, index 0 at the bottom.
func (t *Tank) NodeTemps() []float64 {
	cp := make([]float64, len(t.nodes))
	copy(cp, t.nodes)
	return cp
}

// NodeTemp returns the temperature of node i.
func (t *Tank) NodeTemp(i int) float64 { return t.nodes[i] }

// VolumeL returns the total tank volume.
func (t *Tank) VolumeL() float64 { return t.cfg.VolumeL }

// radiusM derives the tank radius from volume and the fixed aspect ratio:
// vol = pi * r^2 * h, h = AspectRatio * r.
func (t *Tank) radiusM() float64 {
	volM3 := t.cfg.VolumeL / 1000.0
	return math.Cbrt(volM3 / (math.Pi * t.calib.AspectRatio))
}

func (t *Tank) heightM() float64 {
	return t.calib.AspectRatio * t.radiusM()
}

// BeginStep resets the per-step accumulators. The Controller/Stepper calls
// this once at the start of each step, before UpdateNodes.
func (t *Tank) BeginStep() {
	t.StandbyLossKJ = 0
	t.OutletTempC = math.NaN()
}

// UpdateNodes advances the tank for one step under a draw and standby
// losses, without any heat-source input. drawVolumeL and draw2VolumeL are
// non-negative; draw2VolumeL <= drawVolumeL. stepSeconds is the step
// duration (conventionally 60).
func (t *Tank) UpdateNodes(drawVolumeL, inletTC, ambientTC, draw2VolumeL, inlet2TC, stepSeconds float64) error {
	if draw2VolumeL > drawVolumeL {
		return herr.NewBoundaryError("update_nodes", "draw2 > draw")
	}
	if !isFinite(inletTC) || !isFinite(ambientTC) || !isFinite(inlet2TC) {
		return herr.NewBoundaryError("update_nodes", "non-finite boundary temperature")
	}

	if t.cfg.HasHeatExchanger {
		t.drawHeatExchanger(drawVolumeL, inletTC)
	} else {
		t.drawDisplacement(drawVolumeL, inletTC, draw2VolumeL, inlet2TC)
	}

	t.applyStandbyLoss(ambientTC, stepSeconds/3600.0)

	if t.cfg.DoConduction {
		if err := t.applyConduction(stepSeconds); err != nil {
			return err
		}
	}

	if t.cfg.DoInversionMixing {
		t.MixInversions()
	} else if top, bottom := t.nodes[len(t.nodes)-1], t.nodes[0]; top < bottom {
		t.rep.Warnf("tank: top node (%.3fC) cooler than bottom node (%.3fC) after step", top, bottom)
	}

	return nil
}

// drawDisplacement implements spec.md §4.1's plug-flow displacement draw.
func (t *Tank) drawDisplacement(drawVolumeL, inletTC, draw2VolumeL, inlet2TC float64) {
	if drawVolumeL <= 0 {
		t.OutletTempC = t.nodes[len(t.nodes)-1]
		return
	}

	n := len(t.nodes)
	v := drawVolumeL / t.nodeVolumeL
	whole := int(math.Floor(v))
	frac := v - float64(whole)
	if whole > n {
		whole = n
		frac = 0
	}

	// Outlet temperature: mass-weighted mean of the nodes expelled off the
	// top, or just the top node's temperature when less than one node is
	// drawn.
	if v <= 1.0 {
		t.OutletTempC = t.nodes[n-1]
	} else {
		sum, count := 0.0, 0.0
		for i := 0; i < whole && i < n; i++ {
			sum += t.nodes[n-1-i]
			count++
		}
		if frac > 0 && whole < n {
			sum += frac * t.nodes[n-1-whole]
			count += frac
		}
		if count > 0 {
			t.OutletTempC = sum / count
		} else {
			t.OutletTempC = t.nodes[n-1]
		}
	}

	// Blended inlet temperature for the overwritten bottom band. When the
	// two inlets target the same node band (the common tempering-valve
	// case) their flows are mixed before entering the tank.
	blendedInletC := inletTC
	if drawVolumeL > 0 && draw2VolumeL > 0 && t.cfg.Inlet2HeightNode == t.cfg.InletHeightNode {
		blendedInletC = ((drawVolumeL-draw2VolumeL)*inletTC + draw2VolumeL*inlet2TC) / drawVolumeL
	}

	// Shift nodes upward by `whole` positions; the lowest `whole` nodes
	// become inlet water.
	if whole > 0 {
		for i := n - 1; i >= whole; i-- {
			t.nodes[i] = t.nodes[i-whole]
		}
		for i := 0; i < whole && i < n; i++ {
			t.nodes[i] = blendedInletC
		}
	}

	// Partial-node blend at the fractional boundary.
	if frac > 0 && whole < n {
		upper := t.nodes[whole]
		t.nodes[whole] = frac*blendedInletC + (1-frac)*upper
	}

	// A distinct second inlet height (e.g. an externally heated loop
	// return blended in above the bottom band) nudges that single node
	// toward inlet2TC in proportion to the fraction of its volume that is
	// inlet2 flow.
	if draw2VolumeL > 0 && t.cfg.Inlet2HeightNode != t.cfg.InletHeightNode &&
		t.cfg.Inlet2HeightNode >= 0 && t.cfg.Inlet2HeightNode < n {
		idx := t.cfg.Inlet2HeightNode
		frac2 := draw2VolumeL / t.nodeVolumeL
		if frac2 > 1 {
			frac2 = 1
		}
		t.nodes[idx] = frac2*inlet2TC + (1-frac2)*t.nodes[idx]
	}

	if t.cfg.MixesOnDraw {
		t.mixBottomOnDraw()
	}
}

// mixBottomOnDraw averages the bottom floor(N*MixBelowFraction) nodes
// toward their mean by a fixed MixBelowFactor, independent of the
// configurable MixBelowFraction (which only selects node count). Grounded
// on original_source/src/Tank.cc's mixNodes(0, mixedBelowNode, 1./3.).
func (t *Tank) mixBottomOnDraw() {
	n := len(t.nodes)
	mixBelowNode := int(math.Floor(float64(n) * t.cfg.MixBelowFraction))
	if mixBelowNode < 2 {
		return
	}
	if mixBelowNode > n {
		mixBelowNode = n
	}
	t.mixNodes(0, mixBelowNode, t.calib.MixBelowFactor)
}

// mixNodes moves the nodes [lo, hi) a factor (0..1) of the way toward
// their mass-weighted mean (all nodes have equal volume, so this is a
// plain mean).
func (t *Tank) mixNodes(lo, hi int, factor float64) {
	if hi <= lo {
		return
	}
	sum := 0.0
	for i := lo; i < hi; i++ {
		sum += t.nodes[i]
	}
	mean := sum / float64(hi-lo)
	for i := lo; i < hi; i++ {
		t.nodes[i] += factor * (mean - t.nodes[i])
	}
}

// drawHeatExchanger implements the no-displacement heat-exchanger draw
// mode: draw water flows node-by-node from bottom to top, exchanging heat
// with each node at HeatExchangerEffectiveness, warming as it rises.
func (t *Tank) drawHeatExchanger(drawVolumeL, inletTC float64) {
	if drawVolumeL <= 0 {
		t.OutletTempC = t.nodes[len(t.nodes)-1]
		return
	}
	eff := t.cfg.HeatExchangerEffectiveness
	if eff <= 0 {
		eff = 1.0
	}
	drawCp := t.calib.CpWaterKJperKgC * t.calib.DensityWaterKgPerL * drawVolumeL
	nodeCp := t.calib.CpWaterKJperKgC * t.calib.DensityWaterKgPerL * t.nodeVolumeL

	streamT := inletTC
	for i := 0; i < len(t.nodes); i++ {
		maxQ := eff * math.Min(drawCp, nodeCp) * (t.nodes[i] - streamT)
		if maxQ > 0 {
			dNode := maxQ / nodeCp
			dStream := maxQ / drawCp
			t.nodes[i] -= dNode
			streamT += dStream
		}
	}
	t.OutletTempC = streamT
}

// applyStandbyLoss implements spec.md §4.1's standby-loss apportionment:
// a fixed top/bottom fraction derived from tank geometry, plus sides and
// fittings spread evenly across all nodes.
func (t *Tank) applyStandbyLoss(ambientTC, stepHours float64) {
	radius := t.radiusM()
	height := t.heightM()
	rTop := radius / (2 * (height + radius))
	rSide := height / (height + radius)

	n := len(t.nodes)
	nodeCp := t.calib.CpWaterKJperKgC * t.calib.DensityWaterKgPerL * t.nodeVolumeL

	lossTopKJ := rTop * t.cfg.UAkJPerHC * (t.nodes[n-1] - ambientTC) * stepHours
	lossBottomKJ := rTop * t.cfg.UAkJPerHC * (t.nodes[0] - ambientTC) * stepHours
	t.nodes[n-1] -= lossTopKJ / nodeCp
	t.nodes[0] -= lossBottomKJ / nodeCp
	t.StandbyLossKJ += lossTopKJ + lossBottomKJ

	sideUA := rSide * t.cfg.UAkJPerHC
	fittingsUA := t.cfg.FittingsUAkJPerHC
	for i := 0; i < n; i++ {
		lossKJ := (sideUA/float64(n) + fittingsUA/float64(n)) * (t.nodes[i] - ambientTC) * stepHours
		t.nodes[i] -= lossKJ / nodeCp
		t.StandbyLossKJ += lossKJ
	}
}

// applyConduction implements the finite-difference conduction step.
// Requires the dimensionless diffusivity tau <= 1 for stability.
func (t *Tank) applyConduction(stepSeconds float64) error {
	n := len(t.nodes)
	if n < 3 {
		return nil
	}
	hNode := t.heightM() / float64(n)
	tau := 2 * t.calib.KWaterWPerMC /
		((t.calib.CpWaterKJperKgC * 1000.0) * (t.calib.DensityWaterKgPerL * 1000.0) * hNode * hNode) * stepSeconds
	if tau > 1.0 {
		return herr.NewBoundaryError("conduction", "stability violated: tau > 1")
	}

	next := make([]float64, n)
	copy(next, t.nodes)
	next[0] = t.nodes[0] + tau*(t.nodes[1]-t.nodes[0])
	next[n-1] = t.nodes[n-1] + tau*(t.nodes[n-2]-t.nodes[n-1])
	for i := 1; i < n-1; i++ {
		next[i] = t.nodes[i] + tau*(t.nodes[i-1]+t.nodes[i+1]-2*t.nodes[i])
	}
	t.nodes = next
	return nil
}

// MixInversions repeatedly scans from top to bottom, averaging the
// largest contiguous upper band whose mass-weighted mean exceeds the node
// immediately below it, until no inversion remains.
func (t *Tank) MixInversions() {
	n := len(t.nodes)
	for {
		inverted := false
		for i := n - 1; i > 0; i-- {
			if t.nodes[i] < t.nodes[i-1] {
				inverted = true
				// Expand the band upward from i-1..n-1 while the band
				// mean still exceeds the temperature immediately below.
				lo := i - 1
				for {
					mean := t.bandMean(lo, n)
					if lo == 0 || mean >= t.nodes[lo-1] {
						t.setBand(lo, n, mean)
						break
					}
					lo--
				}
				break
			}
		}
		if !inverted {
			return
		}
	}
}

func (t *Tank) bandMean(lo, hi int) float64 {
	sum := 0.0
	for i := lo; i < hi; i++ {
		sum += t.nodes[i]
	}
	return sum / float64(hi-lo)
}

func (t *Tank) setBand(lo, hi int, v float64) {
	for i := lo; i < hi; i++ {
		t.nodes[i] = v
	}
}

// CheckForInversion reports (without mutating) whether the top node is
// cooler than the bottom node, an out-of-range warning surfaced through
// the Reporter.
func (t *Tank) CheckForInversion() bool {
	n := len(t.nodes)
	if n < 2 {
		return false
	}
	if t.nodes[n-1] < t.nodes[0] {
		t.rep.Warnf("tank: inversion detected, top %.3fC < bottom %.3fC", t.nodes[n-1], t.nodes[0])
		return true
	}
	return false
}

// AverageNodeT returns the unweighted mean node temperature.
func (t *Tank) AverageNodeT() float64 {
	sum := 0.0
	for _, v := range t.nodes {
		sum += v
	}
	return sum / float64(len(t.nodes))
}

// AverageNodeTWeighted returns the tank-side value used by TemperatureBased
// heating logic: node_t[0] or node_t[N-1] for the sentinel distributions,
// otherwise a weighted mean using the distribution resampled onto the
// tank's nodes.
func (t *Tank) AverageNodeTWeighted(dist distribution.Distribution) float64 {
	switch dist.Kind {
	case distribution.BottomOfTank:
		return t.nodes[0]
	case distribution.TopOfTank:
		return t.nodes[len(t.nodes)-1]
	default:
		weights := dist.NodeWeights(len(t.nodes))
		sumW, sumWT := 0.0, 0.0
		for i, w := range weights {
			sumW += w
			sumWT += w * t.nodes[i]
		}
		if sumW <= 0 {
			return t.AverageNodeT()
		}
		return sumWT / sumW
	}
}

// HeatContentKJ returns rho * V * Cp * T_avg.
func (t *Tank) HeatContentKJ() float64 {
	return t.calib.DensityWaterKgPerL * t.cfg.VolumeL * t.calib.CpWaterKJperKgC * t.AverageNodeT()
}

// NthThermocoupleT resamples the node vector into nTCouple equal bands
// and returns the mean of band i.
func (t *Tank) NthThermocoupleT(i, nTCouple int) float64 {
	n := len(t.nodes)
	bandSize := float64(n) / float64(nTCouple)
	lo := int(math.Round(float64(i) * bandSize))
	hi := int(math.Round(float64(i+1) * bandSize))
	if hi <= lo {
		hi = lo + 1
	}
	if hi > n {
		hi = n
	}
	return t.bandMean(lo, hi)
}

// ChargePerNode returns the charge at temperature T relative to
// (mainsT, minUsefulT), clipped to >= 0, per spec.md §4.3.
func ChargePerNode(tempC, mainsC, minUsefulC float64) float64 {
	if minUsefulC == mainsC {
		return 0
	}
	charge := (tempC - mainsC) / (minUsefulC - mainsC)
	if charge < 0 {
		return 0
	}
	return charge
}

// SoCFraction computes the tank's state-of-charge fraction against
// (mainsC, minUsefulC, maxC), per spec.md §4.1/§4.3.
func (t *Tank) SoCFraction(mainsC, minUsefulC, maxC float64) (float64, error) {
	if mainsC >= minUsefulC {
		t.rep.Warnf("tank: mains temperature (%.3fC) >= min useful temperature (%.3fC)", mainsC, minUsefulC)
	}
	if minUsefulC > maxC {
		t.rep.Warnf("tank: min useful temperature (%.3fC) > max temperature (%.3fC)", minUsefulC, maxC)
	}
	maxChargePerNode := ChargePerNode(maxC, mainsC, minUsefulC)
	if maxChargePerNode <= 0 {
		return 0, herr.NewBoundaryError("soc_fraction", "max charge per node is non-positive")
	}
	maxSoC := float64(len(t.nodes)) * maxChargePerNode
	sum := 0.0
	for _, v := range t.nodes {
		sum += ChargePerNode(v, mainsC, minUsefulC)
	}
	return sum / maxSoC, nil
}

// AddHeatAboveNode implements the top-down clamp-and-cascade heat
// distribution algorithm of spec.md §4.2: starting at nodeNum, it finds
// the contiguous equal-temperature band, raises it toward the next
// distinct temperature (or maxHeatToC, whichever is lower), and returns
// any leftover heat that could not be used because the band would exceed
// maxHeatToC.
func (t *Tank) AddHeatAboveNode(qAddKJ float64, nodeNum int, maxHeatToC float64) float64 {
	n := len(t.nodes)
	if nodeNum < 0 || nodeNum >= n || qAddKJ <= 0 {
		return qAddKJ
	}
	nodeCp := t.calib.CpWaterKJperKgC * t.calib.DensityWaterKgPerL * t.nodeVolumeL

	lo := nodeNum
	hi := nodeNum + 1
	// Expand the band upward while nodes above share lo's temperature.
	for hi < n && t.nodes[hi] == t.nodes[lo] {
		hi++
	}

	targetC := maxHeatToC
	if hi < n && t.nodes[hi] < targetC {
		targetC = t.nodes[hi]
	}

	bandSize := hi - lo
	if targetC <= t.nodes[lo] {
		return qAddKJ
	}
	qToTarget := float64(bandSize) * nodeCp * (targetC - t.nodes[lo])

	if qAddKJ <= qToTarget {
		dT := qAddKJ / (float64(bandSize) * nodeCp)
		for i := lo; i < hi; i++ {
			t.nodes[i] += dT
		}
		return 0
	}

	for i := lo; i < hi; i++ {
		t.nodes[i] = targetC
	}
	leftover := qAddKJ - qToTarget

	if hi >= n || targetC >= maxHeatToC {
		return leftover
	}
	return t.AddHeatAboveNode(leftover, hi, maxHeatToC)
}

// AddExtraHeatAboveNode is the unclamped variant used when sizing extra
// capacity: it behaves like AddHeatAboveNode but extrapolates a target
// temperature from the heat available at the top of the tank instead of
// stopping at maxHeatToC.
func (t *Tank) AddExtraHeatAboveNode(qAddKJ float64, nodeNum int) float64 {
	n := len(t.nodes)
	if nodeNum < 0 || nodeNum >= n || qAddKJ <= 0 {
		return qAddKJ
	}
	nodeCp := t.calib.CpWaterKJperKgC * t.calib.DensityWaterKgPerL * t.nodeVolumeL

	lo := nodeNum
	hi := nodeNum + 1
	for hi < n && t.nodes[hi] == t.nodes[lo] {
		hi++
	}
	bandSize := hi - lo

	if hi >= n {
		dT := qAddKJ / (float64(bandSize) * nodeCp)
		for i := lo; i < hi; i++ {
			t.nodes[i] += dT
		}
		return 0
	}

	qToTarget := float64(bandSize) * nodeCp * (t.nodes[hi] - t.nodes[lo])
	if qAddKJ <= qToTarget {
		dT := qAddKJ / (float64(bandSize) * nodeCp)
		for i := lo; i < hi; i++ {
			t.nodes[i] += dT
		}
		return 0
	}
	for i := lo; i < hi; i++ {
		t.nodes[i] = t.nodes[hi]
	}
	return t.AddExtraHeatAboveNode(qAddKJ-qToTarget, hi)
}
