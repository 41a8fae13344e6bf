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

// Package heatsource implements the Compressor and Resistance heat-source
// variants of spec.md §3/§4.2: their control contract (should_heat,
// shuts_off, heat), and the compressor's performance-map lookup and
// external flow-loop model.
package heatsource

import (
	"math"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/distribution"
	"hpwhsim/internal/heatinglogic"
	"hpwhsim/internal/herr"
	"hpwhsim/internal/tank"
)

// Variant discriminates the two HeatSource kinds.
type Variant int

const (
	Compressor Variant = iota
	Resistance
)

// DRSignal is the per-step demand-response status code of spec.md §6: 0
// blocks turn-on, 1 allows normal evaluation, bit 1 (value 2) forces
// compressor engagement, bit 2 (value 4) forces resistance engagement.
type DRSignal int

const (
	DRBlock             DRSignal = 0
	DRAllow             DRSignal = 1
	DRForceCompressorBit DRSignal = 2
	DRForceResistorBit   DRSignal = 4
)

func (dr DRSignal) Blocks() bool { return dr == DRBlock }

func (dr DRSignal) Forces(v Variant) bool {
	if v == Compressor {
		return dr&DRForceCompressorBit != 0
	}
	return dr&DRForceResistorBit != 0
}

// Config is the build-time description of a HeatSource.
type Config struct {
	ID               string
	Variant          Variant
	HeatDistribution distribution.Distribution

	TurnOnLogic  []heatinglogic.Logic
	ShutOffLogic []heatinglogic.Logic
	StandbyLogic *heatinglogic.Logic

	IsVIP bool

	// Cross-source links, by catalog ID. Resolved to indices by the model
	// package at build time.
	BackupID      string
	CompanionID   string
	FollowedByID  string

	MinAmbientC               float64
	MaxAmbientC               float64
	AmbientLockoutHysteresisC float64
	MaxSetpointC              float64

	IsExternal               bool
	MultiPass                bool
	ExternalInletHeightNode  int
	ExternalOutletHeightNode int
	FlowRateLPerMin          float64

	PerfMap *PerformanceMap // Compressor only

	NameplatePowerW float64 // Resistance only
}

// HeatSource is one heating element: its config, resolved cross-links,
// retained on/off state, and per-step accumulators.
type HeatSource struct {
	Cfg   Config
	calib calibration.Constants

	// Resolved indices into the owning HPWH's source slice; -1 if unset.
	BackupIdx     int
	CompanionIdx  int
	FollowedByIdx int

	IsOn      bool
	lockedOut bool

	RuntimeMin      float64
	EnergyInputKWh  float64
	EnergyOutputKWh float64
}

// New builds a HeatSource. It validates the invariants of spec.md §3: a
// positive heat-distribution weight, and (for a Compressor) a non-nil
// performance map.
func New(cfg Config, calib calibration.Constants) (*HeatSource, error) {
	if !cfg.HeatDistribution.IsValid() {
		return nil, herr.NewConfigError("heat_distribution", "sum of weights must be positive")
	}
	if cfg.Variant == Compressor && cfg.PerfMap == nil {
		return nil, herr.NewConfigError("performance_map", "compressor requires a performance map")
	}
	if cfg.Variant == Resistance && cfg.NameplatePowerW <= 0 {
		return nil, herr.NewConfigError("nameplate_power_w", "resistance element requires positive power")
	}
	for _, l := range cfg.TurnOnLogic {
		if err := l.IsValid(); err != nil {
			return nil, err
		}
	}
	for _, l := range cfg.ShutOffLogic {
		if err := l.IsValid(); err != nil {
			return nil, err
		}
	}
	return &HeatSource{
		Cfg:           cfg,
		calib:         calib,
		BackupIdx:     -1,
		CompanionIdx:  -1,
		FollowedByIdx: -1,
	}, nil
}

// BeginStep resets the per-step accumulators. Is_on is intentionally not
// reset; it is retained between steps per spec.md §3.
func (h *HeatSource) BeginStep() {
	h.RuntimeMin = 0
	h.EnergyInputKWh = 0
	h.EnergyOutputKWh = 0
}

// IsEngaged reports whether the source is currently on.
func (h *HeatSource) IsEngaged() bool { return h.IsOn }

// UpdateLockout applies ambient lockout hysteresis for compressors,
// returning the new locked-out state. A compressor that was not locked
// out locks out once ambient drops below MinAmbientC-hysteresis (or rises
// above MaxAmbientC+hysteresis, if MaxAmbientC is set); it only unlocks
// once ambient rises back above MinAmbientC+hysteresis (or drops back
// below MaxAmbientC-hysteresis). Values inside the hysteresis band retain
// the prior state.
func (h *HeatSource) UpdateLockout(ambientC float64) bool {
	if h.Cfg.Variant != Compressor {
		return false
	}
	hyst := h.Cfg.AmbientLockoutHysteresisC
	minSet := h.Cfg.MinAmbientC != 0 || hyst != 0
	maxSet := h.Cfg.MaxAmbientC != 0
	tooCold := minSet && ambientC < h.Cfg.MinAmbientC-hyst
	tooHot := maxSet && ambientC > h.Cfg.MaxAmbientC+hyst
	warmEnough := !minSet || ambientC > h.Cfg.MinAmbientC+hyst
	coolEnough := !maxSet || ambientC < h.Cfg.MaxAmbientC-hyst
	if tooCold || tooHot {
		h.lockedOut = true
	} else if warmEnough && coolEnough {
		h.lockedOut = false
	}
	return h.lockedOut
}

// LockedOut reports the ambient-lockout state computed by UpdateLockout.
func (h *HeatSource) LockedOut() bool { return h.lockedOut }

// ShouldHeat evaluates the turn-on predicates, the standby-check rule of
// spec.md §4.2 ("shouldHeat"), and the shuts_off override.
func (h *HeatSource) ShouldHeat(ctx heatinglogic.Context) (bool, error) {
	if h.lockedOut {
		return false, nil
	}
	shouldEngage := false
	for _, logic := range h.Cfg.TurnOnLogic {
		holds, err := logic.Holds(ctx)
		if err != nil {
			return false, err
		}
		if !holds {
			continue
		}
		if logic.Kind == heatinglogic.TemperatureBased && logic.Temp.ChecksStandby && h.Cfg.StandbyLogic != nil {
			standbyValue, err := h.Cfg.StandbyLogic.GetTankValue(ctx)
			if err != nil {
				return false, err
			}
			standbyRef := h.Cfg.StandbyLogic.GetComparisonValue(ctx)
			if !logic.Temp.Comparator.Compare(standbyValue, standbyRef) {
				continue
			}
		}
		shouldEngage = true
		break
	}
	if shouldEngage && h.ShutsOff(ctx) {
		shouldEngage = false
	}
	return shouldEngage, nil
}

// ShutsOff reports whether any shut-off predicate holds, or the bottom
// node is already at or above setpoint (an unconditional override that
// bypasses the shut-off logic set).
func (h *HeatSource) ShutsOff(ctx heatinglogic.Context) bool {
	t := ctx.Tank()
	if t.NodeTemp(0) >= ctx.SetpointC() {
		return true
	}
	for _, logic := range h.Cfg.ShutOffLogic {
		holds, err := logic.Holds(ctx)
		if err == nil && holds {
			return true
		}
	}
	return false
}

// FractToMeetComparisonExternal returns the minimum fraction, across all
// shut-off predicates, of one more node-equivalent of heating that would
// exactly meet the shut-off condition. Defaults to 1.0 with no shut-off
// logic.
func (h *HeatSource) FractToMeetComparisonExternal(ctx heatinglogic.Context) float64 {
	if len(h.Cfg.ShutOffLogic) == 0 {
		return 1.0
	}
	minFrac := 1.0
	for _, logic := range h.Cfg.ShutOffLogic {
		frac, err := logic.FractToMeetComparisonExternal(ctx)
		if err != nil {
			continue
		}
		if frac < minFrac {
			minFrac = frac
		}
	}
	return minFrac
}

// CalcHeatDist resamples Cfg.HeatDistribution onto the tank's nodes and
// normalizes the resulting weights to sum to 1.
func (h *HeatSource) CalcHeatDist(numNodes int) []float64 {
	weights := h.Cfg.HeatDistribution.NodeWeights(numNodes)
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return weights
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// Heat deposits capKJ of heat into t according to Cfg.HeatDistribution,
// from the top of the distribution downward, clamping each node at
// maxSetpointC and cascading any leftover to the next lower band per
// spec.md §4.2. It returns the heat that could not be placed because
// every node it covers is already at maxSetpointC.
func (h *HeatSource) Heat(t *tank.Tank, capKJ, maxSetpointC float64) float64 {
	weights := h.CalcHeatDist(t.NumNodes())
	leftover := 0.0
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] <= 0 {
			continue
		}
		nodeCap := capKJ*weights[i] + leftover
		leftover = t.AddHeatAboveNode(nodeCap, i, maxSetpointC)
	}
	return leftover
}

// HeatExternal deposits capacityW's worth of heating into t for an
// external/multi-pass condenser-loop source, in place of Heat's top-down
// weighted cascade: it circulates Cfg.FlowRateLPerMin through the loop,
// raises it by externalFlowStepC each pass, and returns the loop water at
// Cfg.ExternalOutletHeightNode. A MultiPass unit's flow recirculates
// through the tank's full volume multiple times within one step, so the
// step is split into that many passes, each reusing the same per-pass
// Delta-T. It returns the heat that could not be placed because the
// outlet node's band is already at maxSetpointC.
func (h *HeatSource) HeatExternal(t *tank.Tank, capacityW, stepSeconds, maxSetpointC float64) float64 {
	if h.Cfg.FlowRateLPerMin <= 0 {
		return h.Heat(t, capacityW*stepSeconds/1000.0, maxSetpointC)
	}

	passes := 1
	passSeconds := stepSeconds
	if h.Cfg.MultiPass {
		passVolumeL := h.Cfg.FlowRateLPerMin * stepSeconds / 60.0
		if passVolumeL > 0 && t.VolumeL() > 0 {
			passes = int(math.Ceil(t.VolumeL() / passVolumeL))
		}
		if passes < 1 {
			passes = 1
		}
		passSeconds = stepSeconds / float64(passes)
	}

	massPerPassKg := h.Cfg.FlowRateLPerMin * h.calib.DensityWaterKgPerL / 60.0 * passSeconds

	outletNode := h.Cfg.ExternalOutletHeightNode
	leftover := 0.0
	for i := 0; i < passes; i++ {
		deltaTC := h.externalFlowStepC(capacityW, passSeconds)
		passKJ := massPerPassKg * h.calib.CpWaterKJperKgC * deltaTC
		leftover = t.AddHeatAboveNode(passKJ+leftover, outletNode, maxSetpointC)
	}
	return leftover
}

// GetTankTemp returns the tank temperature this source sees, weighted by
// its own heat distribution (the condenser-water temperature condenserTempC
// uses for every compressor except an external one with a valid inlet node).
func (h *HeatSource) GetTankTemp(t *tank.Tank) float64 {
	return t.AverageNodeTWeighted(h.Cfg.HeatDistribution)
}

// condenserTempC returns the water temperature the compressor's condenser
// sees: the external inlet node's temperature for an external/multi-pass
// unit, otherwise the heat-distribution-weighted tank temperature.
func (h *HeatSource) condenserTempC(t *tank.Tank) float64 {
	if h.Cfg.IsExternal && h.Cfg.ExternalInletHeightNode >= 0 && h.Cfg.ExternalInletHeightNode < t.NumNodes() {
		return t.NodeTemp(h.Cfg.ExternalInletHeightNode)
	}
	return h.GetTankTemp(t)
}

// EvaluateCapacity returns the electrical input power and heating capacity
// available this step. A Compressor looks these up on its performance map
// at (evaporator-air T, condenser-water T); a Resistance element runs at
// its nameplate power with unit efficiency.
func (h *HeatSource) EvaluateCapacity(t *tank.Tank, evaporatorAirC float64) (inputPowerW, capacityW float64) {
	if h.Cfg.Variant == Resistance {
		return h.Cfg.NameplatePowerW, h.Cfg.NameplatePowerW
	}
	return h.Cfg.PerfMap.Lookup(evaporatorAirC, h.condenserTempC(t))
}

// externalFlowStepC returns the temperature rise of one pass through an
// external/multi-pass condenser loop: capacityW applied to a stream of
// Cfg.FlowRateLPerMin for stepSeconds, Delta-T = Q / (mdot * Cp).
func (h *HeatSource) externalFlowStepC(capacityW, stepSeconds float64) float64 {
	if h.Cfg.FlowRateLPerMin <= 0 {
		return 0
	}
	massKgPerS := h.Cfg.FlowRateLPerMin * h.calib.DensityWaterKgPerL / 60.0
	if massKgPerS <= 0 {
		return 0
	}
	capacityKJ := capacityW * stepSeconds / 1000.0
	massKg := massKgPerS * stepSeconds
	return capacityKJ / (massKg * h.calib.CpWaterKJperKgC)
}

// SetCondensity replaces Cfg.HeatDistribution with the weighted
// distribution compressed from a dense per-node condensity array, for
// legacy-style models that specify condensity instead of a weighted
// distribution. Mirrors HPWHHeatSource.cc's setCondensity.
func (h *HeatSource) SetCondensity(condensity []float64) error {
	dist, err := distribution.FromCondensity(condensity)
	if err != nil {
		return err
	}
	h.Cfg.HeatDistribution = dist
	return nil
}

// EngageCompanion reports whether Cfg.CompanionID should also be engaged
// this step, per spec.md §4.3's engagement rule: the companion must not
// already be on, and a blocking DR signal keeps a non-resistance companion
// off. The companion's own shut-off predicates and ambient lockout are not
// checked here.
func EngageCompanion(companion *HeatSource, dr DRSignal) bool {
	if companion == nil {
		return false
	}
	if companion.IsOn {
		return false
	}
	if dr.Blocks() && companion.Cfg.Variant != Resistance {
		return false
	}
	return true
}
