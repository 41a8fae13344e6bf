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

// Package simulator implements the HPWH stepper: the strictly
// single-threaded, synchronous per-minute advance described in spec.md §5,
// scheduling heat sources per §4.3 (VIP-first, companion/backup/follower,
// DR precedence, fractional shut-off) around a Tank.
package simulator

import (
	"hpwhsim/internal/distribution"
	"hpwhsim/internal/heatinglogic"
	"hpwhsim/internal/heatsource"
	"hpwhsim/internal/herr"
	"hpwhsim/internal/report"
	"hpwhsim/internal/tank"
)

// Boundary is one step's external forcing: the draw schedule row and
// ambient conditions of spec.md §6's CSV schedule format.
type Boundary struct {
	StepSeconds    float64
	DrawVolumeL    float64
	Draw2VolumeL   float64
	InletTempC     float64
	Inlet2TempC    float64
	AmbientTempC   float64
	EvaporatorAirC float64
	DR             heatsource.DRSignal
	SetpointC      float64 // 0 means "keep current setpoint"
	MainsKnown     bool
	MainsTempC     float64
}

// SourceResult records one heat source's per-step accounting for the
// output row of spec.md §6.
type SourceResult struct {
	ID              string
	IsOn            bool
	RuntimeMin      float64
	InputKJ         float64
	OutputKJ        float64
	LockedOut       bool
}

// StepResult is the per-step output row.
type StepResult struct {
	AmbientTempC float64
	InletTempC   float64
	DrawGal      float64
	Sources      []SourceResult
	NodeTempsC   []float64
}

// HPWH is the simulation context: a Tank plus its heat sources, wired with
// their resolved cross-links. It implements heatinglogic.Context so that
// HeatingLogic and HeatSource predicates can evaluate against it directly.
type HPWH struct {
	tank       *tank.Tank
	sources    []*heatsource.HeatSource
	setpointC  float64
	rep        report.Reporter
	mainsKnown bool
	mainsC     float64
}

// New builds an HPWH from a pre-built Tank and its heat sources, in
// engagement-priority order (index 0 is evaluated first).
func New(t *tank.Tank, sources []*heatsource.HeatSource, setpointC float64, rep report.Reporter) (*HPWH, error) {
	if t == nil {
		return nil, herr.NewConfigError("tank", "required")
	}
	if rep == nil {
		rep = report.Nop{}
	}
	for i, s := range sources {
		if s.BackupIdx >= len(sources) || s.CompanionIdx >= len(sources) || s.FollowedByIdx >= len(sources) {
			return nil, herr.NewConfigError("heat_source_configurations", "cross-source link index out of range")
		}
		if s.BackupIdx == i || s.CompanionIdx == i || s.FollowedByIdx == i {
			return nil, herr.NewConfigError("heat_source_configurations", "heat source cannot link to itself")
		}
	}
	return &HPWH{tank: t, sources: sources, setpointC: setpointC, rep: rep}, nil
}

// Tank returns the underlying tank as a heatinglogic.TankReader.
func (h *HPWH) Tank() heatinglogic.TankReader { return h.tank }

// SetpointC returns the active setpoint.
func (h *HPWH) SetpointC() float64 { return h.setpointC }

// SetSetpointC updates the active setpoint (e.g. from a schedule override).
func (h *HPWH) SetSetpointC(c float64) { h.setpointC = c }

// MainsTempC returns the live mains inlet temperature, when the current
// step's boundary provided one.
func (h *HPWH) MainsTempC() (float64, bool) { return h.mainsC, h.mainsKnown }

// TankState exposes the underlying tank for callers (e.g. the CSV writer)
// that need the raw node vector, bypassing the narrower TankReader view.
func (h *HPWH) TankState() *tank.Tank { return h.tank }

// Sources returns the heat sources in engagement-priority order.
func (h *HPWH) Sources() []*heatsource.HeatSource { return h.sources }

// Step advances the simulation by one boundary row, in the order fixed by
// spec.md §5: tank draw & losses, controller decisions, source heating in
// engagement order, inversion mixing, accumulator finalization.
func (h *HPWH) Step(b Boundary) (StepResult, error) {
	if b.SetpointC > 0 {
		h.setpointC = b.SetpointC
	}
	h.mainsKnown = b.MainsKnown
	h.mainsC = b.MainsTempC

	h.tank.BeginStep()
	for _, s := range h.sources {
		s.BeginStep()
	}

	if err := h.tank.UpdateNodes(b.DrawVolumeL, b.InletTempC, b.AmbientTempC, b.Draw2VolumeL, b.Inlet2TempC, b.StepSeconds); err != nil {
		return StepResult{}, err
	}

	for _, s := range h.sources {
		s.UpdateLockout(b.AmbientTempC)
	}

	if err := h.runControllerSchedule(b); err != nil {
		return StepResult{}, err
	}

	h.tank.MixInversions()
	h.tank.CheckForInversion()

	result := StepResult{
		AmbientTempC: b.AmbientTempC,
		InletTempC:   b.InletTempC,
		DrawGal:      b.DrawVolumeL / 3.785411784,
		NodeTempsC:   h.tank.NodeTemps(),
	}
	for _, s := range h.sources {
		result.Sources = append(result.Sources, SourceResult{
			ID:         s.Cfg.ID,
			IsOn:       s.IsOn,
			RuntimeMin: s.RuntimeMin,
			InputKJ:    s.EnergyInputKWh * 3600.0,
			OutputKJ:   s.EnergyOutputKWh * 3600.0,
			LockedOut:  s.LockedOut(),
		})
	}
	return result, nil
}

// runControllerSchedule implements the source-scheduling pass of
// spec.md §4.3: VIP sources are considered first, then the remaining
// sources in priority order; an engaged source's backup, companion, and
// follower links are evaluated against the same step's tank state.
func (h *HPWH) runControllerSchedule(b Boundary) error {
	order := h.schedulingOrder()
	for _, idx := range order {
		s := h.sources[idx]
		if b.DR.Blocks() && !b.DR.Forces(s.Cfg.Variant) {
			continue
		}

		if !s.IsOn {
			should, err := s.ShouldHeat(h)
			if err != nil {
				return err
			}
			if b.DR.Forces(s.Cfg.Variant) {
				should = true
			}
			if !should {
				continue
			}
			s.IsOn = true
		}

		if err := h.runSource(s, b); err != nil {
			return err
		}

		if !s.IsOn && s.BackupIdx >= 0 {
			backup := h.sources[s.BackupIdx]
			if !backup.IsOn {
				backup.IsOn = true
				if err := h.runSource(backup, b); err != nil {
					return err
				}
			}
		}

		if s.IsOn && s.CompanionIdx >= 0 {
			companion := h.sources[s.CompanionIdx]
			if heatsource.EngageCompanion(companion, b.DR) {
				companion.IsOn = true
				if err := h.runSource(companion, b); err != nil {
					return err
				}
			}
		}

		if !s.IsOn && s.FollowedByIdx >= 0 {
			follower := h.sources[s.FollowedByIdx]
			if !follower.IsOn {
				follower.IsOn = true
				if err := h.runSource(follower, b); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// schedulingOrder returns source indices with VIP sources first, each
// group in its configured priority order.
func (h *HPWH) schedulingOrder() []int {
	order := make([]int, 0, len(h.sources))
	for i, s := range h.sources {
		if s.Cfg.IsVIP {
			order = append(order, i)
		}
	}
	for i, s := range h.sources {
		if !s.Cfg.IsVIP {
			order = append(order, i)
		}
	}
	return order
}

// runSource runs one engaged source for the step: computes its available
// capacity, scales the step by the source's FractToMeetComparisonExternal
// estimate (taken from the tank state before heating), deposits heat into
// the tank, and updates its accumulators. Heat deposited within the scaled
// step is not clamped further, so a source can end the step past its
// shut-off condition. It turns the source off when the fraction is below 1
// or its shut-off condition now holds.
func (h *HPWH) runSource(s *heatsource.HeatSource, b Boundary) error {
	inputPowerW, capacityW := s.EvaluateCapacity(h.tank, b.EvaporatorAirC)

	fract := s.FractToMeetComparisonExternal(h)
	stepMin := b.StepSeconds / 60.0 * fract

	capacityKJ := capacityW * (stepMin * 60.0) / 1000.0
	inputKJ := inputPowerW * (stepMin * 60.0) / 1000.0
	stepSeconds := stepMin * 60.0

	var leftover float64
	if s.Cfg.IsExternal {
		leftover = s.HeatExternal(h.tank, capacityW, stepSeconds, s.Cfg.MaxSetpointC)
	} else {
		leftover = s.Heat(h.tank, capacityKJ, s.Cfg.MaxSetpointC)
	}
	usedKJ := capacityKJ - leftover

	if s.Cfg.IsExternal {
		h.tank.MixInversions()
	}

	s.RuntimeMin += stepMin
	s.EnergyInputKWh += inputKJ / 3600.0
	s.EnergyOutputKWh += usedKJ / 3600.0

	if fract < 1.0 || s.ShutsOff(h) {
		s.IsOn = false
	}
	return nil
}

// WeightedAverageTemp exposes Tank.AverageNodeTWeighted via the
// distribution package, used by callers (e.g. CSV summaries) that report
// a zone temperature outside of a HeatingLogic evaluation.
func (h *HPWH) WeightedAverageTemp(d distribution.Distribution) float64 {
	return h.tank.AverageNodeTWeighted(d)
}
