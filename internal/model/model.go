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

// Package model loads the HPWHSimInput JSON document of spec.md §6 and
// builds a runnable *simulator.HPWH from it: tank geometry, heat-source
// configurations, and the cross-source id references (backup, companion,
// followed_by) resolved to indices with cycle detection.
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/distribution"
	"hpwhsim/internal/heatinglogic"
	"hpwhsim/internal/heatsource"
	"hpwhsim/internal/herr"
	"hpwhsim/internal/report"
	"hpwhsim/internal/simulator"
	"hpwhsim/internal/tank"
)

// SystemType discriminates the two system layouts named in spec.md §6.
type SystemType string

const (
	Integrated SystemType = "INTEGRATED"
	Central    SystemType = "CENTRAL"
)

// Input is the top-level HPWHSimInput document.
type Input struct {
	SystemType         SystemType      `json:"system_type"`
	NumberOfNodes      int             `json:"number_of_nodes"`
	StandardSetpointC  float64         `json:"standard_setpoint"`
	FixedVolume        bool            `json:"fixed_volume"`
	IntegratedSystem   *SystemPayload  `json:"integrated_system,omitempty"`
	CentralSystem      *SystemPayload  `json:"central_system,omitempty"`
}

// SystemPayload holds the tank and heat-source configuration shared by
// both system types.
type SystemPayload struct {
	Tank                   TankInput          `json:"tank"`
	HeatSourceConfigurations []HeatSourceInput `json:"heat_source_configurations"`
}

// TankInput is the JSON tank payload.
type TankInput struct {
	VolumeL                       float64 `json:"volume_l"`
	UAkJPerHC                     float64 `json:"ua"`
	FittingsUAkJPerHC             float64 `json:"fittings_ua"`
	DiameterM                     float64 `json:"diameter"`
	BottomFractionMixingOnDraw    float64 `json:"bottom_fraction_of_tank_mixing_on_draw"`
	HeatExchangerEffectiveness    float64 `json:"heat_exchanger_effectiveness"`
	InitialTempC                  *float64 `json:"initial_temp_c,omitempty"`
	InletHeightNode                int     `json:"inlet_height_node,omitempty"`
	DoInversionMixing              *bool   `json:"do_inversion_mixing,omitempty"`
	DoConduction                   *bool   `json:"do_conduction,omitempty"`
}

// WeightedDistribution is the JSON shape of a sparse weighted distribution.
type WeightedDistribution struct {
	NormalizedHeight []float64 `json:"normalized_height"`
	Weight           []float64 `json:"weight"`
}

// PerformanceMapInput is the JSON shape of a compressor performance map.
type PerformanceMapInput struct {
	EvaporatorAxisC []float64   `json:"evaporator_axis_c"`
	CondenserAxisC  []float64   `json:"condenser_axis_c"`
	InputPowerW     [][]float64 `json:"input_power_w"`
	CapacityW       [][]float64 `json:"capacity_w"`
}

// HeatSourceInput is one entry in heat_source_configurations.
type HeatSourceInput struct {
	ID                        string                `json:"id"`
	HeatSourceType            string                `json:"heat_source_type"` // "COMPRESSION" | "RESISTANCE"
	Condensity                []float64             `json:"condensity,omitempty"`
	HeatDistribution          *WeightedDistribution `json:"heat_distribution,omitempty"`
	TurnOnLogic               []LogicInput          `json:"turn_on_logic"`
	ShutOffLogic              []LogicInput          `json:"shut_off_logic"`
	StandbyLogic              *LogicInput           `json:"standby_logic,omitempty"`
	IsVIP                     bool                  `json:"is_vip"`
	BackupSourceID            string                `json:"backup_source_id,omitempty"`
	CompanionSourceID         string                `json:"companion_source_id,omitempty"`
	FollowedBySourceID        string                `json:"followed_by_source_id,omitempty"`
	MinAmbientC               float64               `json:"min_ambient_c"`
	MaxAmbientC               float64               `json:"max_ambient_c"`
	AmbientLockoutHysteresisC float64               `json:"ambient_lockout_hysteresis_c"`
	MaxSetpointC              float64               `json:"max_setpoint_c"`
	IsExternal                bool                  `json:"is_external"`
	MultiPass                 bool                  `json:"multi_pass"`
	ExternalInletHeightNode   int                   `json:"external_inlet_height_node"`
	ExternalOutletHeightNode  int                   `json:"external_outlet_height_node"`
	FlowRateLPerMin           float64               `json:"flow_rate_l_per_min"`
	PerformanceMap            *PerformanceMapInput  `json:"performance_map,omitempty"`
	NameplatePowerW           float64               `json:"nameplate_power_w,omitempty"`
}

// LogicInput is one HeatingLogic entry (turn_on_logic/shut_off_logic/
// standby_logic), per HeatingLogic::make()'s field names.
type LogicInput struct {
	HeatingLogicType          string                `json:"heating_logic_type"` // "TEMPERATURE_BASED" | "STATE_OF_CHARGE_BASED"
	ComparisonType            string                `json:"comparison_type"`    // "GREATER_THAN" | "LESS_THAN"
	DecisionPoint             float64               `json:"decision_point"`
	AbsoluteTemperature       bool                  `json:"absolute_temperature"`
	TemperatureWeightDistribution *WeightedDistribution `json:"temperature_weight_distribution,omitempty"`
	StandbyTemperatureLocation string               `json:"standby_temperature_location,omitempty"` // "TOP_OF_TANK" | "BOTTOM_OF_TANK"
	ChecksStandby             bool                  `json:"checks_standby,omitempty"`
	MinimumUsefulTemperatureC float64               `json:"minimum_useful_temperature_c"`
	HysteresisFraction        float64               `json:"hysteresis_fraction"`
	UsesConstantMains         bool                  `json:"uses_constant_mains"`
	ConstantMainsTemperatureC float64               `json:"constant_mains_temperature_c"`
}

// LoadFile reads and parses an HPWHSimInput JSON document.
func LoadFile(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, herr.NewIOError(path, err.Error())
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses an HPWHSimInput document from r.
func Decode(r io.Reader) (*Input, error) {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, herr.NewConfigError("hpwh_sim_input", fmt.Sprintf("invalid JSON: %v", err))
	}
	return &in, nil
}

// Payload returns the active system payload (integrated or central,
// per SystemType), for callers that need to apply overrides before Build.
func (in *Input) Payload() (*SystemPayload, error) {
	return in.payload()
}

func (in *Input) payload() (*SystemPayload, error) {
	switch in.SystemType {
	case Central:
		if in.CentralSystem == nil {
			return nil, herr.NewConfigError("central_system", "required when system_type is CENTRAL")
		}
		return in.CentralSystem, nil
	default:
		if in.IntegratedSystem == nil {
			return nil, herr.NewConfigError("integrated_system", "required when system_type is INTEGRATED")
		}
		return in.IntegratedSystem, nil
	}
}

// Build constructs a runnable *simulator.HPWH from the parsed input.
func Build(in *Input, calib calibration.Constants, rep report.Reporter) (*simulator.HPWH, error) {
	payload, err := in.payload()
	if err != nil {
		return nil, err
	}

	initialTempC := in.StandardSetpointC
	if payload.Tank.InitialTempC != nil {
		initialTempC = *payload.Tank.InitialTempC
	}

	tankCfg := tank.Config{
		NumNodes:                   in.NumberOfNodes,
		VolumeL:                    payload.Tank.VolumeL,
		VolumeFixed:                in.FixedVolume,
		UAkJPerHC:                  payload.Tank.UAkJPerHC,
		FittingsUAkJPerHC:          payload.Tank.FittingsUAkJPerHC,
		InletHeightNode:            payload.Tank.InletHeightNode,
		MixesOnDraw:                payload.Tank.BottomFractionMixingOnDraw > 0,
		MixBelowFraction:           payload.Tank.BottomFractionMixingOnDraw,
		DoInversionMixing:          boolOr(payload.Tank.DoInversionMixing, true),
		DoConduction:               boolOr(payload.Tank.DoConduction, true),
		HasHeatExchanger:           payload.Tank.HeatExchangerEffectiveness > 0,
		HeatExchangerEffectiveness: payload.Tank.HeatExchangerEffectiveness,
		InitialTempC:               initialTempC,
	}
	t, err := tank.New(tankCfg, calib, rep)
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(payload.HeatSourceConfigurations))
	for i, hs := range payload.HeatSourceConfigurations {
		idx[hs.ID] = i
	}

	sources := make([]*heatsource.HeatSource, 0, len(payload.HeatSourceConfigurations))
	for _, hsIn := range payload.HeatSourceConfigurations {
		hs, err := buildHeatSource(hsIn, calib)
		if err != nil {
			return nil, err
		}
		sources = append(sources, hs)
	}
	for i, hsIn := range payload.HeatSourceConfigurations {
		if id, ok := idx[hsIn.BackupSourceID]; ok {
			sources[i].BackupIdx = id
		} else if hsIn.BackupSourceID != "" {
			return nil, herr.NewConfigError("heat_source_configurations", fmt.Sprintf("%q: unknown backup heat source %q", hsIn.ID, hsIn.BackupSourceID))
		}
		if id, ok := idx[hsIn.CompanionSourceID]; ok {
			sources[i].CompanionIdx = id
		} else if hsIn.CompanionSourceID != "" {
			return nil, herr.NewConfigError("heat_source_configurations", fmt.Sprintf("%q: unknown companion heat source %q", hsIn.ID, hsIn.CompanionSourceID))
		}
		if id, ok := idx[hsIn.FollowedBySourceID]; ok {
			sources[i].FollowedByIdx = id
		} else if hsIn.FollowedBySourceID != "" {
			return nil, herr.NewConfigError("heat_source_configurations", fmt.Sprintf("%q: unknown follower heat source %q", hsIn.ID, hsIn.FollowedBySourceID))
		}
	}
	if err := checkCycles(sources); err != nil {
		return nil, err
	}

	return simulator.New(t, sources, in.StandardSetpointC, rep)
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func buildHeatSource(in HeatSourceInput, calib calibration.Constants) (*heatsource.HeatSource, error) {
	dist, err := buildDistribution(in.HeatDistribution, in.Condensity)
	if err != nil {
		return nil, err
	}

	turnOn := make([]heatinglogic.Logic, 0, len(in.TurnOnLogic))
	for _, l := range in.TurnOnLogic {
		logic, err := buildLogic(l)
		if err != nil {
			return nil, err
		}
		turnOn = append(turnOn, logic)
	}
	shutOff := make([]heatinglogic.Logic, 0, len(in.ShutOffLogic))
	for _, l := range in.ShutOffLogic {
		logic, err := buildLogic(l)
		if err != nil {
			return nil, err
		}
		shutOff = append(shutOff, logic)
	}
	var standby *heatinglogic.Logic
	if in.StandbyLogic != nil {
		logic, err := buildLogic(*in.StandbyLogic)
		if err != nil {
			return nil, err
		}
		standby = &logic
	}

	variant := heatsource.Resistance
	if in.HeatSourceType == "COMPRESSION" {
		variant = heatsource.Compressor
	}

	cfg := heatsource.Config{
		ID:                        in.ID,
		Variant:                   variant,
		HeatDistribution:          dist,
		TurnOnLogic:               turnOn,
		ShutOffLogic:              shutOff,
		StandbyLogic:              standby,
		IsVIP:                     in.IsVIP,
		BackupID:                  in.BackupSourceID,
		CompanionID:               in.CompanionSourceID,
		FollowedByID:              in.FollowedBySourceID,
		MinAmbientC:               in.MinAmbientC,
		MaxAmbientC:               in.MaxAmbientC,
		AmbientLockoutHysteresisC: in.AmbientLockoutHysteresisC,
		MaxSetpointC:              in.MaxSetpointC,
		IsExternal:                in.IsExternal,
		MultiPass:                 in.MultiPass,
		ExternalInletHeightNode:   in.ExternalInletHeightNode,
		ExternalOutletHeightNode:  in.ExternalOutletHeightNode,
		FlowRateLPerMin:           in.FlowRateLPerMin,
		NameplatePowerW:           in.NameplatePowerW,
	}

	if variant == heatsource.Compressor {
		if in.PerformanceMap == nil {
			return nil, herr.NewConfigError("performance_map", "required for a COMPRESSION heat source")
		}
		pm, err := heatsource.NewPerformanceMap(in.PerformanceMap.EvaporatorAxisC, in.PerformanceMap.CondenserAxisC, in.PerformanceMap.InputPowerW, in.PerformanceMap.CapacityW)
		if err != nil {
			return nil, err
		}
		cfg.PerfMap = pm
	}

	return heatsource.New(cfg, calib)
}

func buildDistribution(wd *WeightedDistribution, condensity []float64) (distribution.Distribution, error) {
	if wd != nil && len(wd.NormalizedHeight) > 0 {
		return distribution.NewWeighted(wd.NormalizedHeight, wd.Weight)
	}
	if len(condensity) > 0 {
		return distribution.FromCondensity(condensity)
	}
	return distribution.Distribution{}, herr.NewConfigError("heat_distribution", "one of heat_distribution or condensity is required")
}

func buildLogic(in LogicInput) (heatinglogic.Logic, error) {
	cmp := heatinglogic.LessThan
	if in.ComparisonType == "GREATER_THAN" {
		cmp = heatinglogic.GreaterThan
	}

	if in.HeatingLogicType == "STATE_OF_CHARGE_BASED" {
		return heatinglogic.NewStateOfChargeBased(heatinglogic.StateOfCharge{
			DecisionPoint:      in.DecisionPoint,
			HysteresisFraction: in.HysteresisFraction,
			TempMinUsefulC:     in.MinimumUsefulTemperatureC,
			UseConstantMains:   in.UsesConstantMains,
			ConstantMainsC:     in.ConstantMainsTemperatureC,
			Comparator:         cmp,
		}), nil
	}

	var dist distribution.Distribution
	var err error
	switch in.StandbyTemperatureLocation {
	case "TOP_OF_TANK":
		dist = distribution.Top()
	case "BOTTOM_OF_TANK":
		dist = distribution.Bottom()
	default:
		if in.TemperatureWeightDistribution != nil {
			dist, err = distribution.NewWeighted(in.TemperatureWeightDistribution.NormalizedHeight, in.TemperatureWeightDistribution.Weight)
			if err != nil {
				return heatinglogic.Logic{}, err
			}
		} else {
			dist = distribution.Top()
		}
	}

	return heatinglogic.NewTemperatureBased(heatinglogic.Temperature{
		Distribution:   dist,
		DecisionPointC: in.DecisionPoint,
		IsAbsolute:     in.AbsoluteTemperature,
		Comparator:     cmp,
		ChecksStandby:  in.ChecksStandby,
	}), nil
}

// checkCycles rejects backup/companion/follower chains that loop back on
// themselves, per spec.md §3's cross-reference invariant.
func checkCycles(sources []*heatsource.HeatSource) error {
	link := func(i int) []int {
		var next []int
		if sources[i].BackupIdx >= 0 {
			next = append(next, sources[i].BackupIdx)
		}
		if sources[i].CompanionIdx >= 0 {
			next = append(next, sources[i].CompanionIdx)
		}
		if sources[i].FollowedByIdx >= 0 {
			next = append(next, sources[i].FollowedByIdx)
		}
		return next
	}
	for start := range sources {
		visited := map[int]bool{start: true}
		stack := link(start)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if n == start {
				return herr.NewConfigError("heat_source_configurations", fmt.Sprintf("cross-source link cycle at %q", sources[start].Cfg.ID))
			}
			if visited[n] {
				continue
			}
			visited[n] = true
			stack = append(stack, link(n)...)
		}
	}
	return nil
}
