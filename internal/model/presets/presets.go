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

// Package presets ships a small table of named HPWHSimInput models
// buildable without a JSON file, for the CLI's `-s Preset:<name>` form,
// mirroring original_source/test/unit_tests/makeGeneric.cc's
// preset-by-name pattern.
package presets

import (
	"fmt"

	"hpwhsim/internal/model"
)

// Preset is a named, ready-to-build model definition plus the backup-link
// map needed for findParent-style reverse lookups.
type Preset struct {
	Name  string
	Input model.Input
}

var catalog = map[string]Preset{
	"Sanden80":     sanden80(),
	"Generic_80L":  generic80L(),
}

// Get looks up a preset by name.
func Get(name string) (Preset, error) {
	p, ok := catalog[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q", name)
	}
	return p, nil
}

// Names lists the known preset names.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	return names
}

func floatPtr(v float64) *float64 { return &v }

// BackupOf reports the id of the heat source that names id as its
// backup_source_id, mirroring HPWHHeatSource.cc's findParent.
func (p Preset) BackupOf(id string) (string, bool) {
	payload := p.Input.IntegratedSystem
	if payload == nil {
		payload = p.Input.CentralSystem
	}
	if payload == nil {
		return "", false
	}
	for _, hs := range payload.HeatSourceConfigurations {
		if hs.BackupSourceID == id {
			return hs.ID, true
		}
	}
	return "", false
}

func sanden80() Preset {
	return Preset{
		Name: "Sanden80",
		Input: model.Input{
			SystemType:        model.Integrated,
			NumberOfNodes:     12,
			StandardSetpointC: 65.0,
			FixedVolume:       true,
			IntegratedSystem: &model.SystemPayload{
				Tank: model.TankInput{
					VolumeL:                    315.0,
					UAkJPerHC:                  4.5,
					FittingsUAkJPerHC:          0.5,
					DiameterM:                  0.6,
					BottomFractionMixingOnDraw: 1.0 / 3.0,
					InitialTempC:               floatPtr(49.0),
				},
				HeatSourceConfigurations: []model.HeatSourceInput{
					{
						ID:             "compressor",
						HeatSourceType: "COMPRESSION",
						IsVIP:          true,
						HeatDistribution: &model.WeightedDistribution{
							NormalizedHeight: []float64{1.0},
							Weight:           []float64{1.0},
						},
						PerformanceMap: &model.PerformanceMapInput{
							EvaporatorAxisC: []float64{-10, 0, 10, 20},
							CondenserAxisC:  []float64{30, 50, 65},
							InputPowerW: [][]float64{
								{300, 350, 420},
								{350, 420, 500},
								{420, 500, 600},
								{480, 560, 680},
							},
							CapacityW: [][]float64{
								{900, 800, 650},
								{1200, 1050, 850},
								{1500, 1300, 1050},
								{1800, 1550, 1250},
							},
						},
						TurnOnLogic: []model.LogicInput{{
							HeatingLogicType: "TEMPERATURE_BASED",
							ComparisonType:   "LESS_THAN",
							DecisionPoint:    8.33,
							TemperatureWeightDistribution: &model.WeightedDistribution{
								NormalizedHeight: []float64{1.0},
								Weight:           []float64{1.0},
							},
						}},
						ShutOffLogic: []model.LogicInput{{
							HeatingLogicType: "TEMPERATURE_BASED",
							ComparisonType:   "GREATER_THAN",
							DecisionPoint:    0,
							AbsoluteTemperature: true,
							StandbyTemperatureLocation: "TOP_OF_TANK",
						}},
						MinAmbientC:               -5,
						AmbientLockoutHysteresisC: 1,
						MaxSetpointC:              65,
					},
				},
			},
		},
	}
}

func generic80L() Preset {
	return Preset{
		Name: "Generic_80L",
		Input: model.Input{
			SystemType:        model.Integrated,
			NumberOfNodes:     6,
			StandardSetpointC: 60.0,
			FixedVolume:       true,
			IntegratedSystem: &model.SystemPayload{
				Tank: model.TankInput{
					VolumeL:                    80.0,
					UAkJPerHC:                  2.0,
					FittingsUAkJPerHC:          0.2,
					DiameterM:                  0.4,
					BottomFractionMixingOnDraw: 1.0 / 3.0,
					InitialTempC:               floatPtr(49.0),
				},
				HeatSourceConfigurations: []model.HeatSourceInput{
					{
						ID:              "resistor",
						HeatSourceType:  "RESISTANCE",
						NameplatePowerW: 4500,
						HeatDistribution: &model.WeightedDistribution{
							NormalizedHeight: []float64{1.0},
							Weight:           []float64{1.0},
						},
						TurnOnLogic: []model.LogicInput{{
							HeatingLogicType: "TEMPERATURE_BASED",
							ComparisonType:   "LESS_THAN",
							DecisionPoint:    8.33,
							TemperatureWeightDistribution: &model.WeightedDistribution{
								NormalizedHeight: []float64{1.0},
								Weight:           []float64{1.0},
							},
						}},
						ShutOffLogic: []model.LogicInput{{
							HeatingLogicType:           "TEMPERATURE_BASED",
							ComparisonType:             "GREATER_THAN",
							DecisionPoint:              0,
							AbsoluteTemperature:        true,
							StandbyTemperatureLocation: "TOP_OF_TANK",
						}},
						MaxSetpointC: 60,
					},
				},
			},
		},
	}
}
