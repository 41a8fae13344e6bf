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

package model_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/model"
	"hpwhsim/internal/report"
)

const minimalResistanceJSON = `{
	"system_type": "INTEGRATED",
	"number_of_nodes": 6,
	"standard_setpoint": 50,
	"integrated_system": {
		"tank": {
			"volume_l": 190,
			"ua": 5,
			"initial_temp_c": 20
		},
		"heat_source_configurations": [
			{
				"id": "resistance-1",
				"heat_source_type": "RESISTANCE",
				"nameplate_power_w": 4500,
				"heat_distribution": {"normalized_height": [1.0], "weight": [1.0]},
				"turn_on_logic": [
					{"heating_logic_type": "TEMPERATURE_BASED", "comparison_type": "LESS_THAN", "decision_point": 5}
				],
				"shut_off_logic": [
					{"heating_logic_type": "TEMPERATURE_BASED", "comparison_type": "GREATER_THAN", "decision_point": 0, "absolute_temperature": true}
				]
			}
		]
	}
}`

func TestDecode_ParsesMinimalDocument(t *testing.T) {
	in, err := model.Decode(strings.NewReader(minimalResistanceJSON))
	require.NoError(t, err)
	require.Equal(t, model.Integrated, in.SystemType)
	require.Equal(t, 6, in.NumberOfNodes)
	require.NotNil(t, in.IntegratedSystem)
	require.Len(t, in.IntegratedSystem.HeatSourceConfigurations, 1)
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	_, err := model.Decode(strings.NewReader("{not json"))
	require.Error(t, err)
}

func TestBuild_MinimalResistanceModel(t *testing.T) {
	in, err := model.Decode(strings.NewReader(minimalResistanceJSON))
	require.NoError(t, err)

	h, err := model.Build(in, calibration.Default(), report.Nop{})
	require.NoError(t, err)
	require.Equal(t, 50.0, h.SetpointC())
	require.Len(t, h.Sources(), 1)
}

func TestBuild_RequiresSystemPayloadMatchingType(t *testing.T) {
	in, err := model.Decode(strings.NewReader(minimalResistanceJSON))
	require.NoError(t, err)
	in.SystemType = model.Central
	in.CentralSystem = nil

	_, err = model.Build(in, calibration.Default(), report.Nop{})
	require.Error(t, err, "CENTRAL system_type without a central_system payload must fail")
}

func TestBuild_RequiresPerformanceMapForCompressor(t *testing.T) {
	in, err := model.Decode(strings.NewReader(minimalResistanceJSON))
	require.NoError(t, err)
	in.IntegratedSystem.HeatSourceConfigurations[0].HeatSourceType = "COMPRESSION"
	in.IntegratedSystem.HeatSourceConfigurations[0].PerformanceMap = nil

	_, err = model.Build(in, calibration.Default(), report.Nop{})
	require.Error(t, err)
}

func TestBuild_DetectsBackupCycle(t *testing.T) {
	in, err := model.Decode(strings.NewReader(minimalResistanceJSON))
	require.NoError(t, err)

	second := in.IntegratedSystem.HeatSourceConfigurations[0]
	second.ID = "resistance-2"
	second.BackupSourceID = "resistance-1"
	in.IntegratedSystem.HeatSourceConfigurations[0].BackupSourceID = "resistance-2"
	in.IntegratedSystem.HeatSourceConfigurations = append(in.IntegratedSystem.HeatSourceConfigurations, second)

	_, err = model.Build(in, calibration.Default(), report.Nop{})
	require.Error(t, err, "a backup cycle between two sources must be rejected")
}

func TestBuild_ResolvesCrossSourceLinksByID(t *testing.T) {
	in, err := model.Decode(strings.NewReader(minimalResistanceJSON))
	require.NoError(t, err)

	backup := in.IntegratedSystem.HeatSourceConfigurations[0]
	backup.ID = "resistance-backup"
	backup.TurnOnLogic = nil
	in.IntegratedSystem.HeatSourceConfigurations[0].BackupSourceID = "resistance-backup"
	in.IntegratedSystem.HeatSourceConfigurations = append(in.IntegratedSystem.HeatSourceConfigurations, backup)

	h, err := model.Build(in, calibration.Default(), report.Nop{})
	require.NoError(t, err)
	require.Equal(t, 1, h.Sources()[0].BackupIdx)
}

func TestBuild_RequiresDistributionOrCondensity(t *testing.T) {
	in, err := model.Decode(strings.NewReader(minimalResistanceJSON))
	require.NoError(t, err)
	in.IntegratedSystem.HeatSourceConfigurations[0].HeatDistribution = nil

	_, err = model.Build(in, calibration.Default(), report.Nop{})
	require.Error(t, err)
}

func TestBuild_AcceptsLegacyCondensity(t *testing.T) {
	in, err := model.Decode(strings.NewReader(minimalResistanceJSON))
	require.NoError(t, err)
	in.IntegratedSystem.HeatSourceConfigurations[0].HeatDistribution = nil
	in.IntegratedSystem.HeatSourceConfigurations[0].Condensity = []float64{0, 0, 0, 0, 1, 1}

	h, err := model.Build(in, calibration.Default(), report.Nop{})
	require.NoError(t, err)
	require.Len(t, h.Sources(), 1)
}
