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

package presets_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/model"
	"hpwhsim/internal/model/presets"
	"hpwhsim/internal/report"
)

func TestGet_KnownPresetsBuild(t *testing.T) {
	for _, name := range []string{"Sanden80", "Generic_80L"} {
		p, err := presets.Get(name)
		require.NoError(t, err)
		require.Equal(t, name, p.Name)

		h, err := model.Build(&p.Input, calibration.Default(), report.Nop{})
		require.NoErrorf(t, err, "preset %q must build into a runnable simulator", name)
		require.NotEmpty(t, h.Sources())
	}
}

func TestGet_RejectsUnknownName(t *testing.T) {
	_, err := presets.Get("NoSuchPreset")
	require.Error(t, err)
}

func TestNames_ListsCatalog(t *testing.T) {
	names := presets.Names()
	require.Contains(t, names, "Sanden80")
	require.Contains(t, names, "Generic_80L")
	require.Len(t, names, 2)
}

func TestBackupOf_FindsParentByBackupSourceID(t *testing.T) {
	p, err := presets.Get("Sanden80")
	require.NoError(t, err)
	p.Input.IntegratedSystem.HeatSourceConfigurations[0].BackupSourceID = "resistor-backup"

	parent, ok := p.BackupOf("resistor-backup")
	require.True(t, ok)
	require.Equal(t, "compressor", parent)
}

func TestBackupOf_NoMatchReturnsFalse(t *testing.T) {
	p, err := presets.Get("Generic_80L")
	require.NoError(t, err)

	_, ok := p.BackupOf("nonexistent")
	require.False(t, ok)
}
