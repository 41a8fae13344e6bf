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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/config"
)

func TestDefault_FillsDocumentedDefaults(t *testing.T) {
	c := config.Default()
	require.Equal(t, ".", c.OutDir)
	require.Equal(t, 60.0, c.DefaultStepSeconds)
	require.Equal(t, 20.0, c.DefaultAmbientC)
	require.Equal(t, 6, c.NumThermocouples)
	require.Equal(t, ":8765", c.Live.WebsocketAddr)
}

func TestLoadFile_OverridesSpecifiedFieldsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"out_dir":"/tmp/out","num_thermocouples":12}`), 0o644))

	c, err := config.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/out", c.OutDir)
	require.Equal(t, 12, c.NumThermocouples)
	require.Equal(t, 60.0, c.DefaultStepSeconds, "unset fields still fall back to documented defaults")
}

func TestLoadFile_RejectsMissingFile(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadFile_RejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := config.LoadFile(path)
	require.Error(t, err)
}
