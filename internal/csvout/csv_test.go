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

package csvout_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/csvout"
	"hpwhsim/internal/simulator"
)

func sampleStep() simulator.StepResult {
	return simulator.StepResult{
		AmbientTempC: 20,
		InletTempC:   10,
		DrawGal:      5,
		Sources: []simulator.SourceResult{
			{ID: "resistance-1", IsOn: true, InputKJ: 100, OutputKJ: 95},
		},
		NodeTempsC: []float64{40, 45, 50, 55},
	}
}

func TestWriteStep_WritesHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := csvout.New(&buf, 2)

	require.NoError(t, w.WriteStep(sampleStep()))
	require.NoError(t, w.WriteStep(sampleStep()))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3, "one header row plus two data rows")
	require.Contains(t, lines[0], "resistance-1_input_kJ")
	require.Contains(t, lines[0], "thermocouple_0_T_C")
	require.Contains(t, lines[0], "thermocouple_1_T_C")
}

func TestWriteStep_MinuteCounterIncrements(t *testing.T) {
	var buf bytes.Buffer
	w := csvout.New(&buf, 1)
	require.NoError(t, w.WriteStep(sampleStep()))
	require.NoError(t, w.WriteStep(sampleStep()))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.True(t, strings.HasPrefix(lines[1], "1,"))
	require.True(t, strings.HasPrefix(lines[2], "2,"))
}

func TestWriteStep_ZeroThermocouplesOmitsColumns(t *testing.T) {
	var buf bytes.Buffer
	w := csvout.New(&buf, 0)
	require.NoError(t, w.WriteStep(sampleStep()))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.NotContains(t, lines[0], "thermocouple")
}
