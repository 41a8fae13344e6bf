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

package rating_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/distribution"
	"hpwhsim/internal/heatinglogic"
	"hpwhsim/internal/heatsource"
	"hpwhsim/internal/rating"
	"hpwhsim/internal/report"
	"hpwhsim/internal/simulator"
	"hpwhsim/internal/tank"
)

func newRatedHPWH(t *testing.T, setpointC float64) *simulator.HPWH {
	t.Helper()
	tk, err := tank.New(tank.Config{
		NumNodes:          6,
		VolumeL:           190,
		UAkJPerHC:         5,
		InitialTempC:      setpointC,
		DoInversionMixing: true,
	}, calibration.Default(), report.Nop{})
	require.NoError(t, err)

	cfg := heatsource.Config{
		ID:               "resistance-1",
		Variant:          heatsource.Resistance,
		HeatDistribution: distribution.Bottom(),
		NameplatePowerW:  4500,
		MaxSetpointC:     setpointC + 5,
		TurnOnLogic: []heatinglogic.Logic{
			heatinglogic.NewTemperatureBased(heatinglogic.Temperature{
				Distribution:   distribution.Bottom(),
				DecisionPointC: 5,
				Comparator:     heatinglogic.LessThan,
			}),
		},
		ShutOffLogic: []heatinglogic.Logic{
			heatinglogic.NewTemperatureBased(heatinglogic.Temperature{
				Distribution:   distribution.Bottom(),
				DecisionPointC: 0,
				Comparator:     heatinglogic.GreaterThan,
			}),
		},
	}
	src, err := heatsource.New(cfg, calibration.Default())
	require.NoError(t, err)

	h, err := simulator.New(tk, []*heatsource.HeatSource{src}, setpointC, report.Nop{})
	require.NoError(t, err)
	return h
}

func TestFirstHourRating_RejectsNonPositiveDrawRate(t *testing.T) {
	h := newRatedHPWH(t, 50)
	_, err := rating.FirstHourRating(h, 10, 20, 0)
	require.Error(t, err)
}

func TestFirstHourRating_AccumulatesUntilOutletDrop(t *testing.T) {
	h := newRatedHPWH(t, 50)
	gal, err := rating.FirstHourRating(h, 10, 20, 3)
	require.NoError(t, err)
	require.Greater(t, gal, 0.0)
	require.LessOrEqual(t, gal, 180.0, "first-hour rating cannot exceed 60 minutes of draw")
}

func TestRun24Hour_ComputesPositiveUEF(t *testing.T) {
	h := newRatedHPWH(t, 50)
	profile := rating.Standard24HourProfile(10, 20, 50)
	res, err := rating.Run24Hour(h, profile)
	require.NoError(t, err)
	require.Greater(t, res.TotalInputKWh, 0.0)
	require.Greater(t, res.UEF, 0.0)
}

func TestRun24Hour_RejectsZeroEnergyInput(t *testing.T) {
	h := newRatedHPWH(t, 50)
	profile := rating.DrawProfile{
		Name:       "no_draws",
		DrawsGal:   make([]float64, 24*60),
		MainsTempC: 50,
		AmbientC:   50,
		SetpointC:  50,
	}
	_, err := rating.Run24Hour(h, profile)
	require.Error(t, err, "a tank already at setpoint with no draws never engages a source, so input energy is zero")
}

func TestBisect_ConvergesOnMonotonicSearch(t *testing.T) {
	search := func(x float64) (float64, error) { return x * 2, nil }
	x, err := rating.Bisect(search, 0, 10, 7, 0.01, 50)
	require.NoError(t, err)
	require.InDelta(t, 3.5, x, 0.05)
}

func TestBisect_RejectsTargetOutsideRange(t *testing.T) {
	search := func(x float64) (float64, error) { return x, nil }
	_, err := rating.Bisect(search, 0, 1, 5, 0.01, 10)
	require.Error(t, err)
}
