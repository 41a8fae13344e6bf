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

package heatinglogic_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/distribution"
	"hpwhsim/internal/heatinglogic"
	"hpwhsim/internal/report"
	"hpwhsim/internal/tank"
)

type fakeContext struct {
	tank       *tank.Tank
	setpointC  float64
	mainsC     float64
	mainsKnown bool
}

func (f fakeContext) Tank() heatinglogic.TankReader { return f.tank }
func (f fakeContext) SetpointC() float64            { return f.setpointC }
func (f fakeContext) MainsTempC() (float64, bool)   { return f.mainsC, f.mainsKnown }

func newFakeTank(t *testing.T, n int, initC float64) *tank.Tank {
	t.Helper()
	tk, err := tank.New(tank.Config{NumNodes: n, VolumeL: 150, InitialTempC: initC}, calibration.Default(), report.Nop{})
	require.NoError(t, err)
	return tk
}

func TestHolds_TemperatureBased_RelativeDecisionPoint(t *testing.T) {
	tk := newFakeTank(t, 6, 40)
	ctx := fakeContext{tank: tk, setpointC: 50}

	logic := heatinglogic.NewTemperatureBased(heatinglogic.Temperature{
		Distribution:   distribution.Top(),
		DecisionPointC: 5, // reference = setpoint - 5 = 45
		Comparator:     heatinglogic.LessThan,
	})

	holds, err := logic.Holds(ctx)
	require.NoError(t, err)
	require.True(t, holds, "top node at 40C is below setpoint-5=45C, turn-on should hold")
}

func TestHolds_TemperatureBased_AbsoluteDecisionPoint(t *testing.T) {
	tk := newFakeTank(t, 6, 60)
	ctx := fakeContext{tank: tk, setpointC: 50}

	logic := heatinglogic.NewTemperatureBased(heatinglogic.Temperature{
		Distribution:   distribution.Bottom(),
		DecisionPointC: 55,
		IsAbsolute:     true,
		Comparator:     heatinglogic.GreaterThan,
	})

	holds, err := logic.Holds(ctx)
	require.NoError(t, err)
	require.True(t, holds, "bottom node at 60C exceeds the absolute 55C shutoff threshold")
}

func TestGetTankValue_StateOfCharge_RequiresKnownMains(t *testing.T) {
	tk := newFakeTank(t, 6, 50)
	ctx := fakeContext{tank: tk, setpointC: 55, mainsKnown: false}

	logic := heatinglogic.NewStateOfChargeBased(heatinglogic.StateOfCharge{
		DecisionPoint:  0.5,
		TempMinUsefulC: 45,
		Comparator:     heatinglogic.LessThan,
	})

	_, err := logic.GetTankValue(ctx)
	require.Error(t, err, "SoC logic without constant mains or known live inlet must fail rather than silently use zero")
}

func TestGetTankValue_StateOfCharge_ConstantMains(t *testing.T) {
	tk := newFakeTank(t, 6, 45) // exactly at min-useful: one unit of charge per node
	ctx := fakeContext{tank: tk, setpointC: 55}

	logic := heatinglogic.NewStateOfChargeBased(heatinglogic.StateOfCharge{
		DecisionPoint:    0.5,
		TempMinUsefulC:   45,
		UseConstantMains: true,
		ConstantMainsC:   10,
		Comparator:       heatinglogic.LessThan,
	})

	soc, err := logic.GetTankValue(ctx)
	require.NoError(t, err)
	// A node at setpoint 55 holds (55-10)/(45-10) = 45/35 units, so the
	// fraction is 6*1 / (6*45/35) = 35/45.
	require.InDelta(t, 35.0/45.0, soc, 1e-9)
}

func TestIsValid_RejectsZeroWeightDistribution(t *testing.T) {
	zero, err := distribution.NewWeighted([]float64{1.0}, []float64{0})
	require.NoError(t, err)
	logic := heatinglogic.NewTemperatureBased(heatinglogic.Temperature{Distribution: zero})
	require.Error(t, logic.IsValid())
}

func TestIsValid_RejectsNegativeDecisionPoint(t *testing.T) {
	logic := heatinglogic.NewStateOfChargeBased(heatinglogic.StateOfCharge{DecisionPoint: -0.1})
	require.Error(t, logic.IsValid())
}

func TestFractToMeetComparisonExternal_AlreadyMetReturnsZero(t *testing.T) {
	tk := newFakeTank(t, 6, 60)
	ctx := fakeContext{tank: tk, setpointC: 50}

	logic := heatinglogic.NewTemperatureBased(heatinglogic.Temperature{
		Distribution:   distribution.Top(),
		DecisionPointC: 5,
		Comparator:     heatinglogic.GreaterThan,
	})

	frac, err := logic.FractToMeetComparisonExternal(ctx)
	require.NoError(t, err)
	require.Equal(t, 0.0, frac, "shutoff condition already holds, zero more runtime needed")
}
