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

package heatsource_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/distribution"
	"hpwhsim/internal/heatinglogic"
	"hpwhsim/internal/heatsource"
	"hpwhsim/internal/report"
	"hpwhsim/internal/tank"
)

type fakeContext struct {
	tank      *tank.Tank
	setpointC float64
}

func (f fakeContext) Tank() heatinglogic.TankReader { return f.tank }
func (f fakeContext) SetpointC() float64            { return f.setpointC }
func (f fakeContext) MainsTempC() (float64, bool)   { return 0, false }

func newTestTank(t *testing.T, n int, initC float64) *tank.Tank {
	t.Helper()
	tk, err := tank.New(tank.Config{NumNodes: n, VolumeL: 150, InitialTempC: initC}, calibration.Default(), report.Nop{})
	require.NoError(t, err)
	return tk
}

func resistanceConfig() heatsource.Config {
	return heatsource.Config{
		ID:               "resistance-1",
		Variant:          heatsource.Resistance,
		HeatDistribution: distribution.Bottom(),
		NameplatePowerW:  4500,
	}
}

func TestNew_RejectsCompressorWithoutPerformanceMap(t *testing.T) {
	cfg := heatsource.Config{
		ID:               "compressor-1",
		Variant:          heatsource.Compressor,
		HeatDistribution: distribution.Top(),
	}
	_, err := heatsource.New(cfg, calibration.Default())
	require.Error(t, err)
}

func TestNew_RejectsResistanceWithoutPower(t *testing.T) {
	cfg := resistanceConfig()
	cfg.NameplatePowerW = 0
	_, err := heatsource.New(cfg, calibration.Default())
	require.Error(t, err)
}

func TestNew_RejectsZeroWeightDistribution(t *testing.T) {
	zero, err := distribution.NewWeighted([]float64{1.0}, []float64{0})
	require.NoError(t, err)
	cfg := resistanceConfig()
	cfg.HeatDistribution = zero
	_, err = heatsource.New(cfg, calibration.Default())
	require.Error(t, err)
}

func TestUpdateLockout_Hysteresis(t *testing.T) {
	cfg := heatsource.Config{
		ID:                        "compressor-1",
		Variant:                   heatsource.Compressor,
		HeatDistribution:          distribution.Top(),
		MinAmbientC:               0,
		AmbientLockoutHysteresisC: 2,
	}
	perfMap, err := heatsource.NewPerformanceMap(
		[]float64{-10, 30}, []float64{30, 50},
		[][]float64{{500, 600}, {400, 500}},
		[][]float64{{1000, 1200}, {1800, 2000}},
	)
	require.NoError(t, err)
	cfg.PerfMap = perfMap

	h, err := heatsource.New(cfg, calibration.Default())
	require.NoError(t, err)

	require.False(t, h.UpdateLockout(10), "well above threshold: not locked out")
	require.True(t, h.UpdateLockout(-5), "well below min-hysteresis: locks out")
	require.True(t, h.UpdateLockout(1), "inside the hysteresis band: retains prior locked-out state")
	require.False(t, h.UpdateLockout(5), "above min+hysteresis: unlocks")
}

func TestUpdateLockout_NoopForResistance(t *testing.T) {
	cfg := resistanceConfig()
	h, err := heatsource.New(cfg, calibration.Default())
	require.NoError(t, err)
	require.False(t, h.UpdateLockout(-50))
}

func TestShutsOff_BottomNodeAtSetpointOverridesLogic(t *testing.T) {
	tk := newTestTank(t, 4, 60)
	ctx := fakeContext{tank: tk, setpointC: 55}

	h, err := heatsource.New(resistanceConfig(), calibration.Default())
	require.NoError(t, err)

	require.True(t, h.ShutsOff(ctx), "bottom node already at/above setpoint must unconditionally shut off")
}

func TestShouldHeat_EngagesWhenTurnOnLogicHolds(t *testing.T) {
	tk := newTestTank(t, 4, 10)
	ctx := fakeContext{tank: tk, setpointC: 55}

	cfg := resistanceConfig()
	cfg.TurnOnLogic = []heatinglogic.Logic{
		heatinglogic.NewTemperatureBased(heatinglogic.Temperature{
			Distribution:   distribution.Bottom(),
			DecisionPointC: 5,
			Comparator:     heatinglogic.LessThan,
		}),
	}
	h, err := heatsource.New(cfg, calibration.Default())
	require.NoError(t, err)

	should, err := h.ShouldHeat(ctx)
	require.NoError(t, err)
	require.True(t, should, "cold tank below decision point should engage when not locked out")
}

func TestShouldHeat_LockedOutNeverEngages(t *testing.T) {
	tk := newTestTank(t, 4, 10)
	ctx := fakeContext{tank: tk, setpointC: 55}

	perfMap, err := heatsource.NewPerformanceMap(
		[]float64{-10, 30}, []float64{30, 50},
		[][]float64{{500, 600}, {400, 500}},
		[][]float64{{1000, 1200}, {1800, 2000}},
	)
	require.NoError(t, err)
	cfg := heatsource.Config{
		ID:               "compressor-1",
		Variant:          heatsource.Compressor,
		HeatDistribution: distribution.Top(),
		PerfMap:          perfMap,
		MinAmbientC:      10,
		TurnOnLogic: []heatinglogic.Logic{
			heatinglogic.NewTemperatureBased(heatinglogic.Temperature{
				Distribution:   distribution.Bottom(),
				DecisionPointC: 5,
				Comparator:     heatinglogic.LessThan,
			}),
		},
	}
	h, err := heatsource.New(cfg, calibration.Default())
	require.NoError(t, err)

	h.UpdateLockout(-50)
	should, err := h.ShouldHeat(ctx)
	require.NoError(t, err)
	require.False(t, should, "a locked-out source must never engage regardless of turn-on logic")
}

func TestHeat_ClampsAtMaxSetpointAndReturnsLeftover(t *testing.T) {
	tk := newTestTank(t, 4, 50)
	h, err := heatsource.New(resistanceConfig(), calibration.Default())
	require.NoError(t, err)

	leftover := h.Heat(tk, 1e9, 60)
	require.Greater(t, leftover, 0.0)
	for _, v := range tk.NodeTemps() {
		require.LessOrEqual(t, v, 60.0+1e-6)
	}
}

func TestEvaluateCapacity_ResistanceIsNameplateAtUnitEfficiency(t *testing.T) {
	tk := newTestTank(t, 4, 50)
	h, err := heatsource.New(resistanceConfig(), calibration.Default())
	require.NoError(t, err)

	inputW, capW := h.EvaluateCapacity(tk, 20)
	require.Equal(t, 4500.0, inputW)
	require.Equal(t, 4500.0, capW)
}

func TestSetCondensity_ReplacesDistribution(t *testing.T) {
	h, err := heatsource.New(resistanceConfig(), calibration.Default())
	require.NoError(t, err)

	require.NoError(t, h.SetCondensity([]float64{1, 1, 0, 0}))
	weights := h.CalcHeatDist(4)
	require.InDelta(t, 0.5, weights[0], 1e-9)
	require.InDelta(t, 0.5, weights[1], 1e-9)
	require.InDelta(t, 0, weights[2], 1e-9)
	require.InDelta(t, 0, weights[3], 1e-9)
}

func externalConfig() heatsource.Config {
	return heatsource.Config{
		ID:                       "split-compressor",
		Variant:                  heatsource.Resistance,
		HeatDistribution:         distribution.Bottom(),
		NameplatePowerW:          4500,
		IsExternal:               true,
		ExternalOutletHeightNode: 3,
		FlowRateLPerMin:          8,
	}
}

func TestHeatExternal_DepositsAtOutletNode(t *testing.T) {
	tk := newTestTank(t, 4, 40)
	h, err := heatsource.New(externalConfig(), calibration.Default())
	require.NoError(t, err)

	before := tk.NodeTemps()
	leftover := h.HeatExternal(tk, 4500, 60, 60)
	require.GreaterOrEqual(t, leftover, 0.0)

	after := tk.NodeTemps()
	require.Greater(t, after[3], before[3], "single-pass loop must land its heat at the outlet node")
}

func TestHeatExternal_MultiPassSplitsAcrossPasses(t *testing.T) {
	cfg := externalConfig()
	cfg.MultiPass = true
	tk := newTestTank(t, 4, 40)
	h, err := heatsource.New(cfg, calibration.Default())
	require.NoError(t, err)

	before := tk.NodeTemps()
	leftover := h.HeatExternal(tk, 4500, 60, 60)
	require.GreaterOrEqual(t, leftover, 0.0)

	after := tk.NodeTemps()
	require.Greater(t, after[3], before[3], "multi-pass loop must still land heat at the outlet node across its passes")
}

func TestHeatExternal_FallsBackToCascadeWithoutFlowRate(t *testing.T) {
	cfg := externalConfig()
	cfg.FlowRateLPerMin = 0
	tk := newTestTank(t, 4, 40)
	h, err := heatsource.New(cfg, calibration.Default())
	require.NoError(t, err)

	before := tk.NodeTemps()
	leftover := h.HeatExternal(tk, 4500, 60, 60)
	require.GreaterOrEqual(t, leftover, 0.0)

	after := tk.NodeTemps()
	require.Greater(t, after[0], before[0], "with no configured flow rate, HeatExternal must fall back to the generic top-down cascade")
}

func TestEngageCompanion(t *testing.T) {
	require.False(t, heatsource.EngageCompanion(nil, heatsource.DRAllow), "nil companion never engages")

	companion, err := heatsource.New(resistanceConfig(), calibration.Default())
	require.NoError(t, err)
	require.True(t, heatsource.EngageCompanion(companion, heatsource.DRAllow))

	companion.IsOn = true
	require.False(t, heatsource.EngageCompanion(companion, heatsource.DRAllow), "already-on companion does not re-engage")

	companion.IsOn = false
	require.True(t, heatsource.EngageCompanion(companion, heatsource.DRBlock), "DR block only restricts compressor companions, not resistance")

	perfMap, err := heatsource.NewPerformanceMap(
		[]float64{-10, 30}, []float64{30, 50},
		[][]float64{{500, 600}, {400, 500}},
		[][]float64{{1000, 1200}, {1800, 2000}},
	)
	require.NoError(t, err)
	compressorCfg := heatsource.Config{
		ID:               "compressor-companion",
		Variant:          heatsource.Compressor,
		HeatDistribution: distribution.Top(),
		PerfMap:          perfMap,
	}
	compressorCompanion, err := heatsource.New(compressorCfg, calibration.Default())
	require.NoError(t, err)
	require.False(t, heatsource.EngageCompanion(compressorCompanion, heatsource.DRBlock), "DR-blocked compressor companion does not engage")
}
