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

// Package heatinglogic implements the TemperatureBased and
// StateOfChargeBased turn-on/shut-off/standby predicates described in
// spec.md §4.3, represented as the tagged sum HeatingLogic names in §9.
package heatinglogic

import (
	"math"

	"hpwhsim/internal/distribution"
	"hpwhsim/internal/herr"
)

// Comparator is the `<` or `>` used to evaluate a predicate.
type Comparator int

const (
	LessThan Comparator = iota
	GreaterThan
)

// Compare applies the comparator to (value, reference).
func (c Comparator) Compare(value, reference float64) bool {
	if c == LessThan {
		return value < reference
	}
	return value > reference
}

// TankReader is the subset of *tank.Tank that heating logic needs to
// evaluate its predicates. *tank.Tank satisfies this interface without
// either package importing the other's concrete type.
type TankReader interface {
	NodeTemp(i int) float64
	NumNodes() int
	AverageNodeTWeighted(d distribution.Distribution) float64
	SoCFraction(mainsC, minUsefulC, maxC float64) (float64, error)
}

// Context supplies the HPWH-level state a predicate needs beyond the
// tank itself: the active setpoint and, when known, the live mains inlet
// temperature for the current step.
type Context interface {
	Tank() TankReader
	SetpointC() float64
	MainsTempC() (c float64, known bool)
}

const tolMinValue = 1e-8

// Kind discriminates the two HeatingLogic variants.
type Kind int

const (
	TemperatureBased Kind = iota
	StateOfChargeBased
)

// Temperature holds a TemperatureBased predicate's fields.
type Temperature struct {
	Distribution   distribution.Distribution
	DecisionPointC float64
	IsAbsolute     bool
	Comparator     Comparator
	ChecksStandby  bool
}

// StateOfCharge holds a StateOfChargeBased predicate's fields. Comparator
// lets the same type serve both a turn-on predicate (engage when SoC is
// less than decision_point+hysteresis) and a shut-off predicate (disengage
// when SoC is at least that value).
type StateOfCharge struct {
	DecisionPoint      float64
	HysteresisFraction float64
	TempMinUsefulC     float64
	UseConstantMains   bool
	ConstantMainsC     float64
	Comparator         Comparator
}

// Logic is the HeatingLogic tagged sum.
type Logic struct {
	Kind Kind
	Temp Temperature
	SoC  StateOfCharge
}

// NewTemperatureBased builds a TemperatureBased Logic.
func NewTemperatureBased(t Temperature) Logic {
	return Logic{Kind: TemperatureBased, Temp: t}
}

// NewStateOfChargeBased builds a StateOfChargeBased Logic.
func NewStateOfChargeBased(s StateOfCharge) Logic {
	return Logic{Kind: StateOfChargeBased, SoC: s}
}

// IsValid checks construction-time validity (spec.md §3/§9 invariants).
func (l Logic) IsValid() error {
	switch l.Kind {
	case StateOfChargeBased:
		if l.SoC.DecisionPoint < 0 {
			return herr.NewConfigError("decision_point", "must be >= 0")
		}
	case TemperatureBased:
		if !l.Temp.Distribution.IsValid() {
			return herr.NewConfigError("heat_distribution", "distribution has non-positive total weight")
		}
	}
	return nil
}

// GetTankValue returns the tank-side value the predicate compares against
// its reference (spec.md §4.3).
func (l Logic) GetTankValue(ctx Context) (float64, error) {
	switch l.Kind {
	case StateOfChargeBased:
		mainsC, known := l.socMains(ctx)
		if !known {
			return 0, herr.NewBoundaryError("soc_logic", "state-of-charge logic used without constant mains or live inlet")
		}
		return ctx.Tank().SoCFraction(mainsC, l.SoC.TempMinUsefulC, ctx.SetpointC())
	default:
		return ctx.Tank().AverageNodeTWeighted(l.Temp.Distribution), nil
	}
}

func (l Logic) socMains(ctx Context) (float64, bool) {
	if l.SoC.UseConstantMains {
		return l.SoC.ConstantMainsC, true
	}
	return ctx.MainsTempC()
}

// GetComparisonValue returns the reference value the tank value is
// compared against.
func (l Logic) GetComparisonValue(ctx Context) float64 {
	switch l.Kind {
	case StateOfChargeBased:
		return l.SoC.DecisionPoint + l.SoC.HysteresisFraction
	default:
		if l.Temp.IsAbsolute {
			return l.Temp.DecisionPointC
		}
		return ctx.SetpointC() - l.Temp.DecisionPointC
	}
}

// Holds evaluates the predicate: compare(tankValue, comparisonValue).
func (l Logic) Holds(ctx Context) (bool, error) {
	value, err := l.GetTankValue(ctx)
	if err != nil {
		return false, err
	}
	ref := l.GetComparisonValue(ctx)
	cmp := l.Temp.Comparator
	if l.Kind == StateOfChargeBased {
		cmp = l.SoC.Comparator
	}
	return cmp.Compare(value, ref), nil
}

// FractToMeetComparisonExternal estimates the fraction of one more
// node-equivalent of heating needed to exactly meet this logic's
// comparison, for fractional runtime accounting on external sources
// (spec.md §4.2/§4.3).
func (l Logic) FractToMeetComparisonExternal(ctx Context) (float64, error) {
	if l.Kind == StateOfChargeBased {
		return l.socFractToMeet(ctx)
	}
	return l.tempFractToMeet(ctx)
}

func (l Logic) tempFractToMeet(ctx Context) (float64, error) {
	t := ctx.Tank()
	n := t.NumNodes()

	var firstNode, calcNode int
	switch l.Temp.Distribution.Kind {
	case distribution.BottomOfTank:
		firstNode, calcNode = 0, 0
	case distribution.TopOfTank:
		firstNode, calcNode = n-1, n-1
	default:
		weights := l.Temp.Distribution.NodeWeights(n)
		firstNode = -1
		for i, w := range weights {
			if w > 0 {
				if firstNode < 0 {
					firstNode = i
				}
				calcNode = i
			}
		}
		if firstNode < 0 {
			firstNode, calcNode = 0, n-1
		}
	}

	sum, count := 0.0, 0.0
	for i := firstNode; i <= calcNode; i++ {
		sum += t.NodeTemp(i)
		count++
	}
	averageT := sum / count

	targetT := ctx.SetpointC()
	if calcNode < n-1 {
		targetT = t.NodeTemp(calcNode + 1)
	}

	comparisonT := l.GetComparisonValue(ctx) + tolMinValue
	if l.Temp.Comparator.Compare(averageT, comparisonT) {
		return 0, nil
	}

	nodeDiff := targetT - t.NodeTemp(firstNode)
	logicDiff := comparisonT - averageT
	if nodeDiff <= 0 {
		return 1, nil
	}
	frac := logicDiff / nodeDiff
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return frac, nil
}

func (l Logic) socFractToMeet(ctx Context) (float64, error) {
	t := ctx.Tank()
	n := t.NumNodes()
	mainsC, known := l.socMains(ctx)
	if !known {
		return 0, herr.NewBoundaryError("soc_logic", "state-of-charge logic used without constant mains or live inlet")
	}

	soc, err := t.SoCFraction(mainsC, l.SoC.TempMinUsefulC, ctx.SetpointC())
	if err != nil {
		return 0, err
	}
	comparisonValue := l.SoC.DecisionPoint + l.SoC.HysteresisFraction
	deltaSoC := (comparisonValue + tolMinValue) - soc
	fullNodeSoC := 1.0 / float64(n)
	if deltaSoC >= fullNodeSoC {
		return 1, nil
	}

	calcNode := 0
	for i := n - 1; i >= 0; i-- {
		if t.NodeTemp(i) < l.SoC.TempMinUsefulC {
			calcNode = i + 1
			break
		}
	}
	if calcNode == n {
		return 1, nil
	}

	maxChargePerNode := chargePerNode(ctx.SetpointC(), mainsC, l.SoC.TempMinUsefulC)
	maxSoC := float64(n) * maxChargePerNode
	if maxSoC <= 0 {
		return 1, nil
	}

	nodeT := t.NodeTemp(calcNode)
	span := l.SoC.TempMinUsefulC - mainsC
	if span == 0 {
		return 1, nil
	}
	targetTemp := deltaSoC*maxSoC + (nodeT-mainsC)/span
	targetTemp = targetTemp*span + mainsC

	var fractCalcNode float64
	if nodeT >= ctx.SetpointC() {
		fractCalcNode = 1
	} else {
		fractCalcNode = (targetTemp - nodeT) / (ctx.SetpointC() - nodeT)
	}

	if calcNode == 0 {
		return clip01(fractCalcNode), nil
	}

	prevT := t.NodeTemp(calcNode - 1)
	denom := nodeT - prevT
	if denom == 0 {
		return clip01(fractCalcNode), nil
	}
	fractNextNode := (l.SoC.TempMinUsefulC-prevT)/denom + tolMinValue
	return clip01(math.Min(fractCalcNode, fractNextNode)), nil
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// chargePerNode returns (T - mains) / (minUseful - mains), clipped >= 0.
func chargePerNode(tempC, mainsC, minUsefulC float64) float64 {
	if minUsefulC == mainsC {
		return 0
	}
	c := (tempC - mainsC) / (minUsefulC - mainsC)
	if c < 0 {
		return 0
	}
	return c
}
