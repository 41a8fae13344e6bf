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

// Package calibration names the handful of "calibration constants" the
// legacy HPWHsim source hard-codes (shrinkage/mixing factors, aspect
// ratio, fluid properties) as a single loadable struct instead of scattered
// literals, following the named-value YAML config pattern of
// pkg/modbus.LoadConfig.
package calibration

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Constants holds the model-wide physical and empirical constants used by
// the tank and heat-source algorithms. A preset may ship its own overlay
// file; absent that, Default() is used.
type Constants struct {
	// AspectRatio is the fixed tank height-to-radius ratio used to derive
	// surface area and radius from volume: height = AspectRatio * radius.
	AspectRatio float64 `yaml:"aspect_ratio"`

	// CpWaterKJperKgC is water's specific heat capacity.
	CpWaterKJperKgC float64 `yaml:"cp_water_kj_per_kg_c"`

	// DensityWaterKgPerL is water's density at typical operating
	// temperature.
	DensityWaterKgPerL float64 `yaml:"density_water_kg_per_l"`

	// KWaterWPerMC is water's thermal conductivity, used by the
	// conduction stability check.
	KWaterWPerMC float64 `yaml:"k_water_w_per_m_c"`

	// MixBelowFactor is the fixed fraction toward the mean used when
	// mixing the bottom region on a draw. It is independent of
	// mix_below_fraction, which only selects how many nodes participate.
	MixBelowFactor float64 `yaml:"mix_below_factor"`

	// TolMinValue is a small tolerance added when comparing a computed
	// value against a decision point, to avoid oscillating on equality.
	TolMinValue float64 `yaml:"tol_min_value"`
}

// Default returns the constants used when no calibration overlay is
// configured. CpWaterKJperKgC, DensityWaterKgPerL, and KWaterWPerMC are
// the well-known physical values for liquid water near typical DHW
// operating temperature; the filtered original_source headers available
// for this port did not carry their exact legacy literals (see DESIGN.md).
func Default() Constants {
	return Constants{
		AspectRatio:        4.75,
		CpWaterKJperKgC:    4.180,
		DensityWaterKgPerL: 0.995,
		KWaterWPerMC:       0.620,
		MixBelowFactor:     1.0 / 3.0,
		TolMinValue:        1e-8,
	}
}

// LoadFile reads a YAML calibration overlay, starting from Default() and
// overriding only the fields present in the file.
func LoadFile(path string) (Constants, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}
