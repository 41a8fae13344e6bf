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

// Package units isolates Fahrenheit/gallon conversions. No other package in
// this module imports it (the CLI, internal/rating, and internal/simulator
// write the gallon-to-liter factor inline); internal computation stays in
// Celsius, liters, kJ, W, and minutes throughout.
package units

const (
	inchesPerGallonCubed = 231.0 // in^3 / gal (U.S., exact)
	metersPerInch        = 0.0254
	litersPerCubicMeter  = 1000.0
)

var litersPerGallon = inchesPerGallonCubed * metersPerInch * metersPerInch * metersPerInch * litersPerCubicMeter

// CToF converts a Celsius temperature to Fahrenheit.
func CToF(c float64) float64 {
	return c*(9.0/5.0) + 32.0
}

// FToC converts a Fahrenheit temperature to Celsius.
func FToC(f float64) float64 {
	return (f - 32.0) * (5.0 / 9.0)
}

// CToK converts Celsius to Kelvin.
func CToK(c float64) float64 {
	return c + 273.15
}

// KToC converts Kelvin to Celsius.
func KToC(k float64) float64 {
	return k - 273.15
}

// GalToL converts U.S. gallons to liters.
func GalToL(gal float64) float64 {
	return gal * litersPerGallon
}

// LToGal converts liters to U.S. gallons.
func LToGal(l float64) float64 {
	return l / litersPerGallon
}

// KJToBtu converts kilojoules to British thermal units (IT).
func KJToBtu(kj float64) float64 {
	return kj / 1.05505585262
}

// BtuToKJ converts British thermal units (IT) to kilojoules.
func BtuToKJ(btu float64) float64 {
	return btu * 1.05505585262
}
