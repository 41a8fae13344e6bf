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

// Package csvout writes the per-minute simulation CSV output described in
// spec.md §6: minute, Ta_C, inletT_C, draw_gal, per-source input_kJ/
// output_kJ pairs, then n thermocouple temperatures, with a header row
// emitted once.
package csvout

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"

	"hpwhsim/internal/simulator"
)

// Writer emits StepResult rows to an underlying io.Writer.
type Writer struct {
	w           *csv.Writer
	nThermo     int
	wroteHeader bool
	minute      int
}

// New wraps w, reporting nThermocouples resampled temperatures per row.
func New(w io.Writer, nThermocouples int) *Writer {
	return &Writer{w: csv.NewWriter(w), nThermo: nThermocouples}
}

// WriteStep appends one minute's row, deriving thermocouple readings from
// the step's node temperature vector.
func (c *Writer) WriteStep(step simulator.StepResult) error {
	c.minute++
	if !c.wroteHeader {
		if err := c.writeHeader(step); err != nil {
			return err
		}
	}

	row := []string{
		fmt.Sprintf("%d", c.minute),
		fmt.Sprintf("%.4f", step.AmbientTempC),
		fmt.Sprintf("%.4f", step.InletTempC),
		fmt.Sprintf("%.4f", step.DrawGal),
	}
	for _, s := range step.Sources {
		row = append(row, fmt.Sprintf("%.4f", s.InputKJ), fmt.Sprintf("%.4f", s.OutputKJ))
	}
	for _, t := range resampleThermocouples(step.NodeTempsC, c.nThermo) {
		row = append(row, fmt.Sprintf("%.4f", t))
	}
	return c.w.Write(row)
}

func (c *Writer) writeHeader(step simulator.StepResult) error {
	header := []string{"minute", "Ta_C", "inletT_C", "draw_gal"}
	for _, s := range step.Sources {
		header = append(header, s.ID+"_input_kJ", s.ID+"_output_kJ")
	}
	for i := 0; i < c.nThermo; i++ {
		header = append(header, fmt.Sprintf("thermocouple_%d_T_C", i))
	}
	if err := c.w.Write(header); err != nil {
		return err
	}
	c.wroteHeader = true
	return nil
}

// Flush flushes any buffered rows and returns the first write error
// encountered, if any.
func (c *Writer) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// resampleThermocouples bands nodeTemps into n equal groups and averages
// each, the same scheme as tank.Tank.NthThermocoupleT.
func resampleThermocouples(nodeTemps []float64, n int) []float64 {
	if n <= 0 || len(nodeTemps) == 0 {
		return nil
	}
	out := make([]float64, n)
	bandSize := float64(len(nodeTemps)) / float64(n)
	for i := 0; i < n; i++ {
		lo := int(math.Round(float64(i) * bandSize))
		hi := int(math.Round(float64(i+1) * bandSize))
		if hi <= lo {
			hi = lo + 1
		}
		if hi > len(nodeTemps) {
			hi = len(nodeTemps)
		}
		sum := 0.0
		for j := lo; j < hi; j++ {
			sum += nodeTemps[j]
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
