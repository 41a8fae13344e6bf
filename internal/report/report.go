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

// Package report replaces the legacy DEBUG/TEST global flags with a
// per-instance reporter supplied at construction, per spec.md §9's "Global
// state" design note. The core never writes to stdout or a log file
// itself; it only calls Reporter.
package report

import (
	"fmt"

	"hpwhsim/pkg/logger"
)

// Reporter receives non-fatal diagnostics from the core: out-of-range
// warnings (spec.md §7 kind 3) and informational step notes. It never
// aborts a step; the core continues regardless of what a Reporter does
// with a call.
type Reporter interface {
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

// Nop discards everything. It is the zero-value-safe default for callers
// that don't care about diagnostics (e.g. most unit tests).
type Nop struct{}

func (Nop) Warnf(string, ...any) {}
func (Nop) Infof(string, ...any) {}

// Logger adapts pkg/logger.Logger to the Reporter interface, the way the
// CLI driver wires diagnostics in production.
type Logger struct {
	log *logger.Logger
}

// NewLogger builds a Logger-backed Reporter with the given subsystem
// prefix, following pkg/logger's per-prefix child logger pattern.
func NewLogger(prefix string) *Logger {
	return &Logger{log: logger.New(prefix)}
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log.Error(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.log.Info(format, args...)
}

// Collector accumulates diagnostics in memory instead of emitting them
// immediately, used by tests that want to assert on warnings raised
// during a step.
type Collector struct {
	Warnings []string
	Infos    []string
}

func (c *Collector) Warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *Collector) Infof(format string, args ...any) {
	c.Infos = append(c.Infos, fmt.Sprintf(format, args...))
}
