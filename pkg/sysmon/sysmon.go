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

// Package sysmon reports process and system resource usage for long-running
// rating procedures (first-hour and 24-hour UEF), invoked by the measure
// subcommand's -stats flag.
package sysmon

import (
	"fmt"
	"os"
	"runtime"

	"hpwhsim/pkg/logger"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type Service struct {
	dir string
	log *logger.Logger
}

func New() *Service {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return &Service{
		log: logger.New("sysmon"),
		dir: dir,
	}
}

// Snapshot is a point-in-time resource usage reading.
type Snapshot struct {
	GoVersion     string
	SystemCPUPct  float64
	ProcessCPUPct float64
	SystemTotal   uint64
	SystemUsed    uint64
	SystemFree    uint64
	ProcessRSS    uint64
	DiskTotal     uint64
	DiskUsed      uint64
	DiskFree      uint64
}

// Capture gathers current CPU, memory, and disk usage. Errors from
// individual gopsutil calls are logged and leave the corresponding field
// zeroed rather than aborting the snapshot.
func (s *Service) Capture() Snapshot {
	snap := Snapshot{GoVersion: runtime.Version()}

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		snap.SystemCPUPct = pcts[0]
	} else if err != nil {
		s.log.Error("cpu.Percent: %v", err)
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		snap.SystemTotal = vmem.Total
		snap.SystemUsed = vmem.Used
		snap.SystemFree = vmem.Available
	} else {
		s.log.Error("mem.VirtualMemory: %v", err)
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if meminfo, err := p.MemoryInfo(); err == nil {
			snap.ProcessRSS = meminfo.RSS
		}
		if pct, err := p.CPUPercent(); err == nil {
			snap.ProcessCPUPct = pct
		}
	}

	if total, free, used, err := DiskUsage(s.dir); err == nil {
		snap.DiskTotal, snap.DiskFree, snap.DiskUsed = total, free, used
	} else {
		s.log.Error("DiskUsage: %v", err)
	}

	return snap
}

// Report renders a Snapshot as a short human-readable summary suitable for
// printing at the end of a rating run.
func (s Snapshot) Report() string {
	return fmt.Sprintf(
		"go=%s cpu_sys=%.1f%% cpu_proc=%.1f%% mem_used=%.2fGB mem_free=%.2fGB proc_rss=%.1fMB disk_used=%.2fGB disk_free=%.2fGB",
		s.GoVersion,
		s.SystemCPUPct, s.ProcessCPUPct,
		float64(s.SystemUsed)/(1<<30), float64(s.SystemFree)/(1<<30),
		float64(s.ProcessRSS)/(1<<20),
		float64(s.DiskUsed)/(1<<30), float64(s.DiskFree)/(1<<30),
	)
}
