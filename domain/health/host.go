package health

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostProbe reads host load and memory. The funcs are swapped out in tests.
type hostProbe struct {
	loadAvg  func(context.Context) (*load.AvgStat, error)
	memStats func(context.Context) (*mem.VirtualMemoryStat, error)
	cpuCores func() int
}

func defaultHostProbe() hostProbe {
	return hostProbe{
		loadAvg:  load.AvgWithContext,
		memStats: mem.VirtualMemoryWithContext,
		cpuCores: runtime.NumCPU,
	}
}

// HostInfo is the host section of the debug report. Fields the platform
// cannot report are left out.
type HostInfo struct {
	CPUCores         int      `json:"cpu_cores"`
	Load1            *float64 `json:"load_1,omitempty"`
	Load5            *float64 `json:"load_5,omitempty"`
	Load15           *float64 `json:"load_15,omitempty"`
	MemoryTotalMB    *uint64  `json:"memory_total_mb,omitempty"`
	MemoryUsedPct    *float64 `json:"memory_used_percent,omitempty"`
	MemoryAvailMB    *uint64  `json:"memory_available_mb,omitempty"`
	CollectionErrors []string `json:"collection_errors,omitempty"`
}

func (p hostProbe) collect(ctx context.Context) HostInfo {
	info := HostInfo{CPUCores: p.cpuCores()}

	if l, err := p.loadAvg(ctx); err == nil {
		info.Load1, info.Load5, info.Load15 = &l.Load1, &l.Load5, &l.Load15
	} else {
		info.CollectionErrors = append(info.CollectionErrors, "load: "+err.Error())
	}

	if v, err := p.memStats(ctx); err == nil {
		total, avail := v.Total/1024/1024, v.Available/1024/1024
		info.MemoryTotalMB, info.MemoryAvailMB = &total, &avail
		info.MemoryUsedPct = &v.UsedPercent
	} else {
		info.CollectionErrors = append(info.CollectionErrors, "memory: "+err.Error())
	}
	return info
}
