// Package pressure samples host resource utilization and normalizes it to
// the resource_pressure value the orchestrator feeds into investigation
// state. The consolidation engine itself never samples: it only reads the
// pressure the orchestrator recorded.
package pressure

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sample returns the current host pressure in [0,1]: the worse of CPU and
// memory utilization.
func Sample(ctx context.Context) (float64, error) {
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("sampling CPU utilization: %w", err)
	}
	var cpuLoad float64
	if len(cpuPercents) > 0 {
		cpuLoad = cpuPercents[0] / 100
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("sampling memory utilization: %w", err)
	}
	memLoad := vm.UsedPercent / 100

	return clamp(max(cpuLoad, memLoad)), nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
