package sysinfo

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultSampleInterval is how long CPU usage is sampled.
const DefaultSampleInterval = 500 * time.Millisecond

// Probe reports host resources.
type Probe interface {
	// PhysicalCores returns the number of physical CPU cores.
	PhysicalCores(ctx context.Context) (int, error)
	// Memory returns total and free memory in bytes.
	Memory(ctx context.Context) (total, free uint64, err error)
	// CPUPercent returns the average CPU usage across all cores over interval.
	CPUPercent(ctx context.Context, interval time.Duration) (float64, error)
}

// HostProbe reads resources from the running host.
type HostProbe struct{}

// NewHostProbe creates a probe for the running host.
func NewHostProbe() *HostProbe {
	return &HostProbe{}
}

// PhysicalCores implements Probe.
func (HostProbe) PhysicalCores(ctx context.Context) (int, error) {
	n, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to count physical cores: %w", err)
	}
	return n, nil
}

// Memory implements Probe.
func (HostProbe) Memory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read memory: %w", err)
	}
	return vm.Total, vm.Free, nil
}

// CPUPercent implements Probe.
func (HostProbe) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	usage, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, fmt.Errorf("failed to sample cpu usage: %w", err)
	}
	if len(usage) == 0 {
		return 0, fmt.Errorf("failed to sample cpu usage: no data")
	}
	return usage[0], nil
}

// Static is a Probe returning fixed values, for tests and callers that have
// already measured the host.
type Static struct {
	Cores    int
	TotalMem uint64
	FreeMem  uint64
	CPU      float64
	Err      error
}

// PhysicalCores implements Probe.
func (s Static) PhysicalCores(context.Context) (int, error) {
	return s.Cores, s.Err
}

// Memory implements Probe.
func (s Static) Memory(context.Context) (uint64, uint64, error) {
	return s.TotalMem, s.FreeMem, s.Err
}

// CPUPercent implements Probe.
func (s Static) CPUPercent(context.Context, time.Duration) (float64, error) {
	return s.CPU, s.Err
}
