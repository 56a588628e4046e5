package sysinfo

import (
	"context"
	"log/slog"
)

// reservedCores are left free for the producer and the rest of the host.
const reservedCores = 2

// WorkerCount returns the indexing worker count for a physical core count.
// It is never below one.
func WorkerCount(physicalCores int) int {
	return max(1, physicalCores-reservedCores)
}

// DetectWorkers sizes the worker pool from the probe. A failed probe counts
// as zero cores.
func DetectWorkers(ctx context.Context, p Probe) int {
	cores, err := p.PhysicalCores(ctx)
	if err != nil {
		slog.Warn("Failed to detect physical cores", "error", err)
		cores = 0
	}
	return WorkerCount(cores)
}

// DetectTotalMemory returns total memory in bytes, or zero when unknown.
func DetectTotalMemory(ctx context.Context, p Probe) uint64 {
	total, _, err := p.Memory(ctx)
	if err != nil {
		slog.Warn("Failed to detect memory", "error", err)
		return 0
	}
	return total
}
