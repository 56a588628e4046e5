package sysinfo

import (
	"context"
	"errors"
	"testing"
)

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		cores int
		want  int
	}{
		{-1, 1},
		{0, 1},
		{1, 1},
		{2, 1},
		{3, 1},
		{4, 2},
		{16, 14},
	}

	for _, tt := range tests {
		if got := WorkerCount(tt.cores); got != tt.want {
			t.Errorf("WorkerCount(%d) = %d, want %d", tt.cores, got, tt.want)
		}
	}
}

func TestDetectWorkers(t *testing.T) {
	ctx := context.Background()

	if got := DetectWorkers(ctx, Static{Cores: 8}); got != 6 {
		t.Errorf("DetectWorkers = %d, want 6", got)
	}
	if got := DetectWorkers(ctx, Static{Err: errors.New("boom")}); got != 1 {
		t.Errorf("DetectWorkers on error = %d, want 1", got)
	}
}

func TestDetectTotalMemory(t *testing.T) {
	ctx := context.Background()

	if got := DetectTotalMemory(ctx, Static{TotalMem: 1 << 30}); got != 1<<30 {
		t.Errorf("DetectTotalMemory = %d", got)
	}
	if got := DetectTotalMemory(ctx, Static{Err: errors.New("boom")}); got != 0 {
		t.Errorf("DetectTotalMemory on error = %d, want 0", got)
	}
}

func TestHostProbe(t *testing.T) {
	if testing.Short() {
		t.Skip("samples the host")
	}
	ctx := context.Background()
	p := NewHostProbe()

	cores, err := p.PhysicalCores(ctx)
	if err != nil {
		t.Skipf("physical core count unavailable: %v", err)
	}
	if cores < 0 {
		t.Errorf("PhysicalCores = %d", cores)
	}

	total, free, err := p.Memory(ctx)
	if err != nil {
		t.Fatalf("Memory failed: %v", err)
	}
	if total == 0 || free > total {
		t.Errorf("Unexpected memory: total=%d free=%d", total, free)
	}

	usage, err := p.CPUPercent(ctx, 0)
	if err != nil {
		t.Fatalf("CPUPercent failed: %v", err)
	}
	if usage < 0 || usage > 100 {
		t.Errorf("CPUPercent = %f", usage)
	}
}
