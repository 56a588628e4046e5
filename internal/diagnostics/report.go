package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sha1n/search-every/internal/indexstore"
	"github.com/sha1n/search-every/internal/runstate"
	"github.com/sha1n/search-every/internal/sysinfo"
)

// Warning messages.
const (
	WarnNoScanRoots    = "scan roots are empty"
	WarnEmptyIndexDir  = "index dir is empty"
	WarnMissingIndex   = "index dir does not exist"
	warnOpenIndexFault = "open index failed: %v"
)

// Input is the configuration the report describes.
type Input struct {
	IndexDir        string
	ScanRoots       []string
	AutoScanEnabled bool
}

// Report is a point-in-time health summary. Optional fields are nil when the
// value could not be determined.
type Report struct {
	IndexDir          string   `json:"indexDir"`
	IndexOpenOK       bool     `json:"indexOpenOk"`
	DocCount          *uint64  `json:"docCount,omitempty"`
	SchemaFields      []string `json:"schemaFields,omitempty"`
	ScanRootsCount    int      `json:"scanRootsCount"`
	AutoScanEnabled   bool     `json:"autoScanEnabled"`
	PipelineStarted   bool     `json:"pipelineStarted"`
	PipelineCompleted bool     `json:"pipelineCompleted"`
	LastRunDay        *string  `json:"lastRunDay,omitempty"`
	SysCPUAvg         *float64 `json:"sysCpuAvg,omitempty"`
	TotalMemKiB       *uint64  `json:"totalMemKiB,omitempty"`
	FreeMemKiB        *uint64  `json:"freeMemKiB,omitempty"`
	Warnings          []string `json:"warnings"`
}

// Reporter assembles reports from the index, the run state and the host.
type Reporter struct {
	registry *indexstore.Registry
	state    *runstate.Store
	probe    sysinfo.Probe

	// CPUSampleInterval is how long CPU load is measured for.
	CPUSampleInterval time.Duration
}

// NewReporter creates a reporter.
func NewReporter(registry *indexstore.Registry, state *runstate.Store, probe sysinfo.Probe) *Reporter {
	return &Reporter{
		registry:          registry,
		state:             state,
		probe:             probe,
		CPUSampleInterval: sysinfo.DefaultSampleInterval,
	}
}

// Report builds a report for in. It never fails; problems are listed in
// Warnings.
func (r *Reporter) Report(ctx context.Context, in Input) Report {
	rep := Report{
		IndexDir:        in.IndexDir,
		ScanRootsCount:  len(in.ScanRoots),
		AutoScanEnabled: in.AutoScanEnabled,
		Warnings:        []string{},
	}

	if len(in.ScanRoots) == 0 {
		rep.Warnings = append(rep.Warnings, WarnNoScanRoots)
	}
	if strings.TrimSpace(in.IndexDir) == "" {
		rep.Warnings = append(rep.Warnings, WarnEmptyIndexDir)
	}

	if _, err := os.Stat(in.IndexDir); err != nil {
		rep.Warnings = append(rep.Warnings, WarnMissingIndex)
	} else {
		r.inspectIndex(in.IndexDir, &rep)
	}

	st := r.state.Load()
	rep.PipelineStarted = st.Started()
	rep.PipelineCompleted = st.Completed
	if st.LastDay != "" {
		day := st.LastDay
		rep.LastRunDay = &day
	}

	r.inspectHost(ctx, &rep)

	slog.Info("Diagnostics report generated", "warnings", len(rep.Warnings))
	return rep
}

func (r *Reporter) inspectIndex(dir string, rep *Report) {
	index, release, err := r.registry.OpenReader(dir)
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf(warnOpenIndexFault, err))
		return
	}
	defer release()

	rep.IndexOpenOK = true
	rep.SchemaFields = indexstore.SchemaFields()
	if count, err := index.DocCount(); err == nil {
		rep.DocCount = &count
	} else {
		slog.Warn("Failed to count documents", "dir", dir, "error", err)
	}
}

func (r *Reporter) inspectHost(ctx context.Context, rep *Report) {
	if total, free, err := r.probe.Memory(ctx); err == nil {
		totalKiB, freeKiB := total/1024, free/1024
		rep.TotalMemKiB = &totalKiB
		rep.FreeMemKiB = &freeKiB
	} else {
		slog.Debug("Memory probe failed", "error", err)
	}

	if cpu, err := r.probe.CPUPercent(ctx, r.CPUSampleInterval); err == nil {
		rep.SysCPUAvg = &cpu
	} else {
		slog.Debug("CPU probe failed", "error", err)
	}
}
