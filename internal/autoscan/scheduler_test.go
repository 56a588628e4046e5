package autoscan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sha1n/search-every/internal/events"
	"github.com/sha1n/search-every/internal/pipeline"
	"github.com/sha1n/search-every/internal/runstate"
	"github.com/sha1n/search-every/internal/sysinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records calls and blocks each run until release is closed.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []pipeline.Options
	started chan struct{}
	release chan struct{}
	err     error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (f *fakeRunner) Run(ctx context.Context, opts pipeline.Options, _ events.Sink) (pipeline.Summary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	f.started <- struct{}{}

	select {
	case <-f.release:
	case <-ctx.Done():
		return pipeline.Summary{}, ctx.Err()
	}
	return pipeline.Summary{Scanned: 1, Indexed: 1}, f.err
}

func (f *fakeRunner) Calls() []pipeline.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Options(nil), f.calls...)
}

var testConfig = Config{
	Roots:           []string{"/home/user"},
	ExcludePatterns: []string{"/.cache/"},
	IndexDir:        "/var/idx",
	Interval:        time.Hour,
	IdleCPUPercent:  30,
}

func fixedClock() time.Time {
	return time.Date(2026, 5, 1, 3, 0, 0, 0, time.Local)
}

func newScheduler(t *testing.T, runner Runner, cpu float64) (*Scheduler, *runstate.Store, *events.Recorder) {
	t.Helper()
	state := runstate.NewStoreWithClock(t.TempDir(), fixedClock)
	rec := events.NewRecorder()
	s := New(runner, state, sysinfo.Static{CPU: cpu}, func() Config { return testConfig }, rec)
	s.SampleInterval = 0
	t.Cleanup(s.Close)
	return s, state, rec
}

func waitStarted(t *testing.T, f *fakeRunner) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for run to start")
	}
}

func TestStartNow_LaunchesPipeline(t *testing.T) {
	runner := newFakeRunner()
	s, _, rec := newScheduler(t, runner, 0)

	require.NoError(t, s.StartNow(ReasonManual))
	waitStarted(t, runner)

	assert.Equal(t, []string{events.AutoScanStart}, rec.Names())
	payload := rec.Payloads(events.AutoScanStart)[0].(events.AutoScanStartPayload)
	assert.Equal(t, ReasonManual, payload.Reason)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, pipeline.Options{
		Roots:              testConfig.Roots,
		ExcludePatterns:    testConfig.ExcludePatterns,
		IndexDir:           testConfig.IndexDir,
		EnableContentParse: false,
	}, calls[0])

	close(runner.release)
	s.Wait()
	assert.False(t, s.Running())
}

func TestStartNow_RefusesConcurrentRun(t *testing.T) {
	runner := newFakeRunner()
	s, _, rec := newScheduler(t, runner, 0)

	require.NoError(t, s.StartNow(ReasonManual))
	waitStarted(t, runner)
	assert.True(t, s.Running())

	err := s.StartNow(ReasonManual)
	assert.ErrorIs(t, err, ErrAutoScanRunning)
	assert.Equal(t, 1, rec.Count(events.AutoScanStart))

	close(runner.release)
	s.Wait()

	// A finished run frees the slot.
	runner.release = make(chan struct{})
	require.NoError(t, s.StartNow(ReasonManual))
	waitStarted(t, runner)
	close(runner.release)
	s.Wait()
	assert.Len(t, runner.Calls(), 2)
}

func TestStartNow_FailedRunFreesSlot(t *testing.T) {
	runner := newFakeRunner()
	runner.err = errors.New("writer busy")
	close(runner.release)
	s, _, _ := newScheduler(t, runner, 0)

	require.NoError(t, s.StartNow(ReasonManual))
	s.Wait()
	assert.False(t, s.Running())
}

func TestClose_CancelsRun(t *testing.T) {
	runner := newFakeRunner()
	s, _, _ := newScheduler(t, runner, 0)

	require.NoError(t, s.StartNow(ReasonManual))
	waitStarted(t, runner)

	s.Close()
	assert.False(t, s.Running())
	assert.ErrorIs(t, s.StartNow(ReasonManual), context.Canceled)
}

func TestTick(t *testing.T) {
	today := fixedClock().Format(runstate.DayLayout)

	tests := []struct {
		name  string
		state *runstate.State
		cpu   float64
		want  bool
	}{
		{name: "never ran, idle", cpu: 5, want: true},
		{name: "never ran, busy", cpu: 80, want: false},
		{name: "at threshold", cpu: 30, want: false},
		{name: "completed today", state: &runstate.State{LastDay: today, Completed: true}, cpu: 5, want: false},
		{name: "started today, not completed", state: &runstate.State{LastDay: today}, cpu: 5, want: true},
		{name: "completed yesterday", state: &runstate.State{LastDay: "2026-04-30", Completed: true}, cpu: 5, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			close(runner.release)
			s, state, rec := newScheduler(t, runner, tt.cpu)
			if tt.state != nil {
				require.NoError(t, state.Save(*tt.state))
			}

			assert.Equal(t, tt.want, s.tick(context.Background()))
			s.Wait()

			if tt.want {
				payload := rec.Payloads(events.AutoScanStart)[0].(events.AutoScanStartPayload)
				assert.Equal(t, ReasonScheduled, payload.Reason)
				assert.Len(t, runner.Calls(), 1)
			} else {
				assert.Empty(t, runner.Calls())
			}
		})
	}
}

func TestTick_ProbeFailure(t *testing.T) {
	runner := newFakeRunner()
	state := runstate.NewStoreWithClock(t.TempDir(), fixedClock)
	s := New(runner, state, sysinfo.Static{Err: errors.New("no cpu")}, func() Config { return testConfig }, nil)
	t.Cleanup(s.Close)

	assert.False(t, s.tick(context.Background()))
	assert.Empty(t, runner.Calls())
}

func TestRun_StopsOnContextDone(t *testing.T) {
	runner := newFakeRunner()
	close(runner.release)
	s, _, _ := newScheduler(t, runner, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitStarted(t, runner)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_NonPositiveInterval(t *testing.T) {
	runner := newFakeRunner()
	state := runstate.NewStore(t.TempDir())
	cfg := testConfig
	cfg.Interval = 0
	s := New(runner, state, sysinfo.Static{}, func() Config { return cfg }, nil)
	t.Cleanup(s.Close)

	s.Run(context.Background())
	assert.Empty(t, runner.Calls())
}
