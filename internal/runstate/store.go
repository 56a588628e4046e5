package runstate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// StateFilename is the run-state file inside the state directory.
	StateFilename = "scan_state.json"

	// DayLayout formats the local calendar day recorded in State.LastDay.
	DayLayout = "2006-01-02"
)

// State records the most recent pipeline run. There is one record per state
// directory, shared by every index directory; IndexDir only records which
// directory the last run targeted.
type State struct {
	LastDay   string    `json:"last_day,omitempty"`
	Completed bool      `json:"completed"`
	IndexDir  string    `json:"index_dir,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Started reports whether a run was started and has not completed.
func (s State) Started() bool {
	return s.LastDay != "" && !s.Completed
}

// Due reports whether a daily run is needed: either no run happened on today
// or the last one did not complete.
func (s State) Due(today string) bool {
	return s.LastDay != today || !s.Completed
}

// Store persists State as JSON.
type Store struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewStore creates a store for <stateDir>/scan_state.json.
func NewStore(stateDir string) *Store {
	return NewStoreWithClock(stateDir, time.Now)
}

// NewStoreWithClock creates a store that reads the current time from now.
func NewStoreWithClock(stateDir string, now func() time.Time) *Store {
	return &Store{
		path: filepath.Join(stateDir, StateFilename),
		now:  now,
	}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Today returns the current local day in DayLayout.
func (s *Store) Today() string {
	return s.now().Local().Format(DayLayout)
}

// Load reads the state. A missing or unreadable file yields the zero State;
// failures are logged and never returned.
func (s *Store) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save writes st to disk atomically.
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(st)
}

// MarkStarted records that a run targeting indexDir started today.
func (s *Store) MarkStarted(indexDir string) error {
	return s.mark(indexDir, false)
}

// MarkCompleted records that a run targeting indexDir completed today.
func (s *Store) MarkCompleted(indexDir string) error {
	return s.mark(indexDir, true)
}

func (s *Store) mark(indexDir string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return s.saveLocked(State{
		LastDay:   now.Local().Format(DayLayout),
		Completed: completed,
		IndexDir:  indexDir,
		UpdatedAt: now.UTC(),
	})
}

func (s *Store) loadLocked() State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read run state, using defaults", "path", s.path, "error", err)
		}
		return State{}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("Failed to parse run state, using defaults", "path", s.path, "error", err)
		return State{}
	}
	return st
}

// saveLocked uses write-to-temp + rename so readers never see a torn file.
func (s *Store) saveLocked(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run state temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename run state file: %w", err)
	}
	return nil
}
