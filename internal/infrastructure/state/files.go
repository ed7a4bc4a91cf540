package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/ports"
)

const (
	eventsFile    = "events.json"
	schedulerFile = "state.json"
)

// Files persists the event snapshot and scheduler record as independent
// JSON files. Each record loads independently; a missing file means
// "start from empty", never an error. Writes go through a temporary
// file and a rename so a crash cannot leave a half-written record.
type Files struct {
	dir string
}

var _ ports.StateStore = (*Files)(nil)

// NewFiles creates the state directory if needed.
func NewFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Files{dir: dir}, nil
}

// LoadEvents reads the persisted event snapshot.
func (f *Files) LoadEvents(_ context.Context) ([]domain.NewsEvent, error) {
	var events []domain.NewsEvent
	if err := readJSON(filepath.Join(f.dir, eventsFile), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SaveEvents writes the event snapshot atomically.
func (f *Files) SaveEvents(_ context.Context, events []domain.NewsEvent) error {
	return writeJSON(filepath.Join(f.dir, eventsFile), events)
}

// LoadScheduler reads the persisted scheduler record.
func (f *Files) LoadScheduler(_ context.Context) (domain.SchedulerState, error) {
	var state domain.SchedulerState
	if err := readJSON(filepath.Join(f.dir, schedulerFile), &state); err != nil {
		return domain.SchedulerState{}, err
	}
	return state, nil
}

// SaveScheduler writes the scheduler record atomically.
func (f *Files) SaveScheduler(_ context.Context, state domain.SchedulerState) error {
	return writeJSON(filepath.Join(f.dir, schedulerFile), state)
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
