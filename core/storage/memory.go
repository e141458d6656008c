package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store. Claims do not survive a restart.
type Memory struct {
	mu     sync.Mutex
	claims map[string]time.Time
	runs   []Run
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{claims: make(map[string]time.Time)}
}

// ClaimWindow records key and reports whether this call claimed it.
func (m *Memory) ClaimWindow(_ context.Context, key string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[key]; ok {
		return false, nil
	}
	m.claims[key] = at
	return true, nil
}

// StartRun appends run with the next id.
func (m *Memory) StartRun(_ context.Context, run Run) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = int64(len(m.runs) + 1)
	if run.Status == "" {
		run.Status = StatusRunning
	}
	m.runs = append(m.runs, run)
	return run.ID, nil
}

// FinishRun updates run id. It returns ErrNotFound for an unknown id.
func (m *Memory) FinishRun(_ context.Context, id int64, status, errText string, parts int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || int(id) > len(m.runs) {
		return fmt.Errorf("finish run %d: %w", id, ErrNotFound)
	}
	r := &m.runs[id-1]
	r.Status = status
	r.Error = errText
	r.Parts = parts
	finished := at
	r.FinishedAt = &finished
	return nil
}

// LastRun returns the most recently started run or ErrNotFound.
func (m *Memory) LastRun(_ context.Context) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return Run{}, ErrNotFound
	}
	return m.runs[len(m.runs)-1], nil
}
