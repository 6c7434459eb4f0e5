package pipeline

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// StageStatus is the state of one stage within a run.
type StageStatus string

const (
	StatusQueued    StageStatus = "queued"
	StatusRunning   StageStatus = "running"
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
	StatusSkipped   StageStatus = "skipped"
)

// StageRun tracks one stage through a run.
type StageRun struct {
	mu sync.Mutex

	Name       string
	Status     StageStatus
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
	UpdatedAt  time.Time
}

func newStageRun(name string) *StageRun {
	now := time.Now()
	return &StageRun{Name: name, Status: StatusQueued, UpdatedAt: now}
}

// SetStatus moves the stage to status, stamping start and finish times.
func (s *StageRun) SetStatus(status StageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	switch status {
	case StatusRunning:
		s.StartedAt = now
	case StatusCompleted, StatusFailed:
		s.FinishedAt = now
	}
	s.Status = status
	s.UpdatedAt = now
}

// Fail records err and marks the stage failed.
func (s *StageRun) Fail(err error) {
	s.mu.Lock()
	s.Err = err.Error()
	s.mu.Unlock()
	s.SetStatus(StatusFailed)
}

// StageSnapshot is a JSON-safe copy of stage state.
type StageSnapshot struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

func (s *StageRun) Snapshot() StageSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StageSnapshot{Name: s.Name, Status: s.Status, Error: s.Err}
	if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
		snap.DurationMs = s.FinishedAt.Sub(s.StartedAt).Milliseconds()
	}
	return snap
}

// FileHashHex returns the hex SHA-256 of a file's contents.
func FileHashHex(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
