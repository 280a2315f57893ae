package testutil

import (
	"context"
	"sync"

	"rentcat/internal/rentcat"
)

// MemoryRecorder keeps activity events and regeneration runs in memory and
// serves them back newest first, like the sqlite history.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []rentcat.ActivityEvent
	runs   []rentcat.RegenerationResult
	Err    error
}

func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{} }

func (r *MemoryRecorder) Record(event string, details map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, rentcat.ActivityEvent{
		ID:      int64(len(r.events) + 1),
		Event:   event,
		Details: details,
	})
	return nil
}

func (r *MemoryRecorder) RecordRun(run rentcat.RegenerationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.runs = append(r.runs, run)
	return nil
}

func (r *MemoryRecorder) ListActivity(limit int) ([]rentcat.ActivityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return newestFirst(r.events, limit), nil
}

func (r *MemoryRecorder) ListRuns(limit int) ([]rentcat.RegenerationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return newestFirst(r.runs, limit), nil
}

// Events returns the recorded event names in order.
func (r *MemoryRecorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Event
	}
	return names
}

func newestFirst[T any](items []T, limit int) []T {
	out := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, items[i])
	}
	return out
}

// FakeRegenerator returns a canned result and counts calls.
type FakeRegenerator struct {
	mu     sync.Mutex
	calls  []bool
	Result rentcat.RegenerationResult
	Err    error
}

// NewFakeRegenerator returns a regenerator whose runs complete.
func NewFakeRegenerator() *FakeRegenerator {
	return &FakeRegenerator{Result: rentcat.RegenerationResult{RunID: "run-1", Outcome: rentcat.OutcomeCompleted}}
}

func (g *FakeRegenerator) Run(_ context.Context, force bool) (rentcat.RegenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, force)
	res := g.Result
	res.Forced = force
	return res, g.Err
}

// Calls returns the force flag of every call.
func (g *FakeRegenerator) Calls() []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]bool(nil), g.calls...)
}
