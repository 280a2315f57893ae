package testutil

import (
	"context"
	"sync"

	"rentcat/internal/generator"
	"rentcat/internal/rentcat"
)

// FakeRunner records the stages it is asked to run and returns canned
// results. Stages without a canned result succeed.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []string
	Results map[string]rentcat.StageResult

	// Started, if set, receives each stage name as it starts.
	Started chan string
	// Release, if set, holds every stage until it is closed or ctx ends.
	Release chan struct{}
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Results: make(map[string]rentcat.StageResult)}
}

// Fail makes the named stage exit with code and write stderr.
func (r *FakeRunner) Fail(stage string, code int, stderr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results[stage] = rentcat.StageResult{Name: stage, ExitCode: code, Stderr: stderr}
}

func (r *FakeRunner) Run(ctx context.Context, stage generator.Stage) rentcat.StageResult {
	r.mu.Lock()
	r.calls = append(r.calls, stage.Name)
	res, ok := r.Results[stage.Name]
	r.mu.Unlock()

	if r.Started != nil {
		r.Started <- stage.Name
	}
	if r.Release != nil {
		select {
		case <-r.Release:
		case <-ctx.Done():
			return rentcat.StageResult{Name: stage.Name, ExitCode: -1, Err: ctx.Err()}
		}
	}
	if !ok {
		res = rentcat.StageResult{Name: stage.Name, Stdout: stage.Name + " ok\n"}
	}
	return res
}

// Calls returns the stage names run so far, in order.
func (r *FakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
