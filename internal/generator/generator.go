// Package generator regenerates the static site by running an ordered list
// of external stages. At most one run happens at a time across processes,
// and unforced runs inside the cooldown after a completed run are skipped.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rentcat/internal/fs"
	"rentcat/internal/rentcat"
)

// Options configures an Orchestrator.
type Options struct {
	LockPath  string
	StampPath string
	// Cooldown is the debounce window after a completed run. Zero disables it.
	Cooldown time.Duration
	Stages   []Stage
}

// StageError reports the first failing stage of a run.
type StageError struct {
	Stage    string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
	}
	msg := fmt.Sprintf("stage %q exited with code %d", e.Stage, e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *StageError) Unwrap() []error {
	if e.Err != nil {
		return []error{rentcat.ErrGeneratorStageFailed, e.Err}
	}
	return []error{rentcat.ErrGeneratorStageFailed}
}

// Status is a snapshot of the pipeline state.
type Status struct {
	Running       bool
	RunID         string    // set while Running
	LastCompleted time.Time // zero if never completed
	CooldownLeft  time.Duration
}

// Orchestrator implements rentcat.Regenerator.
type Orchestrator struct {
	opts     Options
	runner   Runner
	clock    rentcat.Clock
	ids      rentcat.IDGenerator
	logger   rentcat.Logger
	recorder rentcat.RunRecorder
}

var _ rentcat.Regenerator = (*Orchestrator)(nil)

func New(opts Options, runner Runner, clock rentcat.Clock, ids rentcat.IDGenerator, logger rentcat.Logger, recorder rentcat.RunRecorder) *Orchestrator {
	if recorder == nil {
		recorder = rentcat.NopRecorder{}
	}
	return &Orchestrator{
		opts:     opts,
		runner:   runner,
		clock:    clock,
		ids:      ids,
		logger:   logger,
		recorder: recorder,
	}
}

// Run regenerates the site. A busy lock or an active cooldown is not an
// error: the result's Outcome says what happened. A failing stage stops the
// run and returns a *StageError.
func (o *Orchestrator) Run(ctx context.Context, force bool) (rentcat.RegenerationResult, error) {
	res := rentcat.RegenerationResult{
		RunID:     o.ids.New(),
		Forced:    force,
		StartedAt: o.clock.Now(),
	}

	lock, err := tryLock(o.opts.LockPath)
	if errors.Is(err, errLocked) {
		o.logger.Info("regeneration already running, skipping", "run_id", res.RunID)
		return o.finish(res, rentcat.OutcomeSkippedLocked), nil
	}
	if err != nil {
		return res, fmt.Errorf("acquiring regeneration lock: %w", err)
	}
	hpath := holderPath(o.opts.LockPath)
	if err := writeHolder(hpath, holder{PID: os.Getpid(), RunID: res.RunID}); err != nil {
		o.logger.Warn("writing lock holder", "path", hpath, "error", err)
	}
	defer func() {
		if err := os.Remove(hpath); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("removing lock holder", "path", hpath, "error", err)
		}
		if err := lock.release(); err != nil {
			o.logger.Warn("releasing regeneration lock", "error", err)
		}
	}()

	if !force && o.opts.Cooldown > 0 {
		last, err := o.lastCompleted()
		if err != nil {
			o.logger.Warn("ignoring unreadable regeneration stamp", "path", o.opts.StampPath, "error", err)
		} else if !last.IsZero() && res.StartedAt.Sub(last) < o.opts.Cooldown {
			o.logger.Info("regeneration debounced", "run_id", res.RunID, "last_completed", last)
			return o.finish(res, rentcat.OutcomeSkippedDebounced), nil
		}
	}

	o.logger.Info("regeneration started", "run_id", res.RunID, "forced", force, "stages", len(o.opts.Stages))
	for _, stage := range o.opts.Stages {
		sr := o.runner.Run(ctx, stage)
		res.Stages = append(res.Stages, sr)
		o.logStage(res.RunID, sr)

		if !sr.OK() {
			serr := &StageError{Stage: sr.Name, ExitCode: sr.ExitCode, Stdout: sr.Stdout, Stderr: sr.Stderr, Err: sr.Err}
			res.Error = serr.Error()
			res = o.finish(res, rentcat.OutcomeFailed)
			o.logger.Error("regeneration failed", "run_id", res.RunID, "stage", sr.Name, "error", serr)
			return res, serr
		}
	}

	if err := o.writeStamp(o.clock.Now()); err != nil {
		o.logger.Warn("writing regeneration stamp", "path", o.opts.StampPath, "error", err)
	}
	res = o.finish(res, rentcat.OutcomeCompleted)
	o.logger.Info("regeneration completed", "run_id", res.RunID, "duration", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// Status reports whether a run is in progress and when the last run
// completed. It reads the holder file written by Run and never takes the
// lock, so it cannot make a concurrent Run skip.
func (o *Orchestrator) Status() (Status, error) {
	var st Status
	h, ok, err := readHolder(holderPath(o.opts.LockPath))
	if err != nil {
		o.logger.Warn("ignoring unreadable lock holder", "error", err)
	} else if ok && processAlive(h.PID) {
		st.Running = true
		st.RunID = h.RunID
	}

	last, err := o.lastCompleted()
	if err != nil {
		return st, err
	}
	st.LastCompleted = last
	if !last.IsZero() {
		if left := o.opts.Cooldown - o.clock.Now().Sub(last); left > 0 {
			st.CooldownLeft = left
		}
	}
	return st, nil
}

func (o *Orchestrator) finish(res rentcat.RegenerationResult, outcome rentcat.Outcome) rentcat.RegenerationResult {
	res.Outcome = outcome
	res.FinishedAt = o.clock.Now()
	if outcome.Ran() {
		if err := o.recorder.RecordRun(res); err != nil {
			o.logger.Warn("recording regeneration run", "run_id", res.RunID, "error", err)
		}
	}
	return res
}

func (o *Orchestrator) logStage(runID string, sr rentcat.StageResult) {
	args := []any{
		"run_id", runID,
		"stage", sr.Name,
		"exit_code", sr.ExitCode,
		"duration", sr.Duration,
		"stdout_bytes", len(sr.Stdout),
		"stderr_bytes", len(sr.Stderr),
	}
	if sr.OK() {
		o.logger.Info("stage finished", args...)
		o.logger.Debug("stage output", "run_id", runID, "stage", sr.Name, "stdout", sr.Stdout, "stderr", sr.Stderr)
		return
	}
	if sr.Err != nil {
		args = append(args, "error", sr.Err)
	}
	o.logger.Error("stage failed", append(args, "stdout", sr.Stdout, "stderr", sr.Stderr)...)
}

// lastCompleted reads the stamp file. A missing stamp is the zero time.
func (o *Orchestrator) lastCompleted() (time.Time, error) {
	raw, err := os.ReadFile(o.opts.StampPath)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading stamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(raw)))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stamp: %w", err)
	}
	return t, nil
}

func (o *Orchestrator) writeStamp(t time.Time) error {
	if err := os.MkdirAll(filepath.Dir(o.opts.StampPath), 0o755); err != nil {
		return err
	}
	_, err := fs.WriteFile(o.opts.StampPath, strings.NewReader(t.Format(time.RFC3339Nano)+"\n"), fs.Options{})
	return err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
