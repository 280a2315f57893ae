package generator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"rentcat/internal/rentcat"
)

// Stage is one external command of the pipeline. Stages run in order.
type Stage struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	// Env entries (KEY=value) are added to the inherited environment.
	Env []string
}

// Runner executes a single stage. Implementations never panic on a failing
// command; the failure is reported in the result.
type Runner interface {
	Run(ctx context.Context, stage Stage) rentcat.StageResult
}

// ExecRunner runs stages as child processes and captures their output.
type ExecRunner struct {
	// CatalogPath is exported to every stage as CATALOG_PATH.
	CatalogPath string
}

func (r *ExecRunner) Run(ctx context.Context, stage Stage) rentcat.StageResult {
	cmd := exec.CommandContext(ctx, stage.Command, stage.Args...)
	cmd.Dir = stage.Dir
	cmd.Env = append(os.Environ(), "CATALOG_PATH="+r.CatalogPath)
	cmd.Env = append(cmd.Env, stage.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := rentcat.StageResult{
		Name:     stage.Name,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Err = err
		if ctx.Err() != nil {
			res.Err = ctx.Err()
		}
	}
	return res
}
