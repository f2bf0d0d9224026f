// Package pipeline executes the ordered task lists behind each top-level
// command. Steps run strictly in order against a shared context; the
// first failure halts the run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

// outcome tags a step result.
type outcome int

// The zero value is a halt, so a forgotten constructor can never make a
// failed step look successful.
const (
	outcomeHalt outcome = iota
	outcomeContinue
	outcomeReplace
)

// Result is the tagged outcome of one step: continue with the unchanged
// context, halt the pipeline, or replace the bound executor for all
// subsequent steps.
type Result struct {
	kind outcome
	err  error
	exec transports.Executor
}

// Continue keeps executing with the unchanged context.
func Continue() Result {
	return Result{kind: outcomeContinue}
}

// Halt stops the pipeline. err may be nil for an expected negative
// signal that was already reported by the step.
func Halt(err error) Result {
	return Result{kind: outcomeHalt, err: err}
}

// Haltf stops the pipeline with a formatted error.
func Haltf(format string, args ...any) Result {
	return Result{kind: outcomeHalt, err: fmt.Errorf(format, args...)}
}

// Replace swaps the bound executor and continues.
func Replace(exec transports.Executor) Result {
	return Result{kind: outcomeReplace, exec: exec}
}

// IsHalt reports whether the result stops the pipeline. Useful for steps
// built from smaller halting pieces.
func (r Result) IsHalt() bool {
	return r.kind == outcomeHalt
}

// Step is one named unit of work in a command's fixed execution list.
type Step struct {
	Name string
	Run  func(ctx context.Context, c *Context) Result
}

// HaltError is returned by Runner.Run when a step halted the pipeline.
type HaltError struct {
	// Step is the name of the step that halted
	Step string

	// Err is the step's error, nil for a bare negative signal
	Err error
}

func (e *HaltError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pipeline halted at step %s", e.Step)
	}
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *HaltError) Unwrap() error {
	return e.Err
}

// Ledger records pipeline progress for later inspection. A nil ledger
// disables recording.
type Ledger interface {
	RecordStep(ctx context.Context, runID string, seq int, step, status, message string) error
}

// Step event statuses written to the ledger.
const (
	StepStatusOK     = "ok"
	StepStatusHalted = "halted"
)

// Runner executes step lists.
type Runner struct {
	// Ledger, when non-nil, receives one event per executed step.
	Ledger Ledger

	// RunID identifies the run in the ledger.
	RunID string
}

// Run executes steps in order against c. It returns the final context,
// which differs from the initial one only in its bound executor. On halt
// it returns a nil context and a *HaltError naming the offending step;
// the nil context is the "no result" sentinel, never a partially valid
// one.
func (r *Runner) Run(ctx context.Context, c *Context, steps []Step) (*Context, error) {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, &HaltError{Step: step.Name, Err: err}
		}

		log.Info().Str("step", step.Name).Str("target", c.Exec.Target()).Msg("executing step")

		res := step.Run(ctx, c)
		switch res.kind {
		case outcomeContinue:
			r.record(ctx, i, step.Name, StepStatusOK, "")
		case outcomeReplace:
			if res.exec == nil {
				r.record(ctx, i, step.Name, StepStatusHalted, "replace with nil executor")
				return nil, &HaltError{Step: step.Name, Err: fmt.Errorf("step produced a nil executor")}
			}
			log.Info().Str("step", step.Name).Str("target", res.exec.Target()).Msg("switching executor")
			c.Exec = res.exec
			r.record(ctx, i, step.Name, StepStatusOK, "executor replaced")
		case outcomeHalt:
			msg := ""
			if res.err != nil {
				msg = res.err.Error()
				log.Error().Str("step", step.Name).Err(res.err).Msg("step failed, halting")
			} else {
				log.Warn().Str("step", step.Name).Msg("step signalled halt")
			}
			r.record(ctx, i, step.Name, StepStatusHalted, msg)
			return nil, &HaltError{Step: step.Name, Err: res.err}
		}
	}
	return c, nil
}

func (r *Runner) record(ctx context.Context, seq int, step, status, message string) {
	if r.Ledger == nil {
		return
	}
	if err := r.Ledger.RecordStep(ctx, r.RunID, seq, step, status, message); err != nil {
		log.Warn().Err(err).Str("step", step).Msg("failed to record step event")
	}
}
