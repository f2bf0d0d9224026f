// Package transports defines the executor abstraction used to run shell
// commands and move files, either on the operator's machine or on the
// deployment target over SSH.
package transports

import (
	"context"
	"fmt"
)

// Result holds the output of a single command execution.
type Result struct {
	// Stdout is the trimmed standard output of the command
	Stdout string

	// Stderr is the trimmed standard error of the command
	Stderr string

	// ExitOK is true when the command exited with status zero
	ExitOK bool
}

// Executor runs shell commands and transfers files against one target.
// Implementations are not safe for concurrent use; the pipeline executes
// strictly sequentially.
type Executor interface {
	// Run executes a shell command on the target.
	// A non-zero exit status is an error unless the Warn option is set,
	// in which case it is reported through Result.ExitOK.
	Run(ctx context.Context, cmd string, opts ...RunOption) (Result, error)

	// Put writes content to a file on the target.
	Put(ctx context.Context, content []byte, remotePath string) error

	// ReadFile reads a file from the target. A missing file is not an
	// error: it returns ok=false and a nil error.
	ReadFile(ctx context.Context, remotePath string) ([]byte, bool, error)

	// Connect returns a new executor bound to the given SSH host alias.
	// The receiver remains usable; the caller decides which one later
	// commands run against.
	Connect(ctx context.Context, identity string) (Executor, error)

	// Target describes what the executor runs against, for logging.
	Target() string
}

// RunOption adjusts how a single command is executed.
type RunOption func(*RunOptions)

// RunOptions is the resolved option set for one Run call.
type RunOptions struct {
	// Env is prepended to the command as KEY=VALUE assignments.
	Env map[string]string

	// Echo logs the full command line at info level before running it.
	Echo bool

	// Warn downgrades a non-zero exit status from an error to
	// Result.ExitOK=false.
	Warn bool

	// Interactive attaches the operator's terminal to the command so it
	// can prompt (ssh-copy-id, scp). Only meaningful for the local
	// executor; output is not captured.
	Interactive bool
}

// WithEnv sets environment variables for the command.
func WithEnv(env map[string]string) RunOption {
	return func(o *RunOptions) { o.Env = env }
}

// Echo logs the command line before execution.
func Echo() RunOption {
	return func(o *RunOptions) { o.Echo = true }
}

// Warn tolerates a non-zero exit status.
func Warn() RunOption {
	return func(o *RunOptions) { o.Warn = true }
}

// Interactive attaches the operator's terminal to the command.
func Interactive() RunOption {
	return func(o *RunOptions) { o.Interactive = true }
}

// ApplyOptions resolves a RunOption list into a RunOptions struct.
func ApplyOptions(opts []RunOption) RunOptions {
	var o RunOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TransportError wraps a failure in the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g. "connect", "run", "put")
	Op string

	// Target is the executor target the operation ran against
	Target string

	// Err is the underlying error
	Err error

	// IsAuthError indicates the failure is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ExitError reports a command that ran but exited with a non-zero status.
type ExitError struct {
	Cmd    string
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command failed: %s", e.Cmd)
	}
	return fmt.Sprintf("command failed: %s: %s", e.Cmd, e.Stderr)
}
