// Package local implements the transports.Executor interface for the
// operator's own machine. Every pipeline starts here; Connect hands off
// to the SSH executor once the deployment account is reachable.
package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/transports"
	sshx "github.com/opaldeploy/opaldeploy/pkg/transports/ssh"
)

// Executor runs commands through the local shell.
type Executor struct {
	// Shell is the shell binary used to interpret commands (default sh).
	Shell string
}

// New returns a local executor using /bin/sh.
func New() *Executor {
	return &Executor{Shell: "sh"}
}

// Run executes cmd through the local shell.
func (e *Executor) Run(ctx context.Context, cmd string, opts ...transports.RunOption) (transports.Result, error) {
	o := transports.ApplyOptions(opts)

	if o.Echo {
		log.Info().Str("target", e.Target()).Msg(cmd)
	} else {
		log.Debug().Str("target", e.Target()).Msg(cmd)
	}

	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}

	c := exec.CommandContext(ctx, shell, "-c", cmd)
	c.Env = append(os.Environ(), flattenEnv(o.Env)...)

	var stdout, stderr bytes.Buffer
	if o.Interactive {
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	err := c.Run()
	res := transports.Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
		ExitOK: err == nil,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if o.Warn {
				return res, nil
			}
			return res, &transports.ExitError{Cmd: cmd, Stderr: res.Stderr}
		}
		return res, &transports.TransportError{Op: "run", Target: e.Target(), Err: err}
	}
	return res, nil
}

// Put writes content to a local path, creating parent directories.
func (e *Executor) Put(ctx context.Context, content []byte, remotePath string) error {
	if err := os.MkdirAll(filepath.Dir(remotePath), 0o755); err != nil {
		return &transports.TransportError{Op: "put", Target: e.Target(), Err: err}
	}
	if err := os.WriteFile(remotePath, content, 0o644); err != nil {
		return &transports.TransportError{Op: "put", Target: e.Target(), Err: err}
	}
	return nil
}

// ReadFile reads a local file; a missing file is reported as ok=false.
func (e *Executor) ReadFile(ctx context.Context, remotePath string) ([]byte, bool, error) {
	data, err := os.ReadFile(remotePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &transports.TransportError{Op: "read", Target: e.Target(), Err: err}
	}
	return data, true, nil
}

// Connect resolves the SSH host alias and returns a remote executor.
func (e *Executor) Connect(ctx context.Context, identity string) (transports.Executor, error) {
	return sshx.Connect(ctx, identity)
}

// Target identifies the local machine.
func (e *Executor) Target() string {
	return "local"
}

func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(env))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
