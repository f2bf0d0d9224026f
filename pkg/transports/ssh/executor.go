// Package ssh implements the transports.Executor interface over an SSH
// connection, with file transfer via SFTP.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

// Executor runs commands on a remote host over SSH.
type Executor struct {
	config *Config
	client *ssh.Client
}

// Connect resolves an SSH host alias via ~/.ssh/config and dials it.
func Connect(ctx context.Context, identity string) (*Executor, error) {
	cfg, err := ResolveAlias(identity)
	if err != nil {
		return nil, err
	}
	return ConnectConfig(ctx, cfg)
}

// ConnectConfig dials the host described by cfg.
func ConnectConfig(ctx context.Context, cfg *Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ssh config: %w", err)
	}

	clientConfig, err := cfg.BuildClientConfig()
	if err != nil {
		return nil, &transports.TransportError{
			Op:          "connect",
			Target:      cfg.Address(),
			Err:         err,
			IsAuthError: true,
		}
	}

	log.Debug().Str("address", cfg.Address()).Str("user", cfg.User).Msg("establishing SSH connection")

	connChan := make(chan *ssh.Client, 1)
	errChan := make(chan error, 1)
	go func() {
		client, err := ssh.Dial("tcp", cfg.Address(), clientConfig)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- client
	}()

	select {
	case <-ctx.Done():
		return nil, &transports.TransportError{Op: "connect", Target: cfg.Address(), Err: ctx.Err()}
	case err := <-errChan:
		return nil, &transports.TransportError{
			Op:          "connect",
			Target:      cfg.Address(),
			Err:         err,
			IsAuthError: strings.Contains(err.Error(), "unable to authenticate"),
		}
	case client := <-connChan:
		return &Executor{config: cfg, client: client}, nil
	}
}

// Close terminates the SSH connection.
func (e *Executor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Run executes cmd in a fresh session on the remote host.
func (e *Executor) Run(ctx context.Context, cmd string, opts ...transports.RunOption) (transports.Result, error) {
	o := transports.ApplyOptions(opts)

	if o.Echo {
		log.Info().Str("target", e.Target()).Msg(cmd)
	} else {
		log.Debug().Str("target", e.Target()).Msg(cmd)
	}

	session, err := e.client.NewSession()
	if err != nil {
		return transports.Result{}, &transports.TransportError{Op: "run", Target: e.Target(), Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	finalCmd := cmd
	if env := flattenEnv(o.Env); env != "" {
		finalCmd = env + " " + cmd
	}

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- session.Run(finalCmd)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		runErr = ctx.Err()
	case runErr = <-doneChan:
	}

	res := transports.Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
		ExitOK: runErr == nil,
	}

	if runErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			if o.Warn {
				return res, nil
			}
			return res, &transports.ExitError{Cmd: cmd, Stderr: res.Stderr}
		}
		return res, &transports.TransportError{Op: "run", Target: e.Target(), Err: runErr}
	}
	return res, nil
}

// Put writes content to remotePath via SFTP, creating parent directories.
func (e *Executor) Put(ctx context.Context, content []byte, remotePath string) error {
	client, err := sftp.NewClient(e.client)
	if err != nil {
		return &transports.TransportError{Op: "put", Target: e.Target(), Err: err}
	}
	defer client.Close()

	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return &transports.TransportError{Op: "put", Target: e.Target(), Err: err}
	}

	f, err := client.Create(remotePath)
	if err != nil {
		return &transports.TransportError{Op: "put", Target: e.Target(), Err: err}
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return &transports.TransportError{Op: "put", Target: e.Target(), Err: err}
	}

	log.Debug().Str("path", remotePath).Int("bytes", len(content)).Msg("uploaded file")
	return nil
}

// ReadFile fetches remotePath via SFTP; a missing file is ok=false.
func (e *Executor) ReadFile(ctx context.Context, remotePath string) ([]byte, bool, error) {
	client, err := sftp.NewClient(e.client)
	if err != nil {
		return nil, false, &transports.TransportError{Op: "read", Target: e.Target(), Err: err}
	}
	defer client.Close()

	f, err := client.Open(remotePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &transports.TransportError{Op: "read", Target: e.Target(), Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, &transports.TransportError{Op: "read", Target: e.Target(), Err: err}
	}
	return data, true, nil
}

// Connect dials another host alias from this executor's machine-local
// ssh config. The receiver stays connected.
func (e *Executor) Connect(ctx context.Context, identity string) (transports.Executor, error) {
	return Connect(ctx, identity)
}

// Target identifies the remote connection.
func (e *Executor) Target() string {
	if e.config.Alias != "" && e.config.Alias != e.config.Host {
		return fmt.Sprintf("%s (%s@%s)", e.config.Alias, e.config.User, e.config.Host)
	}
	return fmt.Sprintf("%s@%s", e.config.User, e.config.Host)
}

func flattenEnv(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(env))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, env[k]))
	}
	return strings.Join(parts, " ")
}
