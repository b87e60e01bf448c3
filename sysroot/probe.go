// Package sysroot locates the Rust toolchain sysroot and derives the child
// process environment for the analysis server.
package sysroot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Prober reports the toolchain sysroot for a given environment.
type Prober interface {
	Probe(ctx context.Context, env map[string]string) (string, error)
}

// SpawnError means the probe command could not be started at all.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("sysroot probe spawn: %v", e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the probe command terminated with a non-zero status.
type ExitError struct {
	Status int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("sysroot probe exited with status %d: %s", e.Status, e.Stderr)
	}
	return fmt.Sprintf("sysroot probe exited with status %d", e.Status)
}

// EmptyOutputError means the probe produced no readable stdout.
type EmptyOutputError struct{}

func (e *EmptyOutputError) Error() string { return "sysroot probe produced no output" }

// RustcProber asks rustc for its sysroot. The command is overridable so tests
// can substitute a scripted binary.
type RustcProber struct {
	Command string
	Args    []string
}

// NewRustcProber returns the default rustc-backed prober.
func NewRustcProber() *RustcProber {
	return &RustcProber{Command: "rustc", Args: []string{"--print", "sysroot"}}
}

// Probe runs the probe command synchronously with the supplied environment
// and returns stdout with trailing newline/carriage-return bytes stripped.
// Retries are the caller's responsibility.
func (p *RustcProber) Probe(ctx context.Context, env map[string]string) (string, error) {
	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Env = flatten(env)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			return "", &ExitError{Status: exit.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return "", &SpawnError{Err: err}
	}
	out := strings.TrimRight(stdout.String(), "\r\n")
	if out == "" {
		return "", &EmptyOutputError{}
	}
	return out, nil
}

// flatten converts an environment map to the KEY=VALUE form exec wants,
// sorted for determinism.
func flatten(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}
