// Package toolchain resolves and maintains the Rust toolchain pieces the
// analysis server needs, via rustup.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"os/exec"

	"github.com/rs/zerolog"
)

// DefaultComponents are the toolchain components the server depends on.
var DefaultComponents = []string{"rls", "rust-analysis", "rust-src"}

// Rustup drives the rustup binary. It implements the supervisor's Runner
// contract: it may install missing components before producing the spawn
// command.
type Rustup struct {
	Toolchain  string
	Components []string

	binary string
	log    zerolog.Logger
}

// NewRustup targets the given toolchain channel (e.g. "stable", "nightly").
func NewRustup(toolchain string, log zerolog.Logger) *Rustup {
	if toolchain == "" {
		toolchain = "stable"
	}
	return &Rustup{
		Toolchain:  toolchain,
		Components: DefaultComponents,
		binary:     "rustup",
		log:        log,
	}
}

// Update runs a toolchain update for the configured channel.
func (r *Rustup) Update(ctx context.Context) error {
	r.log.Info().Str("toolchain", r.Toolchain).Msg("updating toolchain")
	_, err := r.run(ctx, "update", r.Toolchain)
	return err
}

// ServerCommand makes sure the toolchain and its components are present and
// returns the command that runs the analysis server through rustup.
func (r *Rustup) ServerCommand(ctx context.Context) (string, []string, error) {
	installed, err := r.hasToolchain(ctx)
	if err != nil {
		return "", nil, err
	}
	if !installed {
		if _, err := r.run(ctx, "toolchain", "install", r.Toolchain); err != nil {
			return "", nil, fmt.Errorf("install toolchain %s: %w", r.Toolchain, err)
		}
	}
	for _, component := range r.Components {
		if _, err := r.run(ctx, "component", "add", component, "--toolchain", r.Toolchain); err != nil {
			return "", nil, fmt.Errorf("add component %s: %w", component, err)
		}
	}
	return r.binary, []string{"run", r.Toolchain, "rls"}, nil
}

func (r *Rustup) hasToolchain(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "toolchain", "list")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), r.Toolchain) {
			return true, nil
		}
	}
	return false, nil
}

// run executes rustup and returns stdout, folding trimmed stderr into the
// error on failure.
func (r *Rustup) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("%s %s: %s", r.binary, strings.Join(args, " "), detail)
		}
		return "", err
	}
	return stdout.String(), nil
}
