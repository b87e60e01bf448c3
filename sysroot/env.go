package sysroot

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexcodex/rlshost/surface"
)

// SourcePathVar tells the completion subsystem where the standard-library
// sources live.
const SourcePathVar = "RUST_SRC_PATH"

// srcSuffix is the bundled source tree relative to the sysroot.
const srcSuffix = "lib/rustlib/src/rust/src"

// Builder derives the analysis server's process environment. Construction of
// the environment never fails; a failed probe only degrades it.
type Builder struct {
	prober  Prober
	surface surface.Surface
	log     zerolog.Logger

	// ambient and home are overridable for tests.
	ambient func() []string
	home    func() (string, error)
}

// NewBuilder wires a builder around the given prober and editor surface.
func NewBuilder(prober Prober, sfc surface.Surface, log zerolog.Logger) *Builder {
	return &Builder{
		prober:  prober,
		surface: sfc,
		log:     log,
		ambient: os.Environ,
		home:    os.UserHomeDir,
	}
}

// Build returns a complete environment for the child process. If the source
// path variable is already set in the ambient environment it is respected and
// no probe runs. Otherwise the sysroot is probed, once with the ambient PATH
// and once more with ~/.cargo/bin prepended; a second failure surfaces a
// warning and leaves the variable unset.
func (b *Builder) Build(ctx context.Context) map[string]string {
	env := parseEnviron(b.ambient())
	if env[SourcePathVar] != "" {
		return env
	}

	root, err := b.prober.Probe(ctx, env)
	if err != nil {
		b.log.Debug().Err(err).Msg("sysroot probe failed, extending PATH")
		env["PATH"] = b.cargoBinDir() + string(os.PathListSeparator) + env["PATH"]
		root, err = b.prober.Probe(ctx, env)
	}
	if err != nil {
		b.log.Warn().Err(err).Msg("sysroot probe failed after PATH fallback")
		b.surface.ShowWarning("Could not determine the Rust sysroot; standard library completion will be unavailable.")
		return env
	}

	env[SourcePathVar] = filepath.Join(root, filepath.FromSlash(srcSuffix))
	return env
}

// cargoBinDir is the conventional per-user toolchain binary directory.
func (b *Builder) cargoBinDir() string {
	home, err := b.home()
	if err != nil || home == "" {
		home = "~"
	}
	return filepath.Join(home, ".cargo", "bin")
}

func parseEnviron(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	return env
}
