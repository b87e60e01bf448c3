// Package host launches and supervises the external analysis server process.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os/exec"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexcodex/rlshost/surface"
)

// Strategy identifies how the server was (or would be) spawned.
type Strategy string

const (
	StrategyPath      Strategy = "path"      // explicit executable from configuration
	StrategyRoot      Strategy = "root"      // cargo build-and-run from a source checkout
	StrategyToolchain Strategy = "toolchain" // resolved through the toolchain runner
)

// Reveal is the output-channel reveal threshold.
type Reveal int

const (
	RevealDebug Reveal = iota
	RevealInfo
	RevealWarn
	RevealError
	RevealNever
)

// ParseReveal maps a configuration string onto a threshold, defaulting to
// error for unknown values.
func ParseReveal(s string) Reveal {
	switch s {
	case "debug":
		return RevealDebug
	case "info":
		return RevealInfo
	case "warn", "warning":
		return RevealWarn
	case "never":
		return RevealNever
	default:
		return RevealError
	}
}

// LaunchConfig is the immutable per-activation launch configuration.
type LaunchConfig struct {
	Workspace       string
	ServerPath      string
	ServerRoot      string
	UpdateOnStartup bool
	LogToFile       bool
	MirrorStderr    bool
	Reveal          Reveal
}

// Runner is the toolchain collaborator used by the lowest-priority launch
// strategy. It may resolve and update the toolchain before producing the
// spawn command.
type Runner interface {
	Update(ctx context.Context) error
	ServerCommand(ctx context.Context) (name string, args []string, err error)
}

// SessionRecord describes a launch attempt for the journal.
type SessionRecord struct {
	ID         string
	Strategy   Strategy
	Executable string
	Workspace  string
	StartedAt  time.Time
}

// Journal persists session lifecycle events. A nil journal disables
// recording; journal failures never affect the launch.
type Journal interface {
	RecordStart(rec SessionRecord) error
	RecordEnd(id string, exitCode int, fault string) error
}

// ErrServerNotFound marks a spawn failure caused by a missing executable. It
// is recoverable: a warning has already been surfaced and activation should
// continue without a server.
var ErrServerNotFound = errors.New("analysis server executable not found")

// Supervisor spawns the analysis server and owns its lifecycle observers.
type Supervisor struct {
	cfg     LaunchConfig
	runner  Runner
	surface surface.Surface
	journal Journal
	log     zerolog.Logger

	now func() time.Time
}

// NewSupervisor threads the launch configuration and collaborators in
// explicitly; the supervisor holds no process-wide state.
func NewSupervisor(cfg LaunchConfig, runner Runner, sfc surface.Surface, journal Journal, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		runner:  runner,
		surface: sfc,
		journal: journal,
		log:     log,
		now:     time.Now,
	}
}

// Launch spawns the server using the first matching strategy and attaches the
// configured observers. The environment map is copied before use. Callers
// must not retry a failed launch automatically.
func (s *Supervisor) Launch(ctx context.Context, env map[string]string) (*Child, error) {
	if s.cfg.UpdateOnStartup && s.runner != nil {
		// The update must finish, successfully or not, before any spawn.
		if err := s.runner.Update(ctx); err != nil {
			s.log.Warn().Err(err).Msg("toolchain update failed")
			s.surface.ShowWarning(fmt.Sprintf("Toolchain update failed: %v", err))
		}
	}

	name, args, dir, strategy, err := s.resolveCommand(ctx)
	if err != nil {
		return nil, s.reject(fmt.Errorf("resolve server command: %w", err))
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = flattenEnv(maps.Clone(env))

	child := &Child{
		SessionID:     uuid.NewString(),
		Strategy:      strategy,
		cmd:           cmd,
		faults:        make(chan Fault, 1),
		done:          make(chan struct{}),
		stderrDrained: make(chan struct{}),
		log:           s.log,
	}

	if child.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, s.reject(fmt.Errorf("stdin pipe: %w", err))
	}
	if child.stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, s.reject(fmt.Errorf("stdout pipe: %w", err))
	}
	if child.stderr, err = cmd.StderrPipe(); err != nil {
		return nil, s.reject(fmt.Errorf("stderr pipe: %w", err))
	}

	sinks := s.stderrSinks(child)

	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			s.log.Warn().Str("command", name).Msg("server executable not found")
			s.surface.ShowWarning(fmt.Sprintf("Could not start the analysis server: %q was not found on the path.", name))
			child.closeAll()
			return nil, ErrServerNotFound
		}
		child.closeAll()
		return nil, s.reject(fmt.Errorf("spawn %s: %w", name, err))
	}

	s.log.Info().
		Str("session", child.SessionID).
		Str("strategy", string(strategy)).
		Str("command", name).
		Int("pid", child.PID()).
		Msg("analysis server started")

	if s.journal != nil {
		rec := SessionRecord{
			ID:         child.SessionID,
			Strategy:   strategy,
			Executable: name,
			Workspace:  s.cfg.Workspace,
			StartedAt:  s.now(),
		}
		if jerr := s.journal.RecordStart(rec); jerr != nil {
			s.log.Warn().Err(jerr).Msg("session journal write failed")
		}
	}

	go s.drainStderr(child, sinks)
	go s.await(child)

	return child, nil
}

// resolveCommand picks the launch strategy in fixed priority order.
func (s *Supervisor) resolveCommand(ctx context.Context) (name string, args []string, dir string, strategy Strategy, err error) {
	switch {
	case s.cfg.ServerPath != "":
		return s.cfg.ServerPath, nil, s.cfg.Workspace, StrategyPath, nil
	case s.cfg.ServerRoot != "":
		return "cargo", []string{"run", "--release"}, s.cfg.ServerRoot, StrategyRoot, nil
	case s.runner != nil:
		name, args, err = s.runner.ServerCommand(ctx)
		return name, args, s.cfg.Workspace, StrategyToolchain, err
	default:
		return "", nil, "", "", errors.New("no launch strategy available")
	}
}

// reject handles the no-handle failure path: persistent status message, error
// propagated, no retry.
func (s *Supervisor) reject(err error) error {
	s.log.Error().Err(err).Msg("analysis server launch rejected")
	s.surface.SetStatusBar("RLS: startup failed")
	return err
}

// stderrSinks assembles the enabled stderr observers.
func (s *Supervisor) stderrSinks(child *Child) []io.Writer {
	var sinks []io.Writer
	if s.cfg.LogToFile {
		file, err := openSessionLog(s.cfg.Workspace, s.now())
		if err != nil {
			s.log.Warn().Err(err).Msg("session log unavailable")
			s.surface.ShowWarning(fmt.Sprintf("Could not open the session log file: %v", err))
		} else {
			child.addCloser(file)
			sinks = append(sinks, &logWriter{file: file, surface: s.surface, log: s.log})
		}
	}
	if s.cfg.MirrorStderr {
		out := s.surface.Output()
		if s.cfg.Reveal <= RevealInfo {
			out.Show(false)
		}
		sinks = append(sinks, &mirrorWriter{channel: out})
	}
	return sinks
}

func (s *Supervisor) drainStderr(child *Child, sinks []io.Writer) {
	defer close(child.stderrDrained)
	var dst io.Writer = io.Discard
	if len(sinks) == 1 {
		dst = sinks[0]
	} else if len(sinks) > 1 {
		dst = io.MultiWriter(sinks...)
	}
	if _, err := io.Copy(dst, child.stderr); err != nil {
		s.log.Debug().Err(err).Msg("stderr stream ended")
	}
}

// await delivers the one-shot fault once the process exits and releases the
// child's resources. Wait closes the stdio pipes, so it must not run until
// the stderr copy has seen EOF.
func (s *Supervisor) await(child *Child) {
	<-child.stderrDrained
	err := child.cmd.Wait()
	fault := Fault{Err: err, ExitCode: child.cmd.ProcessState.ExitCode()}
	if err != nil {
		s.log.Error().
			Str("session", child.SessionID).
			Int("exit_code", fault.ExitCode).
			Err(err).
			Msg("analysis server exited abnormally")
	} else {
		s.log.Info().Str("session", child.SessionID).Msg("analysis server exited")
	}
	if s.journal != nil {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		if jerr := s.journal.RecordEnd(child.SessionID, fault.ExitCode, detail); jerr != nil {
			s.log.Warn().Err(jerr).Msg("session journal write failed")
		}
	}
	child.closeAll()
	child.faults <- fault
	close(child.done)
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func flattenEnv(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}
