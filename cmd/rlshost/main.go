package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lexcodex/rlshost/app/rlshost/tui"
	"github.com/lexcodex/rlshost/cmd/internal/hostcfg"
	"github.com/lexcodex/rlshost/commands"
	"github.com/lexcodex/rlshost/host"
	"github.com/lexcodex/rlshost/logging"
	"github.com/lexcodex/rlshost/persistence"
	"github.com/lexcodex/rlshost/progress"
	"github.com/lexcodex/rlshost/rpc"
	"github.com/lexcodex/rlshost/surface"
	"github.com/lexcodex/rlshost/sysroot"
	"github.com/lexcodex/rlshost/toolchain"
)

var (
	flagWorkspace string
	flagLogLevel  string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rlshost",
		Short: "Supervises the Rust analysis server for an editor front end",
	}
	root.PersistentFlags().StringVar(&flagWorkspace, "workspace", ".", "Workspace root")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(newRunCmd(), newProbeCmd(), newEnvCmd(), newUpdateCmd(), newSessionsCmd(), newImplsCmd(), newDeglobCmd())
	return root
}

// activation bundles everything a running host session needs.
type activation struct {
	cfg     *hostcfg.Config
	log     zerolog.Logger
	surface surface.Surface
	journal *persistence.SessionStore
	runner  *toolchain.Rustup
	watcher *hostcfg.Watcher
}

func (a *activation) close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

// activate resolves configuration once and builds the shared collaborators.
// Failures past config parsing degrade instead of aborting.
func activate(workspace string, sfc surface.Surface, withWatcher bool) (*activation, error) {
	cfgPath := hostcfg.DefaultPath(workspace)
	cfg, err := hostcfg.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	log := logging.New(logging.Config{Level: level, Pretty: cfg.PrettyLogs}, os.Stderr)
	if sfc == nil {
		sfc = surface.NewConsole(log, os.Stdout)
	}

	act := &activation{
		cfg:     cfg,
		log:     log,
		surface: sfc,
		runner:  toolchain.NewRustup(cfg.Toolchain, log),
	}

	// Deprecated inputs warn exactly once per activation.
	for _, warning := range hostcfg.DetectDeprecated(workspace, os.Getenv) {
		sfc.ShowWarning(warning)
	}

	journalPath := filepath.Join(workspace, ".rlshost", "sessions.db")
	if err := os.MkdirAll(filepath.Dir(journalPath), 0o755); err == nil {
		if journal, jerr := persistence.NewSessionStore(journalPath); jerr != nil {
			log.Warn().Err(jerr).Msg("session journal unavailable")
		} else {
			act.journal = journal
		}
	}

	if withWatcher {
		watcher, werr := hostcfg.Watch(cfgPath, time.Second, func() {
			sfc.ShowWarning("Settings changed; restart rlshost to apply them.")
		}, log)
		if werr != nil {
			log.Warn().Err(werr).Msg("settings watcher unavailable")
		} else {
			act.watcher = watcher
		}
	}

	return act, nil
}

// launchServer builds the environment, spawns the server, and completes the
// protocol handshake. A not-found server is reported as nil client without
// error so callers can stay up in degraded mode.
func launchServer(ctx context.Context, act *activation, workspace string) (*host.Child, *rpc.Client, error) {
	builder := sysroot.NewBuilder(sysroot.NewRustcProber(), act.surface, act.log)
	env := builder.Build(ctx)

	var journal host.Journal
	if act.journal != nil {
		journal = act.journal
	}
	sup := host.NewSupervisor(act.cfg.Launch(workspace), act.runner, act.surface, journal, act.log)
	child, err := sup.Launch(ctx, env)
	if err != nil {
		if errors.Is(err, host.ErrServerNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	client := rpc.NewClient(child.Stream(), act.log)
	tracker := progress.NewTracker(act.surface, act.log)
	client.BindProgress(tracker)
	if err := client.Start(ctx, workspace); err != nil {
		_ = child.Kill()
		return nil, nil, fmt.Errorf("protocol handshake: %w", err)
	}
	return child, client, nil
}

func newRunCmd() *cobra.Command {
	var useTUI bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch and supervise the analysis server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if useTUI {
				return runWithTUI(ctx)
			}
			act, err := activate(flagWorkspace, nil, true)
			if err != nil {
				return err
			}
			defer act.close()
			return supervise(ctx, act)
		},
	}
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Render the status surface in the terminal")
	return cmd
}

func runWithTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ui := tui.New(ctx)

	errCh := make(chan error, 1)
	go func() {
		act, err := activate(flagWorkspace, ui.Surface(), true)
		if err != nil {
			errCh <- err
			cancel()
			return
		}
		defer act.close()
		errCh <- supervise(ctx, act)
	}()

	uiErr := ui.Run()
	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if uiErr != nil && !errors.Is(uiErr, context.Canceled) {
		return uiErr
	}
	return nil
}

// supervise runs one server session to completion: crash, exit, or shutdown.
func supervise(ctx context.Context, act *activation) error {
	child, client, err := launchServer(ctx, act, flagWorkspace)
	if err != nil {
		return err
	}
	if child == nil {
		// Degraded: no server available, nothing to supervise.
		return nil
	}
	defer func() {
		_ = client.Close()
	}()

	select {
	case <-ctx.Done():
		_ = child.Kill()
		<-child.Done()
		return nil
	case fault := <-child.Faults():
		if fault.Err != nil {
			act.surface.SetStatusBar("RLS: crashed")
			return fmt.Errorf("analysis server crashed: %w", fault.Err)
		}
		return nil
	}
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print the detected toolchain sysroot",
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := activate(flagWorkspace, nil, false)
			if err != nil {
				return err
			}
			defer act.close()
			root, err := sysroot.NewRustcProber().Probe(cmd.Context(), envMap())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the environment synthesized for the analysis server",
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := activate(flagWorkspace, nil, false)
			if err != nil {
				return err
			}
			defer act.close()
			builder := sysroot.NewBuilder(sysroot.NewRustcProber(), act.surface, act.log)
			env := builder.Build(cmd.Context())
			if src, ok := env[sysroot.SourcePathVar]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", sysroot.SourcePathVar, src)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is unset (sysroot probe failed)\n", sysroot.SourcePathVar)
			}
			return nil
		},
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update the configured toolchain",
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := activate(flagWorkspace, nil, false)
			if err != nil {
				return err
			}
			defer act.close()
			bindings := commands.NewBindings(nil, act.surface, nil, act.runner, act.log)
			bindings.TriggerUpdate(cmd.Context())
			return nil
		},
	}
}

func newSessionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent analysis server sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := activate(flagWorkspace, nil, false)
			if err != nil {
				return err
			}
			defer act.close()
			if act.journal == nil {
				return errors.New("session journal unavailable")
			}
			sessions, err := act.journal.Recent(limit)
			if err != nil {
				return err
			}
			for _, sess := range sessions {
				outcome := "running"
				if sess.EndedAt != nil {
					outcome = "exited"
					if sess.ExitCode != nil {
						outcome = fmt.Sprintf("exit %d", *sess.ExitCode)
					}
					if sess.Fault != "" {
						outcome += " (" + sess.Fault + ")"
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s  %s\n",
					sess.StartedAt.Local().Format(time.DateTime), sess.Strategy, outcome, sess.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")
	return cmd
}

func envMap() map[string]string {
	env := make(map[string]string)
	for _, pair := range os.Environ() {
		for i := 0; i < len(pair); i++ {
			if pair[i] == '=' {
				env[pair[:i]] = pair[i+1:]
				break
			}
		}
	}
	return env
}
