package hostcfg

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/rlshost/host"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "stable", cfg.Toolchain)
	require.Equal(t, "error", cfg.RevealOutput)
	require.False(t, cfg.LogToFile)
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".rlshost", "config.yaml")
	in := Default()
	in.ServerPath = "/opt/rls/bin/rls"
	in.MirrorStderr = true
	in.RevealOutput = "info"
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_path: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLaunchConversion(t *testing.T) {
	cfg := Default()
	cfg.ServerRoot = "/src/rls"
	cfg.LogToFile = true
	cfg.RevealOutput = "info"

	launch := cfg.Launch("/work")
	require.Equal(t, host.LaunchConfig{
		Workspace:  "/work",
		ServerRoot: "/src/rls",
		LogToFile:  true,
		Reveal:     host.RevealInfo,
	}, launch)
}

func TestDetectDeprecatedEnvVars(t *testing.T) {
	env := map[string]string{"RLS_PATH": "/old/rls", "RLS_ROOT": "/old/src"}
	warnings := DetectDeprecated(t.TempDir(), func(key string) string { return env[key] })
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0], "RLS_PATH")
	require.Contains(t, warnings[1], "RLS_ROOT")
}

func TestDetectDeprecatedConfigFile(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "rls.toml"), []byte("unstable_features = true\n"), 0o644))

	warnings := DetectDeprecated(workspace, func(string) string { return "" })
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "rls.toml")
}

func TestDetectDeprecatedCleanWorkspace(t *testing.T) {
	warnings := DetectDeprecated(t.TempDir(), func(string) string { return "" })
	require.Empty(t, warnings)
}

func TestWatcherFiresOnSettingsEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	var fired atomic.Int32
	w, err := Watch(path, 50*time.Millisecond, func() { fired.Add(1) }, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))
	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	var fired atomic.Int32
	w, err := Watch(path, 20*time.Millisecond, func() { fired.Add(1) }, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	require.Zero(t, fired.Load())
}
