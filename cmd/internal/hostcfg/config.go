// Package hostcfg loads the per-workspace launch configuration.
package hostcfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/rlshost/host"
)

// Config models the workspace settings file. Every field is optional; the
// zero value plus defaults is a valid configuration.
type Config struct {
	ServerPath      string `yaml:"server_path"`
	ServerRoot      string `yaml:"server_root"`
	Toolchain       string `yaml:"toolchain"`
	UpdateOnStartup bool   `yaml:"update_on_startup"`
	LogToFile       bool   `yaml:"log_to_file"`
	MirrorStderr    bool   `yaml:"mirror_stderr"`
	RevealOutput    string `yaml:"reveal_output"`
	LogLevel        string `yaml:"log_level"`
	PrettyLogs      bool   `yaml:"pretty_logs"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Toolchain:    "stable",
		RevealOutput: "error",
		LogLevel:     "info",
	}
}

// DefaultPath returns the workspace settings path.
func DefaultPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".rlshost", "config.yaml")
}

// Load reads the YAML settings file, falling back to defaults when the file
// is absent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the settings back, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Launch converts the settings into the supervisor's immutable launch
// configuration for the given workspace.
func (c *Config) Launch(workspace string) host.LaunchConfig {
	return host.LaunchConfig{
		Workspace:       workspace,
		ServerPath:      c.ServerPath,
		ServerRoot:      c.ServerRoot,
		UpdateOnStartup: c.UpdateOnStartup,
		LogToFile:       c.LogToFile,
		MirrorStderr:    c.MirrorStderr,
		Reveal:          host.ParseReveal(c.RevealOutput),
	}
}

// DetectDeprecated reports one-shot warnings for superseded configuration
// inputs: the RLS_PATH/RLS_ROOT environment variables and a workspace-root
// rls.toml. Detection is read-only; the inputs are not honored.
func DetectDeprecated(workspace string, getenv func(string) string) []string {
	var warnings []string
	if getenv("RLS_PATH") != "" {
		warnings = append(warnings, "The RLS_PATH environment variable is deprecated; set server_path in "+DefaultPath(workspace)+" instead.")
	}
	if getenv("RLS_ROOT") != "" {
		warnings = append(warnings, "The RLS_ROOT environment variable is deprecated; set server_root in "+DefaultPath(workspace)+" instead.")
	}
	if _, err := os.Stat(filepath.Join(workspace, "rls.toml")); err == nil {
		warnings = append(warnings, "rls.toml in the workspace root is deprecated; move its settings into "+DefaultPath(workspace)+".")
	}
	return warnings
}
