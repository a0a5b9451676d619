package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/sidekick/internal/backend"
	"github.com/loykin/sidekick/internal/logger"
	"github.com/loykin/sidekick/internal/origin"
	"github.com/loykin/sidekick/internal/supervisor"
)

// Env override names. The spawn contract allows the host/port to be
// overridden without editing the config file.
const (
	EnvBackendHost = "SIDEKICK_BACKEND_HOST"
	EnvBackendPort = "SIDEKICK_BACKEND_PORT"
)

// FileConfig is the top-level TOML structure of sidekick.toml.
type FileConfig struct {
	Context   string          `toml:"context" mapstructure:"context"`
	Env       []string        `toml:"env" mapstructure:"env"`
	Backend   BackendConfig   `toml:"backend" mapstructure:"backend"`
	Readiness ReadinessConfig `toml:"readiness" mapstructure:"readiness"`
	Origins   OriginsConfig   `toml:"origins" mapstructure:"origins"`
	Control   ControlConfig   `toml:"control" mapstructure:"control"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
}

type BackendConfig struct {
	Name        string        `toml:"name" mapstructure:"name"`
	Command     string        `toml:"command" mapstructure:"command"`
	Args        []string      `toml:"args" mapstructure:"args"`
	WorkDir     string        `toml:"workdir" mapstructure:"workdir"`
	Env         []string      `toml:"env" mapstructure:"env"`
	Host        string        `toml:"host" mapstructure:"host"`
	Port        int           `toml:"port" mapstructure:"port"`
	HealthPath  string        `toml:"health_path" mapstructure:"health_path"`
	Marker      string        `toml:"marker" mapstructure:"marker"`
	MarkerAny   bool          `toml:"marker_any" mapstructure:"marker_any"`
	GracePeriod time.Duration `toml:"grace_period" mapstructure:"grace_period"`
	// Runtime discovery: bundled paths win over system candidates.
	BundledRuntimes   []string `toml:"bundled_runtimes" mapstructure:"bundled_runtimes"`
	RuntimeCandidates []string `toml:"runtime_candidates" mapstructure:"runtime_candidates"`
}

type ReadinessConfig struct {
	MaxAttempts  int           `toml:"max_attempts" mapstructure:"max_attempts"`
	Interval     time.Duration `toml:"interval" mapstructure:"interval"`
	ProbeTimeout time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`
}

type OriginsConfig struct {
	DevPort  int      `toml:"dev_port" mapstructure:"dev_port"`
	AllowAll bool     `toml:"allow_all" mapstructure:"allow_all"`
	Extra    []string `toml:"extra" mapstructure:"extra"`
}

type ControlConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type LogConfig struct {
	Level   string        `toml:"level" mapstructure:"level"`
	File    string        `toml:"file" mapstructure:"file"`
	Capture logger.Config `toml:"capture" mapstructure:"capture"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Path    string `toml:"path" mapstructure:"path"`
}

// DefaultControlListen is where the control API binds; loopback only.
const DefaultControlListen = "127.0.0.1:8091"

// Load parses the TOML file at path, applies defaults and env overrides and
// validates the result.
func Load(path string) (FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return FileConfig{}, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, err
	}
	fc.applyDefaults()
	if err := fc.applyEnvOverrides(); err != nil {
		return FileConfig{}, err
	}
	if err := fc.Validate(); err != nil {
		return FileConfig{}, err
	}
	return fc, nil
}

func (fc *FileConfig) applyDefaults() {
	if fc.Backend.Name == "" {
		fc.Backend.Name = "backend"
	}
	if fc.Backend.Host == "" {
		fc.Backend.Host = origin.DefaultHost
	}
	if fc.Backend.Port <= 0 {
		fc.Backend.Port = origin.DefaultPort
	}
	if fc.Control.Listen == "" {
		fc.Control.Listen = DefaultControlListen
	}
	if fc.Control.BasePath == "" {
		fc.Control.BasePath = "/api"
	}
}

func (fc *FileConfig) applyEnvOverrides() error {
	if h := os.Getenv(EnvBackendHost); h != "" {
		fc.Backend.Host = h
	}
	if p := os.Getenv(EnvBackendPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s=%q", EnvBackendPort, p)
		}
		fc.Backend.Port = port
	}
	return nil
}

// Validate rejects configs that cannot produce a working supervisor.
func (fc *FileConfig) Validate() error {
	if fc.Backend.Command == "" {
		return fmt.Errorf("backend.command is required")
	}
	if fc.Backend.MarkerAny && fc.Backend.Marker != "" {
		return fmt.Errorf("backend.marker and backend.marker_any are mutually exclusive")
	}
	if _, err := origin.ParseContext(fc.Context); err != nil {
		return err
	}
	if fc.Readiness.Interval > 0 && fc.Readiness.ProbeTimeout >= fc.Readiness.Interval {
		return fmt.Errorf("readiness.probe_timeout must be shorter than readiness.interval")
	}
	return nil
}

// ExecutionContext returns the parsed execution context.
func (fc *FileConfig) ExecutionContext() origin.Context {
	c, _ := origin.ParseContext(fc.Context)
	return c
}

// Spec converts the backend section into a launch spec.
func (fc *FileConfig) Spec() backend.Spec {
	return backend.Spec{
		Name:    fc.Backend.Name,
		Command: fc.Backend.Command,
		Args:    fc.Backend.Args,
		WorkDir: fc.Backend.WorkDir,
		Env:     fc.Backend.Env,
		Host:    fc.Backend.Host,
		Port:    fc.Backend.Port,
		Log:     fc.Log.Capture,
	}
}

// RetryPolicy converts the readiness section, falling back to the fixed
// 15 x 1s default budget.
func (fc *FileConfig) RetryPolicy() supervisor.RetryPolicy {
	return supervisor.RetryPolicy{
		MaxAttempts:  fc.Readiness.MaxAttempts,
		Interval:     fc.Readiness.Interval,
		ProbeTimeout: fc.Readiness.ProbeTimeout,
	}.Normalize()
}

// Resolver converts the origins section.
func (fc *FileConfig) Resolver() origin.Resolver {
	return origin.Resolver{
		Host:     fc.Backend.Host,
		Port:     fc.Backend.Port,
		DevPort:  fc.Origins.DevPort,
		AllowAll: fc.Origins.AllowAll,
		Extra:    fc.Origins.Extra,
	}
}
