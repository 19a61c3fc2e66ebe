// Package config provides the ProjectConfig struct and loader for
// .mobench.yaml project-level configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mobility-bench/mobench/internal/replay"
)

// Default values for project configuration. New() references them and
// no other code should duplicate them.
const (
	DefaultDatasetPath = "cases.yaml"
	DefaultResultsDir  = "results/"
	DefaultCacheDir    = ".mobench-cache"

	DefaultFramework   = "native"
	DefaultMode        = string(replay.ModeSandbox)
	DefaultWorkers     = 4
	DefaultMaxAttempts = 3
	DefaultMaxSteps    = 10
	DefaultTimeoutSec  = 300

	DefaultIntentThreshold = 0.7
)

// PathsConfig holds the dataset, results, and replay cache locations.
type PathsConfig struct {
	Dataset string `yaml:"dataset,omitempty"`
	Results string `yaml:"results,omitempty"`
	Cache   string `yaml:"cache,omitempty"`
}

// RunConfig holds execution parameters for a benchmark run.
type RunConfig struct {
	Models      []string `yaml:"models,omitempty"`
	Framework   string   `yaml:"framework,omitempty"`
	Mode        string   `yaml:"mode,omitempty"`
	Workers     int      `yaml:"workers,omitempty"`
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	MaxSteps    int      `yaml:"max_steps,omitempty"`
	TimeoutSec  int      `yaml:"timeout,omitempty"`
}

// MetricsConfig holds scoring thresholds.
type MetricsConfig struct {
	IntentThreshold float64 `yaml:"intent_threshold,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .mobench.yaml.
type ProjectConfig struct {
	Paths   PathsConfig   `yaml:"paths,omitempty"`
	Run     RunConfig     `yaml:"run,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Dataset: DefaultDatasetPath,
			Results: DefaultResultsDir,
			Cache:   DefaultCacheDir,
		},
		Run: RunConfig{
			Framework:   DefaultFramework,
			Mode:        DefaultMode,
			Workers:     DefaultWorkers,
			MaxAttempts: DefaultMaxAttempts,
			MaxSteps:    DefaultMaxSteps,
			TimeoutSec:  DefaultTimeoutSec,
		},
		Metrics: MetricsConfig{
			IntentThreshold: DefaultIntentThreshold,
		},
	}
}

// Load finds .mobench.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults. If no
// config file is found, returns defaults with a nil error. Real I/O
// errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading .mobench.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .mobench.yaml: %w", err)
	}

	mergeConfig(cfg, &fileCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *ProjectConfig) Validate() error {
	if c.Run.Mode != string(replay.ModeLive) && c.Run.Mode != string(replay.ModeSandbox) {
		return fmt.Errorf("config: run.mode must be %q or %q, got %q", replay.ModeLive, replay.ModeSandbox, c.Run.Mode)
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("config: run.workers must be positive, got %d", c.Run.Workers)
	}
	if c.Run.MaxAttempts < 1 {
		return fmt.Errorf("config: run.max_attempts must be positive, got %d", c.Run.MaxAttempts)
	}
	if c.Run.MaxSteps < 1 {
		return fmt.Errorf("config: run.max_steps must be positive, got %d", c.Run.MaxSteps)
	}
	if c.Run.TimeoutSec < 1 {
		return fmt.Errorf("config: run.timeout must be positive, got %d", c.Run.TimeoutSec)
	}
	if t := c.Metrics.IntentThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("config: metrics.intent_threshold must be in (0, 1], got %g", t)
	}
	return nil
}

// findConfigFile walks up from dir looking for .mobench.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".mobench.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Paths.Dataset != "" {
		dst.Paths.Dataset = src.Paths.Dataset
	}
	if src.Paths.Results != "" {
		dst.Paths.Results = src.Paths.Results
	}
	if src.Paths.Cache != "" {
		dst.Paths.Cache = src.Paths.Cache
	}

	if len(src.Run.Models) > 0 {
		dst.Run.Models = append([]string(nil), src.Run.Models...)
	}
	if src.Run.Framework != "" {
		dst.Run.Framework = src.Run.Framework
	}
	if src.Run.Mode != "" {
		dst.Run.Mode = src.Run.Mode
	}
	if src.Run.Workers > 0 {
		dst.Run.Workers = src.Run.Workers
	}
	if src.Run.MaxAttempts > 0 {
		dst.Run.MaxAttempts = src.Run.MaxAttempts
	}
	if src.Run.MaxSteps > 0 {
		dst.Run.MaxSteps = src.Run.MaxSteps
	}
	if src.Run.TimeoutSec > 0 {
		dst.Run.TimeoutSec = src.Run.TimeoutSec
	}

	if src.Metrics.IntentThreshold > 0 {
		dst.Metrics.IntentThreshold = src.Metrics.IntentThreshold
	}
}
