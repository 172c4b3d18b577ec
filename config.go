package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Limetric/schemaferry/internal/dialect"
)

// MigrationConfig holds the full TOML-driven migration configuration.
type MigrationConfig struct {
	Dialect         string          `toml:"dialect"`         // oracle|postgres
	DialectVersion  string          `toml:"dialect_version"` // empty: ask the server
	Workers         int             `toml:"workers"`
	ContinueOnError bool            `toml:"continue_on_error"`
	Journal         string          `toml:"journal"` // SQLite file, empty disables the journal
	Target          TargetConfig    `toml:"target"`
	Model           ModelConfig     `toml:"model"`
	Hooks           HooksConfig     `toml:"hooks"`
	Translate       TranslateConfig `toml:"translate"`
	Metrics         MetricsConfig   `toml:"metrics"`

	// configDir is the directory containing the TOML file, used to resolve relative paths.
	configDir string
}

type TargetConfig struct {
	DSN string `toml:"dsn"`
}

// ModelConfig names the schema descriptions to migrate between. Without a
// current model the target's catalog is read instead.
type ModelConfig struct {
	Current string `toml:"current"`
	Desired string `toml:"desired"`
}

type HooksConfig struct {
	BeforeBackfill []string `toml:"before_backfill"`
	AfterBackfill  []string `toml:"after_backfill"`
}

type TranslateConfig struct {
	Verify bool `toml:"verify"`
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	Pushgateway string `toml:"pushgateway"`
	Job         string `toml:"job"`
}

// loadConfig reads a TOML config file and returns a MigrationConfig with defaults applied.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := MigrationConfig{
		Translate: TranslateConfig{Verify: true},
		Metrics:   MetricsConfig{Job: "schemaferry"},
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers()
	}

	cfg.Dialect = strings.ToLower(strings.TrimSpace(cfg.Dialect))
	if cfg.Dialect == "" {
		return nil, fmt.Errorf("dialect is required (must be oracle or postgres)")
	}
	if _, err := dialect.New(cfg.Dialect, dialect.Version{}); err != nil {
		return nil, err
	}
	if cfg.DialectVersion != "" {
		if _, err := dialect.ParseVersion(cfg.DialectVersion); err != nil {
			return nil, fmt.Errorf("dialect_version: %w", err)
		}
	}

	if cfg.Model.Desired == "" {
		return nil, fmt.Errorf("model.desired is required")
	}
	if cfg.Target.DSN == "" && cfg.Model.Current == "" {
		return nil, fmt.Errorf("target.dsn or model.current is required")
	}
	if cfg.Target.DSN == "" && cfg.DialectVersion == "" {
		return nil, fmt.Errorf("dialect_version is required without target.dsn")
	}

	if cfg.Metrics.Pushgateway != "" && !cfg.Metrics.Enabled {
		return nil, fmt.Errorf("metrics.pushgateway requires metrics.enabled")
	}

	return &cfg, nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// newDialect returns the configured dialect at v, or at dialect_version when
// it is set.
func (c *MigrationConfig) newDialect(v dialect.Version) (dialect.Dialect, error) {
	if c.DialectVersion != "" {
		parsed, err := dialect.ParseVersion(c.DialectVersion)
		if err != nil {
			return nil, fmt.Errorf("dialect_version: %w", err)
		}
		v = parsed
	}
	return dialect.New(c.Dialect, v)
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}
