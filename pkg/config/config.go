// Package config provides configuration file support for warden.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/model"
)

// FileName is the config file name inside the state directory.
const FileName = "config.yaml"

// Config represents the warden configuration. It is loaded once per process
// and treated as read-only afterwards.
type Config struct {
	Hooks       HooksConfig       `yaml:"hooks"`
	Quality     QualityConfig     `yaml:"quality"`
	Backup      BackupConfig      `yaml:"backup"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Performance PerformanceConfig `yaml:"performance"`
	Intent      IntentConfig      `yaml:"intent"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HooksConfig lists the host commands registered per event kind.
type HooksConfig struct {
	Prompt      []string `yaml:"prompt"`
	ToolUse     []string `yaml:"tool-use"`
	Response    []string `yaml:"response"`
	ToolMatcher string   `yaml:"tool-matcher"`
}

// QualityConfig configures the review gate.
type QualityConfig struct {
	AutoReview      bool `yaml:"auto-review"`
	ReviewThreshold int  `yaml:"review-threshold"`
	BlockOnFailure  bool `yaml:"block-on-failure"`
}

// BackupConfig configures pre-change snapshots.
type BackupConfig struct {
	Enabled        bool     `yaml:"enabled"`
	RetentionDays  int      `yaml:"retention-days"`
	Track          []string `yaml:"track"`
	Exclude        []string `yaml:"exclude"`
	ModifyingTools []string `yaml:"modifying-tools"`
}

// LedgerConfig configures the activity ledger.
type LedgerConfig struct {
	LockTimeout   string `yaml:"lock-timeout"`
	PrivatePrefix string `yaml:"private-prefix"`
}

// PerformanceConfig configures the performance monitor and work sessions.
type PerformanceConfig struct {
	MaxContinuousMinutes int    `yaml:"max-continuous-minutes"`
	MinEfficiencyPercent int    `yaml:"min-efficiency-percent"`
	IdleTimeout          string `yaml:"idle-timeout"`
}

// IntentConfig holds the keyword sets for intent classification.
type IntentConfig struct {
	Completion     []string `yaml:"completion"`
	Review         []string `yaml:"review"`
	Test           []string `yaml:"test"`
	Implementation []string `yaml:"implementation"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Hooks: HooksConfig{
			Prompt:      []string{"warden hook prompt --stdin"},
			ToolUse:     []string{"warden hook tool-use --stdin"},
			Response:    []string{"warden hook response --stdin"},
			ToolMatcher: "Write|Edit|MultiEdit|NotebookEdit|Bash",
		},
		Quality: QualityConfig{
			AutoReview:      true,
			ReviewThreshold: 80,
			BlockOnFailure:  false,
		},
		Backup: BackupConfig{
			Enabled:       true,
			RetentionDays: 7,
			Track: []string{
				"*.go", "*.py", "*.js", "*.ts", "*.tsx", "*.jsx", "*.java", "*.rs",
				"*.rb", "*.c", "*.h", "*.cpp", "*.cs", "*.sh", "*.sql",
				"*.yaml", "*.yml", "*.json", "*.toml", "*.md",
			},
			Exclude:        []string{"*.log", "*.lock", "*.exe", "*.bin", "*.so", "*.o", ".warden/*"},
			ModifyingTools: []string{"Write", "Edit", "MultiEdit", "NotebookEdit"},
		},
		Ledger: LedgerConfig{
			LockTimeout:   "5s",
			PrivatePrefix: "#private",
		},
		Performance: PerformanceConfig{
			MaxContinuousMinutes: 480,
			MinEfficiencyPercent: 70,
			IdleTimeout:          "30m",
		},
		Intent: IntentConfig{
			Completion: []string{
				"complete", "all done", "task done", "i'm done", "i am done",
				"i have finished", "i've finished", "all tests pass", "ready to merge", "shipped",
			},
			Review:         []string{"review", "audit", "inspect", "lgtm"},
			Test:           []string{"test", "coverage", "assert", "spec"},
			Implementation: []string{"implement", "refactor", "fix", "add ", "create", "build", "write"},
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Path returns the config file path under stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Load loads configuration from <stateDir>/config.yaml. A missing file yields
// the defaults. A malformed or invalid file also yields the defaults, together
// with an ErrConfigInvalid error the caller is expected to log and ignore.
func Load(stateDir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(stateDir))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Default(), errclass.ErrConfigInvalid.Wrap(err, "read config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), errclass.ErrConfigInvalid.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}

	return cfg, nil
}

// Save writes configuration to <stateDir>/config.yaml.
func Save(stateDir string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(Path(stateDir), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Quality.ReviewThreshold < 0 || c.Quality.ReviewThreshold > 100 {
		return errclass.ErrConfigInvalid.WithMessagef("quality.review-threshold must be 0-100, got %d", c.Quality.ReviewThreshold)
	}
	if c.Backup.RetentionDays < 0 {
		return errclass.ErrConfigInvalid.WithMessagef("backup.retention-days must not be negative, got %d", c.Backup.RetentionDays)
	}
	if c.Performance.MaxContinuousMinutes <= 0 {
		return errclass.ErrConfigInvalid.WithMessagef("performance.max-continuous-minutes must be positive, got %d", c.Performance.MaxContinuousMinutes)
	}
	if c.Performance.MinEfficiencyPercent < 0 || c.Performance.MinEfficiencyPercent > 100 {
		return errclass.ErrConfigInvalid.WithMessagef("performance.min-efficiency-percent must be 0-100, got %d", c.Performance.MinEfficiencyPercent)
	}
	if _, err := parseDuration("ledger.lock-timeout", c.Ledger.LockTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("performance.idle-timeout", c.Performance.IdleTimeout); err != nil {
		return err
	}
	return nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errclass.ErrConfigInvalid.WithMessagef("%s: %v", key, err)
	}
	if d < 0 {
		return 0, errclass.ErrConfigInvalid.WithMessagef("%s must not be negative", key)
	}
	return d, nil
}

// LockTimeout returns the bounded wait for cross-process locks.
func (c *Config) LockTimeout() time.Duration {
	d, _ := parseDuration("ledger.lock-timeout", c.Ledger.LockTimeout)
	if d == 0 {
		return 5 * time.Second
	}
	return d
}

// IdleTimeout returns the gap after which a work session is closed.
func (c *Config) IdleTimeout() time.Duration {
	d, _ := parseDuration("performance.idle-timeout", c.Performance.IdleTimeout)
	if d == 0 {
		return 30 * time.Minute
	}
	return d
}

// Retention returns the backup retention period.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

// Policy returns the review threshold policy derived from the quality block.
func (c *Config) Policy() model.ReviewThresholdPolicy {
	return model.ReviewThresholdPolicy{
		CoverageMinimum: c.Quality.ReviewThreshold,
		BlockOnFailure:  c.Quality.BlockOnFailure,
		AutoReview:      c.Quality.AutoReview,
	}
}

// HookCommands returns the configured host commands for an event kind.
func (c *Config) HookCommands(kind model.EventKind) []string {
	switch kind {
	case model.EventPrompt:
		return c.Hooks.Prompt
	case model.EventToolUse:
		return c.Hooks.ToolUse
	case model.EventResponse:
		return c.Hooks.Response
	}
	return nil
}

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

var fields = map[string]field{
	"quality.auto-review": {
		get: func(c *Config) string { return strconv.FormatBool(c.Quality.AutoReview) },
		set: func(c *Config, v string) error { return setBool(&c.Quality.AutoReview, v) },
	},
	"quality.review-threshold": {
		get: func(c *Config) string { return strconv.Itoa(c.Quality.ReviewThreshold) },
		set: func(c *Config, v string) error { return setInt(&c.Quality.ReviewThreshold, v) },
	},
	"quality.block-on-failure": {
		get: func(c *Config) string { return strconv.FormatBool(c.Quality.BlockOnFailure) },
		set: func(c *Config, v string) error { return setBool(&c.Quality.BlockOnFailure, v) },
	},
	"backup.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Backup.Enabled) },
		set: func(c *Config, v string) error { return setBool(&c.Backup.Enabled, v) },
	},
	"backup.retention-days": {
		get: func(c *Config) string { return strconv.Itoa(c.Backup.RetentionDays) },
		set: func(c *Config, v string) error { return setInt(&c.Backup.RetentionDays, v) },
	},
	"backup.track": {
		get: func(c *Config) string { return strings.Join(c.Backup.Track, ",") },
		set: func(c *Config, v string) error { c.Backup.Track = splitList(v); return nil },
	},
	"backup.exclude": {
		get: func(c *Config) string { return strings.Join(c.Backup.Exclude, ",") },
		set: func(c *Config, v string) error { c.Backup.Exclude = splitList(v); return nil },
	},
	"ledger.lock-timeout": {
		get: func(c *Config) string { return c.Ledger.LockTimeout },
		set: func(c *Config, v string) error { c.Ledger.LockTimeout = v; return nil },
	},
	"ledger.private-prefix": {
		get: func(c *Config) string { return c.Ledger.PrivatePrefix },
		set: func(c *Config, v string) error { c.Ledger.PrivatePrefix = v; return nil },
	},
	"performance.max-continuous-minutes": {
		get: func(c *Config) string { return strconv.Itoa(c.Performance.MaxContinuousMinutes) },
		set: func(c *Config, v string) error { return setInt(&c.Performance.MaxContinuousMinutes, v) },
	},
	"performance.min-efficiency-percent": {
		get: func(c *Config) string { return strconv.Itoa(c.Performance.MinEfficiencyPercent) },
		set: func(c *Config, v string) error { return setInt(&c.Performance.MinEfficiencyPercent, v) },
	},
	"performance.idle-timeout": {
		get: func(c *Config) string { return c.Performance.IdleTimeout },
		set: func(c *Config, v string) error { c.Performance.IdleTimeout = v; return nil },
	},
	"logging.level": {
		get: func(c *Config) string { return c.Logging.Level },
		set: func(c *Config, v string) error { c.Logging.Level = v; return nil },
	},
}

// Keys returns all settable configuration keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the string form of a configuration value.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", errclass.ErrConfigInvalid.WithMessagef("unknown key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return f.get(c), nil
}

// Set parses and assigns a configuration value, then validates the result.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return errclass.ErrConfigInvalid.WithMessagef("unknown key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := f.set(c, value); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("%s: %v", key, err)
	}
	return c.Validate()
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", v)
	}
	*dst = b
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("expected an integer, got %q", v)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
