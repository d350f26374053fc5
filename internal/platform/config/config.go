// internal/platform/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config carries everything the process needs at startup. Module behavior
// itself lives in the registry, not here.
type Config struct {
	// Job
	Target       string
	Modules      []string
	AllowPartial bool

	// Registry
	RegistryPath string

	// Storage
	DatabasePath string
	SpillDir     string
	StreamBuffer int

	// Dispatch
	BinPrefix         string
	LaunchRetries     int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	SafetyFactor      float64
	JobBudget         time.Duration

	// Surfaces
	StatusAddr   string
	SlackToken   string
	SlackChannel string
	Quiet        bool
	PrintVersion bool

	// APIKeys maps a rate-limited module to its credential secrets. Loaded
	// from the registry file, never from flags.
	APIKeys map[string][]string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		AllowPartial: true,

		DatabasePath: "reconwave.db",
		SpillDir:     "reconwave_spill",
		StreamBuffer: 256,

		BinPrefix:         "reconwave-",
		LaunchRetries:     3,
		BackoffBase:       1 * time.Second,
		BackoffMultiplier: 2.0,
		SafetyFactor:      1.5,
		JobBudget:         2 * time.Hour,

		StatusAddr: "",

		APIKeys: make(map[string][]string),
	}
}

// RegisterFlags binds the command-line surface onto fs.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Target, "target", "t", c.Target, "target apex domain")
	fs.StringSliceVarP(&c.Modules, "modules", "m", c.Modules, "modules to run (dependencies are pulled in automatically)")
	fs.BoolVar(&c.AllowPartial, "allow-partial", c.AllowPartial, "tolerate failures of independent module branches")

	fs.StringVar(&c.RegistryPath, "registry", c.RegistryPath, "module registry YAML (empty = built-in catalog)")

	fs.StringVar(&c.DatabasePath, "db", c.DatabasePath, "sqlite database path")
	fs.StringVar(&c.SpillDir, "spill-dir", c.SpillDir, "stream overflow spill directory")
	fs.IntVar(&c.StreamBuffer, "stream-buffer", c.StreamBuffer, "per-subscription in-memory record buffer")

	fs.StringVar(&c.BinPrefix, "bin-prefix", c.BinPrefix, "scanner binary name prefix")
	fs.IntVar(&c.LaunchRetries, "launch-retries", c.LaunchRetries, "max retries for infra-level launch failures")
	fs.DurationVar(&c.JobBudget, "job-budget", c.JobBudget, "job wall-clock budget (0 = unbounded)")

	fs.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "status API listen address (empty = disabled)")
	fs.StringVar(&c.SlackToken, "slack-token", c.SlackToken, "slack bot token for job notifications")
	fs.StringVar(&c.SlackChannel, "slack-channel", c.SlackChannel, "slack channel for job notifications")
	fs.BoolVarP(&c.Quiet, "quiet", "q", c.Quiet, "suppress terminal progress output")
	fs.BoolVarP(&c.PrintVersion, "version", "v", c.PrintVersion, "print version and exit")
}

// Validate checks the configuration after flag parsing.
func (c *Config) Validate() error {
	if c.PrintVersion {
		return nil
	}
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("target is required (-t example.com)")
	}
	if len(c.Modules) == 0 {
		return fmt.Errorf("at least one module is required (-m subenum)")
	}
	if c.StreamBuffer <= 0 {
		return fmt.Errorf("stream-buffer must be positive")
	}
	if c.SafetyFactor <= 0 {
		return fmt.Errorf("safety factor must be positive")
	}
	return nil
}
