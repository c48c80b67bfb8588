// Package config holds all dossier configuration: YAML file, environment
// overrides, and fail-fast validation of required credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigurationError marks missing required settings or credentials. It is
// fatal and surfaced before any run artifacts are produced.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string { return "config: " + e.msg }

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

// Config holds all dossier settings.
type Config struct {
	// Target is the model that realizes assistant turns during replay.
	Target ModelConfig `yaml:"target"`

	// Judge is the model that produces the independent assessment.
	Judge ModelConfig `yaml:"judge"`

	// Run selects scenario and branch.
	Run RunConfig `yaml:"run"`

	// Logging controls log verbosity.
	Logging LoggingConfig `yaml:"logging"`

	// Storage configures artifact persistence.
	Storage StorageConfig `yaml:"storage"`
}

// ModelConfig configures one model backend.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // anthropic, gemini
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// RunConfig selects what to replay.
type RunConfig struct {
	// ScenarioPath points at a scenario YAML file; empty selects the
	// embedded default scenario.
	ScenarioPath string `yaml:"scenario_path"`
	BranchLabel  string `yaml:"branch_label"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// StorageConfig configures the artifact store.
type StorageConfig struct {
	// OutDir is the directory run artifacts are written under.
	OutDir string `yaml:"out_dir"`
	// ArchivePath is the sqlite run-archive database file.
	ArchivePath string `yaml:"archive_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Target: ModelConfig{Provider: "anthropic"},
		Judge:  ModelConfig{Provider: "anthropic"},
		Run: RunConfig{
			BranchLabel: "ask_for_guidance",
		},
		Storage: StorageConfig{
			OutDir:      "runs",
			ArchivePath: "runs/archive.db",
		},
	}
}

// Load reads configuration from a YAML file over the defaults, then
// applies environment overrides. A missing file is not an error: defaults
// plus environment apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, configErrorf("read %s: %v", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, configErrorf("parse %s: %v", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv maps environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("DOSSIER_TARGET_PROVIDER"); v != "" {
		c.Target.Provider = v
	}
	if v := os.Getenv("DOSSIER_TARGET_MODEL"); v != "" {
		c.Target.Model = v
	}
	if v := os.Getenv("DOSSIER_JUDGE_PROVIDER"); v != "" {
		c.Judge.Provider = v
	}
	if v := os.Getenv("DOSSIER_JUDGE_MODEL"); v != "" {
		c.Judge.Model = v
	}
	if v := os.Getenv("DOSSIER_BRANCH_LABEL"); v != "" {
		c.Run.BranchLabel = v
	}
	if v := os.Getenv("DOSSIER_SCENARIO_PATH"); v != "" {
		c.Run.ScenarioPath = v
	}
	if v := os.Getenv("DOSSIER_OUT_DIR"); v != "" {
		c.Storage.OutDir = v
	}
	if v := os.Getenv("DOSSIER_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Verbose = b
		}
	}
}

// providerKeyVars maps each provider to the env var carrying its API key.
var providerKeyVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Validate checks required settings and credentials. Call at startup so a
// misconfigured run fails before producing any artifacts.
func (c *Config) Validate() error {
	if c.Run.BranchLabel == "" {
		return configErrorf("branch label is required")
	}

	var missing []string
	for _, mc := range []ModelConfig{c.Target, c.Judge} {
		envVar, ok := providerKeyVars[mc.Provider]
		if !ok {
			return configErrorf("unknown provider %q (valid: anthropic, gemini)", mc.Provider)
		}
		if os.Getenv(envVar) == "" {
			missing = append(missing, envVar)
		}
	}
	if len(missing) > 0 {
		// Target and judge may share a provider.
		seen := map[string]bool{}
		var unique []string
		for _, v := range missing {
			if !seen[v] {
				seen[v] = true
				unique = append(unique, v)
			}
		}
		return configErrorf("missing required environment variable(s): %s", strings.Join(unique, ", "))
	}
	return nil
}

// APIKey returns the credential for a model config. Validate must have
// passed first.
func (mc ModelConfig) APIKey() string {
	return os.Getenv(providerKeyVars[mc.Provider])
}
