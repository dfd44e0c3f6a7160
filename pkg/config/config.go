// Package config loads .wrkflw.yaml — a small yaml.v3-decoded struct read
// once at startup holding the default runtime selector, default verbosity,
// workflow search root and action-message hiding — and layers the
// WRKFLW_HIDE_ACTION_MESSAGES environment variable over it.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of .wrkflw.yaml.
type Config struct {
	DefaultRuntime     string `yaml:"default_runtime"` // "auto" | "container" | "emulation"
	WorkflowsDir       string `yaml:"workflows_dir"`
	Verbose            bool   `yaml:"verbose"`
	Debug              bool   `yaml:"debug"`
	HideActionMessages bool   `yaml:"hide_action_messages"`
}

// Default returns the baseline configuration used when no .wrkflw.yaml is
// present: ".github/workflows" and "auto" runtime selection.
func Default() Config {
	return Config{DefaultRuntime: "auto", WorkflowsDir: ".github/workflows"}
}

// Load reads path (typically ".wrkflw.yaml" in the current directory) and
// layers it over Default(). A missing file is not an error — the defaults
// stand.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv layers recognized environment variables over cfg. Flags set on
// the CLI always win over both; callers apply flag overrides after this
// call.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("WRKFLW_HIDE_ACTION_MESSAGES"); v == "true" {
		cfg.HideActionMessages = true
	}
	return cfg
}
