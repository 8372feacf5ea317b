package cli

import (
	envparse "github.com/caarlos0/env/v11"
)

// baseEnv defines root CLI defaults sourced from LOADCTL_* env vars.
type baseEnv struct {
	// ConfigPath is the manifest path from LOADCTL_CONFIG.
	ConfigPath string `env:"LOADCTL_CONFIG"`
	// LogLevel is the logging level from LOADCTL_LOG_LEVEL.
	LogLevel string `env:"LOADCTL_LOG_LEVEL"`
}

// varsEnv describes inline vars and var files passed via env.
type varsEnv struct {
	// Vars is a k=v,k2=v2 list from LOADCTL_VARS.
	Vars string `env:"LOADCTL_VARS"`
	// VarFile is a YAML/ENV path from LOADCTL_VAR_FILE.
	VarFile string `env:"LOADCTL_VAR_FILE"`
}

// stateEnv selects the state commands start in.
type stateEnv struct {
	// State is the initial state override from LOADCTL_STATE.
	State string `env:"LOADCTL_STATE"`
}

// parseEnv fills target from LOADCTL_* env vars via caarlos0/env.
func parseEnv(target interface{}) error {
	return envparse.Parse(target)
}
