package reconcile

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akhil-m/bc-data-warehouse/internal/config"
)

// DefaultInvisibleMarkers are the title substrings StatsCan uses for
// placeholder/internal cubes. "INVISIBLE" is the marker observed in the wild;
// the list is configurable because upstream could change or extend it without
// notice.
var DefaultInvisibleMarkers = []string{"INVISIBLE"}

// Policy holds reconciliation policy loaded from .warehouse.yaml.
type Policy struct {
	// InvisibleMarkers overrides DefaultInvisibleMarkers when non-empty.
	InvisibleMarkers []string `yaml:"invisible_markers"`
}

// DefaultPolicyPath is the default location for the pipeline policy file.
// Hidden file following common tool conventions (.eslintrc, .prettierrc, etc.).
const DefaultPolicyPath = ".warehouse.yaml"

// PolicyPathEnvVar is the environment variable name for a custom policy path.
const PolicyPathEnvVar = "PIPELINE_POLICY_PATH"

// LoadPolicy loads reconciliation policy from a YAML file at the given path.
//
// Behavior:
//   - Returns default policy (not error) if the file doesn't exist - the
//     policy file is optional
//   - Returns default policy + logs a warning if the YAML is invalid
//     (graceful degradation)
//   - Returns the populated policy on success
//
// The filter must keep working with built-in defaults even when the policy
// file is absent or broken: a wrong invisible-marker list means some extra
// or missing downloads, never a stuck pipeline.
func LoadPolicy(path string) *Policy {
	policy := &Policy{InvisibleMarkers: DefaultInvisibleMarkers}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Policy file not found, using defaults",
				slog.String("path", path))

			return policy
		}

		slog.Warn("Failed to read policy file, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return policy
	}

	if len(data) == 0 {
		return policy
	}

	var loaded Policy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		slog.Warn("Failed to parse policy file, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return policy
	}

	if len(loaded.InvisibleMarkers) > 0 {
		policy.InvisibleMarkers = loaded.InvisibleMarkers
	}

	return policy
}

// LoadPolicyFromEnv loads policy from the path in PIPELINE_POLICY_PATH,
// falling back to ".warehouse.yaml" in the current directory.
func LoadPolicyFromEnv() *Policy {
	path := config.GetEnvStr(PolicyPathEnvVar, DefaultPolicyPath)

	return LoadPolicy(path)
}
