// Package config handles the resolved configuration snapshot persisted
// at `.canary/config`: the session's effective settings plus a
// schema_version field that gates a session tree against a binary too
// old to understand it. Modeled on the teacher's own Terraform-version
// compatibility check (cli/version_check.go): parse the recorded
// version, compare it against the running binary's supported
// constraint, refuse to proceed on mismatch rather than silently
// misinterpreting an incompatible tree.
package config

import (
	"os"

	canaryerrors "github.com/gruntwork-io/canary/internal/errors"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the schema_version this build of canary writes into
// new session trees. Trees it reads may carry any schema_version that
// satisfies SupportedConstraint.
const SchemaVersion = "1.0.0"

// SupportedConstraint is the range of schema_version values this build
// can read. Widened deliberately on any schema change that stays
// backward-compatible.
const SupportedConstraint = ">= 1.0.0, < 2.0.0"

// Config is the resolved configuration snapshot written once per
// session tree and read back on every subsequent invocation.
type Config struct {
	SchemaVersion     string            `yaml:"schema_version"`
	ResourcePoolFile  string            `yaml:"resource_pool_file,omitempty"`
	TimeoutMultiplier float64           `yaml:"timeout_multiplier,omitempty"`
	FailFast          bool              `yaml:"fail_fast,omitempty"`
	Overrides         map[string]string `yaml:"overrides,omitempty"`
}

// New returns a Config stamped with this build's schema version.
func New() *Config {
	return &Config{SchemaVersion: SchemaVersion, TimeoutMultiplier: 1.0}
}

// Load reads and validates the config snapshot at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := CheckSchemaVersion(cfg.SchemaVersion); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Write renders cfg as YAML to path.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// CheckSchemaVersion reports whether recorded (the schema_version read
// from a session tree's config) satisfies SupportedConstraint.
func CheckSchemaVersion(recorded string) error {
	v, err := version.NewVersion(recorded)
	if err != nil {
		return canaryerrors.Errorf("invalid schema_version %q: %v", recorded, err)
	}

	constraint, err := version.NewConstraint(SupportedConstraint)
	if err != nil {
		return err
	}

	if !constraint.Check(v) {
		return &canaryerrors.IncompatibleSchema{Recorded: recorded, Constraint: SupportedConstraint}
	}

	return nil
}
