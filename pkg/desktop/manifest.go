package desktop

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is an optional YAML file overriding parts of the built-in
// process specs, keyed by role status name. Useful on images where the
// binaries live in non-standard locations or need extra flags.
//
//	roles:
//	  xvfb:
//	    executable: /opt/X11/bin/Xvfb
//	    extra_args: ["-nolisten", "tcp"]
//	    settle: 4s
type Manifest struct {
	Roles map[string]RoleOverride `yaml:"roles"`
}

// RoleOverride adjusts one role's spec. Zero values leave the built-in
// spec untouched; ExtraArgs append rather than replace. Settle is a
// Go duration string ("4s", "500ms").
type RoleOverride struct {
	Executable string   `yaml:"executable"`
	ExtraArgs  []string `yaml:"extra_args"`
	Settle     string   `yaml:"settle"`
}

func (o RoleOverride) settleDuration() (time.Duration, error) {
	if o.Settle == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(o.Settle)
	if err != nil {
		return 0, fmt.Errorf("invalid settle %q: %w", o.Settle, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid settle %q: must not be negative", o.Settle)
	}
	return d, nil
}

// LoadManifest loads and validates a role manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("validate manifest: %w", err)
	}
	return &manifest, nil
}

// Validate checks that every key names a known role and every override
// parses.
func (m *Manifest) Validate() error {
	for name, override := range m.Roles {
		if _, err := ParseRole(name); err != nil {
			return err
		}
		if _, err := override.settleDuration(); err != nil {
			return fmt.Errorf("role %s: %w", name, err)
		}
	}
	return nil
}

// Apply merges the overrides into specs, returning the adjusted map.
// The input map is not modified.
func (m *Manifest) Apply(specs map[Role]ProcessSpec) (map[Role]ProcessSpec, error) {
	out := make(map[Role]ProcessSpec, len(specs))
	for role, spec := range specs {
		out[role] = spec
	}

	for name, override := range m.Roles {
		role, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		settle, err := override.settleDuration()
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", name, err)
		}

		spec := out[role]
		if override.Executable != "" {
			spec.Executable = override.Executable
		}
		if len(override.ExtraArgs) > 0 {
			spec.Args = append(append([]string{}, spec.Args...), override.ExtraArgs...)
		}
		if settle > 0 {
			spec.Settle = settle
		}
		out[role] = spec
	}
	return out, nil
}
