package profile

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Override adjusts a single profile. Zero values leave the profile
// untouched.
type Override struct {
	MaxIterations int    `toml:"max_iterations"`
	SystemPrompt  string `toml:"system_prompt"`
}

// Overrides holds per-profile adjustments loaded from a TOML file,
// keyed by profile name ("mapper", "doc.architecture", "qa", ...).
//
//	[profiles.mapper]
//	max_iterations = 200
//
//	[profiles."doc.overview"]
//	system_prompt = "..."
type Overrides struct {
	Profiles map[string]Override `toml:"profiles"`
}

// LoadOverrides reads profile overrides from a TOML file. An empty path
// yields empty overrides.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("read profile overrides %s: %w", path, err)
	}
	var o Overrides
	if err := toml.Unmarshal(data, &o); err != nil {
		return Overrides{}, fmt.Errorf("parse profile overrides %s: %w", path, err)
	}
	return o, nil
}

// Apply returns the profile with any matching override applied.
func (o Overrides) Apply(p Profile) Profile {
	ov, ok := o.Profiles[p.Name]
	if !ok {
		return p
	}
	if ov.MaxIterations > 0 {
		p.MaxIterations = ov.MaxIterations
	}
	if ov.SystemPrompt != "" {
		p.SystemPrompt = ov.SystemPrompt
	}
	return p
}
