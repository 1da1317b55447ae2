// Package flintconfig loads the optional project-level "flint.toml" file
// (SPEC_FULL.md §3 "Configuration"): struct defaults are filled first,
// then a TOML file on disk overlays user values, and any flag value a
// caller applies afterward wins over both.
package flintconfig

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/pkg/errors"

	"github.com/flint-toolkit/flintcore/repath"
)

// Config is the on-disk shape of flint.toml.
type Config struct {
	HashDir      string              `toml:"hash_dir" default:"hashes"`
	WorkspaceDir string              `toml:"workspace_dir" default:"."`
	Repath       repath.RepathConfig `toml:"repath"`
}

// Load reads path, applying struct defaults before the file's own values
// overlay them. A missing file is not an error: it returns the
// all-defaults Config so callers can still apply flag overrides on top.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "applying config defaults")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}
