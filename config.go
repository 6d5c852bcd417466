package splice

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
)

// Config controls a patch pass. It's usually loaded from a TOML file:
//
//	host-version = "1.5.4104"
//	strict = false
//	disabled = ["TrySend.SocialSkillsWarning"]
//	categories = ["BaseGame"]
//	log-verbosity = 1
type Config struct {
	HostVersion  string   `toml:"host-version"`
	Strict       bool     `toml:"strict"`
	Disabled     []string `toml:"disabled"`
	Categories   []string `toml:"categories"`
	LogVerbosity int      `toml:"log-verbosity"`
}

// DefaultConfig is used when no configuration file exists.
func DefaultConfig() *Config {
	return &Config{LogVerbosity: 1}
}

// LoadConfig reads a TOML configuration. A missing file yields the default
// configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

// DecodeConfig parses a TOML configuration held in memory.
func DecodeConfig(data string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys %v", undecoded)
	}
	return cfg, nil
}
