package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/teamcutter/vendr/internal/domain"
)

type Config struct {
	GatewayURL   string               `toml:"gateway_url"`
	VendrDir     string               `toml:"vendr_dir"`
	LibPaths     []string             `toml:"lib_paths"`
	StateFile    string               `toml:"state_file"`
	ManifestFile string               `toml:"manifest_file"`
	TmpDir       string               `toml:"tmp_dir"`
	MaxParallel  int                  `toml:"max_parallel"`
	Required     []domain.Requirement `toml:"required"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".vendr")

	return &Config{
		GatewayURL:   "https://license.teamcutter.dev/api/v1/authorize",
		VendrDir:     base,
		LibPaths:     []string{filepath.Join(base, "lib")},
		StateFile:    filepath.Join(base, "state.db"),
		ManifestFile: filepath.Join(base, "installed.json"),
		MaxParallel:  4,
	}
}

// Load reads ~/.vendr/config.toml over the defaults. A missing file is
// seeded with the defaults; an existing file is never rewritten, so user
// edits survive every run.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}

	configPath := filepath.Join(home, ".vendr", "config.toml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	home, _ := os.UserHomeDir()

	configPath := filepath.Join(home, ".vendr", "config.toml")

	os.MkdirAll(filepath.Dir(configPath), 0755)
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
