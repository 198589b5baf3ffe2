package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings are the user-tunable defaults for the CLI flags. They are read
// from an optional YAML file; anything missing there keeps its built-in
// value.
type Settings struct {
	// SizeMB is the default container size for new scratch volumes.
	SizeMB int `yaml:"size_mb"`
	// LifetimeDays is the default number of days a volume stays good.
	LifetimeDays int `yaml:"days"`
	// ExtraSizeMB is the default safety margin added on import.
	ExtraSizeMB int `yaml:"extra_size_mb"`
	// VolumeName overrides the derived volume name when non-empty. Leave
	// empty to derive the name from the import source or the default label.
	VolumeName string `yaml:"volume_name"`
	// DownloadDir is the directory the downloads command scans by default.
	DownloadDir string `yaml:"download_dir"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		SizeMB:       100,
		LifetimeDays: 7,
		ExtraSizeMB:  100,
		DownloadDir:  defaultDownloadDir(),
	}
}

// Load reads the settings file from the user config directory, falling back
// to the built-in defaults when no file exists.
func Load() (Settings, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Defaults(), nil
	}
	return LoadFrom(filepath.Join(configDir, "scratchdmg", "config.yaml"))
}

// LoadFrom reads settings from the given path, merging over the defaults. A
// missing file is not an error; a malformed one is.
func LoadFrom(path string) (Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return settings, nil
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Downloads"
	}
	return filepath.Join(home, "Downloads")
}
