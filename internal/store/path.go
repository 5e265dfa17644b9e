package store

import (
	"os"
	"path/filepath"
)

// DefaultRoot returns the Courier home directory.
// Defaults to ~/.courier, falls back to ./.courier if home dir unavailable.
func DefaultRoot() string {
	if v := os.Getenv("COURIER_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".courier")
	}
	return filepath.Join(home, ".courier")
}

// DefaultProfileRoot returns the directory holding all profiles.
func DefaultProfileRoot() string {
	return filepath.Join(DefaultRoot(), "profiles")
}

// ProfileDBPath returns the full path to a profile's database file.
// Example: ProfileDBPath("work") -> ~/.courier/profiles/work/courier.db
func ProfileDBPath(profileID string) string {
	return filepath.Join(DefaultProfileRoot(), profileID, "courier.db")
}

// DefaultConfigPath returns the config file read by the CLI and daemon.
func DefaultConfigPath() string {
	return filepath.Join(DefaultRoot(), "config.toml")
}

// ListProfiles returns the IDs of profiles that have a database on disk.
func ListProfiles() ([]string, error) {
	entries, err := os.ReadDir(DefaultProfileRoot())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || ValidateProfileID(e.Name()) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(DefaultProfileRoot(), e.Name(), "courier.db")); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
