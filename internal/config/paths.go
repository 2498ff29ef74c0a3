package config

import (
	"os"
	"path/filepath"
)

// Paths are the per-project files a cycle reads and writes.
type Paths struct {
	LockDir    string // holds lock_<name>
	StatusFile string
	RunLog     string
	Checkout   string
	SSHKey     string
}

// ResolvePaths derives the on-disk locations for cfg. The lock lives in
// $XDG_RUNTIME_DIR (falling back to the home directory); everything else in
// the home directory.
func ResolvePaths(cfg *Config) (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}
	lockDir := os.Getenv("XDG_RUNTIME_DIR")
	if lockDir == "" {
		lockDir = home
	}
	return Paths{
		LockDir:    lockDir,
		StatusFile: filepath.Join(home, "status_"+cfg.Name+".yml"),
		RunLog:     filepath.Join(home, cfg.Name+".log"),
		Checkout:   cfg.CheckoutDir,
		SSHKey:     cfg.SSHKey,
	}, nil
}
