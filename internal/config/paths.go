package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the directories one installation uses.
type Paths struct {
	ConfigDir string
	DataDir   string
}

// ResolvePaths returns <home>/config and <home>/data when home is set,
// otherwise <user config dir>/bankero and its data subdirectory.
func ResolvePaths(home string) (Paths, error) {
	if home != "" {
		return Paths{
			ConfigDir: filepath.Join(home, "config"),
			DataDir:   filepath.Join(home, "data"),
		}, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}
	dir := filepath.Join(base, "bankero")
	return Paths{ConfigDir: dir, DataDir: filepath.Join(dir, "data")}, nil
}

// ConfigFile is the YAML config path.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// PeersFile is the discovery peer cache path.
func (p Paths) PeersFile() string {
	return filepath.Join(p.ConfigDir, "peers.json")
}

// WorkspaceDB is the SQLite database for a workspace.
func (p Paths) WorkspaceDB(workspace string) string {
	return filepath.Join(p.DataDir, "workspaces", WorkspaceSlug(workspace), "bankero.sqlite3")
}
