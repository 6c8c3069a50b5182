package config

import "strings"

// Environment variables consulted by the CLI.
const (
	EnvHome       = "BANKERO_HOME"
	EnvSyncDir    = "BANKERO_SYNC_DIR"
	EnvAutoAccept = "BANKERO_SYNC_AUTO_ACCEPT"
)

// Truthy reports whether v is one of 1, true, yes, y (case-insensitive).
func Truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// EffectiveSyncDir returns the configured sync dir, falling back to the
// BANKERO_SYNC_DIR value passed in env.
func (c AppConfig) EffectiveSyncDir(env string) string {
	if c.SyncDir != "" {
		return c.SyncDir
	}
	return strings.TrimSpace(env)
}
