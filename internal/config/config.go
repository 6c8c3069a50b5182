package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bankero/internal/ledger"
)

// Defaults for a freshly initialised installation.
const (
	DefaultWorkspace          = "personal"
	DefaultProject            = "default"
	DefaultReferenceCommodity = "USD"
)

// AppConfig is the persisted per-installation state.
type AppConfig struct {
	DeviceID           uuid.UUID  `yaml:"device_id"`
	DeviceName         string     `yaml:"device_name,omitempty"`
	CurrentWorkspace   string     `yaml:"current_workspace"`
	CurrentProject     string     `yaml:"current_project"`
	ReferenceCommodity string     `yaml:"reference_commodity"`
	SyncDir            string     `yaml:"sync_dir,omitempty"`
	LastSyncAt         *time.Time `yaml:"last_sync_at,omitempty"`
}

// New returns a default configuration for the given device id.
func New(deviceID uuid.UUID) AppConfig {
	return AppConfig{
		DeviceID:           deviceID,
		DeviceName:         FunnyName(deviceID),
		CurrentWorkspace:   DefaultWorkspace,
		CurrentProject:     DefaultProject,
		ReferenceCommodity: DefaultReferenceCommodity,
	}
}

// Scope returns the ledger scope new events are written under.
func (c AppConfig) Scope() ledger.Scope {
	return ledger.Scope{DeviceID: c.DeviceID, Workspace: c.CurrentWorkspace, Project: c.CurrentProject}
}

// Identity returns how this device announces itself to peers.
func (c AppConfig) Identity(userHost string) ledger.Identity {
	return ledger.Identity{
		DeviceID:   c.DeviceID,
		DeviceName: c.DeviceName,
		UserHost:   userHost,
		Version:    ledger.AppVersion,
	}
}

// LoadOrInit reads the config file under paths, creating it with defaults
// (and a random device id) when absent. Older files without a device name
// get one derived from the device id and are rewritten.
func LoadOrInit(paths Paths) (AppConfig, error) {
	if err := os.MkdirAll(paths.ConfigDir, 0o755); err != nil {
		return AppConfig{}, fmt.Errorf("create config dir %s: %w", paths.ConfigDir, err)
	}

	path := paths.ConfigFile()
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = New(uuid.New())
		if err := Save(path, cfg); err != nil {
			return AppConfig{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return AppConfig{}, err
	}

	if cfg.DeviceName == "" {
		cfg.DeviceName = FunnyName(cfg.DeviceID)
		if err := Save(path, cfg); err != nil {
			return AppConfig{}, err
		}
	}
	return cfg, nil
}

// Load reads and validates a config file. A missing file returns an error
// wrapping fs.ErrNotExist.
func Load(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return AppConfig{}, ledger.NewConfigurationError("load config", fmt.Sprintf("parse %s", path), err)
	}

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Save validates cfg and writes it atomically to path.
func Save(path string, cfg AppConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file beside path, syncs it and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
