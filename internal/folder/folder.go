// Package folder implements the shared-folder sync transport.
//
// Every device writes its full snapshot to
//
//	<sync_dir>/bankero/workspaces/<slug>/devices/<device_id>/{events,rates}.jsonl
//
// and imports every device directory it finds there, its own included.
// Exports are whole-file overwrites via write-temp-then-rename.
package folder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/roach88/bankero/internal/config"
	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/snapshot"
)

// NotConfiguredMessage is returned when no shared directory is set.
const NotConfiguredMessage = "No sync folder configured. Run: bankero login --sync-dir <path> (or set BANKERO_SYNC_DIR)."

// Config selects the shared directory and the local identity.
type Config struct {
	SyncDir   string
	Workspace string
	DeviceID  uuid.UUID
	Logger    *slog.Logger
}

// Transport exports and imports snapshots through a shared directory.
type Transport struct {
	cfg     Config
	replica snapshot.Replica
	log     *slog.Logger
}

// New validates cfg without touching the filesystem.
func New(cfg Config, replica snapshot.Replica) (*Transport, error) {
	if cfg.SyncDir == "" {
		return nil, ledger.NewConfigurationError("", NotConfiguredMessage, nil)
	}
	if cfg.Workspace == "" {
		return nil, ledger.NewConfigurationError("folder sync", "workspace is required", nil)
	}
	if cfg.DeviceID == uuid.Nil {
		return nil, ledger.NewConfigurationError("folder sync", "device id is required", nil)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Transport{cfg: cfg, replica: replica, log: log}, nil
}

// SyncDir is the configured shared directory.
func (t *Transport) SyncDir() string {
	return t.cfg.SyncDir
}

// Root is <sync_dir>/bankero.
func (t *Transport) Root() string {
	return filepath.Join(t.cfg.SyncDir, "bankero")
}

// WorkspaceDir is the shared directory for the configured workspace.
func (t *Transport) WorkspaceDir() string {
	return filepath.Join(t.Root(), "workspaces", config.WorkspaceSlug(t.cfg.Workspace))
}

// DevicesDir holds one subdirectory per exporting device.
func (t *Transport) DevicesDir() string {
	return filepath.Join(t.WorkspaceDir(), "devices")
}

// DeviceDir is the directory this device exports into.
func (t *Transport) DeviceDir() string {
	return filepath.Join(t.DevicesDir(), t.cfg.DeviceID.String())
}

// Sync exports the local snapshot and then imports every device's files.
func (t *Transport) Sync(ctx context.Context) (snapshot.MergeStats, error) {
	if err := os.MkdirAll(t.Root(), 0o755); err != nil {
		return snapshot.MergeStats{}, fmt.Errorf("folder sync: %w", err)
	}
	if err := t.Export(ctx); err != nil {
		return snapshot.MergeStats{}, err
	}
	return t.Import(ctx)
}

// Export overwrites this device's events.jsonl and rates.jsonl with the full
// local snapshot.
func (t *Transport) Export(ctx context.Context) error {
	snap, err := snapshot.Take(ctx, t.replica)
	if err != nil {
		return fmt.Errorf("folder export: %w", err)
	}

	dir := t.DeviceDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("folder export: %w", err)
	}

	var events bytes.Buffer
	if err := snapshot.WriteEvents(&events, snap.Events); err != nil {
		return fmt.Errorf("folder export: %w", err)
	}
	if err := config.WriteFileAtomic(filepath.Join(dir, snapshot.EventsFile), events.Bytes()); err != nil {
		return fmt.Errorf("folder export: %w", err)
	}

	var rates bytes.Buffer
	if err := snapshot.WriteRates(&rates, snap.Rates); err != nil {
		return fmt.Errorf("folder export: %w", err)
	}
	if err := config.WriteFileAtomic(filepath.Join(dir, snapshot.RatesFile), rates.Bytes()); err != nil {
		return fmt.Errorf("folder export: %w", err)
	}

	t.log.Debug("folder export complete",
		"dir", dir,
		"events", len(snap.Events),
		"rates", len(snap.Rates))
	return nil
}

// Import merges every device directory under the workspace, in directory
// name order. Each file is decoded completely before any of its records are
// merged; the first malformed file stops the import and is returned as a
// data error, with the records merged so far kept.
//
// A missing devices directory imports nothing.
func (t *Transport) Import(ctx context.Context) (snapshot.MergeStats, error) {
	var total snapshot.MergeStats

	entries, err := os.ReadDir(t.DevicesDir())
	if errors.Is(err, fs.ErrNotExist) {
		return total, nil
	}
	if err != nil {
		return total, fmt.Errorf("folder import: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(t.DevicesDir(), entry.Name())
		stats, err := t.importDevice(ctx, dir)
		total.Add(stats)
		if err != nil {
			return total, fmt.Errorf("folder import %s: %w", entry.Name(), err)
		}
		t.log.Debug("folder import device",
			"device", entry.Name(),
			"imported_events", stats.ImportedEvents,
			"imported_rates", stats.ImportedRates)
	}
	return total, nil
}

func (t *Transport) importDevice(ctx context.Context, dir string) (snapshot.MergeStats, error) {
	var stats snapshot.MergeStats

	events, err := readFile(filepath.Join(dir, snapshot.EventsFile), snapshot.ReadEvents)
	if err != nil {
		return stats, err
	}
	for _, e := range events {
		if err := stats.MergeEvent(ctx, t.replica, e); err != nil {
			return stats, err
		}
	}

	rates, err := readFile(filepath.Join(dir, snapshot.RatesFile), snapshot.ReadRates)
	if err != nil {
		return stats, err
	}
	for _, r := range rates {
		if err := stats.MergeRate(ctx, t.replica, r); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// readFile decodes a snapshot file; a missing file yields no records.
func readFile[T any](path string, decode func(r io.Reader, source string) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f, path)
}

// Status describes the local store and the shared folder layout.
type Status struct {
	Workspace           string    `json:"workspace"`
	DeviceID            uuid.UUID `json:"device_id"`
	SyncDir             string    `json:"sync_dir"`
	WorkspaceRoot       string    `json:"sync_ws_root"`
	DeviceRoot          string    `json:"sync_device_root"`
	LocalEvents         int       `json:"local_events"`
	LocalRates          int       `json:"local_rates"`
	WorkspaceRootExists bool      `json:"sync_ws_root_exists"`
}

// Status reports counts and paths without modifying anything.
func (t *Transport) Status(ctx context.Context) (Status, error) {
	events, err := t.replica.CountEvents(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("folder status: %w", err)
	}
	rates, err := t.replica.CountRates(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("folder status: %w", err)
	}

	_, statErr := os.Stat(t.WorkspaceDir())
	return Status{
		Workspace:           t.cfg.Workspace,
		DeviceID:            t.cfg.DeviceID,
		SyncDir:             t.cfg.SyncDir,
		WorkspaceRoot:       t.WorkspaceDir(),
		DeviceRoot:          t.DeviceDir(),
		LocalEvents:         events,
		LocalRates:          rates,
		WorkspaceRootExists: statErr == nil,
	}, nil
}
