package config

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/bankero/internal/ledger"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaMu   sync.Mutex
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE)
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Config"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("config schema has no #Config definition")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg AppConfig) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}

	doc := map[string]any{
		"device_id":           cfg.DeviceID.String(),
		"current_workspace":   cfg.CurrentWorkspace,
		"current_project":     cfg.CurrentProject,
		"reference_commodity": cfg.ReferenceCommodity,
	}
	if cfg.DeviceName != "" {
		doc["device_name"] = cfg.DeviceName
	}
	if cfg.SyncDir != "" {
		doc["sync_dir"] = cfg.SyncDir
	}
	if cfg.LastSyncAt != nil {
		doc["last_sync_at"] = ledger.FormatTime(*cfg.LastSyncAt)
	}

	// cue values are not safe for concurrent use
	schemaMu.Lock()
	defer schemaMu.Unlock()

	v := def.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ledger.NewConfigurationError("validate config", "config does not match schema", err)
	}
	return nil
}
