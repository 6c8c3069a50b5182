package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/bankero/internal/folder"
	"github.com/roach88/bankero/internal/lansync"
	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/store"
	"github.com/roach88/bankero/internal/testutil"
)

// sessionTimeout bounds every record exchanged in a simulated LAN session.
const sessionTimeout = 5 * time.Second

// Harness runs one scenario against a set of simulated devices.
type Harness struct {
	devices   map[string]*device
	order     []*device
	sharedDir string
	clock     *testutil.DeterministicClock
	logger    *slog.Logger
}

type device struct {
	spec     Device
	identity ledger.Identity
	scope    ledger.Scope
	store    *store.Store
	ids      *testutil.SequentialIDGenerator
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh temporary directory holding one SQLite file per
// device and the shared sync folder. Device n (1-based, in declaration order)
// gets device id testutil.DeviceID(n) and event ids from namespace n, and all
// devices share one deterministic clock, so traces are reproducible.
//
// Errors carrying a ledger error kind are step outcomes and are checked
// against the step's expect clause. Any other error aborts the run.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "bankero-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h := &Harness{
		devices:   make(map[string]*device, len(scenario.Devices)),
		sharedDir: filepath.Join(dir, "shared"),
		clock:     testutil.NewDeterministicClock(time.Time{}, time.Second),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in scenarios
	}
	defer h.close()

	for i, spec := range scenario.Devices {
		if err := h.addDevice(dir, i+1, spec, scenario.Workspace); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s on %s): %w", i+1, step.Action, step.Device, err)
		}
		result.AddTrace(ev)
		for _, msg := range checkExpect(i, step, ev) {
			result.AddError(msg)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) addDevice(dir string, n int, spec Device, defaultWorkspace string) error {
	workspace := spec.Workspace
	if workspace == "" {
		workspace = defaultWorkspace
	}

	dbDir := filepath.Join(dir, "devices", spec.Name)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("device %s: %w", spec.Name, err)
	}
	st, err := store.Open(filepath.Join(dbDir, "bankero.sqlite3"))
	if err != nil {
		return fmt.Errorf("device %s: %w", spec.Name, err)
	}

	id := testutil.DeviceID(uint8(n))
	d := &device{
		spec: spec,
		identity: ledger.Identity{
			DeviceID:   id,
			DeviceName: spec.Name,
			UserHost:   spec.Name + "@harness",
			Version:    ledger.AppVersion,
		},
		scope: ledger.Scope{DeviceID: id, Workspace: workspace, Project: "default"},
		store: st,
		ids:   testutil.NewSequentialIDGenerator(uint16(n)),
	}
	h.devices[spec.Name] = d
	h.order = append(h.order, d)
	return nil
}

func (h *Harness) close() {
	for _, d := range h.order {
		d.store.Close()
	}
}

// device returns the named device; names were checked by LoadScenario.
func (h *Harness) device(name string) (*device, error) {
	d, ok := h.devices[name]
	if !ok {
		return nil, fmt.Errorf("unknown device %q", name)
	}
	return d, nil
}

func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	ev := TraceEvent{Device: step.Device, Action: step.Action, Peer: step.Peer}
	d, err := h.device(step.Device)
	if err != nil {
		return ev, err
	}

	switch step.Action {
	case ActionDeposit:
		err = h.deposit(ctx, d, step.Args, &ev)
	case ActionSetRate:
		err = h.setRate(ctx, d, step.Args, &ev)
	case ActionFolderSync:
		err = h.folderSync(ctx, d, &ev)
	case ActionLANSync:
		var peer *device
		if peer, err = h.device(step.Peer); err == nil {
			err = h.lanSync(ctx, d, peer, &ev)
		}
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}

	var le *ledger.Error
	if errors.As(err, &le) {
		ev.Error = strings.ToLower(string(le.Kind))
		return ev, nil
	}
	return ev, err
}

func (h *Harness) deposit(ctx context.Context, d *device, args map[string]string, ev *TraceEvent) error {
	amount, err := decimal.NewFromString(args["amount"])
	if err != nil {
		return ledger.NewDataError("deposit", fmt.Sprintf("invalid amount %q", args["amount"]), err)
	}
	in := ledger.DepositInput{
		Amount:    amount,
		Commodity: args["commodity"],
		From:      args["from"],
		To:        args["to"],
	}
	if raw := args["effective_at"]; raw != "" {
		if in.EffectiveAt, err = ledger.ParseTime(raw); err != nil {
			return err
		}
	}
	if note, ok := args["note"]; ok {
		in.Note = &note
	}

	e, err := ledger.NewDeposit(d.ids, h.clock, d.scope, in)
	if err != nil {
		return err
	}
	if err := d.store.AppendEvent(ctx, e); err != nil {
		return err
	}
	ev.EventID = e.ID.String()
	return nil
}

func (h *Harness) setRate(ctx context.Context, d *device, args map[string]string, ev *TraceEvent) error {
	rate, err := decimal.NewFromString(args["rate"])
	if err != nil {
		return ledger.NewDataError("set rate", fmt.Sprintf("invalid rate %q", args["rate"]), err)
	}
	asOf, err := ledger.ParseTime(args["as_of"])
	if err != nil {
		return err
	}
	r := ledger.RateFact{
		Provider: args["provider"],
		Base:     args["base"],
		Quote:    args["quote"],
		AsOf:     asOf,
		Rate:     rate,
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if err := d.store.UpsertRate(ctx, r); err != nil {
		return err
	}
	ev.Rate = r.Key().String()
	return nil
}

func (h *Harness) folderSync(ctx context.Context, d *device, ev *TraceEvent) error {
	t, err := folder.New(folder.Config{
		SyncDir:   h.sharedDir,
		Workspace: d.scope.Workspace,
		DeviceID:  d.identity.DeviceID,
		Logger:    h.logger,
	}, d.store)
	if err != nil {
		return err
	}
	stats, err := t.Sync(ctx)
	ev.ImportedEvents = stats.ImportedEvents
	ev.ImportedRates = stats.ImportedRates
	return err
}

type serverOutcome struct {
	stats lansync.SessionStats
	err   error
}

// lanSync runs one in-memory session with d as initiator and peer as
// responder.
func (h *Harness) lanSync(ctx context.Context, d, peer *device, ev *TraceEvent) error {
	var gate lansync.AcceptGate = lansync.AutoAccept{}
	if peer.spec.Reject {
		gate = lansync.AcceptFunc(func(context.Context, lansync.AcceptRequest) (bool, error) {
			return false, nil
		})
	}

	clientConn, serverConn := net.Pipe()
	srv := lansync.NewServer(lansync.ServerConfig{
		Workspace: peer.scope.Workspace,
		Identity:  peer.identity,
		Gate:      gate,
		Timeout:   sessionTimeout,
		Logger:    h.logger,
	}, peer.store)

	done := make(chan serverOutcome, 1)
	go func() {
		stats, err := srv.Handle(ctx, serverConn)
		done <- serverOutcome{stats: stats, err: err}
	}()

	stats, err := lansync.SyncConn(ctx, clientConn, lansync.ClientConfig{
		Workspace: d.scope.Workspace,
		Identity:  d.identity,
		IOTimeout: sessionTimeout,
		Logger:    h.logger,
	}, d.store)

	var out serverOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	ev.ImportedEvents = stats.ImportedEvents
	ev.ImportedRates = stats.ImportedRates
	ev.PeerImportedEvents = stats.PeerImportedEvents
	ev.PeerImportedRates = stats.PeerImportedRates
	if err != nil {
		return err
	}
	return out.err
}

// checkExpect compares a step outcome with its expect clause.
func checkExpect(index int, step Step, ev TraceEvent) []string {
	var errs []string
	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	if ev.Error != want {
		errs = append(errs, fmt.Sprintf("steps[%d] %s on %s: expected error %q, got %q",
			index, step.Action, step.Device, want, ev.Error))
	}
	if step.Expect == nil {
		return errs
	}
	if n := step.Expect.ImportedEvents; n != nil && *n != ev.ImportedEvents {
		errs = append(errs, fmt.Sprintf("steps[%d] %s on %s: expected %d imported events, got %d",
			index, step.Action, step.Device, *n, ev.ImportedEvents))
	}
	if n := step.Expect.ImportedRates; n != nil && *n != ev.ImportedRates {
		errs = append(errs, fmt.Sprintf("steps[%d] %s on %s: expected %d imported rates, got %d",
			index, step.Action, step.Device, *n, ev.ImportedRates))
	}
	return errs
}
