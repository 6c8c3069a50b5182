package snapshot

import (
	"context"
	"fmt"

	"github.com/roach88/bankero/internal/ledger"
)

// Source reads the full local state of a device.
type Source interface {
	ListEvents(ctx context.Context) ([]ledger.Event, error)
	ListAllRates(ctx context.Context) ([]ledger.RateFact, error)
}

// Sink accepts records from another device.
type Sink interface {
	MergeEvent(ctx context.Context, e ledger.Event) (bool, error)
	UpsertRate(ctx context.Context, r ledger.RateFact) error
}

// Replica is a store that can both ship and absorb snapshots.
// *store.Store satisfies it.
type Replica interface {
	Source
	Sink
	CountEvents(ctx context.Context) (int, error)
	CountRates(ctx context.Context) (int, error)
}

// Snapshot is the full event list and rate list of one device.
type Snapshot struct {
	Events []ledger.Event
	Rates  []ledger.RateFact
}

// Take reads a full snapshot from src.
func Take(ctx context.Context, src Source) (Snapshot, error) {
	events, err := src.ListEvents(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("take snapshot: %w", err)
	}
	rates, err := src.ListAllRates(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("take snapshot: %w", err)
	}
	return Snapshot{Events: events, Rates: rates}, nil
}

// MergeStats counts the effect of merging records into a Sink.
// ImportedEvents counts only newly inserted events; ImportedRates counts
// every upsert performed.
type MergeStats struct {
	ImportedEvents int
	ImportedRates  int
}

// Add accumulates other into m.
func (m *MergeStats) Add(other MergeStats) {
	m.ImportedEvents += other.ImportedEvents
	m.ImportedRates += other.ImportedRates
}

// MergeEvent merges one event and updates the counters.
func (m *MergeStats) MergeEvent(ctx context.Context, sink Sink, e ledger.Event) error {
	inserted, err := sink.MergeEvent(ctx, e)
	if err != nil {
		return err
	}
	if inserted {
		m.ImportedEvents++
	}
	return nil
}

// MergeRate upserts one rate fact and updates the counters.
func (m *MergeStats) MergeRate(ctx context.Context, sink Sink, r ledger.RateFact) error {
	if err := sink.UpsertRate(ctx, r); err != nil {
		return err
	}
	m.ImportedRates++
	return nil
}

// Apply merges every record of snap into sink, events first.
//
// Each merge is independent: on error the records already merged stay and
// the returned stats reflect them.
func Apply(ctx context.Context, sink Sink, snap Snapshot) (MergeStats, error) {
	var stats MergeStats
	for _, e := range snap.Events {
		if err := stats.MergeEvent(ctx, sink, e); err != nil {
			return stats, fmt.Errorf("apply snapshot: event %s: %w", e.ID, err)
		}
	}
	for _, r := range snap.Rates {
		if err := stats.MergeRate(ctx, sink, r); err != nil {
			return stats, fmt.Errorf("apply snapshot: rate %s: %w", r.Key(), err)
		}
	}
	return stats, nil
}
