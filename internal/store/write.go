package store

import (
	"context"
	"fmt"

	"github.com/roach88/bankero/internal/ledger"
)

// AppendEvent inserts a locally created event. The caller guarantees the id
// is fresh; a duplicate id is a constraint error, not a silent no-op.
func (s *Store) AppendEvent(ctx context.Context, e ledger.Event) error {
	args, err := eventArgs(e)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, action, device_id, created_at, effective_at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	return nil
}

// MergeEvent inserts an event received from another device if its id is
// not already present. Uses ON CONFLICT(id) DO NOTHING, so merging the same
// event any number of times leaves exactly one row.
//
// Returns inserted=true only when a new row was written.
func (s *Store) MergeEvent(ctx context.Context, e ledger.Event) (inserted bool, err error) {
	args, err := eventArgs(e)
	if err != nil {
		return false, fmt.Errorf("merge event: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, action, device_id, created_at, effective_at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, args...)
	if err != nil {
		return false, fmt.Errorf("merge event: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("merge event: rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// UpsertRate writes a rate fact, overwriting the rate at an identical
// (provider, base, quote, as_of) key. A different as_of adds a new point.
func (s *Store) UpsertRate(ctx context.Context, r ledger.RateFact) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rates (provider, base, quote, as_of, rate)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider, base, quote, as_of) DO UPDATE SET rate = excluded.rate
	`,
		r.Provider,
		r.Base,
		r.Quote,
		ledger.FormatTime(r.AsOf),
		r.Rate.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}

	return nil
}

func eventArgs(e ledger.Event) ([]any, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	payloadJSON, err := marshalPayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return []any{
		e.ID.String(),
		string(e.Payload.Action),
		e.Payload.DeviceID.String(),
		ledger.FormatTime(e.Payload.CreatedAt),
		ledger.FormatTime(e.Payload.EffectiveAt),
		payloadJSON,
	}, nil
}
