package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/bankero/internal/ledger"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ListEvents returns every stored event ordered by
// effective_at ASC, created_at ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the store holds no events.
func (s *Store) ListEvents(ctx context.Context) ([]ledger.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload_json
		FROM events
		ORDER BY effective_at ASC, created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ledger.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// ReadEvent returns the event with the given id.
// Returns found=false (and no error) if it does not exist.
func (s *Store) ReadEvent(ctx context.Context, id uuid.UUID) (e ledger.Event, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, payload_json FROM events WHERE id = ?
	`, id.String())

	e, err = scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Event{}, false, nil
	}
	if err != nil {
		return ledger.Event{}, false, fmt.Errorf("read event: %w", err)
	}
	return e, true, nil
}

// ListAllRates returns every rate fact ordered by provider, base, quote, as_of.
func (s *Store) ListAllRates(ctx context.Context) ([]ledger.RateFact, error) {
	return s.queryRates(ctx, `
		SELECT provider, base, quote, as_of, rate
		FROM rates
		ORDER BY provider ASC, base ASC, quote ASC, as_of ASC
	`)
}

// ListRates returns up to limit facts for one pair, newest as_of first.
// A limit <= 0 returns every fact for the pair.
func (s *Store) ListRates(ctx context.Context, provider, base, quote string, limit int) ([]ledger.RateFact, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryRates(ctx, `
		SELECT provider, base, quote, as_of, rate
		FROM rates
		WHERE provider = ? AND base = ? AND quote = ?
		ORDER BY as_of DESC
		LIMIT ?
	`, provider, base, quote, limit)
}

// RateAsOf returns the latest fact for the pair whose as_of is at or before at.
// Returns found=false (and no error) if no such fact exists.
func (s *Store) RateAsOf(ctx context.Context, provider, base, quote string, at time.Time) (r ledger.RateFact, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT provider, base, quote, as_of, rate
		FROM rates
		WHERE provider = ? AND base = ? AND quote = ? AND as_of <= ?
		ORDER BY as_of DESC
		LIMIT 1
	`, provider, base, quote, ledger.FormatTime(at))

	r, err = scanRate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.RateFact{}, false, nil
	}
	if err != nil {
		return ledger.RateFact{}, false, fmt.Errorf("rate as of: %w", err)
	}
	return r, true, nil
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// CountRates returns the number of stored rate facts.
func (s *Store) CountRates(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rates: %w", err)
	}
	return n, nil
}

func (s *Store) queryRates(ctx context.Context, query string, args ...any) ([]ledger.RateFact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rates: %w", err)
	}
	defer rows.Close()

	rates := []ledger.RateFact{}
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		rates = append(rates, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rates: %w", err)
	}

	return rates, nil
}

// scanEvent scans (id, payload_json) into an Event.
func scanEvent(row scanner) (ledger.Event, error) {
	var rawID, payloadJSON string
	if err := row.Scan(&rawID, &payloadJSON); err != nil {
		return ledger.Event{}, err
	}

	id, err := parseID(rawID)
	if err != nil {
		return ledger.Event{}, err
	}
	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return ledger.Event{}, err
	}
	return ledger.Event{ID: id, Payload: payload}, nil
}

// scanRate scans (provider, base, quote, as_of, rate) into a RateFact.
func scanRate(row scanner) (ledger.RateFact, error) {
	var r ledger.RateFact
	var asOf, rate string
	if err := row.Scan(&r.Provider, &r.Base, &r.Quote, &asOf, &rate); err != nil {
		return ledger.RateFact{}, err
	}

	t, err := ledger.ParseTime(asOf)
	if err != nil {
		return ledger.RateFact{}, err
	}
	r.AsOf = t

	d, err := parseRate(rate)
	if err != nil {
		return ledger.RateFact{}, err
	}
	r.Rate = d
	return r, nil
}
