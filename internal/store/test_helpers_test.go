package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/bankero/internal/ledger"
)

var testBase = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates a deposit-shaped event with minimal required fields.
// n selects the id suffix; offset shifts effective_at from testBase.
func createTestEvent(n int, offset time.Duration) ledger.Event {
	ts := testBase.Add(offset)
	return ledger.Event{
		ID: uuid.MustParse(idFor(n)),
		Payload: ledger.EventPayload{
			SchemaVersion: ledger.SchemaVersion,
			DeviceID:      uuid.MustParse("00000000-0000-4000-8000-000000000001"),
			Workspace:     "personal",
			Project:       "default",
			Action:        ledger.ActionDeposit,
			CreatedAt:     ts,
			EffectiveAt:   ts,
			Postings: []ledger.Posting{
				{Account: "income:salary", Commodity: "USD", Amount: decimal.NewFromInt(-100)},
				{Account: "assets:cash", Commodity: "USD", Amount: decimal.NewFromInt(100)},
			},
			Tags:        []string{},
			RateContext: ledger.RateContext{AsOf: ts},
			Metadata:    json.RawMessage(`{"confirm":false}`),
		},
	}
}

func idFor(n int) string {
	return fmt.Sprintf("01940000-0000-7000-8000-%012x", n)
}

// createTestRate creates a bcv USD/VES fact.
func createTestRate(asOf time.Time, rate string) ledger.RateFact {
	return ledger.RateFact{
		Provider: "bcv",
		Base:     "USD",
		Quote:    "VES",
		AsOf:     asOf,
		Rate:     decimal.RequireFromString(rate),
	}
}
