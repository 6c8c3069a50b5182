package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/store"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testEvent(n int, offset time.Duration) ledger.Event {
	ts := base.Add(offset)
	return ledger.Event{
		ID: uuid.MustParse(fmt.Sprintf("01940000-0000-7000-8000-%012x", n)),
		Payload: ledger.EventPayload{
			SchemaVersion: 1,
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

func testRate(asOf time.Time, rate string) ledger.RateFact {
	return ledger.RateFact{Provider: "bcv", Base: "USD", Quote: "VES", AsOf: asOf, Rate: decimal.RequireFromString(rate)}
}

func openStore(t *testing.T, name string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), name+".db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
