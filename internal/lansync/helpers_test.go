package lansync

import (
	"context"
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
	"github.com/roach88/bankero/internal/testutil"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testIdentity(n uint8, name string) ledger.Identity {
	return ledger.Identity{
		DeviceID:   testutil.DeviceID(n),
		DeviceName: name,
		UserHost:   "alice@laptop",
		Version:    "0.3.0",
	}
}

func testEvent(n int, offset time.Duration) ledger.Event {
	ts := base.Add(offset)
	return ledger.Event{
		ID: uuid.MustParse(fmt.Sprintf("01940000-0000-7000-8000-%012x", n)),
		Payload: ledger.EventPayload{
			SchemaVersion: 1,
			DeviceID:      testutil.DeviceID(1),
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

func counts(t *testing.T, s *store.Store) (events, rates int) {
	t.Helper()
	ctx := context.Background()
	events, err := s.CountEvents(ctx)
	require.NoError(t, err)
	rates, err = s.CountRates(ctx)
	require.NoError(t, err)
	return events, rates
}
