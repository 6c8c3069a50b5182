package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bankero/internal/testutil"
)

func testScope() Scope {
	return Scope{DeviceID: testutil.DeviceID(1), Workspace: "personal", Project: "default"}
}

func TestNewDeposit_BalancedPostings(t *testing.T) {
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)
	ids := testutil.NewSequentialIDGenerator(1)

	e, err := NewDeposit(ids, clock, testScope(), DepositInput{
		Amount:    decimal.NewFromInt(100),
		Commodity: "USD",
		From:      "income:salary",
		To:        "assets:cash",
	})
	require.NoError(t, err)

	assert.Equal(t, "00010000-0000-7000-8000-000000000001", e.ID.String())
	assert.Equal(t, ActionDeposit, e.Payload.Action)
	assert.Equal(t, SchemaVersion, e.Payload.SchemaVersion)
	assert.Equal(t, testutil.DefaultStart, e.Payload.CreatedAt)
	assert.Equal(t, e.Payload.CreatedAt, e.Payload.EffectiveAt)
	assert.Equal(t, e.Payload.EffectiveAt, e.Payload.RateContext.AsOf)
	assert.Nil(t, e.Payload.RateContext.Provider)
	assert.NotNil(t, e.Payload.Tags)
	assert.JSONEq(t, `{"confirm":false}`, string(e.Payload.Metadata))

	require.Len(t, e.Payload.Postings, 2)
	assert.Equal(t, "-100", e.Payload.Postings[0].Amount.String())
	assert.Equal(t, "income:salary", e.Payload.Postings[0].Account)
	assert.Equal(t, "100", e.Payload.Postings[1].Amount.String())
	assert.Equal(t, "assets:cash", e.Payload.Postings[1].Account)
}

func TestNewDeposit_ProviderAndTimes(t *testing.T) {
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)
	ids := testutil.NewSequentialIDGenerator(1)
	effective := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	tok, ok := ParseProviderToken("@bcv:45.2")
	require.True(t, ok)

	e, err := NewDeposit(ids, clock, testScope(), DepositInput{
		Amount:      decimal.RequireFromString("10.50"),
		Commodity:   "USD",
		From:        "income:freelance",
		To:          "assets:bank",
		EffectiveAt: effective,
		Provider:    &tok,
		Basis:       ProviderBasis("@binance"),
		Confirm:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, effective, e.Payload.EffectiveAt)
	assert.Equal(t, effective, e.Payload.RateContext.AsOf)
	require.NotNil(t, e.Payload.RateContext.Provider)
	assert.Equal(t, "@bcv", *e.Payload.RateContext.Provider)
	assert.Equal(t, "45.2", e.Payload.RateContext.OverrideRate.Decimal.String())

	var meta map[string]bool
	require.NoError(t, json.Unmarshal(e.Payload.Metadata, &meta))
	assert.True(t, meta["confirm"])
}

func TestNewDeposit_RequiresAccounts(t *testing.T) {
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)
	ids := testutil.NewSequentialIDGenerator(1)

	_, err := NewDeposit(ids, clock, testScope(), DepositInput{Amount: decimal.NewFromInt(1), Commodity: "USD", To: "assets:cash"})
	assert.True(t, IsDataError(err))

	_, err = NewDeposit(ids, clock, testScope(), DepositInput{Amount: decimal.NewFromInt(1), From: "a", To: "b"})
	assert.True(t, IsDataError(err))
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.NewID(), gen.NewID()
	assert.NotEqual(t, a, b)
	assert.Equal(t, 7, int(a.Version()))
}
