package ledger

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasis_MarshalVariants(t *testing.T) {
	fixed, err := json.Marshal(FixedBasis(decimal.RequireFromString("1.5"), "XAU"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"fixed","amount":"1.5","commodity":"XAU"}`, string(fixed))

	provider, err := json.Marshal(ProviderBasis("@binance"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"provider","provider":"@binance"}`, string(provider))

	_, err = json.Marshal(Basis{Kind: "weird"})
	assert.Error(t, err)
}

func TestBasis_UnmarshalVariants(t *testing.T) {
	var b Basis
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"fixed","amount":"2","commodity":"EUR"}`), &b))
	assert.Equal(t, BasisFixed, b.Kind)
	assert.Equal(t, "EUR", b.Commodity)
	assert.True(t, b.Amount.Equal(decimal.NewFromInt(2)))

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"provider","provider":"@bcv"}`), &b))
	assert.Equal(t, Basis{Kind: BasisProvider, Provider: "@bcv"}, b)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"nope"}`), &b))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &b))
}

func TestParseProviderToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		ok       bool
		provider string
		rate     string
	}{
		{"plain", "@bcv", true, "bcv", ""},
		{"with rate", "@binance:36.5", true, "binance", "36.5"},
		{"no at", "bcv", false, "", ""},
		{"bare at", "@", false, "", ""},
		{"empty name", "@:3", false, "", ""},
		{"bad rate", "@bcv:abc", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, ok := ParseProviderToken(tt.input)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.provider, tok.Provider)
			assert.Equal(t, "@"+tt.provider, tok.String())
			if tt.rate == "" {
				assert.False(t, tok.OverrideRate.Valid)
			} else {
				require.True(t, tok.OverrideRate.Valid)
				assert.Equal(t, tt.rate, tok.OverrideRate.Decimal.String())
			}
		})
	}
}

func TestParseBasis(t *testing.T) {
	b, err := ParseBasis("@binance")
	require.NoError(t, err)
	assert.Equal(t, ProviderBasis("@binance"), b)

	b, err = ParseBasis(" 0.25 BTC ")
	require.NoError(t, err)
	assert.Equal(t, BasisFixed, b.Kind)
	assert.Equal(t, "BTC", b.Commodity)
	assert.Equal(t, "0.25", b.Amount.String())

	_, err = ParseBasis("lots")
	assert.True(t, IsDataError(err))

	_, err = ParseBasis("x BTC")
	assert.True(t, IsDataError(err))
}
