package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BasisKind discriminates the Basis union.
type BasisKind string

const (
	BasisFixed    BasisKind = "fixed"
	BasisProvider BasisKind = "provider"
)

// Basis is the intrinsic-value metadata of an event. It is either a fixed
// amount of a commodity or a reference to a rate provider.
//
// On the wire it is a "kind"-tagged object:
//
//	{"kind":"fixed","amount":"1.5","commodity":"XAU"}
//	{"kind":"provider","provider":"@binance"}
type Basis struct {
	Kind      BasisKind
	Amount    decimal.Decimal
	Commodity string
	Provider  string
}

// FixedBasis returns a fixed amount+commodity basis.
func FixedBasis(amount decimal.Decimal, commodity string) *Basis {
	return &Basis{Kind: BasisFixed, Amount: amount, Commodity: commodity}
}

// ProviderBasis returns a provider basis. The provider keeps its '@' prefix.
func ProviderBasis(provider string) *Basis {
	return &Basis{Kind: BasisProvider, Provider: provider}
}

type fixedBasisJSON struct {
	Kind      BasisKind       `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Commodity string          `json:"commodity"`
}

type providerBasisJSON struct {
	Kind     BasisKind `json:"kind"`
	Provider string    `json:"provider"`
}

// MarshalJSON emits only the fields of the active variant.
func (b Basis) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BasisFixed:
		return json.Marshal(fixedBasisJSON{Kind: b.Kind, Amount: b.Amount, Commodity: b.Commodity})
	case BasisProvider:
		return json.Marshal(providerBasisJSON{Kind: b.Kind, Provider: b.Provider})
	default:
		return nil, fmt.Errorf("marshal basis: unknown kind %q", b.Kind)
	}
}

// UnmarshalJSON decodes either variant and rejects unknown kinds.
func (b *Basis) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Kind BasisKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("unmarshal basis: %w", err)
	}
	switch tagged.Kind {
	case BasisFixed:
		var v fixedBasisJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshal fixed basis: %w", err)
		}
		*b = Basis{Kind: BasisFixed, Amount: v.Amount, Commodity: v.Commodity}
	case BasisProvider:
		var v providerBasisJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshal provider basis: %w", err)
		}
		*b = Basis{Kind: BasisProvider, Provider: v.Provider}
	default:
		return fmt.Errorf("unmarshal basis: unknown kind %q", tagged.Kind)
	}
	return nil
}

// ProviderToken is a parsed "@provider" or "@provider:rate" argument.
type ProviderToken struct {
	Provider     string
	OverrideRate decimal.NullDecimal
}

// String renders the provider with its '@' prefix, without the rate.
func (p ProviderToken) String() string {
	return "@" + p.Provider
}

// IsProviderToken reports whether s looks like "@name".
func IsProviderToken(s string) bool {
	return strings.HasPrefix(s, "@") && len(s) > 1
}

// ParseProviderToken parses "@name" or "@name:rate".
func ParseProviderToken(s string) (ProviderToken, bool) {
	if !IsProviderToken(s) {
		return ProviderToken{}, false
	}
	name, rawRate, hasRate := strings.Cut(s[1:], ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return ProviderToken{}, false
	}
	tok := ProviderToken{Provider: name}
	if hasRate {
		rate, err := decimal.NewFromString(strings.TrimSpace(rawRate))
		if err != nil {
			return ProviderToken{}, false
		}
		tok.OverrideRate = decimal.NewNullDecimal(rate)
	}
	return tok, true
}

// ParseBasis parses a --basis argument: "@provider" or "<amount> <COMMODITY>".
func ParseBasis(raw string) (*Basis, error) {
	raw = strings.TrimSpace(raw)
	if tok, ok := ParseProviderToken(raw); ok {
		return ProviderBasis(tok.String()), nil
	}
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return nil, NewDataError("parse basis", fmt.Sprintf("invalid basis %q: expected @provider or \"<amount> <commodity>\"", raw), nil)
	}
	amount, err := decimal.NewFromString(fields[0])
	if err != nil {
		return nil, NewDataError("parse basis", fmt.Sprintf("invalid basis amount %q", fields[0]), err)
	}
	return FixedBasis(amount, fields[1]), nil
}
