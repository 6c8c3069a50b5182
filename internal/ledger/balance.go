package ledger

import (
	"bytes"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Balance is the summed amount of one commodity in one account.
type Balance struct {
	Account   string
	Commodity string
	Amount    decimal.Decimal
}

type balanceKey struct {
	account   string
	commodity string
}

// Balances folds the postings of events into per-(account, commodity) sums.
//
// Only accounts equal to prefix or nested under it ("prefix:...") are
// included; an empty prefix matches everything. Zero sums are kept so that
// a fully drained account still shows up. The result is sorted by account
// then commodity.
func Balances(events []Event, prefix string) []Balance {
	sums := make(map[balanceKey]decimal.Decimal)
	for _, e := range events {
		for _, p := range e.Payload.Postings {
			if !accountMatches(p.Account, prefix) {
				continue
			}
			k := balanceKey{account: p.Account, commodity: p.Commodity}
			sums[k] = sums[k].Add(p.Amount)
		}
	}

	out := make([]Balance, 0, len(sums))
	for k, v := range sums {
		out = append(out, Balance{Account: k.account, Commodity: k.commodity, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account != out[j].Account {
			return out[i].Account < out[j].Account
		}
		return out[i].Commodity < out[j].Commodity
	})
	return out
}

func accountMatches(account, prefix string) bool {
	if prefix == "" || account == prefix {
		return true
	}
	return strings.HasPrefix(account, prefix+":")
}

// SortEvents orders events by (effective_at, created_at, id), the order the
// store returns them in.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Payload, events[j].Payload
		if !a.EffectiveAt.Equal(b.EffectiveAt) {
			return a.EffectiveAt.Before(b.EffectiveAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(events[i].ID[:], events[j].ID[:]) < 0
	})
}
