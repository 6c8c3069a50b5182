package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp.
// Nanoseconds are always present so lexical order equals time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in TimeLayout after converting it to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses any RFC 3339 timestamp and returns it in UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, NewDataError("parse time", fmt.Sprintf("invalid RFC 3339 timestamp %q", s), err)
	}
	return t.UTC(), nil
}

// Action identifies the command that produced an event.
type Action string

const (
	ActionDeposit Action = "deposit"
	ActionMove    Action = "move"
	ActionBuy     Action = "buy"
	ActionSell    Action = "sell"
	ActionTag     Action = "tag"
)

// Posting is one signed, single-commodity leg of an event.
type Posting struct {
	Account   string          `json:"account"`
	Commodity string          `json:"commodity"`
	Amount    decimal.Decimal `json:"amount"`
}

// RateContext records which exchange rate, if any, applied to an event.
type RateContext struct {
	Provider     *string             `json:"provider"`
	OverrideRate decimal.NullDecimal `json:"override_rate"`
	Base         *string             `json:"base"`
	Quote        *string             `json:"quote"`
	AsOf         time.Time           `json:"as_of"`
}

// EventPayload is the immutable body of a LedgerEvent.
//
// Metadata is kept as raw JSON so fields written by newer software survive a
// round trip through older devices unchanged.
type EventPayload struct {
	SchemaVersion int             `json:"schema_version"`
	DeviceID      uuid.UUID       `json:"device_id"`
	Workspace     string          `json:"workspace"`
	Project       string          `json:"project"`
	Action        Action          `json:"action"`
	CreatedAt     time.Time       `json:"created_at"`
	EffectiveAt   time.Time       `json:"effective_at"`
	Postings      []Posting       `json:"postings"`
	Tags          []string        `json:"tags"`
	Category      *string         `json:"category"`
	Note          *string         `json:"note"`
	RateContext   RateContext     `json:"rate_context"`
	Basis         *Basis          `json:"basis"`
	Metadata      json.RawMessage `json:"metadata"`
}

// MarshalJSON writes absent tags and postings as empty arrays, never null,
// so records relayed from a sender that omitted them stay readable by
// every peer.
func (p EventPayload) MarshalJSON() ([]byte, error) {
	type plain EventPayload
	out := plain(p)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Postings == nil {
		out.Postings = []Posting{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Event is a LedgerEvent: a payload plus the id that is its sole merge key.
type Event struct {
	ID      uuid.UUID    `json:"id"`
	Payload EventPayload `json:"payload"`
}

// Validate checks the fields the store indexes on.
func (e Event) Validate() error {
	if e.ID == uuid.Nil {
		return NewDataError("validate event", "event id is nil", nil)
	}
	if e.Payload.Action == "" {
		return NewDataError("validate event", fmt.Sprintf("event %s has no action", e.ID), nil)
	}
	if e.Payload.CreatedAt.IsZero() || e.Payload.EffectiveAt.IsZero() {
		return NewDataError("validate event", fmt.Sprintf("event %s is missing a timestamp", e.ID), nil)
	}
	for i, p := range e.Payload.Postings {
		if p.Account == "" || p.Commodity == "" {
			return NewDataError("validate event", fmt.Sprintf("event %s posting %d needs account and commodity", e.ID, i), nil)
		}
	}
	return nil
}

// RateKey is the primary key of a RateFact.
type RateKey struct {
	Provider string
	Base     string
	Quote    string
	AsOf     time.Time
}

func (k RateKey) String() string {
	return fmt.Sprintf("%s %s/%s@%s", k.Provider, k.Base, k.Quote, FormatTime(k.AsOf))
}

// RateFact is one historical exchange-rate point: quote units per base unit.
type RateFact struct {
	Provider string          `json:"provider"`
	Base     string          `json:"base"`
	Quote    string          `json:"quote"`
	AsOf     time.Time       `json:"as_of"`
	Rate     decimal.Decimal `json:"rate"`
}

// Key returns the normalised primary key of the fact.
func (r RateFact) Key() RateKey {
	return RateKey{Provider: r.Provider, Base: r.Base, Quote: r.Quote, AsOf: r.AsOf.UTC()}
}

// Validate rejects facts that cannot be stored under a well-formed key.
func (r RateFact) Validate() error {
	if r.Provider == "" || r.Base == "" || r.Quote == "" {
		return NewDataError("validate rate", "rate needs provider, base and quote", nil)
	}
	if r.AsOf.IsZero() {
		return NewDataError("validate rate", fmt.Sprintf("rate %s/%s has no as_of", r.Base, r.Quote), nil)
	}
	return nil
}
