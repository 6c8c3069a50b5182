package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scope identifies where a new event is written.
type Scope struct {
	DeviceID  uuid.UUID
	Workspace string
	Project   string
}

// DepositInput holds the parsed arguments of a deposit.
type DepositInput struct {
	Amount    decimal.Decimal
	Commodity string
	From      string
	To        string

	// EffectiveAt defaults to the creation time when zero.
	EffectiveAt time.Time
	// AsOf defaults to EffectiveAt when zero.
	AsOf time.Time

	Note     *string
	Category *string
	Tags     []string
	Basis    *Basis
	Provider *ProviderToken
	Confirm  bool
}

// NewDeposit builds a balanced two-posting deposit event moving Amount of
// Commodity from From into To.
func NewDeposit(ids IDGenerator, clock Clock, scope Scope, in DepositInput) (Event, error) {
	if in.Commodity == "" {
		return Event{}, NewDataError("build deposit", "commodity is required", nil)
	}
	if in.From == "" || in.To == "" {
		return Event{}, NewDataError("build deposit", "both --from and --to accounts are required", nil)
	}

	createdAt := clock.Now().UTC()
	effectiveAt := in.EffectiveAt.UTC()
	if in.EffectiveAt.IsZero() {
		effectiveAt = createdAt
	}
	asOf := in.AsOf.UTC()
	if in.AsOf.IsZero() {
		asOf = effectiveAt
	}

	rc := RateContext{AsOf: asOf}
	if in.Provider != nil {
		name := in.Provider.String()
		rc.Provider = &name
		rc.OverrideRate = in.Provider.OverrideRate
	}

	metadata, err := json.Marshal(map[string]any{"confirm": in.Confirm})
	if err != nil {
		return Event{}, fmt.Errorf("build deposit: %w", err)
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	e := Event{
		ID: ids.NewID(),
		Payload: EventPayload{
			SchemaVersion: SchemaVersion,
			DeviceID:      scope.DeviceID,
			Workspace:     scope.Workspace,
			Project:       scope.Project,
			Action:        ActionDeposit,
			CreatedAt:     createdAt,
			EffectiveAt:   effectiveAt,
			Postings: []Posting{
				{Account: in.From, Commodity: in.Commodity, Amount: in.Amount.Neg()},
				{Account: in.To, Commodity: in.Commodity, Amount: in.Amount},
			},
			Tags:        tags,
			Category:    in.Category,
			Note:        in.Note,
			RateContext: rc,
			Basis:       in.Basis,
			Metadata:    metadata,
		},
	}
	return e, e.Validate()
}
