package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/bankero/internal/ledger"
)

// marshalPayload converts an EventPayload to JSON TEXT for storage.
// HTML escaping is disabled so account names like "a&b" stay readable.
func marshalPayload(p ledger.EventPayload) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalPayload parses JSON TEXT to an EventPayload.
func unmarshalPayload(data string) (ledger.EventPayload, error) {
	var p ledger.EventPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return ledger.EventPayload{}, ledger.NewDataError("unmarshal payload", "stored payload is not valid JSON", err)
	}
	return p, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ledger.NewDataError("parse id", fmt.Sprintf("invalid event id %q", raw), err)
	}
	return id, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, ledger.NewDataError("parse rate", fmt.Sprintf("invalid decimal %q", raw), err)
	}
	return d, nil
}
