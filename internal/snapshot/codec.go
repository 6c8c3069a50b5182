package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/bankero/internal/ledger"
)

// File names used inside a device's snapshot directory.
const (
	EventsFile = "events.jsonl"
	RatesFile  = "rates.jsonl"
)

// Encoder writes one JSON record per line. HTML escaping is disabled so
// records stay byte-identical to what other devices produce.
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{enc: enc}
}

// Encode writes v followed by a newline.
func (e *Encoder) Encode(v any) error {
	return e.enc.Encode(v)
}

// WriteEvents writes events as event records.
func WriteEvents(w io.Writer, events []ledger.Event) error {
	enc := NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("write event %s: %w", e.ID, err)
		}
	}
	return nil
}

// WriteRates writes rate facts as rate records.
func WriteRates(w io.Writer, rates []ledger.RateFact) error {
	enc := NewEncoder(w)
	for _, r := range rates {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write rate %s: %w", r.Key(), err)
		}
	}
	return nil
}

// ReadEvents decodes every event record from r. Blank lines are skipped.
// The first malformed line fails the whole read with a data error naming
// source and line number.
func ReadEvents(r io.Reader, source string) ([]ledger.Event, error) {
	return readRecords(r, source, ledger.Event.Validate)
}

// ReadRates decodes every rate record from r. See ReadEvents.
func ReadRates(r io.Reader, source string) ([]ledger.RateFact, error) {
	return readRecords(r, source, ledger.RateFact.Validate)
}

func readRecords[T any](r io.Reader, source string, validate func(T) error) ([]T, error) {
	br := bufio.NewReader(r)
	out := []T{}
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var rec T
			if uerr := json.Unmarshal(trimmed, &rec); uerr != nil {
				return nil, ledger.NewDataError("decode snapshot", fmt.Sprintf("%s line %d", source, lineNo), uerr)
			}
			if verr := validate(rec); verr != nil {
				return nil, ledger.NewDataError("decode snapshot", fmt.Sprintf("%s line %d", source, lineNo), verr)
			}
			out = append(out, rec)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
	}
}
