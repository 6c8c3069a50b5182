package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/snapshot"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Device   string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Device != "" {
		fmt.Fprintf(&buf, " on %s", e.Device)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion against the harness devices and
// returns the failure messages.
func EvaluateAssertions(ctx context.Context, h *Harness, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(ctx, h, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(ctx context.Context, h *Harness, a Assertion) error {
	switch a.Type {
	case AssertBalance:
		return assertBalance(ctx, h, a)
	case AssertEventCount:
		return assertCount(ctx, h, a, func(d *device) (int, error) { return d.store.CountEvents(ctx) })
	case AssertRateCount:
		return assertCount(ctx, h, a, func(d *device) (int, error) { return d.store.CountRates(ctx) })
	case AssertRateAsOf:
		return assertRateAsOf(ctx, h, a)
	case AssertConverged:
		return assertConverged(ctx, h, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertBalance sums the postings of exactly one account; an account with no
// postings has a zero balance.
func assertBalance(ctx context.Context, h *Harness, a Assertion) error {
	d, err := h.device(a.Device)
	if err != nil {
		return err
	}
	want, err := decimal.NewFromString(a.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", a.Amount, err)
	}
	events, err := d.store.ListEvents(ctx)
	if err != nil {
		return err
	}

	got := decimal.Zero
	for _, b := range ledger.Balances(events, a.Account) {
		if b.Account == a.Account && b.Commodity == a.Commodity {
			got = b.Amount
		}
	}
	if !got.Equal(want) {
		return &AssertionError{
			Type:     AssertBalance,
			Device:   a.Device,
			Expected: fmt.Sprintf("%s %s in %s", want, a.Commodity, a.Account),
			Actual:   fmt.Sprintf("%s %s", got, a.Commodity),
		}
	}
	return nil
}

func assertCount(ctx context.Context, h *Harness, a Assertion, count func(*device) (int, error)) error {
	d, err := h.device(a.Device)
	if err != nil {
		return err
	}
	got, err := count(d)
	if err != nil {
		return err
	}
	if got != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Device:   a.Device,
			Expected: fmt.Sprintf("%d", *a.Count),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertRateAsOf checks the fact applicable at a.At. An empty a.Rate asserts
// that no fact applies.
func assertRateAsOf(ctx context.Context, h *Harness, a Assertion) error {
	d, err := h.device(a.Device)
	if err != nil {
		return err
	}
	at, err := ledger.ParseTime(a.At)
	if err != nil {
		return err
	}
	r, found, err := d.store.RateAsOf(ctx, a.Provider, a.Base, a.Quote, at)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s %s/%s at %s", a.Provider, a.Base, a.Quote, a.At)
	if a.Rate == "" {
		if found {
			return &AssertionError{Type: AssertRateAsOf, Device: a.Device, Expected: "no rate for " + key, Actual: r.Rate.String()}
		}
		return nil
	}

	want, err := decimal.NewFromString(a.Rate)
	if err != nil {
		return fmt.Errorf("invalid rate %q: %w", a.Rate, err)
	}
	if !found {
		return &AssertionError{Type: AssertRateAsOf, Device: a.Device, Expected: want.String() + " for " + key, Actual: "no rate"}
	}
	if !r.Rate.Equal(want) {
		return &AssertionError{Type: AssertRateAsOf, Device: a.Device, Expected: want.String() + " for " + key, Actual: r.Rate.String()}
	}
	return nil
}

// assertConverged compares the exported snapshot bytes of every listed
// device with the first one.
func assertConverged(ctx context.Context, h *Harness, a Assertion) error {
	var first []byte
	for i, name := range a.Devices {
		d, err := h.device(name)
		if err != nil {
			return err
		}
		data, err := exportSnapshot(ctx, d)
		if err != nil {
			return fmt.Errorf("device %s: %w", name, err)
		}
		if i == 0 {
			first = data
			continue
		}
		if !bytes.Equal(first, data) {
			return &AssertionError{
				Type:     AssertConverged,
				Device:   name,
				Expected: "same events and rates as " + a.Devices[0],
				Actual:   "snapshots differ",
			}
		}
	}
	return nil
}

func exportSnapshot(ctx context.Context, d *device) ([]byte, error) {
	snap, err := snapshot.Take(ctx, d.store)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := snapshot.WriteEvents(&buf, snap.Events); err != nil {
		return nil, err
	}
	if err := snapshot.WriteRates(&buf, snap.Rates); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
