package store

import (
	"context"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/bankero/internal/ledger"
)

func TestListEvents_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if events == nil {
		t.Error("ListEvents() returned nil, want empty slice")
	}
}

func TestListEvents_OrderedByEffectiveThenCreatedThenID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	late := createTestEvent(1, time.Hour)
	early := createTestEvent(2, 0)
	tieA := createTestEvent(3, 30*time.Minute)
	tieB := createTestEvent(4, 30*time.Minute)
	createdFirst := createTestEvent(5, 30*time.Minute)
	createdFirst.Payload.CreatedAt = testBase

	for _, e := range []ledger.Event{late, tieB, early, createdFirst, tieA} {
		if err := s.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent(%s) failed: %v", e.ID, err)
		}
	}

	events, err := s.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}

	want := []uuid.UUID{early.ID, createdFirst.ID, tieA.ID, tieB.ID, late.ID}
	if len(events) != len(want) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(want))
	}
	for i, id := range want {
		if events[i].ID != id {
			t.Errorf("events[%d].ID = %s, want %s", i, events[i].ID, id)
		}
	}
}

func TestListEvents_PayloadRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := createTestEvent(1, 0)
	note := "salary & bonus <jan>"
	e.Payload.Note = &note
	e.Payload.Tags = []string{"work"}
	e.Payload.Basis = ledger.ProviderBasis("@binance")
	e.Payload.Metadata = []byte(`{"confirm":true,"unknown_future":{"k":[1,2]}}`)

	if err := s.AppendEvent(ctx, e); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}

	got, found, err := s.ReadEvent(ctx, e.ID)
	if err != nil || !found {
		t.Fatalf("ReadEvent() = (found=%v, err=%v)", found, err)
	}

	if got.Payload.Note == nil || *got.Payload.Note != note {
		t.Errorf("note = %v, want %q", got.Payload.Note, note)
	}
	if !reflect.DeepEqual(got.Payload.Tags, []string{"work"}) {
		t.Errorf("tags = %v", got.Payload.Tags)
	}
	if got.Payload.Basis == nil || got.Payload.Basis.Provider != "@binance" {
		t.Errorf("basis = %+v", got.Payload.Basis)
	}
	if string(got.Payload.Metadata) != `{"confirm":true,"unknown_future":{"k":[1,2]}}` {
		t.Errorf("metadata = %s", got.Payload.Metadata)
	}
	if !got.Payload.Postings[1].Amount.Equal(e.Payload.Postings[1].Amount) {
		t.Errorf("posting amount = %s, want %s", got.Payload.Postings[1].Amount, e.Payload.Postings[1].Amount)
	}
	if !got.Payload.EffectiveAt.Equal(e.Payload.EffectiveAt) {
		t.Errorf("effective_at = %v, want %v", got.Payload.EffectiveAt, e.Payload.EffectiveAt)
	}
}

func TestReadEvent_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, found, err := s.ReadEvent(context.Background(), uuid.MustParse(idFor(99)))
	if err != nil {
		t.Fatalf("ReadEvent() failed: %v", err)
	}
	if found {
		t.Error("ReadEvent() found = true for missing id")
	}
}

func TestRateAsOf_LatestAtOrBefore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	t1 := testBase
	t2 := testBase.Add(48 * time.Hour)

	if err := s.UpsertRate(ctx, createTestRate(t1, "45.2")); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertRate(ctx, createTestRate(t1, "46.0")); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertRate(ctx, createTestRate(t2, "50")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		at    time.Time
		found bool
		rate  string
	}{
		{"before any fact", t1.Add(-time.Second), false, ""},
		{"exactly T1", t1, true, "46"},
		{"between T1 and T2", t1.Add(24 * time.Hour), true, "46"},
		{"exactly T2", t2, true, "50"},
		{"after T2", t2.Add(time.Hour), true, "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, found, err := s.RateAsOf(ctx, "bcv", "USD", "VES", tt.at)
			if err != nil {
				t.Fatalf("RateAsOf() failed: %v", err)
			}
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if found && r.Rate.String() != tt.rate {
				t.Errorf("rate = %s, want %s", r.Rate, tt.rate)
			}
		})
	}
}

func TestRateAsOf_OtherPairIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := createTestRate(testBase, "0.92")
	r.Quote = "EUR"
	if err := s.UpsertRate(ctx, r); err != nil {
		t.Fatal(err)
	}

	_, found, err := s.RateAsOf(ctx, "bcv", "USD", "VES", testBase.Add(time.Hour))
	if err != nil {
		t.Fatalf("RateAsOf() failed: %v", err)
	}
	if found {
		t.Error("RateAsOf() matched a different quote commodity")
	}
}

func TestListRates_NewestFirstWithLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, rate := range []string{"40", "41", "42", "43"} {
		if err := s.UpsertRate(ctx, createTestRate(testBase.Add(time.Duration(i)*time.Hour), rate)); err != nil {
			t.Fatal(err)
		}
	}

	rates, err := s.ListRates(ctx, "bcv", "USD", "VES", 2)
	if err != nil {
		t.Fatalf("ListRates() failed: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("len(rates) = %d, want 2", len(rates))
	}
	if rates[0].Rate.String() != "43" || rates[1].Rate.String() != "42" {
		t.Errorf("rates = [%s %s], want [43 42]", rates[0].Rate, rates[1].Rate)
	}

	all, err := s.ListRates(ctx, "bcv", "USD", "VES", 0)
	if err != nil {
		t.Fatalf("ListRates(limit=0) failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("len(all) = %d, want 4", len(all))
	}
}

func TestListAllRates_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	facts := []ledger.RateFact{
		createTestRate(testBase.Add(time.Hour), "2"),
		{Provider: "binance", Base: "USDT", Quote: "VES", AsOf: testBase, Rate: createTestRate(testBase, "60").Rate},
		createTestRate(testBase, "1"),
	}
	for _, f := range facts {
		if err := s.UpsertRate(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	rates, err := s.ListAllRates(ctx)
	if err != nil {
		t.Fatalf("ListAllRates() failed: %v", err)
	}
	got := make([]string, len(rates))
	for i, r := range rates {
		got[i] = r.Provider + ":" + r.Rate.String()
	}
	want := []string{"bcv:1", "bcv:2", "binance:60"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListAllRates() order = %v, want %v", got, want)
	}
}

// Merging the same set of records in any order, with duplicates interleaved,
// must produce identical store contents.
func TestMerge_OrderIndependent(t *testing.T) {
	ctx := context.Background()

	var events []ledger.Event
	for i := 1; i <= 8; i++ {
		events = append(events, createTestEvent(i, time.Duration(i%3)*time.Minute))
	}
	rates := []ledger.RateFact{
		createTestRate(testBase, "45.2"),
		createTestRate(testBase.Add(time.Hour), "45.9"),
	}

	snapshot := func(s *Store) ([]ledger.Event, []ledger.RateFact) {
		t.Helper()
		ev, err := s.ListEvents(ctx)
		if err != nil {
			t.Fatalf("ListEvents() failed: %v", err)
		}
		rt, err := s.ListAllRates(ctx)
		if err != nil {
			t.Fatalf("ListAllRates() failed: %v", err)
		}
		return ev, rt
	}

	rng := rand.New(rand.NewSource(42))
	var firstEvents []ledger.Event
	var firstRates []ledger.RateFact

	for round := 0; round < 4; round++ {
		s := createTestStore(t)

		batch := append([]ledger.Event{}, events...)
		batch = append(batch, events[round], events[len(events)-1-round])
		rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })

		for _, e := range batch {
			if _, err := s.MergeEvent(ctx, e); err != nil {
				t.Fatalf("MergeEvent() failed: %v", err)
			}
		}
		for i := len(rates) - 1; i >= 0; i-- {
			if err := s.UpsertRate(ctx, rates[(i+round)%len(rates)]); err != nil {
				t.Fatalf("UpsertRate() failed: %v", err)
			}
		}

		gotEvents, gotRates := snapshot(s)
		if round == 0 {
			firstEvents, firstRates = gotEvents, gotRates
			continue
		}
		if len(gotEvents) != len(events) {
			t.Fatalf("round %d: %d events, want %d", round, len(gotEvents), len(events))
		}
		for i := range gotEvents {
			if gotEvents[i].ID != firstEvents[i].ID {
				t.Errorf("round %d: events[%d] = %s, want %s", round, i, gotEvents[i].ID, firstEvents[i].ID)
			}
		}
		if len(gotRates) != len(firstRates) {
			t.Fatalf("round %d: %d rates, want %d", round, len(gotRates), len(firstRates))
		}
		for i := range gotRates {
			if !gotRates[i].Rate.Equal(firstRates[i].Rate) || !gotRates[i].AsOf.Equal(firstRates[i].AsOf) {
				t.Errorf("round %d: rates[%d] = %+v, want %+v", round, i, gotRates[i], firstRates[i])
			}
		}
	}
}
