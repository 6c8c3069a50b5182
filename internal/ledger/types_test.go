package ledger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime_FixedWidthUTC(t *testing.T) {
	loc := time.FixedZone("VET", -4*60*60)
	ts := time.Date(2025, 2, 3, 8, 4, 5, 7, loc)

	assert.Equal(t, "2025-02-03T12:04:05.000000007Z", FormatTime(ts))
	assert.Equal(t, "2025-02-03T12:04:05.000000000Z", FormatTime(ts.Truncate(time.Second)))
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2025-02-03T08:04:05-04:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, "2025-02-03T12:04:05.000000000Z", FormatTime(got))

	_, err = ParseTime("yesterday")
	require.Error(t, err)
	assert.True(t, IsDataError(err))
}

func TestEventPayload_JSONShape(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Event{
		ID: uuid.MustParse("01900000-0000-7000-8000-000000000001"),
		Payload: EventPayload{
			SchemaVersion: 1,
			DeviceID:      uuid.MustParse("00000000-0000-4000-8000-000000000001"),
			Workspace:     "personal",
			Project:       "default",
			Action:        ActionDeposit,
			CreatedAt:     ts,
			EffectiveAt:   ts,
			Postings: []Posting{
				{Account: "income:salary", Commodity: "USD", Amount: decimal.RequireFromString("-100")},
				{Account: "assets:cash", Commodity: "USD", Amount: decimal.RequireFromString("100")},
			},
			Tags:        []string{},
			RateContext: RateContext{AsOf: ts},
			Metadata:    json.RawMessage(`{"confirm":false}`),
		},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	payload := generic["payload"].(map[string]any)

	assert.Equal(t, "01900000-0000-7000-8000-000000000001", generic["id"])
	assert.Equal(t, "deposit", payload["action"])
	assert.Nil(t, payload["basis"])
	assert.Nil(t, payload["note"])
	rc := payload["rate_context"].(map[string]any)
	assert.Contains(t, rc, "override_rate")
	assert.Nil(t, rc["override_rate"])
	postings := payload["postings"].([]any)
	assert.Equal(t, "-100", postings[0].(map[string]any)["amount"])
}

func TestEventPayload_MetadataPreservedOpaquely(t *testing.T) {
	raw := `{"id":"01900000-0000-7000-8000-000000000002","payload":{"schema_version":1,` +
		`"device_id":"00000000-0000-4000-8000-000000000002","workspace":"personal","project":"default",` +
		`"action":"buy","created_at":"2025-01-01T00:00:00Z","effective_at":"2025-01-01T00:00:00Z",` +
		`"postings":[],"tags":["food"],"category":null,"note":"lunch",` +
		`"rate_context":{"provider":"@bcv","override_rate":"45.2","base":"USD","quote":"VES","as_of":"2025-01-01T00:00:00Z"},` +
		`"basis":{"kind":"provider","provider":"@binance"},` +
		`"metadata":{"future_field":{"nested":[1,2,3]},"resolved_by":"@bcv"}}}`

	var e Event
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, "@bcv", *e.Payload.RateContext.Provider)
	assert.True(t, e.Payload.RateContext.OverrideRate.Valid)
	assert.Equal(t, "45.2", e.Payload.RateContext.OverrideRate.Decimal.String())
	require.NotNil(t, e.Payload.Basis)
	assert.Equal(t, BasisProvider, e.Payload.Basis.Kind)

	out, err := json.Marshal(e)
	require.NoError(t, err)

	var again Event
	require.NoError(t, json.Unmarshal(out, &again))
	assert.JSONEq(t, `{"future_field":{"nested":[1,2,3]},"resolved_by":"@bcv"}`, string(again.Payload.Metadata))
}

func TestEventPayload_MissingTagsRelayedAsEmptyArray(t *testing.T) {
	base := `"schema_version":1,"device_id":"00000000-0000-4000-8000-000000000002",` +
		`"workspace":"personal","project":"default","action":"deposit",` +
		`"created_at":"2025-01-01T00:00:00Z","effective_at":"2025-01-01T00:00:00Z",` +
		`"rate_context":{"as_of":"2025-01-01T00:00:00Z"},"metadata":{}`

	for name, raw := range map[string]string{
		"omitted":  `{` + base + `}`,
		"explicit": `{` + base + `,"tags":null,"postings":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			var p EventPayload
			require.NoError(t, json.Unmarshal([]byte(raw), &p))
			assert.Nil(t, p.Tags)

			out, err := json.Marshal(p)
			require.NoError(t, err)

			var fields map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(out, &fields))
			assert.Equal(t, "[]", string(fields["tags"]))
			assert.Equal(t, "[]", string(fields["postings"]))
		})
	}
}

func TestEventPayload_MarshalKeepsHTMLCharacters(t *testing.T) {
	note := "a<b & c>d"
	p := EventPayload{Action: ActionDeposit, Note: &note}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	require.NoError(t, enc.Encode(Event{Payload: p}))
	assert.Contains(t, buf.String(), `"note":"a<b & c>d"`)
}

func TestEvent_Validate(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := Event{
		ID:      uuid.MustParse("01900000-0000-7000-8000-000000000003"),
		Payload: EventPayload{Action: ActionTag, CreatedAt: ts, EffectiveAt: ts},
	}
	require.NoError(t, valid.Validate())

	noID := valid
	noID.ID = uuid.Nil
	assert.True(t, IsDataError(noID.Validate()))

	noAction := valid
	noAction.Payload.Action = ""
	assert.True(t, IsDataError(noAction.Validate()))

	noTime := valid
	noTime.Payload.EffectiveAt = time.Time{}
	assert.True(t, IsDataError(noTime.Validate()))

	badPosting := valid
	badPosting.Payload.Postings = []Posting{{Account: "assets:cash"}}
	assert.True(t, IsDataError(badPosting.Validate()))
}

func TestRateFact_KeyAndValidate(t *testing.T) {
	loc := time.FixedZone("VET", -4*60*60)
	r := RateFact{
		Provider: "bcv", Base: "USD", Quote: "VES",
		AsOf: time.Date(2025, 1, 1, 8, 0, 0, 0, loc),
		Rate: decimal.RequireFromString("45.2"),
	}
	require.NoError(t, r.Validate())
	assert.Equal(t, time.UTC, r.Key().AsOf.Location())
	assert.Equal(t, "bcv USD/VES@2025-01-01T12:00:00.000000000Z", r.Key().String())

	r.Quote = ""
	assert.True(t, IsDataError(r.Validate()))
}

func TestRateFact_JSONShape(t *testing.T) {
	r := RateFact{
		Provider: "bcv", Base: "USD", Quote: "VES",
		AsOf: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Rate: decimal.RequireFromString("46.0"),
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"bcv","base":"USD","quote":"VES","as_of":"2025-01-01T00:00:00Z","rate":"46"}`, string(data))
}
