package lansync

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bankero/internal/ledger"
)

func sessionTranscript() []Message {
	return []Message{
		HelloFrom("personal", testIdentity(1, "juicy_strawberry")),
		AckFrom(testIdentity(2, "zesty_kiwi")),
		PushBegin{Events: 1, Rates: 1},
		EventRecord{testEvent(1, 0)},
		RateRecord{testRate(base, "45.2")},
		PushEnd{},
		PullBegin{Events: 0, Rates: 0},
		PullEnd{},
		Summary{ImportedEvents: 1, ImportedRates: 1},
		ErrorMessage{Message: RejectedMessage, Code: CodeRejected},
	}
}

func TestEncode_Golden(t *testing.T) {
	var buf bytes.Buffer
	for _, m := range sessionTranscript() {
		line, err := Encode(m)
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "session", buf.Bytes())
}

func TestDecode_RoundTripsEveryType(t *testing.T) {
	for _, want := range sessionTranscript() {
		t.Run(string(want.Type()), func(t *testing.T) {
			line, err := Encode(want)
			require.NoError(t, err)

			got, err := Decode(line)
			require.NoError(t, err)
			assert.Equal(t, want.Type(), got.Type())

			again, err := Encode(got)
			require.NoError(t, err)
			assert.Equal(t, string(line), string(again))
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"not json", `hello`, "failed to parse sync message"},
		{"no type", `{"events":1}`, "sync message has no type"},
		{"unknown type", `{"type":"gossip"}`, `unknown sync message type "gossip"`},
		{"bad field", `{"type":"push_begin","events":"many"}`, "failed to parse push_begin message"},
		{"nil event id", `{"type":"event","id":"00000000-0000-0000-0000-000000000000","payload":{}}`, "invalid event record"},
		{"bad rate", `{"type":"rate","provider":"bcv","base":"USD","quote":"VES","as_of":"2025-01-01T12:00:00Z","rate":"abc"}`, "failed to parse rate message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.line))
			require.Error(t, err)
			assert.True(t, ledger.IsProtocolError(err), "want protocol error, got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_ErrorWithoutCode(t *testing.T) {
	m, err := Decode([]byte(`{"type":"error","message":"Expected hello"}`))
	require.NoError(t, err)
	assert.Equal(t, ErrorMessage{Message: "Expected hello"}, m)
}
