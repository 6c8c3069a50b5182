package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRunWithGolden_CheckedInScenarios(t *testing.T) {
	for _, name := range []string{"folder_two_devices", "lan_sessions"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_expectations
description: "assertions that do not hold"
devices:
  - name: alice
  - name: bob
steps:
  - device: alice
    action: deposit
    args: { amount: "5", commodity: EUR, from: "income:gift", to: "assets:bank" }
assertions:
  - type: balance
    device: alice
    account: "assets:bank"
    commodity: EUR
    amount: "6"
  - type: event_count
    device: bob
    count: 1
  - type: converged
    devices: [alice, bob]
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Assertion failed: balance on alice")
	assert.Contains(t, result.Errors[0], "Actual: 5 EUR")
	assert.Contains(t, result.Errors[1], "Assertion failed: event_count on bob")
	assert.Contains(t, result.Errors[2], "snapshots differ")
}

func TestRun_UnexpectedStepError(t *testing.T) {
	scenario := mustParse(t, `
name: unexpected_reject
description: "a rejected session without an expect clause fails the scenario"
devices:
  - name: alice
  - name: bob
    reject: true
steps:
  - device: alice
    action: lan_sync
    peer: bob
assertions:
  - type: event_count
    device: bob
    count: 0
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "rejected", result.Trace[0].Error)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error "", got "rejected"`)
}

func TestRun_ExpectedImportCountMismatch(t *testing.T) {
	scenario := mustParse(t, `
name: count_mismatch
description: "an import count that does not match"
devices:
  - name: alice
steps:
  - device: alice
    action: folder_sync
    expect: { imported_events: 3 }
assertions:
  - type: event_count
    device: alice
    count: 0
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected 3 imported events, got 0")
}

func TestRun_InvalidDepositAmountIsDataError(t *testing.T) {
	scenario := mustParse(t, `
name: bad_amount
description: "an unparsable amount"
devices:
  - name: alice
steps:
  - device: alice
    action: deposit
    args: { amount: "ten", commodity: USD, from: "a", to: "b" }
    expect: { error: data }
assertions:
  - type: event_count
    device: alice
    count: 0
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "data", result.Trace[0].Error)
}

func TestRun_RateHistoryAcrossDevices(t *testing.T) {
	scenario := mustParse(t, `
name: rate_history
description: "rate points from two devices form one history"
devices:
  - name: alice
  - name: bob
steps:
  - device: alice
    action: set_rate
    args: { provider: "@bcv", base: USD, quote: VES, rate: "45.5", as_of: "2025-01-01T00:00:00Z" }
  - device: bob
    action: set_rate
    args: { provider: "@bcv", base: USD, quote: VES, rate: "46.1", as_of: "2025-01-02T00:00:00Z" }
  - device: alice
    action: folder_sync
  - device: bob
    action: folder_sync
  - device: alice
    action: lan_sync
    peer: bob
assertions:
  - type: rate_count
    device: alice
    count: 2
  - type: rate_as_of
    device: alice
    provider: "@bcv"
    base: USD
    quote: VES
    at: "2025-01-01T12:00:00Z"
    rate: "45.5"
  - type: rate_as_of
    device: bob
    provider: "@bcv"
    base: USD
    quote: VES
    at: "2025-01-03T00:00:00Z"
    rate: "46.1"
  - type: converged
    devices: [alice, bob]
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 5)
	for i, ev := range result.Trace {
		assert.Equal(t, i+1, ev.Seq)
	}
}
