// Package harness runs multi-device sync scenarios in one process.
//
// Each scenario declares a set of simulated devices, each with its own
// SQLite store, and a list of steps they perform: writing deposits and rate
// facts, syncing through a shared folder, or running LAN sessions with each
// other over in-memory pipes. Assertions then check balances, counts, rate
// lookups and convergence of the final stores.
//
// # Scenario Format
//
//	name: folder_two_devices
//	description: "A deposit made on one device reaches the other"
//	workspace: personal
//	devices:
//	  - name: alice
//	  - name: bob
//	    reject: true        # refuse inbound LAN sessions
//	steps:
//	  - device: alice
//	    action: deposit
//	    args: { amount: "100", commodity: USD, from: income:salary, to: assets:cash }
//	  - device: alice
//	    action: folder_sync
//	  - device: bob
//	    action: lan_sync
//	    peer: alice
//	    expect: { imported_events: 1 }
//	assertions:
//	  - type: balance
//	    device: bob
//	    account: assets:cash
//	    commodity: USD
//	    amount: "100"
//	  - type: converged
//	    devices: [alice, bob]
//
// A step whose expect clause names an error kind (configuration, protocol,
// rejected, data) passes only if it fails with that kind.
//
// # Deterministic Testing
//
// Device n gets a fixed device id and its own sequential event id namespace,
// and every device reads the same stepping clock, so the trace of a scenario
// is identical across runs and can be compared against a golden file.
package harness
