package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a multi-device sync scenario.
// Several simulated devices write events and rates, exchange them through the
// shared folder or LAN sessions, and the final stores are checked by
// assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Workspace is the default workspace of every device. Empty means "personal".
	Workspace string `yaml:"workspace,omitempty"`

	// Devices lists the simulated installations in creation order.
	Devices []Device `yaml:"devices"`

	// Steps run sequentially.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final stores.
	Assertions []Assertion `yaml:"assertions"`
}

// Device is one simulated installation with its own store.
type Device struct {
	Name string `yaml:"name"`

	// Workspace overrides the scenario workspace for this device.
	Workspace string `yaml:"workspace,omitempty"`

	// Reject makes the device refuse inbound LAN sessions.
	Reject bool `yaml:"reject,omitempty"`
}

// Step is one action performed by a device.
type Step struct {
	// Device performs the action. For lan_sync it is the initiator.
	Device string `yaml:"device"`

	// Action is one of: deposit, set_rate, folder_sync, lan_sync.
	Action string `yaml:"action"`

	// Peer is the responding device of a lan_sync step.
	Peer string `yaml:"peer,omitempty"`

	// Args holds the action arguments as strings.
	// deposit: amount, commodity, from, to, effective_at, note
	// set_rate: provider, base, quote, rate, as_of
	Args map[string]string `yaml:"args,omitempty"`

	// Expect checks the step outcome. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Error is the expected error kind (configuration, protocol, rejected, data).
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Imported counts are checked only when set.
	ImportedEvents *int `yaml:"imported_events,omitempty"`
	ImportedRates  *int `yaml:"imported_rates,omitempty"`
}

// Assertion validates the final state of one or more devices.
type Assertion struct {
	// Type specifies the assertion type:
	// - "balance": account/commodity total on a device equals amount
	// - "event_count": number of stored events equals count
	// - "rate_count": number of stored rate facts equals count
	// - "rate_as_of": the fact applicable at `at` has the given rate
	// - "converged": all listed devices hold identical events and rates
	Type string `yaml:"type"`

	Device  string   `yaml:"device,omitempty"`
	Devices []string `yaml:"devices,omitempty"`

	Account   string `yaml:"account,omitempty"`
	Commodity string `yaml:"commodity,omitempty"`
	Amount    string `yaml:"amount,omitempty"`

	Count *int `yaml:"count,omitempty"`

	Provider string `yaml:"provider,omitempty"`
	Base     string `yaml:"base,omitempty"`
	Quote    string `yaml:"quote,omitempty"`
	At       string `yaml:"at,omitempty"`
	Rate     string `yaml:"rate,omitempty"`
}

// Step actions.
const (
	ActionDeposit    = "deposit"
	ActionSetRate    = "set_rate"
	ActionFolderSync = "folder_sync"
	ActionLANSync    = "lan_sync"
)

// Assertion type constants.
const (
	AssertBalance    = "balance"
	AssertEventCount = "event_count"
	AssertRateCount  = "rate_count"
	AssertRateAsOf   = "rate_as_of"
	AssertConverged  = "converged"
)

var errorKinds = map[string]bool{
	"configuration": true,
	"protocol":      true,
	"rejected":      true,
	"data":          true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Workspace == "" {
		scenario.Workspace = "personal"
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Devices) == 0 {
		return fmt.Errorf("devices list is required and must be non-empty")
	}
	if len(s.Devices) > 255 {
		return fmt.Errorf("at most 255 devices are supported")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	devices := make(map[string]bool, len(s.Devices))
	for i, d := range s.Devices {
		if d.Name == "" {
			return fmt.Errorf("devices[%d]: name is required", i)
		}
		if devices[d.Name] {
			return fmt.Errorf("devices[%d]: duplicate device %q", i, d.Name)
		}
		devices[d.Name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, devices); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, devices); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, devices map[string]bool) error {
	if !devices[step.Device] {
		return fmt.Errorf("steps[%d]: unknown device %q", i, step.Device)
	}

	switch step.Action {
	case ActionDeposit:
		for _, key := range []string{"amount", "commodity", "from", "to"} {
			if step.Args[key] == "" {
				return fmt.Errorf("steps[%d]: deposit requires args.%s", i, key)
			}
		}
	case ActionSetRate:
		for _, key := range []string{"provider", "base", "quote", "rate", "as_of"} {
			if step.Args[key] == "" {
				return fmt.Errorf("steps[%d]: set_rate requires args.%s", i, key)
			}
		}
	case ActionFolderSync:
	case ActionLANSync:
		if !devices[step.Peer] {
			return fmt.Errorf("steps[%d]: lan_sync requires a known peer, got %q", i, step.Peer)
		}
		if step.Peer == step.Device {
			return fmt.Errorf("steps[%d]: lan_sync peer must differ from device", i)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}

	if step.Expect != nil && step.Expect.Error != "" && !errorKinds[step.Expect.Error] {
		return fmt.Errorf("steps[%d].expect: unknown error kind %q", i, step.Expect.Error)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, devices map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Type == AssertConverged {
		if len(a.Devices) < 2 {
			return fmt.Errorf("assertions[%d]: converged requires at least two devices", index)
		}
		for _, name := range a.Devices {
			if !devices[name] {
				return fmt.Errorf("assertions[%d]: unknown device %q", index, name)
			}
		}
		return nil
	}

	if !devices[a.Device] {
		return fmt.Errorf("assertions[%d]: unknown device %q", index, a.Device)
	}

	switch a.Type {
	case AssertBalance:
		if a.Account == "" || a.Commodity == "" || a.Amount == "" {
			return fmt.Errorf("assertions[%d]: balance requires account, commodity and amount", index)
		}
	case AssertEventCount, AssertRateCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: %s requires count", index, a.Type)
		}
	case AssertRateAsOf:
		if a.Provider == "" || a.Base == "" || a.Quote == "" || a.At == "" {
			return fmt.Errorf("assertions[%d]: rate_as_of requires provider, base, quote and at", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
