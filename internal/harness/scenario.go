package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chitchat/internal/ir"
)

// Scenario is one conversation workload with its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Identities maps aliases to addresses.
	Identities map[string]string `yaml:"identities"`

	// Setup steps run before the flow and must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence of operations.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state and event stream.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one ledger operation.
type Step struct {
	// Op is the operation name (send, edit, delete, ...).
	Op string `yaml:"op"`

	// Caller is the identity performing the operation.
	Caller string `yaml:"caller"`

	// Args holds operation arguments by name.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect is the expected outcome. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected step outcome.
type ExpectClause struct {
	// Error is the expected rejection code, e.g. "NOT_SENDER".
	Error string `yaml:"error,omitempty"`

	// Result is the expected return value of send, length or has.
	Result any `yaml:"result,omitempty"`
}

// Assertion validates final state or the committed event stream.
type Assertion struct {
	Type string `yaml:"type"`

	// Pair addresses a conversation (length, message, event filters).
	Pair []string `yaml:"pair,omitempty"`

	Count *int     `yaml:"count,omitempty"`
	Index *int64   `yaml:"index,omitempty"`
	Kind  string   `yaml:"kind,omitempty"`
	Kinds []string `yaml:"kinds,omitempty"`

	Content *string `yaml:"content,omitempty"`
	Deleted *bool   `yaml:"deleted,omitempty"`
	Sender  string  `yaml:"sender,omitempty"`

	Capability string `yaml:"capability,omitempty"`
	Identity   string `yaml:"identity,omitempty"`
	Held       *bool  `yaml:"held,omitempty"`
}

// Operation names.
const (
	OpSend         = "send"
	OpEdit         = "edit"
	OpDelete       = "delete"
	OpLength       = "length"
	OpInitialize   = "initialize"
	OpGrant        = "grant"
	OpRevoke       = "revoke"
	OpGrantUpgrade = "grant_upgrade"
	OpHas          = "has"
)

// Assertion type constants.
const (
	AssertLength     = "length"
	AssertMessage    = "message"
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertCapability = "capability"
	AssertReplay     = "replay"
)

// requiredArgs lists the arguments each operation needs.
var requiredArgs = map[string][]string{
	OpSend:         {"recipient", "content"},
	OpEdit:         {"user1", "user2", "index", "content"},
	OpDelete:       {"user1", "user2", "index"},
	OpLength:       {"user1", "user2"},
	OpInitialize:   {},
	OpGrant:        {"capability", "target"},
	OpRevoke:       {"capability", "target"},
	OpGrantUpgrade: {"target"},
	OpHas:          {"capability", "identity"},
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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
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
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for alias, addr := range s.Identities {
		if alias == nullAlias {
			return fmt.Errorf("identities: %q is reserved", nullAlias)
		}
		if _, err := ir.ParseIdentity(addr); err != nil {
			return fmt.Errorf("identities.%s: %w", alias, err)
		}
	}

	for i, step := range s.Setup {
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot carry expect", i)
		}
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateStep(step Step) error {
	args, ok := requiredArgs[step.Op]
	if !ok {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Caller == "" {
		return fmt.Errorf("caller is required")
	}
	for _, name := range args {
		if _, ok := step.Args[name]; !ok {
			return fmt.Errorf("%s: arg %q is required", step.Op, name)
		}
	}
	if step.Expect != nil && step.Expect.Error != "" && step.Expect.Result != nil {
		return fmt.Errorf("expect: error and result are mutually exclusive")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertLength:
		if len(a.Pair) != 2 || a.Count == nil {
			return fmt.Errorf("length needs pair and count")
		}
	case AssertMessage:
		if len(a.Pair) != 2 || a.Index == nil {
			return fmt.Errorf("message needs pair and index")
		}
		if a.Content == nil && a.Deleted == nil && a.Sender == "" {
			return fmt.Errorf("message needs at least one of content, deleted, sender")
		}
	case AssertEventCount:
		if a.Count == nil {
			return fmt.Errorf("event_count needs count")
		}
		if a.Pair != nil && len(a.Pair) != 2 {
			return fmt.Errorf("pair must name two identities")
		}
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("event_order needs kinds")
		}
		if a.Pair != nil && len(a.Pair) != 2 {
			return fmt.Errorf("pair must name two identities")
		}
	case AssertCapability:
		if a.Capability == "" || a.Identity == "" || a.Held == nil {
			return fmt.Errorf("capability needs capability, identity and held")
		}
	case AssertReplay:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
