package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpTouch          = "touch"
	OpSet            = "set"
	OpClear          = "clear"
	OpDelete         = "delete"
	OpLatchInit      = "latch_init"
	OpLatchDecrement = "latch_decrement"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection is the collection every entity step addresses.
	Collection string `yaml:"collection"`

	// InternalPrefix overrides the client's internal field prefix.
	InternalPrefix *string `yaml:"internal_prefix,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the published messages and the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one store operation.
type Step struct {
	// Op is one of the Op constants.
	Op string `yaml:"op"`

	// ID is the entity id, or the latch id for latch steps.
	ID string `yaml:"id"`

	// Fields holds values for set and latch_init. They are applied in sorted
	// field order.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Names lists fields for clear and latch_decrement.
	Names []string `yaml:"names,omitempty"`

	// Count is the latch_init count.
	Count int64 `yaml:"count,omitempty"`

	// Expect specifies the expected outcome. If nil, the step only has to
	// succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies expected step outcomes. Unset fields are not checked.
type Expect struct {
	Modified *bool   `yaml:"modified,omitempty"`
	Inserted *bool   `yaml:"inserted,omitempty"`
	Version  *int64  `yaml:"version,omitempty"`
	Payload  *string `yaml:"payload,omitempty"`
	Deleted  *bool   `yaml:"deleted,omitempty"`
	Released *bool   `yaml:"released,omitempty"`

	// Error is the expected error code, e.g. ARGUMENT or LATCH_NOT_FOUND.
	// A step that fails without one aborts the run.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the run as a whole.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// ID is the entity checked by final_state.
	ID string `yaml:"id,omitempty"`

	// Count is the expected number of published messages.
	Count *int `yaml:"count,omitempty"`

	// Exists, Version and Fields describe the entity for final_state.
	// Fields is a subset match.
	Exists  *bool          `yaml:"exists,omitempty"`
	Version *int64         `yaml:"version,omitempty"`
	Fields  map[string]any `yaml:"fields,omitempty"`

	// Members is the exact index membership, in any order.
	Members []string `yaml:"members,omitempty"`
}

// Assertion type constants.
const (
	AssertPublishedCount = "published_count"
	AssertFinalState     = "final_state"
	AssertIndexMembers   = "index_members"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
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
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, in file name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	if st.ID == "" {
		return fmt.Errorf("steps[%d]: id is required", index)
	}

	switch st.Op {
	case OpTouch, OpDelete:
		if len(st.Fields) > 0 || len(st.Names) > 0 {
			return fmt.Errorf("steps[%d]: %s takes no fields or names", index, st.Op)
		}
	case OpSet:
		if len(st.Fields) == 0 {
			return fmt.Errorf("steps[%d]: fields are required for set", index)
		}
	case OpClear:
		if len(st.Names) == 0 {
			return fmt.Errorf("steps[%d]: names are required for clear", index)
		}
	case OpLatchInit:
		if st.Count < 1 {
			return fmt.Errorf("steps[%d]: count must be at least 1 for latch_init", index)
		}
	case OpLatchDecrement:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertPublishedCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for published_count", index)
		}
	case AssertFinalState:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for final_state", index)
		}
	case AssertIndexMembers:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
