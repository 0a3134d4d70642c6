package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session against a definitions directory: trees
// are created, assembled, built, used and saved step by step, then the
// final state is asserted.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions is the directory of .cue definitions to load.
	// Relative paths are resolved against the scenario file.
	Definitions string `yaml:"definitions"`

	// Steps run in order. A step that fails without expecting it stops
	// the scenario.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final trees.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation on a named tree.
type Step struct {
	// Do is the operation, one of the Op constants.
	Do string `yaml:"do"`

	// Ref names the node the step acts on. "new" binds it.
	Ref string `yaml:"ref"`

	// Component is the component id for "new".
	Component string `yaml:"component,omitempty"`

	// Slot is the slot path under Ref for "attach" and "detach", e.g.
	// "blade" or "blade/gem".
	Slot string `yaml:"slot,omitempty"`

	// Child is the ref attached by "attach".
	Child string `yaml:"child,omitempty"`

	// As binds the node produced by "detach" or "copy".
	As string `yaml:"as,omitempty"`

	// Amount is the wear for "use" and the repair for "repair".
	Amount int `yaml:"amount,omitempty"`

	// Locale is the BCP 47 actor locale for "represent". Default "en".
	Locale string `yaml:"locale,omitempty"`

	// Expect is checked after the step. If nil the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected step outcome.
type Expect struct {
	// Error is the expected tree error code, e.g. INCOMPATIBLE_CHILD.
	Error string `yaml:"error,omitempty"`

	// Stats are expected stat values after "build" (subset match).
	Stats map[string]any `yaml:"stats,omitempty"`

	// Complete is the expected completeness after "build".
	Complete *bool `yaml:"complete,omitempty"`

	// Incomplete lists the expected empty required slot paths after "build".
	Incomplete []string `yaml:"incomplete,omitempty"`
}

// Step operations.
const (
	OpNew       = "new"
	OpAttach    = "attach"
	OpDetach    = "detach"
	OpBuild     = "build"
	OpUse       = "use"
	OpRepair    = "repair"
	OpCopy      = "copy"
	OpSaveLoad  = "save_load"
	OpRepresent = "represent"
)

// Assertion validates the trace or a final tree.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stat": Ref's built tree has Stat = Value
	// - "complete": Ref's built tree completeness equals Value
	// - "incomplete": Ref's built tree has exactly Paths as empty required slots
	// - "representation": Ref's representation has Name, Lines and Bar
	// - "trace_count": Op appears exactly Count times
	// - "trace_order": Ops appear in order
	Type string `yaml:"type"`

	Ref   string   `yaml:"ref,omitempty"`
	Stat  string   `yaml:"stat,omitempty"`
	Value any      `yaml:"value,omitempty"`
	Paths []string `yaml:"paths,omitempty"`

	Name  string   `yaml:"name,omitempty"`
	Lines []string `yaml:"lines,omitempty"`
	Bar   []int    `yaml:"bar,omitempty"` // [value, max]

	Op    string   `yaml:"op,omitempty"`
	Ops   []string `yaml:"ops,omitempty"`
	Count int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStat           = "stat"
	AssertComplete       = "complete"
	AssertIncomplete     = "incomplete"
	AssertRepresentation = "representation"
	AssertTraceCount     = "trace_count"
	AssertTraceOrder     = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The definitions path is resolved against the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Definitions != "" && !filepath.IsAbs(scenario.Definitions) {
		scenario.Definitions = filepath.Join(filepath.Dir(path), scenario.Definitions)
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

	if s.Definitions == "" {
		return fmt.Errorf("definitions is required")
	}
	if info, err := os.Stat(s.Definitions); err != nil || !info.IsDir() {
		return fmt.Errorf("definitions directory not found: %s", s.Definitions)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	if st.Ref == "" {
		return fmt.Errorf("steps[%d]: ref is required", index)
	}

	switch st.Do {
	case OpNew:
		if st.Component == "" {
			return fmt.Errorf("steps[%d]: component is required for new", index)
		}
	case OpAttach:
		if st.Slot == "" || st.Child == "" {
			return fmt.Errorf("steps[%d]: slot and child are required for attach", index)
		}
	case OpDetach:
		if st.Slot == "" {
			return fmt.Errorf("steps[%d]: slot is required for detach", index)
		}
	case OpCopy:
		if st.As == "" {
			return fmt.Errorf("steps[%d]: as is required for copy", index)
		}
	case OpUse, OpRepair:
		if st.Amount < 0 {
			return fmt.Errorf("steps[%d]: amount must be non-negative", index)
		}
	case OpBuild, OpSaveLoad, OpRepresent:
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown operation %q", index, st.Do)
	}

	if e := st.Expect; e != nil && st.Do != OpBuild {
		if e.Stats != nil || e.Complete != nil || e.Incomplete != nil {
			return fmt.Errorf("steps[%d]: stats, complete and incomplete expectations apply to build only", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStat:
		if a.Ref == "" || a.Stat == "" {
			return fmt.Errorf("assertions[%d]: ref and stat are required for stat", index)
		}
	case AssertComplete:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for complete", index)
		}
		if _, ok := a.Value.(bool); !ok {
			return fmt.Errorf("assertions[%d]: value must be a bool for complete", index)
		}
	case AssertIncomplete, AssertRepresentation:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for %s", index, a.Type)
		}
		if a.Type == AssertRepresentation && a.Bar != nil && len(a.Bar) != 2 {
			return fmt.Errorf("assertions[%d]: bar must be [value, max]", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
