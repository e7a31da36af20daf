package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end test case: builtin plugins to register,
// steps to execute, and expectations over the resulting trace.
type Scenario struct {
	// Name uniquely identifies the scenario. Golden files are stored
	// under this name.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Plugins lists builtin plugin refs ("ns/name") to register before
	// the steps run. Only builtins are available; see builtin.go.
	Plugins []string `yaml:"plugins,omitempty"`

	// Token is the call token every call in this scenario carries.
	// Empty means testutil.DefaultToken. An explicit token keeps golden
	// traces self-describing.
	Token string `yaml:"token,omitempty"`

	// Steps is the executed sequence. Each step is exactly one of
	// insert, call, or release.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is a tagged union: exactly one field is set.
type Step struct {
	Insert  *InsertStep  `yaml:"insert,omitempty"`
	Call    *CallStep    `yaml:"call,omitempty"`
	Release *ReleaseStep `yaml:"release,omitempty"`
}

// InsertStep stores a value and binds the handle to a name.
type InsertStep struct {
	// As is the binding name for the resulting handle.
	As string `yaml:"as"`

	// Tag is the representation's type tag.
	Tag string `yaml:"tag"`

	// Value is the representation. YAML scalars, sequences, and maps
	// are accepted; null and floats are not storable and are rejected.
	Value any `yaml:"value"`
}

// CallStep invokes a registered plugin by symbolic reference.
type CallStep struct {
	// Ref is the plugin reference, "ns/name" or bare "name".
	Ref string `yaml:"ref"`

	// Args names previously bound handles, in positional order. A
	// zero-argument call spells it "args: []".
	Args []string `yaml:"args"`

	// As binds the output handles to names, one per output.
	As []string `yaml:"as,omitempty"`

	// Expect validates the call outcome. Nil means the call must
	// succeed but its outputs are not inspected.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is what a call step is required to produce.
type ExpectClause struct {
	// Error is the expected fault code, e.g. "TYPE_MISMATCH" or
	// "PLUGIN_FAILURE". Empty means the call must succeed.
	Error string `yaml:"error,omitempty"`

	// Values are the expected output values in declaration order.
	// Only valid for successful calls.
	Values []any `yaml:"values,omitempty"`
}

// ReleaseStep releases a bound handle.
type ReleaseStep struct {
	// Handle is the binding name to release.
	Handle string `yaml:"handle"`
}

// Assertion validates the final trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind, Ref, Tag, and Outcome are matchers for trace_contains;
	// empty fields are ignored. Ref is also the subject of trace_count.
	Kind    string `yaml:"kind,omitempty"`
	Ref     string `yaml:"ref,omitempty"`
	Tag     string `yaml:"tag,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matching call events
	// (trace_count).
	Count int `yaml:"count,omitempty"`

	// Refs is the expected call order (trace_order).
	Refs []string `yaml:"refs,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected, so a typo like "step:" for "steps:" fails loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, ref := range s.Plugins {
		if _, ok := builtins[ref]; !ok {
			return fmt.Errorf("unknown builtin plugin %q (have %v)", ref, builtinRefs())
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
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

func validateStep(index int, step Step) error {
	set := 0
	if step.Insert != nil {
		set++
	}
	if step.Call != nil {
		set++
	}
	if step.Release != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of insert, call, release is required", index)
	}

	switch {
	case step.Insert != nil:
		if step.Insert.As == "" {
			return fmt.Errorf("steps[%d].insert: as is required", index)
		}
		if step.Insert.Tag == "" {
			return fmt.Errorf("steps[%d].insert: tag is required", index)
		}
		if step.Insert.Value == nil {
			return fmt.Errorf("steps[%d].insert: value is required (null is not storable)", index)
		}
	case step.Call != nil:
		if step.Call.Ref == "" {
			return fmt.Errorf("steps[%d].call: ref is required", index)
		}
		if step.Call.Args == nil {
			return fmt.Errorf("steps[%d].call: args is required (use [] for no arguments)", index)
		}
		if exp := step.Call.Expect; exp != nil {
			if exp.Error == "" && exp.Values == nil {
				return fmt.Errorf("steps[%d].call.expect: error or values is required", index)
			}
			if exp.Error != "" && exp.Values != nil {
				return fmt.Errorf("steps[%d].call.expect: error and values are mutually exclusive", index)
			}
			if exp.Error != "" && len(step.Call.As) > 0 {
				return fmt.Errorf("steps[%d].call: a call expected to fail binds no outputs", index)
			}
		}
	case step.Release != nil:
		if step.Release.Handle == "" {
			return fmt.Errorf("steps[%d].release: handle is required", index)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Kind == "" && a.Ref == "" && a.Tag == "" && a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: trace_contains needs at least one of kind, ref, tag, outcome", index)
		}
	case AssertTraceOrder:
		if len(a.Refs) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order needs at least two refs", index)
		}
	case AssertTraceCount:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
