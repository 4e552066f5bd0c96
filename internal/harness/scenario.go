package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bassline/internal/compiler"
	"github.com/roach88/bassline/internal/ir"
)

// Scenario defines one propagation test.
type Scenario struct {
	// Name uniquely identifies this scenario; golden traces are stored
	// under it.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Network is a path string or an inline Bassline mapping.
	Network any `yaml:"network"`

	Steps  []Step `yaml:"steps"`
	Expect Expect `yaml:"expect"`

	// Golden compares the trace against testdata/golden/<name>.golden.
	Golden bool `yaml:"golden,omitempty"`

	// Replay restores the journaled run into a second engine and compares
	// final values.
	Replay bool `yaml:"replay,omitempty"`

	// MaxSteps bounds each drain. Zero means unlimited.
	MaxSteps int `yaml:"max_steps,omitempty"`
}

// Step drives the engine once. Exactly one of Set, Stream and Actions is
// given.
type Step struct {
	Set     *ValueStep `yaml:"set,omitempty"`
	Stream  *ValueStep `yaml:"stream,omitempty"`
	Actions []any      `yaml:"actions,omitempty"`

	// ExpectError is the runtime error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ValueStep writes one value into one contact.
type ValueStep struct {
	Contact string `yaml:"contact"`
	Value   any    `yaml:"value"`
}

// Kind names the step's operation.
func (s Step) Kind() string {
	switch {
	case s.Set != nil:
		return "set"
	case s.Stream != nil:
		return "stream"
	case s.Actions != nil:
		return "actions"
	}
	return ""
}

// Expect holds checks evaluated after the last step.
type Expect struct {
	// Values maps contact IDs to their expected final value.
	Values map[string]any `yaml:"values,omitempty"`

	// Absent lists contacts that must hold no value.
	Absent []string `yaml:"absent,omitempty"`

	// EventCounts maps event types to exact occurrence counts.
	EventCounts map[string]int `yaml:"event_counts,omitempty"`

	// EventOrder lists event types that must occur in this relative order.
	// Intervening events are allowed.
	EventOrder []string `yaml:"event_order,omitempty"`
}

var knownEventTypes = map[string]bool{
	ir.EventValueChanged:       true,
	ir.EventPropagating:        true,
	ir.EventGadgetActivated:    true,
	ir.EventContradiction:      true,
	ir.EventConverged:          true,
	ir.EventPrimitiveRequested: true,
	ir.EventPrimitiveExecuted:  true,
	ir.EventPrimitiveFailed:    true,
	ir.EventStructureChanged:   true,
}

// LoadScenario reads and parses a scenario YAML file. A network path is
// resolved relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a network path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if p, ok := s.Network.(string); ok && !filepath.IsAbs(p) && basePath != "" {
		s.Network = filepath.Join(basePath, p)
	}
	if p, ok := s.Network.(string); ok {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("invalid scenario: network not found: %s", p)
		}
	}
	return s, nil
}

// ParseScenario decodes scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadNetwork resolves the scenario's network into a Bassline.
func (s *Scenario) LoadNetwork() (ir.Bassline, error) {
	switch n := s.Network.(type) {
	case string:
		return compiler.LoadFile(n)
	case map[string]any:
		return compiler.FromYAMLValue(n)
	default:
		return ir.Bassline{}, fmt.Errorf("network must be a path or a mapping, got %T", s.Network)
	}
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch n := s.Network.(type) {
	case string:
		if n == "" {
			return fmt.Errorf("network is required")
		}
	case map[string]any:
	case nil:
		return fmt.Errorf("network is required")
	default:
		return fmt.Errorf("network must be a path or a mapping, got %T", s.Network)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for eventType, n := range s.Expect.EventCounts {
		if !knownEventTypes[eventType] {
			return fmt.Errorf("expect.event_counts: unknown event type %q", eventType)
		}
		if n < 0 {
			return fmt.Errorf("expect.event_counts[%s]: count must be non-negative", eventType)
		}
	}
	for i, eventType := range s.Expect.EventOrder {
		if !knownEventTypes[eventType] {
			return fmt.Errorf("expect.event_order[%d]: unknown event type %q", i, eventType)
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	given := 0
	for _, set := range []bool{step.Set != nil, step.Stream != nil, step.Actions != nil} {
		if set {
			given++
		}
	}
	if given != 1 {
		return fmt.Errorf("steps[%d]: exactly one of set, stream or actions is required", i)
	}
	for _, vs := range []*ValueStep{step.Set, step.Stream} {
		if vs != nil && vs.Contact == "" {
			return fmt.Errorf("steps[%d].%s: contact is required", i, step.Kind())
		}
	}
	if step.Actions != nil && len(step.Actions) == 0 {
		return fmt.Errorf("steps[%d].actions: must be non-empty", i)
	}
	return nil
}
