package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one YAML test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SessionID pins the session id for deterministic traces.
	// Defaults to "scenario-<name>".
	SessionID string `yaml:"session_id,omitempty"`

	// Config is an optional CUE config path, relative to the scenario file.
	Config string `yaml:"config,omitempty"`

	// Phases overrides the configured phase order.
	Phases []string `yaml:"phases,omitempty"`

	// Tolerance for value expectations. Defaults to 1e-9.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	Elements []ElementSpec `yaml:"elements,omitempty"`
	Links    []LinkSpec    `yaml:"links,omitempty"`
	Network  *NetworkSpec  `yaml:"network,omitempty"`
	Actions  []Action      `yaml:"actions"`
}

// ElementSpec declares an element and its cells.
type ElementSpec struct {
	Name  string     `yaml:"name"`
	Cells []CellSpec `yaml:"cells"`
}

// CellSpec declares one cell (field).
type CellSpec struct {
	Name string `yaml:"name"`

	// Rule is one of sum, max, min, mul, diff, threshold, identity, tanh,
	// sigmoid, relu.
	Rule string `yaml:"rule"`

	// Phase makes the cell deferred to the named phase.
	Phase string `yaml:"phase,omitempty"`

	RoundShift int      `yaml:"round_shift,omitempty"`
	Threshold  float64  `yaml:"threshold,omitempty"`
	Comparator string   `yaml:"comparator,omitempty"`
	Initial    float64  `yaml:"initial,omitempty"`
	Tolerance  *float64 `yaml:"tolerance,omitempty"`
}

// LinkSpec declares a link. From is "element.cell" or empty for a constant link.
type LinkSpec struct {
	Name     string   `yaml:"name,omitempty"`
	From     string   `yaml:"from,omitempty"`
	Const    *float64 `yaml:"const,omitempty"`
	To       string   `yaml:"to"`
	Weight   *float64 `yaml:"weight,omitempty"`
	Arg      int      `yaml:"arg,omitempty"`
	Border   bool     `yaml:"border,omitempty"`
	NoProp   bool     `yaml:"no_propagate,omitempty"`
	Detached bool     `yaml:"detached,omitempty"` // registered but not connected
}

// NetworkSpec declares a reference network.
type NetworkSpec struct {
	LearningRate *float64      `yaml:"learning_rate,omitempty"`
	Neurons      []NeuronSpec  `yaml:"neurons"`
	Synapses     []SynapseSpec `yaml:"synapses,omitempty"`
}

// NeuronSpec declares a neuron.
type NeuronSpec struct {
	Name      string  `yaml:"name"`
	Threshold float64 `yaml:"threshold,omitempty"`
	Bias      float64 `yaml:"bias,omitempty"`
	Scope     string  `yaml:"scope,omitempty"`
}

// SynapseSpec declares a synapse, named "from->to".
type SynapseSpec struct {
	From   string  `yaml:"from"`
	To     string  `yaml:"to"`
	Weight float64 `yaml:"weight"`
}

// Action is one scenario step. Exactly one verb is set.
type Action struct {
	Inject     string       `yaml:"inject,omitempty"`
	Delta      float64      `yaml:"delta,omitempty"`
	Drain      *DrainSpec   `yaml:"drain,omitempty"`
	Connect    string       `yaml:"connect,omitempty"`
	Initialize *bool        `yaml:"initialize,omitempty"`
	Disconnect string       `yaml:"disconnect,omitempty"`
	Deinit     bool         `yaml:"deinit,omitempty"`
	Unlink     bool         `yaml:"unlink,omitempty"`
	SetWeight  string       `yaml:"set_weight,omitempty"`
	Weight     float64      `yaml:"weight,omitempty"`
	Teardown   string       `yaml:"teardown,omitempty"`
	Input      string       `yaml:"input,omitempty"`
	Value      float64      `yaml:"value,omitempty"`
	Expect     *Expectation `yaml:"expect,omitempty"`
}

// DrainSpec bounds a drain. A nil MaxRound means unbounded; an empty
// MaxPhase means no phase bound.
type DrainSpec struct {
	MaxRound *int   `yaml:"max_round,omitempty"`
	MaxPhase string `yaml:"max_phase,omitempty"`
	Guarded  bool   `yaml:"guarded,omitempty"`
}

// Expectation is checked after its action.
type Expectation struct {
	Values      map[string]float64 `yaml:"values,omitempty"`
	Queue       *int               `yaml:"queue,omitempty"`
	Round       *int               `yaml:"round,omitempty"`
	Executed    *int64             `yaml:"executed,omitempty"`
	Diverges    bool               `yaml:"diverges,omitempty"`
	Activations map[string]int     `yaml:"activations,omitempty"`
	Frequency   map[string]int64   `yaml:"frequency,omitempty"`
	Weights     map[string]float64 `yaml:"weights,omitempty"`
}

// verb returns the action's verb name.
func (a *Action) verb() (string, error) {
	var verbs []string
	if a.Inject != "" {
		verbs = append(verbs, "inject")
	}
	if a.Drain != nil {
		verbs = append(verbs, "drain")
	}
	if a.Connect != "" {
		verbs = append(verbs, "connect")
	}
	if a.Disconnect != "" {
		verbs = append(verbs, "disconnect")
	}
	if a.SetWeight != "" {
		verbs = append(verbs, "set_weight")
	}
	if a.Teardown != "" {
		verbs = append(verbs, "teardown")
	}
	if a.Input != "" {
		verbs = append(verbs, "input")
	}
	switch len(verbs) {
	case 0:
		return "", fmt.Errorf("no verb")
	case 1:
		return verbs[0], nil
	default:
		return "", fmt.Errorf("multiple verbs %s", strings.Join(verbs, ", "))
	}
}

// LoadScenario reads and parses a scenario YAML file. The config path is
// resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields, or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if sc.Config != "" && !filepath.IsAbs(sc.Config) {
		sc.Config = filepath.Join(filepath.Dir(path), sc.Config)
	}
	return sc, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if sc.SessionID == "" {
		sc.SessionID = "scenario-" + sc.Name
	}
	if sc.Tolerance == 0 {
		sc.Tolerance = 1e-9
	}
	return &sc, nil
}

// validateScenario checks names and references that do not need a session.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("actions list is required and must be non-empty")
	}

	cells := make(map[string]bool)
	elements := make(map[string]bool)
	for i, el := range s.Elements {
		if el.Name == "" {
			return fmt.Errorf("elements[%d]: name is required", i)
		}
		if elements[el.Name] {
			return fmt.Errorf("elements[%d]: duplicate element %q", i, el.Name)
		}
		elements[el.Name] = true
		for j, c := range el.Cells {
			ref := el.Name + "." + c.Name
			if c.Name == "" {
				return fmt.Errorf("elements[%d].cells[%d]: name is required", i, j)
			}
			if cells[ref] {
				return fmt.Errorf("elements[%d].cells[%d]: duplicate cell %q", i, j, ref)
			}
			if _, err := ruleFor(c); err != nil {
				return fmt.Errorf("elements[%d].cells[%d]: %w", i, j, err)
			}
			cells[ref] = true
		}
	}

	links := make(map[string]bool)
	for i := range s.Links {
		l := &s.Links[i]
		if (l.From == "") == (l.Const == nil) {
			return fmt.Errorf("links[%d]: exactly one of from and const is required", i)
		}
		if l.From != "" && !cells[l.From] {
			return fmt.Errorf("links[%d]: unknown cell %q", i, l.From)
		}
		if !cells[l.To] {
			return fmt.Errorf("links[%d]: unknown cell %q", i, l.To)
		}
		if l.Name == "" {
			l.Name = l.From + "->" + l.To
			if l.From == "" {
				l.Name = "const->" + l.To
			}
		}
		if links[l.Name] {
			return fmt.Errorf("links[%d]: duplicate link name %q", i, l.Name)
		}
		links[l.Name] = true
	}

	neurons := make(map[string]bool)
	if s.Network != nil {
		for i, n := range s.Network.Neurons {
			if n.Name == "" || neurons[n.Name] {
				return fmt.Errorf("network.neurons[%d]: missing or duplicate name %q", i, n.Name)
			}
			neurons[n.Name] = true
		}
		for i, syn := range s.Network.Synapses {
			if !neurons[syn.From] || !neurons[syn.To] {
				return fmt.Errorf("network.synapses[%d]: unknown neuron in %s->%s", i, syn.From, syn.To)
			}
		}
	}

	for i := range s.Actions {
		a := &s.Actions[i]
		verb, err := a.verb()
		if err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
		switch verb {
		case "inject":
			if !cells[a.Inject] {
				return fmt.Errorf("actions[%d]: unknown cell %q", i, a.Inject)
			}
		case "connect", "disconnect", "set_weight":
			name := a.Connect + a.Disconnect + a.SetWeight
			if !links[name] {
				return fmt.Errorf("actions[%d]: unknown link %q", i, name)
			}
		case "teardown":
			if !elements[a.Teardown] {
				return fmt.Errorf("actions[%d]: unknown element %q", i, a.Teardown)
			}
		case "input":
			if !neurons[a.Input] {
				return fmt.Errorf("actions[%d]: unknown neuron %q", i, a.Input)
			}
		}
		if a.Expect != nil && a.Expect.Diverges && (a.Drain == nil || !a.Drain.Guarded) {
			return fmt.Errorf("actions[%d].expect: diverges requires a guarded drain", i)
		}
		if a.Expect != nil {
			for ref := range a.Expect.Values {
				if !cells[ref] {
					return fmt.Errorf("actions[%d].expect: unknown cell %q", i, ref)
				}
			}
		}
	}
	return nil
}
