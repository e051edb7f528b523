package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/statekit/internal/config"
)

// Scenario is a scripted run of the todo application.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an inline configuration document with the same shape as a
	// config file. When set it replaces any configuration handed to Run.
	Config map[string]any `yaml:"config,omitempty"`

	// Backend configures the fake backend before the first step.
	Backend BackendSpec `yaml:"backend,omitempty"`

	// CorrelationPrefix prefixes generated correlation ids. Default "corr".
	CorrelationPrefix string `yaml:"correlation_prefix,omitempty"`

	// Timeout bounds each wait. Default 5s.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// BackendSpec configures the fake backend. Catalog is only honored at the
// scenario level since it seeds the fake.
type BackendSpec struct {
	Catalog       []string            `yaml:"catalog,omitempty"`
	SearchLatency map[string]Duration `yaml:"search_latency,omitempty"`
	SaveLatency   *Duration           `yaml:"save_latency,omitempty"`
	SubmitLatency *Duration           `yaml:"submit_latency,omitempty"`
	FailSaves     []string            `yaml:"fail_saves,omitempty"`
	AcceptSaves   []string            `yaml:"accept_saves,omitempty"`
	FailSubmits   *bool               `yaml:"fail_submits,omitempty"`
}

// Step is one scenario step. Exactly one of Dispatch, Wait, Sleep and
// Backend is set.
type Step struct {
	// Dispatch is the action type to dispatch.
	Dispatch string `yaml:"dispatch,omitempty"`

	// Payload is the action payload; reducers decode it through JSON.
	Payload any `yaml:"payload,omitempty"`

	// Correlation fixes the correlation id instead of generating one.
	Correlation string `yaml:"correlation,omitempty"`

	// Error, when set, expects the dispatch to fail with a message
	// containing it.
	Error string `yaml:"error,omitempty"`

	// Wait blocks until notifications and effects are idle.
	Wait bool `yaml:"wait,omitempty"`

	// Sleep pauses the script, letting effects progress.
	Sleep Duration `yaml:"sleep,omitempty"`

	// Backend adjusts the fake backend mid-scenario.
	Backend *BackendSpec `yaml:"backend,omitempty"`
}

// Assertion validates the trace, final state, errors or backend calls.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Correlation narrows trace_contains to one correlation id.
	Correlation string `yaml:"correlation,omitempty"`

	// Payload is matched as a subset against the traced payload
	// (trace_contains).
	Payload any `yaml:"payload,omitempty"`

	// Actions is the expected order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected occurrences (trace_count, error_count).
	Count *int `yaml:"count,omitempty"`

	// Kind filters error_count by error kind, case-insensitively.
	Kind string `yaml:"kind,omitempty"`

	// Slice names the state slice (final_state).
	Slice string `yaml:"slice,omitempty"`

	// Path is a dotted path inside the slice; numeric segments index lists.
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value (final_state, backend).
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertErrorCount    = "error_count"
	AssertBackend       = "backend"
)

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML parses strings such as "50ms".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
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

// ParseScenario parses scenario YAML with strict field checking.
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if _, err := s.config(nil); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
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
	set := 0
	if step.Dispatch != "" {
		set++
	}
	if step.Wait {
		set++
	}
	if step.Sleep != 0 {
		set++
	}
	if step.Backend != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of dispatch, wait, sleep or backend is required")
	}
	if step.Dispatch == "" && (step.Payload != nil || step.Correlation != "" || step.Error != "") {
		return fmt.Errorf("payload, correlation and error require dispatch")
	}
	if step.Sleep < 0 {
		return fmt.Errorf("sleep must be positive")
	}
	if step.Backend != nil && len(step.Backend.Catalog) > 0 {
		return fmt.Errorf("catalog can only be set at the scenario level")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("action is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("actions list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("action is required for trace_count")
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("a non-negative count is required for trace_count")
		}
	case AssertFinalState:
		if a.Slice == "" {
			return fmt.Errorf("slice is required for final_state")
		}
		if a.Expect == nil {
			return fmt.Errorf("expect is required for final_state")
		}
	case AssertErrorCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("a non-negative count is required for error_count")
		}
	case AssertBackend:
		if _, ok := a.Expect.(map[string]any); !ok {
			return fmt.Errorf("expect must be an object for backend")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// config resolves the scenario configuration. An inline document wins over
// base; with neither, the schema defaults apply.
func (s *Scenario) config(base *config.Config) (*config.Config, error) {
	if s.Config == nil {
		if base != nil {
			return base, nil
		}
		return config.Default()
	}
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := config.Parse(s.Name+".yaml", data)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (s *Scenario) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.Timeout)
}

func (s *Scenario) correlationPrefix() string {
	return strings.TrimSpace(s.CorrelationPrefix)
}
