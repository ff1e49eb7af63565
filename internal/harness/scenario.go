package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hypetrace/internal/emit"
	"github.com/roach88/hypetrace/internal/ir"
)

// Scenario is one trace and what decoding it must produce.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Records holds the trace in YAML trace notation.
	// Exactly one of Records and TraceHex is set.
	Records yaml.Node `yaml:"records"`

	// TraceHex holds a raw CBOR trace. Whitespace is ignored.
	TraceHex string `yaml:"trace_hex"`

	// Options configure the decoder for this scenario.
	Options Options `yaml:"options"`

	// Expect is the terminal outcome of the run.
	Expect Expect `yaml:"expect"`

	// Assertions are checked after the run.
	Assertions []Assertion `yaml:"assertions"`
}

// Options mirror the decoder flags of the CLI.
type Options struct {
	NFC              bool   `yaml:"nfc"`
	Bytes            string `yaml:"bytes"`
	StrictRoots      bool   `yaml:"strict_roots"`
	CollectThreshold int    `yaml:"collect_threshold"`
}

// Expect describes how the run ends.
type Expect struct {
	// Error is the expected error code; empty means success.
	Error string `yaml:"error"`

	// Elements is the expected number of written elements, if set.
	Elements *int `yaml:"elements"`
}

// Assertion is a check against the result of a run.
type Assertion struct {
	Type   string `yaml:"type"`
	Index  int    `yaml:"index,omitempty"`
	Equals string `yaml:"equals,omitempty"`
	Text   string `yaml:"text,omitempty"`
	Field  string `yaml:"field,omitempty"`
	Count  int    `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertElement        = "element"
	AssertElementCount   = "element_count"
	AssertOutputContains = "output_contains"
	AssertStats          = "stats"
)

var knownErrorCodes = map[string]bool{
	string(ir.ErrCodeUnknownReference):  true,
	string(ir.ErrCodeDuplicateID):       true,
	string(ir.ErrCodeInvalidParentKind): true,
	string(ir.ErrCodeMalformedRecord):   true,
	string(ir.ErrCodeDuplicateRoot):     true,
	string(ir.ErrCodeDecodeFailed):      true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
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

// Trace returns the raw trace bytes when the scenario carries hex.
func (s *Scenario) Trace() ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s.TraceHex)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("trace_hex: %w", err)
	}
	return data, nil
}

func (s *Scenario) hasRecords() bool {
	return s.Records.Kind != 0
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.hasRecords() && s.TraceHex != "":
		return fmt.Errorf("records and trace_hex are mutually exclusive")
	case !s.hasRecords() && s.TraceHex == "":
		return fmt.Errorf("one of records or trace_hex is required")
	case s.TraceHex != "":
		if _, err := s.Trace(); err != nil {
			return err
		}
	}

	if s.Options.Bytes != "" {
		if _, err := emit.ParseByteEncoding(s.Options.Bytes); err != nil {
			return fmt.Errorf("options.bytes: %w", err)
		}
	}
	if s.Options.CollectThreshold < 0 {
		return fmt.Errorf("options.collect_threshold must be non-negative")
	}

	if s.Expect.Error != "" && !knownErrorCodes[s.Expect.Error] {
		return fmt.Errorf("expect.error: unknown error code %q", s.Expect.Error)
	}
	if s.Expect.Elements != nil && *s.Expect.Elements < 0 {
		return fmt.Errorf("expect.elements must be non-negative")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
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
	case AssertElement:
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative for element", index)
		}
	case AssertElementCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for element_count", index)
		}
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertStats:
		if _, ok := statsFields[a.Field]; !ok {
			return fmt.Errorf("assertions[%d]: unknown stats field %q", index, a.Field)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
