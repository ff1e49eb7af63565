package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/hypetrace/internal/graph"
)

// AssertionError is returned when an assertion fails.
// It includes the written elements to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Elements []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nElements:\n")
	for i, el := range e.Elements {
		fmt.Fprintf(&buf, "  [%d] %s\n", i, el)
	}
	return buf.String()
}

// statsFields maps the JSON names of graph.Stats to accessors.
var statsFields = map[string]func(graph.Stats) int{
	"records":         func(s graph.Stats) int { return s.Records },
	"attaches":        func(s graph.Stats) int { return s.Attaches },
	"emits":           func(s graph.Stats) int { return s.Emits },
	"definitions":     func(s graph.Stats) int { return s.Definitions },
	"emitted":         func(s graph.Stats) int { return s.Emitted },
	"skipped":         func(s graph.Stats) int { return s.Skipped },
	"peak_live_ids":   func(s graph.Stats) int { return s.PeakLiveIDs },
	"peak_nodes":      func(s graph.Stats) int { return s.PeakNodes },
	"collections":     func(s graph.Stats) int { return s.Collections },
	"freed":           func(s graph.Stats) int { return s.Freed },
	"shared":          func(s graph.Stats) int { return s.Shared },
	"duplicate_roots": func(s graph.Stats) int { return s.DuplicateRoots },
}

// StatsFields returns the counter names usable in stats assertions.
func StatsFields() []string {
	names := make([]string, 0, len(statsFields))
	for name := range statsFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EvaluateAssertions checks every assertion against the result and
// returns the failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertElement:
		return assertElement(result, a)
	case AssertElementCount:
		return assertElementCount(result, a)
	case AssertOutputContains:
		return assertOutputContains(result, a)
	case AssertStats:
		return assertStats(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertElement(result *Result, a Assertion) error {
	if a.Index >= len(result.Elements) {
		return &AssertionError{
			Type:     AssertElement,
			Expected: fmt.Sprintf("element %d = %s", a.Index, a.Equals),
			Actual:   fmt.Sprintf("only %d elements written", len(result.Elements)),
			Elements: result.Elements,
		}
	}
	if got := result.Elements[a.Index]; got != a.Equals {
		return &AssertionError{
			Type:     AssertElement,
			Expected: fmt.Sprintf("element %d = %s", a.Index, a.Equals),
			Actual:   got,
			Elements: result.Elements,
		}
	}
	return nil
}

func assertElementCount(result *Result, a Assertion) error {
	if len(result.Elements) != a.Count {
		return &AssertionError{
			Type:     AssertElementCount,
			Expected: fmt.Sprintf("%d elements", a.Count),
			Actual:   fmt.Sprintf("%d elements", len(result.Elements)),
			Elements: result.Elements,
		}
	}
	return nil
}

func assertOutputContains(result *Result, a Assertion) error {
	if !strings.Contains(result.Output, a.Text) {
		return &AssertionError{
			Type:     AssertOutputContains,
			Expected: fmt.Sprintf("output containing %q", a.Text),
			Actual:   fmt.Sprintf("%q", result.Output),
			Elements: result.Elements,
		}
	}
	return nil
}

func assertStats(result *Result, a Assertion) error {
	get, ok := statsFields[a.Field]
	if !ok {
		return fmt.Errorf("unknown stats field %q", a.Field)
	}
	if got := get(result.Stats); got != a.Count {
		return &AssertionError{
			Type:     AssertStats,
			Expected: fmt.Sprintf("%s = %d", a.Field, a.Count),
			Actual:   fmt.Sprintf("%s = %d", a.Field, got),
			Elements: result.Elements,
		}
	}
	return nil
}
