package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario, fails t if the scenario does not
// pass, and compares the rendered document against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:\n%s", scenario.Name, strings.Join(result.Errors, "\n"))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, []byte(result.Output))
	return nil
}

// GoldenPath returns the golden file of a scenario file: golden/<name>.golden
// in the scenario's directory.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// CompareGolden reports whether the golden file at path holds output.
// A missing golden file is reported with os.ErrNotExist.
func CompareGolden(path string, output string) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, []byte(output)), nil
}

// UpdateGolden writes output as the golden file at path.
func UpdateGolden(path string, output string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(output), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
