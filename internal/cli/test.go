package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hypetrace/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string // glob matched against the scenario file name
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Note   string   `json:"note,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarizes a test command run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(sr ScenarioResult) {
	r.Scenarios = append(r.Scenarios, sr)
	r.Total++
	if sr.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run trace scenarios",
		Long: `Run trace scenarios and compare their output with golden files.

Every .yaml or .yml file under the directory is a scenario. Its rendered
output is compared with golden/<name>.golden next to the scenario file
when that file exists; otherwise only the scenario's own expectations
are checked.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Missing directory or bad filter

Examples:
  decode-trace test ./scenarios
  decode-trace test ./scenarios --filter "dup*"
  decode-trace test ./scenarios --update
  decode-trace test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")

	return cmd
}

func runTests(opts *TestOptions, dir string, w io.Writer) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	text := opts.Format != "json"
	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, file := range files {
		sr := runScenario(file, opts.Update)
		if text {
			printScenario(w, sr)
		}
		result.add(sr)
	}

	if text {
		return reportTestsText(w, result)
	}
	return reportTestsJSON(w, result)
}

// findScenarioFiles walks dir for .yaml and .yml files, skipping golden
// directories. A non-empty filter is matched against the base name
// without extension.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && d.Name() == "golden":
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario loads, runs and golden-checks one scenario file.
func runScenario(file string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed(filepath.Base(file), fmt.Sprintf("Load error: %v", err))
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("Execution error: %v", err))
	}
	if !result.Pass {
		return failed(scenario.Name, result.Errors...)
	}

	golden := harness.GoldenPath(file)
	if update {
		if err := harness.UpdateGolden(golden, result.Output); err != nil {
			return failed(scenario.Name, fmt.Sprintf("Golden update error: %v", err))
		}
		return ScenarioResult{Name: scenario.Name, Pass: true, Note: "golden updated"}
	}

	match, err := harness.CompareGolden(golden, result.Output)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ScenarioResult{Name: scenario.Name, Pass: true, Note: "no golden file"}
	case err != nil:
		return failed(scenario.Name, fmt.Sprintf("Golden comparison error: %v", err))
	case !match:
		return failed(scenario.Name, "Golden file mismatch (run with --update to regenerate)")
	}
	return ScenarioResult{Name: scenario.Name, Pass: true}
}

func failed(name string, errs ...string) ScenarioResult {
	return ScenarioResult{Name: name, Errors: errs}
}

func printScenario(w io.Writer, sr ScenarioResult) {
	mark := "✓"
	if !sr.Pass {
		mark = "✗"
	}
	if sr.Note != "" {
		fmt.Fprintf(w, "%s %s (%s)\n", mark, sr.Name, sr.Note)
	} else {
		fmt.Fprintf(w, "%s %s\n", mark, sr.Name)
	}
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func reportTestsJSON(w io.Writer, result TestResult) error {
	f := &OutputFormatter{Format: "json", Writer: w}
	if result.Failed == 0 {
		return f.Success(result)
	}
	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := f.write(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: "E_TEST_FAILED", Message: msg},
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

func reportTestsText(w io.Writer, result TestResult) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
