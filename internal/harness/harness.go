package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/hypetrace/internal/convert"
	"github.com/roach88/hypetrace/internal/emit"
	"github.com/roach88/hypetrace/internal/graph"
	"github.com/roach88/hypetrace/internal/ir"
	"github.com/roach88/hypetrace/internal/store"
	"github.com/roach88/hypetrace/internal/testutil"
	"github.com/roach88/hypetrace/internal/wire"
)

// ScenarioRunID is the archive run id of every scenario run.
const ScenarioRunID = "scenario-run"

// Harness archives the elements of one scenario run as they are written.
type Harness struct {
	store  *store.Store
	runID  string
	result *Result
}

// Observe implements convert.Observer.
func (h *Harness) Observe(ctx context.Context, el convert.Element) error {
	text := string(el.Text)
	h.result.Elements = append(h.result.Elements, text)
	return h.store.WriteElement(ctx, h.runID, store.Element{
		Seq:         el.Seq,
		RecordIndex: el.Record,
		ObjectID:    el.ID,
		Body:        text,
	})
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory archive with a fixed run
// id and a deterministic clock. A trace error is part of the result, not
// a failure of Run; Run only fails when the scenario cannot be executed.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	trace, err := scenarioTrace(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace: %w", err)
	}

	st, err := store.Open(":memory:",
		store.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(ScenarioRunID)),
		store.WithClock(testutil.NewDeterministicClock(testutil.DefaultClockBase)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	run, err := st.BeginRun(ctx, scenario.Name)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.RunID = run.ID
	h := &Harness{store: st, runID: run.ID, result: result}

	conv, err := newConverter(scenario.Options, h)
	if err != nil {
		return nil, fmt.Errorf("failed to configure decoder: %w", err)
	}

	var out bytes.Buffer
	res, convErr := conv.Convert(ctx, bytes.NewReader(trace), &out)
	result.Output = out.String()
	result.Stats = res.Stats
	if convErr != nil {
		code := ir.ErrorCode(convErr)
		if code == "" {
			return nil, fmt.Errorf("failed to run scenario: %w", convErr)
		}
		result.ErrorCode = string(code)
		result.Err = convErr.Error()
	}

	err = st.FinishRun(ctx, run.ID, store.Outcome{
		Records:  res.Stats.Records,
		Elements: res.Elements,
		Stats:    res.Stats,
		Err:      convErr,
	})
	if err != nil {
		return nil, err
	}

	if err := h.checkArchive(ctx); err != nil {
		result.AddError(err.Error())
	}
	for _, msg := range checkExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// scenarioTrace returns the binary trace of a scenario, encoding YAML
// records when the scenario has no raw hex.
func scenarioTrace(s *Scenario) ([]byte, error) {
	if s.TraceHex != "" {
		return s.Trace()
	}
	records, err := wire.RecordsFromYAML(&s.Records)
	if err != nil {
		return nil, err
	}
	return wire.MarshalTrace(records)
}

func newConverter(o Options, observer convert.Observer) (*convert.Converter, error) {
	emitOpts := []emit.Option{emit.WithNFC(o.NFC)}
	if o.Bytes != "" {
		enc, err := emit.ParseByteEncoding(o.Bytes)
		if err != nil {
			return nil, err
		}
		emitOpts = append(emitOpts, emit.WithByteEncoding(enc))
	}
	e, err := emit.New(emitOpts...)
	if err != nil {
		return nil, err
	}

	builderOpts := []graph.Option{graph.WithStrictRoots(o.StrictRoots)}
	if o.CollectThreshold > 0 {
		builderOpts = append(builderOpts, graph.WithCollectThreshold(o.CollectThreshold))
	}

	return convert.New(
		convert.WithEmitter(e),
		convert.WithBuilderOptions(builderOpts...),
		convert.WithObserver(observer),
	)
}

// checkArchive verifies that the archive holds exactly the live elements.
func (h *Harness) checkArchive(ctx context.Context) error {
	archived, err := h.store.ReadElements(ctx, h.runID)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if len(archived) != len(h.result.Elements) {
		return fmt.Errorf("archive: %d elements stored, %d written", len(archived), len(h.result.Elements))
	}
	for i, el := range archived {
		if el.Seq != i || el.Body != h.result.Elements[i] {
			return fmt.Errorf("archive: element %d differs from written output", i)
		}
	}
	return nil
}

// checkExpect compares the terminal outcome with the expectation.
func checkExpect(r *Result, want Expect) []string {
	var errs []string
	switch {
	case want.Error == "" && r.ErrorCode != "":
		errs = append(errs, fmt.Sprintf("expected success, got %s", r.Err))
	case want.Error != "" && r.ErrorCode != want.Error:
		got := r.ErrorCode
		if got == "" {
			got = "success"
		}
		errs = append(errs, fmt.Sprintf("expected error %s, got %s", want.Error, got))
	}

	if want.Elements != nil && len(r.Elements) != *want.Elements {
		errs = append(errs, fmt.Sprintf("expected %d elements, got %d", *want.Elements, len(r.Elements)))
	}

	// A failed run never closes the document.
	if r.ErrorCode != "" && strings.HasSuffix(r.Output, "]\n") {
		errs = append(errs, "failed run wrote a closing bracket")
	}
	return errs
}
