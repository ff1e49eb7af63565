package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hypetrace/internal/ir"
	"github.com/roach88/hypetrace/internal/testutil"
)

func TestRun_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	run, err := s.BeginRun(ctx, "trace.bin")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, RunRunning, run.Status)
	assert.Equal(t, testutil.DefaultClockBase, run.StartedAt)

	require.NoError(t, s.WriteElement(ctx, run.ID, Element{Seq: 0, RecordIndex: 3, ObjectID: 1, Body: `[1, 2]`}))
	require.NoError(t, s.WriteElement(ctx, run.ID, Element{Seq: 1, RecordIndex: 5, ObjectID: 2, Body: `{"a": ...}`}))

	stats := map[string]int{"records": 6}
	require.NoError(t, s.FinishRun(ctx, run.ID, Outcome{Records: 6, Elements: 2, Stats: stats}))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunOK, got.Status)
	assert.Equal(t, "trace.bin", got.Source)
	assert.Equal(t, 6, got.Records)
	assert.Equal(t, 2, got.Elements)
	assert.Equal(t, testutil.DefaultClockBase.Add(time.Second), got.FinishedAt)
	assert.JSONEq(t, `{"records": 6}`, string(got.Stats))
	assert.Empty(t, got.ErrorCode)

	elements, err := s.ReadElements(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Seq: 0, RecordIndex: 3, ObjectID: 1, Body: `[1, 2]`},
		{Seq: 1, RecordIndex: 5, ObjectID: 2, Body: `{"a": ...}`},
	}, elements)
}

func TestRun_FailedOutcome(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	run, err := s.BeginRun(ctx, "bad.bin")
	require.NoError(t, err)

	cause := fmt.Errorf("convert: %w", ir.NewUnknownReference(4, 9))
	require.NoError(t, s.FinishRun(ctx, run.ID, Outcome{Records: 5, Err: cause}))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "UNKNOWN_REFERENCE", got.ErrorCode)
	assert.Contains(t, got.ErrorMessage, "record=4")
	assert.JSONEq(t, `{}`, string(got.Stats))
}

func TestRun_WriteElementIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	run, err := s.BeginRun(ctx, "x")
	require.NoError(t, err)
	el := Element{Seq: 0, RecordIndex: 1, ObjectID: 1, Body: "1"}
	require.NoError(t, s.WriteElement(ctx, run.ID, el))
	require.NoError(t, s.WriteElement(ctx, run.ID, el))

	elements, err := s.ReadElements(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, elements, 1)
}

func TestRun_ElementRequiresRun(t *testing.T) {
	s, _ := createTestStore(t)
	err := s.WriteElement(context.Background(), "no-such-run", Element{Body: "1"})
	assert.Error(t, err)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	for _, src := range []string{"a", "b", "c"} {
		run, err := s.BeginRun(ctx, src)
		require.NoError(t, err)
		require.NoError(t, s.FinishRun(ctx, run.ID, Outcome{}))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].Source, runs[1].Source, runs[2].Source})

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-3", latest.ID)
}

func TestListRuns_Empty(t *testing.T) {
	s, _ := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	_, err = s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestGetRun_NotFound(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = s.FinishRun(context.Background(), "missing", Outcome{})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReadElements_Empty(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	run, err := s.BeginRun(ctx, "empty")
	require.NoError(t, err)

	elements, err := s.ReadElements(ctx, run.ID)
	require.NoError(t, err)
	assert.NotNil(t, elements)
	assert.Empty(t, elements)
}

func TestRun_JSON(t *testing.T) {
	run := Run{
		ID:        "run-1",
		Source:    "t.bin",
		StartedAt: testutil.DefaultClockBase,
		Status:    RunRunning,
		Stats:     json.RawMessage(`{}`),
	}
	data, err := json.Marshal(run)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "finished_at")
	assert.NotContains(t, string(data), "error_code")
}
