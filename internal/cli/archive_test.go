package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hypetrace/internal/store"
	"github.com/roach88/hypetrace/internal/testutil"
)

func TestArchive_DecodeRunsShow(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	in := writeFile(t, dir, "in.trace", testutil.Trace(t,
		testutil.Attach(nil, []any{testutil.Def(1, []any{"a"}), testutil.Def(2, map[string]any{"k": 1})}),
		testutil.Emit(2),
		testutil.Emit(1),
	))

	live, errOut, code := execute(t, "--archive", db, in)
	require.Equal(t, ExitSuccess, code, errOut)

	out, errOut, code := execute(t, "runs", "--db", db)
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, in)

	shown, errOut, code := execute(t, "show", "--db", db)
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Equal(t, live, shown)
}

func TestArchive_FailedRun(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	in := writeFile(t, dir, "in.trace", testutil.Trace(t,
		testutil.Attach(nil, []any{testutil.Def(1, []any{1})}),
		testutil.Emit(1),
		testutil.Emit(9),
	))

	live, _, code := execute(t, "--archive", db, in)
	require.Equal(t, ExitFailure, code)

	shown, errOut, code := execute(t, "show", "--db", db)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, live, shown)
	assert.Contains(t, errOut, "UNKNOWN_REFERENCE")

	out, _, code := execute(t, "runs", "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Data RunsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Data.Total)
	run := resp.Data.Runs[0]
	assert.Equal(t, store.RunFailed, run.Status)
	assert.Equal(t, "UNKNOWN_REFERENCE", run.ErrorCode)
	assert.Equal(t, 3, run.Records)
	assert.Equal(t, 1, run.Elements)
}

func TestShow_ByRunID(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")

	st, err := store.Open(db, store.WithRunIDGenerator(testutil.NewSequenceRunIDGenerator("run")))
	require.NoError(t, err)
	ctx := context.Background()
	for _, body := range []string{"[1]", "[2]"} {
		run, err := st.BeginRun(ctx, "mem")
		require.NoError(t, err)
		require.NoError(t, st.WriteElement(ctx, run.ID, store.Element{Seq: 0, Body: body}))
		require.NoError(t, st.FinishRun(ctx, run.ID, store.Outcome{Records: 2, Elements: 1}))
	}
	require.NoError(t, st.Close())

	out, errOut, code := execute(t, "show", "--db", db, "--run", "run-1")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Equal(t, "[\n    [1]\n]\n", out)

	out, _, code = execute(t, "show", "--db", db, "--run", "run-2", "--format", "json")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Data ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-2", resp.Data.Run.ID)
	require.Len(t, resp.Data.Elements, 1)
	assert.Equal(t, "[2]", resp.Data.Elements[0].Body)

	_, errOut, code = execute(t, "show", "--db", db, "--run", "run-9")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "no such run")
}

func TestRuns_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, code := execute(t, "runs", "--db", db)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "No runs found.")

	_, errOut, code := execute(t, "show", "--db", db)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "no such run")
}

func TestRuns_MissingDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.db")

	_, errOut, code := execute(t, "runs", "--db", missing)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "archive not found")

	_, errOut, code = execute(t, "show", "--db", missing)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "archive not found")
}
