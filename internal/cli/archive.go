package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/hypetrace/internal/convert"
	"github.com/roach88/hypetrace/internal/store"
)

// archiver writes every element of a run into the archive as soon as it
// has been written to the output.
type archiver struct {
	st    *store.Store
	runID string
}

func openArchive(ctx context.Context, opts *DecodeOptions, source string) (*archiver, error) {
	st, err := store.Open(opts.Archive)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	run, err := st.BeginRun(ctx, source)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start run", err)
	}
	slog.Debug("archiving run", "run", run.ID, "db", opts.Archive)
	return &archiver{st: st, runID: run.ID}, nil
}

// Observe implements convert.Observer.
func (a *archiver) Observe(ctx context.Context, el convert.Element) error {
	return a.st.WriteElement(ctx, a.runID, store.Element{
		Seq:         el.Seq,
		RecordIndex: el.Record,
		ObjectID:    el.ID,
		Body:        string(el.Text),
	})
}

func (a *archiver) finish(ctx context.Context, res convert.Result, runErr error) error {
	return a.st.FinishRun(ctx, a.runID, store.Outcome{
		Records:  res.Stats.Records,
		Elements: res.Elements,
		Stats:    res,
		Err:      runErr,
	})
}

func (a *archiver) close() {
	if err := a.st.Close(); err != nil {
		slog.Error("error closing archive", "error", err)
	}
}
