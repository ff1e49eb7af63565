package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hypetrace/internal/emit"
	"github.com/roach88/hypetrace/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ShowResult is the JSON payload of the show command.
type ShowResult struct {
	Run      store.Run       `json:"run"`
	Elements []store.Element `json:"elements"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print an archived run",
		Long: `Print the elements of an archived run exactly as the decode wrote them.

A failed run is printed without its closing bracket, like the original
output, and exits with code 1.

Examples:
  decode-trace show --db runs.db
  decode-trace show --db runs.db --run 01890a5d-ac96-774b-bcce-b302099a8057`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the archive database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: the latest run)")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var run store.Run
	if opts.RunID != "" {
		run, err = st.GetRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, "no such run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	elements, err := st.ReadElements(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read elements", err)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := f.Success(ShowResult{Run: run, Elements: elements}); err != nil {
			return err
		}
		return runFailure(run)
	}

	doc := emit.NewDocument(cmd.OutOrStdout())
	if err := doc.Begin(); err != nil {
		return err
	}
	for _, el := range elements {
		if err := doc.WriteElement([]byte(el.Body)); err != nil {
			return err
		}
	}
	if run.Status == store.RunOK {
		return doc.End()
	}
	return runFailure(run)
}

// runFailure reports a run that did not finish successfully.
func runFailure(run store.Run) error {
	switch run.Status {
	case store.RunOK:
		return nil
	case store.RunRunning:
		return NewExitError(ExitFailure, fmt.Sprintf("run %s did not finish", run.ID))
	default:
		return NewExitError(ExitFailure, fmt.Sprintf("run %s failed: %s", run.ID, run.ErrorMessage))
	}
}
