package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/hypetrace/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the decode-trace command. Decoding is the root
// command itself; the rest are subcommands.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}
	decodeOpts := &DecodeOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "decode-trace INPUT [-o OUTPUT]",
		Short: "Decode a binary mutation trace",
		Long: `Decode a binary mutation trace into its top-level values.

The input is a CBOR trace of attach and emit records. Every value that is
emitted while it sits in the root collection is written, in emit order, as
one element of a text array. Values that reference themselves render the
cycle marker "...".

Exit codes:
  0 - Trace decoded
  1 - Trace error (elements written before the error are kept)
  2 - Usage error or unreadable input

Examples:
  decode-trace run.trace
  decode-trace run.trace -o run.txt
  decode-trace --archive runs.db --stats run.trace
  decode-trace -- -odd-name.trace`,
		Version:       ir.DecoderVersion + " (" + ir.TraceFormat + ")",
		Args:          inputArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runDecode(decodeOpts, args[0], cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format of messages (json|text)")
	cmd.Flags().BoolP("help", "?", false, "show this help")
	addDecodeFlags(cmd, decodeOpts)

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "usage error", err)
	})

	cmd.AddCommand(NewEncodeCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd, opts
}

// Execute runs the command line args and returns the process exit code.
// Errors are reported on stderr in the selected format.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	f := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if !isValidFormat(f.Format) {
		f.Format = "text"
	}
	_ = f.ReportError(err)
	return GetExitCode(err)
}

// inputArgs accepts at most one input file.
func inputArgs(_ *cobra.Command, args []string) error {
	if len(args) > 1 {
		return NewExitError(ExitCommandError, "input file specified multiple times")
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setupLogging installs the default logger on w. Warnings are always
// shown; verbose adds debug records.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
