package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hypetrace/internal/wire"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Output string
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <trace.yaml>",
		Short: "Encode a YAML trace description as a binary trace",
		Long: `Encode a trace written in YAML trace notation as a binary CBOR trace.

Each record is a sequence: [parent, children] attaches, [!ref id] emits.
A parent of ~ is the root collection.

  - [~, [!def [1, []]]]        attach a new sequence 1 to the root
  - [!ref 1, [1, "two", 3.0]]   append three values to 1
  - [!ref 1]                    emit 1

Value tags: !ts [sec, nsec], !bytes "hex", !cbor "hex", !float,
!share on a sequence or mapping and !shared N.

Examples:
  decode-trace encode cycle.yaml -o cycle.trace
  decode-trace encode cycle.yaml | decode-trace /dev/stdin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to `FILE` instead of stdout")

	return cmd
}

func runEncode(opts *EncodeOptions, input string, cmd *cobra.Command) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}

	records, err := wire.ParseYAMLTrace(data)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("invalid trace %s", input), err)
	}
	trace, err := wire.MarshalTrace(records)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode trace", err)
	}

	if opts.Output == "" {
		_, err = cmd.OutOrStdout().Write(trace)
		return err
	}
	if err := os.WriteFile(opts.Output, trace, 0644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}
