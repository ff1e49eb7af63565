package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/hypetrace/internal/config"
	"github.com/roach88/hypetrace/internal/convert"
	"github.com/roach88/hypetrace/internal/emit"
	"github.com/roach88/hypetrace/internal/graph"
)

// DecodeOptions holds flags for decoding a trace.
type DecodeOptions struct {
	*RootOptions
	Output           string
	ConfigPath       string
	Archive          string
	Stats            bool
	NFC              bool
	Bytes            string
	StrictRoots      bool
	CollectThreshold int
}

// onceString is a string flag that may be given only once.
type onceString struct {
	target *string
	what   string
	set    bool
}

func (o *onceString) Set(s string) error {
	if o.set {
		return fmt.Errorf("%s specified multiple times", o.what)
	}
	o.set = true
	*o.target = s
	return nil
}

func (o *onceString) String() string { return *o.target }

func (o *onceString) Type() string { return "string" }

var _ pflag.Value = (*onceString)(nil)

func addDecodeFlags(cmd *cobra.Command, opts *DecodeOptions) {
	f := cmd.Flags()
	f.VarP(&onceString{target: &opts.Output, what: "output file"}, "output", "o", "write to `FILE` instead of stdout")
	f.StringVar(&opts.ConfigPath, "config", "", "read settings from a CUE `FILE`")
	f.StringVar(&opts.Archive, "archive", "", "archive the run into a SQLite `DB`")
	f.BoolVar(&opts.Stats, "stats", false, "print decode counters on stderr")
	f.BoolVar(&opts.NFC, "nfc", false, "normalize strings to NFC")
	f.StringVar(&opts.Bytes, "bytes", "hex", "byte string encoding (hex|base16|base32|base32hex|base64)")
	f.BoolVar(&opts.StrictRoots, "strict-roots", false, "fail when a value is attached to the root twice")
	f.IntVar(&opts.CollectThreshold, "collect-threshold", graph.DefaultCollectThreshold,
		"arena size that triggers collection of dead values (0 disables)")
}

// applyConfig fills every option not set on the command line from the
// config file.
func applyConfig(cmd *cobra.Command, opts *DecodeOptions) error {
	if opts.ConfigPath == "" {
		return nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	changed := func(name string) bool {
		return cmd.Flags().Changed(name)
	}
	if !changed("format") {
		opts.Format = cfg.Format
	}
	if !changed("verbose") {
		opts.Verbose = cfg.Verbose
	}
	if !changed("nfc") {
		opts.NFC = cfg.NFC
	}
	if !changed("bytes") {
		opts.Bytes = cfg.Bytes
	}
	if !changed("strict-roots") {
		opts.StrictRoots = cfg.StrictRoots
	}
	if !changed("collect-threshold") {
		opts.CollectThreshold = cfg.CollectThreshold
	}
	if !changed("archive") {
		opts.Archive = cfg.Archive
	}
	if !changed("stats") {
		opts.Stats = cfg.Stats
	}

	setupLogging(cmd.ErrOrStderr(), opts.Verbose)
	slog.Debug("config loaded", "path", opts.ConfigPath)
	return nil
}

func runDecode(opts *DecodeOptions, input string, cmd *cobra.Command) error {
	if err := applyConfig(cmd, opts); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := os.Open(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open input", err)
	}
	defer in.Close()

	var extra []convert.Option
	var arch *archiver
	if opts.Archive != "" {
		arch, err = openArchive(ctx, opts, input)
		if err != nil {
			return err
		}
		defer arch.close()
		extra = append(extra, convert.WithObserver(arch))
	}

	conv, err := newConverter(opts, extra...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.Output != "" {
		file, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output", err)
		}
		defer func() {
			if closeErr := file.Close(); closeErr != nil {
				slog.Error("error closing output", "error", closeErr)
			}
		}()
		out = file
	}
	bw := bufio.NewWriter(out)

	res, convErr := conv.Convert(ctx, in, bw)
	if err := bw.Flush(); err != nil && convErr == nil {
		convErr = fmt.Errorf("write output: %w", err)
	}

	if arch != nil {
		if err := arch.finish(context.WithoutCancel(ctx), res, convErr); err != nil {
			slog.Error("failed to record run outcome", "run", arch.runID, "error", err)
		}
	}
	if opts.Stats {
		printStats(cmd.ErrOrStderr(), opts.Format, res)
	}

	if errors.Is(convErr, context.Canceled) {
		return WrapExitError(ExitFailure, "interrupted", convErr)
	}
	return convErr
}

// newConverter builds a converter from the decode options.
func newConverter(opts *DecodeOptions, extra ...convert.Option) (*convert.Converter, error) {
	enc, err := emit.ParseByteEncoding(opts.Bytes)
	if err != nil {
		return nil, err
	}
	if opts.CollectThreshold < 0 {
		return nil, fmt.Errorf("collect threshold must be non-negative")
	}
	e, err := emit.New(emit.WithNFC(opts.NFC), emit.WithByteEncoding(enc))
	if err != nil {
		return nil, err
	}

	convOpts := []convert.Option{
		convert.WithEmitter(e),
		convert.WithBuilderOptions(
			graph.WithStrictRoots(opts.StrictRoots),
			graph.WithCollectThreshold(opts.CollectThreshold),
		),
	}
	return convert.New(append(convOpts, extra...)...)
}

// printStats writes the counters of a run.
func printStats(w io.Writer, format string, res convert.Result) {
	if format == "json" {
		_ = json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: res})
		return
	}
	s := res.Stats
	fmt.Fprintf(w, "records:        %d (%d attach, %d emit)\n", s.Records, s.Attaches, s.Emits)
	fmt.Fprintf(w, "definitions:    %d\n", s.Definitions)
	fmt.Fprintf(w, "elements:       %d (%d retired unwritten)\n", res.Elements, s.Skipped)
	fmt.Fprintf(w, "shared values:  %d\n", s.Shared)
	fmt.Fprintf(w, "peak live ids:  %d\n", s.PeakLiveIDs)
	fmt.Fprintf(w, "peak nodes:     %d\n", s.PeakNodes)
	fmt.Fprintf(w, "collections:    %d (%d nodes freed)\n", s.Collections, s.Freed)
	if s.DuplicateRoots > 0 {
		fmt.Fprintf(w, "duplicate roots: %d\n", s.DuplicateRoots)
	}
	if res.PendingRoots > 0 {
		fmt.Fprintf(w, "never emitted:  %d\n", res.PendingRoots)
	}
	if res.Trailing > 0 {
		fmt.Fprintf(w, "trailing bytes: %d\n", res.Trailing)
	}
}
