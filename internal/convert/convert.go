package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hypetrace/internal/emit"
	"github.com/roach88/hypetrace/internal/graph"
	"github.com/roach88/hypetrace/internal/ir"
	"github.com/roach88/hypetrace/internal/wire"
)

// Element is one rendered top-level value.
type Element struct {
	Seq    int         // position in the output array, from 0
	Record int         // index of the Emit record that produced it
	ID     ir.ObjectID // ObjectID named by that record
	Text   []byte      // rendering; only valid during the Observe call
}

// Observer is told about every element after it has been written.
type Observer interface {
	Observe(ctx context.Context, el Element) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, el Element) error

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, el Element) error {
	return f(ctx, el)
}

// Result summarizes a conversion.
type Result struct {
	Stats        graph.Stats `json:"stats"`
	Elements     int         `json:"elements"`
	PendingRoots int         `json:"pending_roots"`
	Trailing     int         `json:"trailing_bytes"`
}

// Converter turns traces into text. A Converter may be reused for many
// runs but not concurrently.
type Converter struct {
	emitter     *emit.Emitter
	builderOpts []graph.Option
	observers   []Observer
}

// Option configures a Converter.
type Option func(*Converter)

// WithEmitter replaces the default emitter.
func WithEmitter(e *emit.Emitter) Option {
	return func(c *Converter) {
		c.emitter = e
	}
}

// WithBuilderOptions passes options to the graph builder of every run.
func WithBuilderOptions(opts ...graph.Option) Option {
	return func(c *Converter) {
		c.builderOpts = append(c.builderOpts, opts...)
	}
}

// WithObserver adds an observer. Observers run in the order added.
func WithObserver(o Observer) Option {
	return func(c *Converter) {
		c.observers = append(c.observers, o)
	}
}

// New creates a Converter.
func New(opts ...Option) (*Converter, error) {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	if c.emitter == nil {
		e, err := emit.New()
		if err != nil {
			return nil, err
		}
		c.emitter = e
	}
	return c, nil
}

// Convert decodes the binary trace read from r and writes the rendered
// document to w.
func (c *Converter) Convert(ctx context.Context, r io.Reader, w io.Writer) (Result, error) {
	reader, err := wire.NewReader(r)
	if err != nil {
		return Result{}, err
	}
	res, err := c.run(ctx, reader.Next, w)
	res.Trailing = reader.Trailing()
	if err == nil && res.Trailing > 0 {
		slog.Warn("ignoring bytes after trace", "bytes", res.Trailing)
	}
	return res, err
}

// ConvertRecords renders already decoded records.
func (c *Converter) ConvertRecords(ctx context.Context, records []ir.Record, w io.Writer) (Result, error) {
	i := 0
	next := func() (ir.Record, error) {
		if i == len(records) {
			return nil, io.EOF
		}
		i++
		return records[i-1], nil
	}
	return c.run(ctx, next, w)
}

func (c *Converter) run(ctx context.Context, next func() (ir.Record, error), w io.Writer) (Result, error) {
	doc := emit.NewDocument(w)
	s := &sink{ctx: ctx, emitter: c.emitter, doc: doc, observers: c.observers}
	b := graph.NewBuilder(s, c.builderOpts...)

	result := func() Result {
		return Result{
			Stats:        b.Stats(),
			Elements:     doc.Count(),
			PendingRoots: b.Roots().Len(),
		}
	}

	if err := doc.Begin(); err != nil {
		return result(), fmt.Errorf("write output: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return result(), err
		}
		rec, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result(), err
		}
		if err := b.Apply(rec); err != nil {
			slog.Debug("record failed", "record", rec.RecordIndex(), "error", err)
			return result(), err
		}
	}
	if err := doc.End(); err != nil {
		return result(), fmt.Errorf("write output: %w", err)
	}

	res := result()
	if res.PendingRoots > 0 {
		slog.Debug("roots never emitted", "count", res.PendingRoots)
	}
	slog.Debug("trace converted",
		"records", res.Stats.Records,
		"elements", res.Elements,
		"peak_live_ids", res.Stats.PeakLiveIDs,
		"collections", res.Stats.Collections,
	)
	return res, nil
}

// sink renders ready roots into the document and notifies observers.
type sink struct {
	ctx       context.Context
	emitter   *emit.Emitter
	doc       *emit.Document
	observers []Observer
	buf       []byte
}

func (s *sink) Element(a *graph.Arena, node graph.NodeID, rec ir.Emit) error {
	text, err := s.emitter.Append(s.buf[:0], a, node)
	if err != nil {
		return err
	}
	s.buf = text

	seq := s.doc.Count()
	if err := s.doc.WriteElement(text); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	el := Element{Seq: seq, Record: rec.Index, ID: rec.ID, Text: text}
	for _, o := range s.observers {
		if err := o.Observe(s.ctx, el); err != nil {
			return err
		}
	}
	return nil
}
