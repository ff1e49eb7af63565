package graph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/hypetrace/internal/ir"
)

// DefaultCollectThreshold is the arena size at which the first collection
// runs. Later collections run when the arena has doubled since the last one.
const DefaultCollectThreshold = 4096

// Sink receives values that become top-level output elements.
//
// Element is called while the Emit record is being applied, before its
// ObjectID is retired. node is only valid for the duration of the call.
type Sink interface {
	Element(a *Arena, node NodeID, rec ir.Emit) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(a *Arena, node NodeID, rec ir.Emit) error

// Element implements Sink.
func (f SinkFunc) Element(a *Arena, node NodeID, rec ir.Emit) error {
	return f(a, node, rec)
}

// Stats counts what a Builder has done.
type Stats struct {
	Records     int `json:"records"`
	Attaches    int `json:"attaches"`
	Emits       int `json:"emits"`
	Definitions int `json:"definitions"`
	Emitted     int `json:"emitted"`
	Skipped     int `json:"skipped"`
	PeakLiveIDs int `json:"peak_live_ids"`
	PeakNodes   int `json:"peak_nodes"`
	Collections int `json:"collections"`
	Freed       int `json:"freed"`

	// Shared counts shareable values; DuplicateRoots counts repeated
	// attachments of one node to the root collection.
	Shared         int `json:"shared"`
	DuplicateRoots int `json:"duplicate_roots"`
}

// Builder applies mutation records to the value graph.
//
// Records are applied strictly in stream order: every side effect of a
// record is complete when Apply returns. Any error is fatal; the builder
// must not be used afterwards.
//
// Builder owns its Arena, Registry and RootTracker and is not safe for
// concurrent use.
type Builder struct {
	arena    *Arena
	registry *Registry
	roots    *RootTracker
	sink     Sink

	// shared binds tag 28 indices to their nodes for the whole trace.
	shared map[int]NodeID
	strict bool

	threshold   int
	nextCollect int
	epoch       uint32
	stats       Stats
}

// Option configures a Builder.
type Option func(*Builder)

// WithCollectThreshold sets the arena size that triggers the first
// collection. Zero or a negative value disables collection.
func WithCollectThreshold(n int) Option {
	return func(b *Builder) {
		b.threshold = n
	}
}

// WithStrictRoots makes attaching a node to the root collection twice a
// fatal DUPLICATE_ROOT error. By default it is logged and counted.
func WithStrictRoots(strict bool) Option {
	return func(b *Builder) {
		b.strict = strict
	}
}

// NewBuilder creates a Builder that hands emitted roots to sink.
// A nil sink drops them.
func NewBuilder(sink Sink, opts ...Option) *Builder {
	b := &Builder{
		arena:     NewArena(),
		registry:  NewRegistry(),
		roots:     NewRootTracker(),
		shared:    make(map[int]NodeID),
		sink:      sink,
		threshold: DefaultCollectThreshold,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.nextCollect = b.threshold
	return b
}

// Arena returns the builder's arena.
func (b *Builder) Arena() *Arena { return b.arena }

// Registry returns the builder's registry.
func (b *Builder) Registry() *Registry { return b.registry }

// Roots returns the builder's root tracker.
func (b *Builder) Roots() *RootTracker { return b.roots }

// Stats returns a snapshot of the counters.
func (b *Builder) Stats() Stats {
	s := b.stats
	s.PeakLiveIDs = b.registry.Peak()
	return s
}

// Apply applies one record.
func (b *Builder) Apply(rec ir.Record) error {
	b.stats.Records++

	var err error
	switch r := rec.(type) {
	case ir.Attach:
		b.stats.Attaches++
		err = b.attach(r)
	case ir.Emit:
		b.stats.Emits++
		err = b.emit(r)
	default:
		err = ir.NewMalformedRecord(-1, "unsupported record type %T", rec)
	}
	if err != nil {
		return atRecord(err, rec.RecordIndex())
	}

	if live := b.arena.Live(); live > b.stats.PeakNodes {
		b.stats.PeakNodes = live
	}
	if b.threshold > 0 && b.arena.Live() >= b.nextCollect {
		b.Collect()
	}
	return nil
}

// atRecord stamps the record index on trace errors raised below the
// record level.
func atRecord(err error, index int) error {
	var te *ir.TraceError
	if errors.As(err, &te) && te.RecordIndex < 0 {
		te.RecordIndex = index
	}
	return err
}

func (b *Builder) attach(r ir.Attach) error {
	parent, parentKind := NoNode, KindRoot
	if r.Parent != nil {
		node, err := b.registry.Resolve(*r.Parent)
		if err != nil {
			return err
		}
		parent, parentKind = node, b.arena.Node(node).Kind
	}

	switch children := r.Children.(type) {
	case ir.Array:
		for _, e := range children {
			node, err := b.entry(e)
			if err != nil {
				return err
			}
			switch parentKind {
			case KindSequence:
				b.arena.Append(parent, node)
			case KindRoot:
				if err := b.markRoot(r.Index, e, node); err != nil {
					return err
				}
			default:
				return invalidParent(r, KindSequence, parentKind)
			}
		}

	case ir.Map:
		for _, p := range children {
			if err := plainKey(p.Key); err != nil {
				return err
			}
			node, err := b.entry(p.Value)
			if err != nil {
				return err
			}
			if parentKind != KindMapping {
				return invalidParent(r, KindMapping, parentKind)
			}
			if err := b.arena.Set(parent, p.Key, node); err != nil {
				return ir.NewMalformedRecord(-1, "%v", err)
			}
		}

	default:
		return ir.NewMalformedRecord(-1, "payload must be a sequence or a mapping, got %s", ir.TypeName(r.Children))
	}
	return nil
}

// markRoot tolerates repeated root attachments unless strict. The
// warning names the record and, for a definition entry, its id.
func (b *Builder) markRoot(record int, entry ir.Value, node NodeID) error {
	err := b.roots.MarkRoot(node)
	if err == nil || b.strict {
		return err
	}
	b.stats.DuplicateRoots++
	attrs := []any{"record", record}
	if def, ok := entry.(ir.Definition); ok {
		attrs = append(attrs, "id", int64(def.ID))
	}
	slog.Warn("value attached to root more than once", append(attrs, "node", node)...)
	return nil
}

// entry materializes one payload entry and registers it when it is a
// definition.
func (b *Builder) entry(v ir.Value) (NodeID, error) {
	def, ok := v.(ir.Definition)
	if !ok {
		return b.materialize(v)
	}
	node, err := b.materialize(def.Value)
	if err != nil {
		return NoNode, err
	}
	if err := b.registry.Define(def.ID, node); err != nil {
		return NoNode, err
	}
	b.stats.Definitions++
	return node, nil
}

// materialize copies a payload value into fresh arena nodes. Every
// container gets its own node, so later attaches can mutate it in place.
// Shared references are the only way two positions reach one node.
func (b *Builder) materialize(v ir.Value) (NodeID, error) {
	switch val := v.(type) {
	case nil:
		return NoNode, ir.NewMalformedRecord(-1, "missing value")
	case ir.Definition:
		return NoNode, ir.NewMalformedRecord(-1, "definition of %d nested inside a value", val.ID)
	case ir.Ref:
		return NoNode, ir.NewMalformedRecord(-1, "reference to %d nested inside a value", int64(val))
	case ir.Shareable:
		return b.shareable(val)
	case ir.SharedRef:
		node, ok := b.shared[int(val)]
		if !ok {
			return NoNode, ir.NewMalformedRecord(-1, "shared reference %d has no shareable value", int(val))
		}
		return node, nil
	case ir.Array:
		id := b.arena.NewSequence()
		return id, b.fill(id, val)
	case ir.Map:
		id := b.arena.NewMapping()
		return id, b.fill(id, val)
	default:
		return b.arena.NewScalar(val), nil
	}
}

// shareable binds a container before filling it, so references from
// inside its own content close a cycle.
func (b *Builder) shareable(s ir.Shareable) (NodeID, error) {
	if _, ok := b.shared[s.Index]; ok {
		return NoNode, ir.NewMalformedRecord(-1, "shareable %d defined twice", s.Index)
	}
	b.stats.Shared++

	var id NodeID
	switch s.Value.(type) {
	case ir.Array:
		id = b.arena.NewSequence()
	case ir.Map:
		id = b.arena.NewMapping()
	default:
		node, err := b.materialize(s.Value)
		if err != nil {
			return NoNode, err
		}
		b.shared[s.Index] = node
		return node, nil
	}
	b.shared[s.Index] = id
	return id, b.fill(id, s.Value)
}

// fill adds the elements of an Array or Map value to container id.
func (b *Builder) fill(id NodeID, v ir.Value) error {
	switch val := v.(type) {
	case ir.Array:
		for _, elem := range val {
			child, err := b.materialize(elem)
			if err != nil {
				return err
			}
			b.arena.Append(id, child)
		}
	case ir.Map:
		for _, p := range val {
			if err := plainKey(p.Key); err != nil {
				return err
			}
			child, err := b.materialize(p.Value)
			if err != nil {
				return err
			}
			if err := b.arena.Set(id, p.Key, child); err != nil {
				return ir.NewMalformedRecord(-1, "%v", err)
			}
		}
	}
	return nil
}

// plainKey rejects mapping keys that carry identity.
func plainKey(v ir.Value) error {
	switch val := v.(type) {
	case nil:
		return ir.NewMalformedRecord(-1, "missing mapping key")
	case ir.Definition, ir.Ref:
		return ir.NewMalformedRecord(-1, "object reference used as a mapping key")
	case ir.Shareable, ir.SharedRef:
		return ir.NewMalformedRecord(-1, "shared value used as a mapping key")
	case ir.Array:
		for _, elem := range val {
			if err := plainKey(elem); err != nil {
				return err
			}
		}
	case ir.Map:
		for _, p := range val {
			if err := plainKey(p.Key); err != nil {
				return err
			}
			if err := plainKey(p.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func invalidParent(r ir.Attach, payload, parent Kind) error {
	te := &ir.TraceError{
		Code:        ir.ErrCodeInvalidParentKind,
		Message:     fmt.Sprintf("cannot attach %s entries to a %s", payload, parent),
		RecordIndex: -1,
	}
	if r.Parent != nil {
		te.ObjectID, te.HasID = *r.Parent, true
	}
	return te
}

func (b *Builder) emit(r ir.Emit) error {
	node, err := b.registry.Resolve(r.ID)
	if err != nil {
		return err
	}

	if b.roots.UnmarkIfRoot(node) {
		b.stats.Emitted++
		if b.sink != nil {
			if err := b.sink.Element(b.arena, node, r); err != nil {
				return fmt.Errorf("emit %d: %w", r.ID, err)
			}
		}
	} else {
		b.stats.Skipped++
		slog.Debug("retiring attached value", "id", r.ID, "record", r.Index)
	}

	b.registry.Retire(r.ID)
	return nil
}
