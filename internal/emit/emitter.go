package emit

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/hypetrace/internal/graph"
	"github.com/roach88/hypetrace/internal/ir"
)

// CycleMarker replaces a container that is already on the render path.
const CycleMarker = "..."

// Emitter renders arena nodes. It keeps a scratch buffer and the active
// path between calls and is not safe for concurrent use.
type Emitter struct {
	nfc    bool
	dm     cbor.DiagMode
	active map[graph.NodeID]struct{}
	buf    []byte
}

type options struct {
	nfc   bool
	bytes cbor.ByteStringEncoding
}

// Option configures an Emitter.
type Option func(*options)

// WithNFC normalizes strings to Unicode NFC before quoting them.
func WithNFC(on bool) Option {
	return func(o *options) {
		o.nfc = on
	}
}

// WithByteEncoding selects how byte strings inside opaque values are
// notated. The default is base16.
func WithByteEncoding(enc cbor.ByteStringEncoding) Option {
	return func(o *options) {
		o.bytes = enc
	}
}

// New creates an Emitter.
func New(opts ...Option) (*Emitter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	dm, err := cbor.DiagOptions{ByteStringEncoding: o.bytes}.DiagMode()
	if err != nil {
		return nil, fmt.Errorf("diagnostic notation options: %w", err)
	}
	return &Emitter{
		nfc:    o.nfc,
		dm:     dm,
		active: make(map[graph.NodeID]struct{}),
	}, nil
}

// ParseByteEncoding maps a flag value to a byte string encoding.
func ParseByteEncoding(name string) (cbor.ByteStringEncoding, error) {
	switch strings.ToLower(name) {
	case "", "hex", "base16":
		return cbor.ByteStringBase16Encoding, nil
	case "base32":
		return cbor.ByteStringBase32Encoding, nil
	case "base32hex":
		return cbor.ByteStringBase32HexEncoding, nil
	case "base64":
		return cbor.ByteStringBase64Encoding, nil
	default:
		return 0, fmt.Errorf("unknown byte string encoding %q (want hex, base32, base32hex or base64)", name)
	}
}

// Render writes the value at node to w.
func (e *Emitter) Render(w io.Writer, a *graph.Arena, node graph.NodeID) error {
	out, err := e.Append(e.buf[:0], a, node)
	if err != nil {
		return err
	}
	e.buf = out
	_, err = w.Write(out)
	return err
}

// Append appends the rendering of node to dst. Each call starts with an
// empty active path.
func (e *Emitter) Append(dst []byte, a *graph.Arena, node graph.NodeID) ([]byte, error) {
	clear(e.active)
	return e.appendNode(dst, a, node)
}

// AppendValue appends the rendering of a plain value, such as a mapping
// key.
func (e *Emitter) AppendValue(dst []byte, v ir.Value) ([]byte, error) {
	return e.appendValue(dst, v)
}

func (e *Emitter) appendNode(dst []byte, a *graph.Arena, id graph.NodeID) ([]byte, error) {
	n := a.Node(id)
	if !n.IsContainer() {
		return e.appendValue(dst, n.Value)
	}

	if _, ok := e.active[id]; ok {
		return append(dst, CycleMarker...), nil
	}
	e.active[id] = struct{}{}
	defer delete(e.active, id)

	var err error
	if n.Kind == graph.KindSequence {
		dst = append(dst, '[')
		for i, item := range n.Items {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			if dst, err = e.appendNode(dst, a, item); err != nil {
				return dst, err
			}
		}
		return append(dst, ']'), nil
	}

	dst = append(dst, '{')
	for i, entry := range n.Entries {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		if dst, err = e.appendValue(dst, entry.Key); err != nil {
			return dst, err
		}
		dst = append(dst, ": "...)
		if dst, err = e.appendNode(dst, a, entry.Value); err != nil {
			return dst, err
		}
	}
	return append(dst, '}'), nil
}

func (e *Emitter) appendValue(dst []byte, v ir.Value) ([]byte, error) {
	switch val := v.(type) {
	case ir.String:
		s := string(val)
		if e.nfc {
			s = norm.NFC.String(s)
		}
		return append(dst, ir.QuoteString(s)...), nil

	case ir.Opaque:
		diag, err := e.dm.Diagnose(val.Raw)
		if err != nil {
			return dst, fmt.Errorf("render opaque value: %w", err)
		}
		return append(dst, diag...), nil

	case ir.Array:
		var err error
		dst = append(dst, '[')
		for i, elem := range val {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			if dst, err = e.appendValue(dst, elem); err != nil {
				return dst, err
			}
		}
		return append(dst, ']'), nil

	case ir.Map:
		var err error
		dst = append(dst, '{')
		for i, p := range val {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			if dst, err = e.appendValue(dst, p.Key); err != nil {
				return dst, err
			}
			dst = append(dst, ": "...)
			if dst, err = e.appendValue(dst, p.Value); err != nil {
				return dst, err
			}
		}
		return append(dst, '}'), nil

	default:
		return AppendScalar(dst, v)
	}
}
