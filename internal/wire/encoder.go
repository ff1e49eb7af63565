package wire

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/hypetrace/internal/ir"
)

// Encoder writes records as a binary trace. The outer array and every
// container are written with indefinite length, so records can be
// streamed without knowing the total count.
type Encoder struct {
	em     cbor.EncMode
	enc    *cbor.Encoder
	opened bool
	closed bool
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) (*Encoder, error) {
	opts := cbor.CoreDetEncOptions()
	opts.IndefLength = cbor.IndefLengthAllowed
	em, err := opts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder options: %w", err)
	}
	return &Encoder{em: em, enc: em.NewEncoder(w)}, nil
}

// WriteRecord appends one record to the trace.
func (e *Encoder) WriteRecord(rec ir.Record) error {
	if e.closed {
		return fmt.Errorf("encoder is closed")
	}
	if err := e.open(); err != nil {
		return err
	}

	switch r := rec.(type) {
	case ir.Emit:
		if err := e.enc.StartIndefiniteArray(); err != nil {
			return err
		}
		if err := e.writeRef(r.ID); err != nil {
			return err
		}
		return e.enc.EndIndefinite()

	case ir.Attach:
		if err := e.enc.StartIndefiniteArray(); err != nil {
			return err
		}
		if r.Parent == nil {
			if err := e.enc.Encode(nil); err != nil {
				return err
			}
		} else if err := e.writeRef(*r.Parent); err != nil {
			return err
		}
		if err := e.WriteValue(r.Children); err != nil {
			return fmt.Errorf("record %d: %w", r.Index, err)
		}
		return e.enc.EndIndefinite()

	default:
		return fmt.Errorf("unsupported record type: %T", rec)
	}
}

// Close terminates the outer array. An encoder that never wrote a
// record still produces an empty trace.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	if err := e.open(); err != nil {
		return err
	}
	e.closed = true
	return e.enc.EndIndefinite()
}

func (e *Encoder) open() error {
	if e.opened {
		return nil
	}
	e.opened = true
	return e.enc.StartIndefiniteArray()
}

func (e *Encoder) writeRef(id ir.ObjectID) error {
	return e.enc.Encode(cbor.Tag{Number: tagObjectRef, Content: int64(id)})
}

// WriteValue writes a single value. Refs and Definitions are written
// as-is, so malformed traces can be produced on purpose. Shareable.Index
// is not written: readers number shareables in encoding order.
func (e *Encoder) WriteValue(v ir.Value) error {
	switch val := v.(type) {
	case ir.Null:
		return e.enc.Encode(nil)
	case ir.Bool:
		return e.enc.Encode(bool(val))
	case ir.Int:
		return e.enc.Encode(int64(val))
	case ir.BigInt:
		return e.enc.Encode(new(big.Int).Set(val.V))
	case ir.Float:
		return e.enc.Encode(float64(val))
	case ir.String:
		return e.enc.Encode(string(val))
	case ir.Opaque:
		return e.enc.Encode(cbor.RawMessage(val.Raw))
	case ir.Timestamp:
		return e.enc.Encode(cbor.Tag{
			Number:  tagTimestamp,
			Content: map[int64]int64{1: val.Sec, -9: val.Nsec},
		})
	case ir.Ref:
		return e.writeRef(ir.ObjectID(val))
	case ir.Shareable:
		// Content is encoded on its own so it can be framed as a raw tag.
		var buf bytes.Buffer
		inner := &Encoder{em: e.em, enc: e.em.NewEncoder(&buf), opened: true}
		if err := inner.WriteValue(val.Value); err != nil {
			return fmt.Errorf("shareable %d: %w", val.Index, err)
		}
		return e.enc.Encode(cbor.RawTag{Number: tagShareable, Content: buf.Bytes()})
	case ir.SharedRef:
		return e.enc.Encode(cbor.Tag{Number: tagSharedRef, Content: uint64(val)})
	case ir.Definition:
		if err := e.enc.StartIndefiniteArray(); err != nil {
			return err
		}
		if err := e.writeRef(val.ID); err != nil {
			return err
		}
		if err := e.WriteValue(val.Value); err != nil {
			return fmt.Errorf("definition %d: %w", val.ID, err)
		}
		return e.enc.EndIndefinite()
	case ir.Array:
		if err := e.enc.StartIndefiniteArray(); err != nil {
			return err
		}
		for i, elem := range val {
			if err := e.WriteValue(elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		return e.enc.EndIndefinite()
	case ir.Map:
		if err := e.enc.StartIndefiniteMap(); err != nil {
			return err
		}
		for i, p := range val {
			if err := e.WriteValue(p.Key); err != nil {
				return fmt.Errorf("map key %d: %w", i, err)
			}
			if err := e.WriteValue(p.Value); err != nil {
				return fmt.Errorf("map value %d: %w", i, err)
			}
		}
		return e.enc.EndIndefinite()
	default:
		return fmt.Errorf("unsupported value type: %T", v)
	}
}

// MarshalTrace encodes records into a complete binary trace.
func MarshalTrace(records []ir.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := enc.WriteRecord(rec); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
