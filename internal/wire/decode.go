package wire

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/hypetrace/internal/ir"
)

// valueDecoder turns raw CBOR items of one record into ir values.
type valueDecoder struct {
	dm    cbor.DecMode
	index int

	// shared counts tag 28 occurrences across the whole trace.
	shared *int
}

// objectRef decodes tag 39 wrapping an integer.
func (d *valueDecoder) objectRef(raw cbor.RawMessage) (ir.ObjectID, error) {
	if !isTag(raw, tagObjectRef) {
		return 0, ir.NewMalformedRecord(d.index, "expected object reference (tag 39), got %s", d.describe(raw))
	}
	var tag cbor.RawTag
	if err := d.dm.Unmarshal(raw, &tag); err != nil {
		return 0, ir.NewDecodeFailed(d.index, "decode object reference", err)
	}
	var n big.Int
	if err := d.dm.Unmarshal(tag.Content, &n); err != nil {
		return 0, ir.NewMalformedRecord(d.index, "object reference is not an integer")
	}
	if !n.IsInt64() {
		return 0, ir.NewMalformedRecord(d.index, "object reference %s out of range", n.String())
	}
	return ir.ObjectID(n.Int64()), nil
}

// payload decodes the children of an Attach record. Entries of an array
// payload and values of a map payload may be definitions.
func (d *valueDecoder) payload(raw cbor.RawMessage) (ir.Value, error) {
	h, err := readHead(raw)
	if err != nil {
		return nil, ir.NewDecodeFailed(d.index, "decode payload", err)
	}

	switch h.major {
	case majorArray:
		var elems []cbor.RawMessage
		if err := d.dm.Unmarshal(raw, &elems); err != nil {
			return nil, ir.NewDecodeFailed(d.index, "decode payload", err)
		}
		arr := make(ir.Array, 0, len(elems))
		for _, e := range elems {
			v, err := d.entry(e)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil

	case majorMap:
		pairs, err := d.rawPairs(raw)
		if err != nil {
			return nil, err
		}
		m := make(ir.Map, 0, len(pairs))
		for _, p := range pairs {
			k, err := d.value(p[0])
			if err != nil {
				return nil, err
			}
			v, err := d.entry(p[1])
			if err != nil {
				return nil, err
			}
			m = append(m, ir.Pair{Key: k, Value: v})
		}
		return m, nil

	default:
		return nil, ir.NewMalformedRecord(d.index, "payload must be an array or a map, got %s", d.describe(raw))
	}
}

// entry decodes one payload entry, recognizing [39(id), value].
func (d *valueDecoder) entry(raw cbor.RawMessage) (ir.Value, error) {
	h, err := readHead(raw)
	if err != nil {
		return nil, ir.NewDecodeFailed(d.index, "decode entry", err)
	}
	if h.major != majorArray {
		return d.value(raw)
	}

	var elems []cbor.RawMessage
	if err := d.dm.Unmarshal(raw, &elems); err != nil {
		return nil, ir.NewDecodeFailed(d.index, "decode entry", err)
	}
	if len(elems) == 0 || !isTag(elems[0], tagObjectRef) {
		return d.array(elems)
	}
	if len(elems) != 2 {
		return nil, ir.NewMalformedRecord(d.index, "definition has %d elements, want 2", len(elems))
	}
	id, err := d.objectRef(elems[0])
	if err != nil {
		return nil, err
	}
	v, err := d.value(elems[1])
	if err != nil {
		return nil, err
	}
	return ir.Definition{ID: id, Value: v}, nil
}

// value decodes a nested value. Object references are only valid in
// record and definition positions and are rejected here.
func (d *valueDecoder) value(raw cbor.RawMessage) (ir.Value, error) {
	h, err := readHead(raw)
	if err != nil {
		return nil, ir.NewDecodeFailed(d.index, "decode value", err)
	}

	switch h.major {
	case majorUint, majorNegInt:
		return d.integer(raw)

	case majorBytes:
		return ir.Opaque{Raw: clone(raw)}, nil

	case majorText:
		var s string
		if err := d.dm.Unmarshal(raw, &s); err != nil {
			return nil, ir.NewDecodeFailed(d.index, "decode text", err)
		}
		return ir.String(s), nil

	case majorArray:
		var elems []cbor.RawMessage
		if err := d.dm.Unmarshal(raw, &elems); err != nil {
			return nil, ir.NewDecodeFailed(d.index, "decode array", err)
		}
		return d.array(elems)

	case majorMap:
		pairs, err := d.rawPairs(raw)
		if err != nil {
			return nil, err
		}
		m := make(ir.Map, 0, len(pairs))
		for _, p := range pairs {
			k, err := d.value(p[0])
			if err != nil {
				return nil, err
			}
			v, err := d.value(p[1])
			if err != nil {
				return nil, err
			}
			m = append(m, ir.Pair{Key: k, Value: v})
		}
		return m, nil

	case majorTag:
		return d.tagged(h, raw)

	default:
		return d.simple(h, raw)
	}
}

func (d *valueDecoder) array(elems []cbor.RawMessage) (ir.Value, error) {
	arr := make(ir.Array, 0, len(elems))
	for _, e := range elems {
		v, err := d.value(e)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func (d *valueDecoder) integer(raw cbor.RawMessage) (ir.Value, error) {
	var n big.Int
	if err := d.dm.Unmarshal(raw, &n); err != nil {
		return nil, ir.NewDecodeFailed(d.index, "decode integer", err)
	}
	return ir.NewBigInt(&n), nil
}

func (d *valueDecoder) tagged(h head, raw cbor.RawMessage) (ir.Value, error) {
	switch h.arg {
	case tagObjectRef:
		return nil, ir.NewMalformedRecord(d.index, "object reference outside record or definition position")

	case tagPositiveBignum, tagNegativeBignum:
		return d.integer(raw)

	case tagShareable:
		var tag cbor.RawTag
		if err := d.dm.Unmarshal(raw, &tag); err != nil {
			return nil, ir.NewDecodeFailed(d.index, "decode tag", err)
		}
		index := *d.shared
		*d.shared++
		v, err := d.value(tag.Content)
		if err != nil {
			return nil, err
		}
		return ir.Shareable{Index: index, Value: v}, nil

	case tagSharedRef:
		var tag cbor.RawTag
		if err := d.dm.Unmarshal(raw, &tag); err != nil {
			return nil, ir.NewDecodeFailed(d.index, "decode tag", err)
		}
		var n uint64
		if err := d.dm.Unmarshal(tag.Content, &n); err != nil {
			return nil, ir.NewMalformedRecord(d.index, "shared reference is not an unsigned integer")
		}
		if n >= uint64(*d.shared) {
			return nil, ir.NewMalformedRecord(d.index, "shared reference %d has no shareable value", n)
		}
		return ir.SharedRef(n), nil

	case tagTimestamp:
		var tag cbor.RawTag
		if err := d.dm.Unmarshal(raw, &tag); err != nil {
			return nil, ir.NewDecodeFailed(d.index, "decode tag", err)
		}
		if ts, ok := d.timestamp(tag.Content); ok {
			return ts, nil
		}
	}
	return d.opaque(raw)
}

// opaque keeps raw as is. Tag 28 items inside it still take their place
// in the trace-wide count so later shared references line up.
func (d *valueDecoder) opaque(raw cbor.RawMessage) (ir.Value, error) {
	n, err := countTag(raw, tagShareable)
	if err != nil {
		return nil, ir.NewDecodeFailed(d.index, "decode tag", err)
	}
	*d.shared += n
	return ir.Opaque{Raw: clone(raw)}, nil
}

// timestamp recognizes {1: sec, -9: nsec} with exactly two entries; a
// tag 28 around a component is looked through. Anything else under tag
// 1001 stays opaque and leaves the shareable count untouched.
func (d *valueDecoder) timestamp(content cbor.RawMessage) (ts ir.Timestamp, ok bool) {
	shared := *d.shared
	defer func() {
		if !ok {
			*d.shared = shared
		}
	}()

	h, err := readHead(content)
	if err != nil || h.major != majorMap {
		return ir.Timestamp{}, false
	}
	pairs, err := d.rawPairs(content)
	if err != nil || len(pairs) != 2 {
		return ir.Timestamp{}, false
	}

	var haveSec, haveNsec bool
	for _, p := range pairs {
		k, err := d.value(p[0])
		if err != nil {
			return ir.Timestamp{}, false
		}
		v, err := d.value(p[1])
		if err != nil {
			return ir.Timestamp{}, false
		}
		if s, isShared := v.(ir.Shareable); isShared {
			v = s.Value
		}
		n, isInt := v.(ir.Int)
		if !isInt {
			return ir.Timestamp{}, false
		}
		switch k {
		case ir.Int(1):
			ts.Sec, haveSec = int64(n), true
		case ir.Int(-9):
			ts.Nsec, haveNsec = int64(n), true
		}
	}
	return ts, haveSec && haveNsec
}

func (d *valueDecoder) simple(h head, raw cbor.RawMessage) (ir.Value, error) {
	switch {
	case h.arg == 20 && h.size == 1:
		return ir.Bool(false), nil
	case h.arg == 21 && h.size == 1:
		return ir.Bool(true), nil
	case h.arg == 22 && h.size == 1:
		return ir.Null{}, nil
	case h.size > 1 && raw[0] >= 0xf9 && raw[0] <= 0xfb:
		var f float64
		if err := d.dm.Unmarshal(raw, &f); err != nil {
			return nil, ir.NewDecodeFailed(d.index, "decode float", err)
		}
		return ir.Float(f), nil
	default:
		// undefined and unassigned simple values
		return ir.Opaque{Raw: clone(raw)}, nil
	}
}

// rawPairs splits a map item into its raw key/value items, keeping wire
// order. Decoding into a Go map would lose that order.
func (d *valueDecoder) rawPairs(raw cbor.RawMessage) ([][2]cbor.RawMessage, error) {
	h, err := readHead(raw)
	if err != nil {
		return nil, ir.NewDecodeFailed(d.index, "decode map", err)
	}
	if h.major != majorMap {
		return nil, ir.NewDecodeFailed(d.index, "decode map", fmt.Errorf("major type %d is not a map", h.major))
	}

	rest := []byte(raw[h.size:])
	var pairs [][2]cbor.RawMessage
	for n := uint64(0); h.indefinite || n < h.arg; n++ {
		if h.indefinite && len(rest) > 0 && rest[0] == breakByte {
			break
		}
		var p [2]cbor.RawMessage
		for i := range p {
			rest, err = d.dm.UnmarshalFirst(rest, &p[i])
			if err != nil {
				return nil, ir.NewDecodeFailed(d.index, "decode map entry", err)
			}
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// describe names the CBOR type of raw for error messages.
func (d *valueDecoder) describe(raw cbor.RawMessage) string {
	h, err := readHead(raw)
	if err != nil {
		return "truncated item"
	}
	switch h.major {
	case majorUint, majorNegInt:
		return "integer"
	case majorBytes:
		return "byte string"
	case majorText:
		return "text string"
	case majorArray:
		return "array"
	case majorMap:
		return "map"
	case majorTag:
		return fmt.Sprintf("tag %d", h.arg)
	default:
		if len(raw) == 1 && raw[0] == nullByte {
			return "null"
		}
		return "simple value"
	}
}

func clone(raw cbor.RawMessage) []byte {
	return append([]byte(nil), raw...)
}
