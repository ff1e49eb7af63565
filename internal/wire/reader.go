package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/hypetrace/internal/ir"
)

// Decoder limits. The outer array is framed by Reader itself, so these
// only bound a single record.
const (
	maxNestedLevels  = 1024
	maxArrayElements = 2147483647
	maxMapPairs      = 2147483647
)

// Reader yields the records of a binary trace one at a time.
//
// A trace is a single CBOR array (definite or indefinite length) of
// records, optionally preceded by the self-describe tag 55799. Reader
// frames the outer array itself and reads exactly one record from the
// input per call to Next, so memory stays bounded by the largest record.
type Reader struct {
	dm   cbor.DecMode
	src  *itemScanner
	done bool

	// remaining counts records left in a definite-length outer array;
	// -1 marks an indefinite-length array terminated by a break.
	remaining int64
	index     int
	shared    int // tag 28 occurrences so far
	trailing  int64
}

// NewReader reads the trace header from r and prepares to iterate the
// records. r is read incrementally; nothing past the current record is
// consumed.
func NewReader(r io.Reader) (*Reader, error) {
	dm, err := newDecMode()
	if err != nil {
		return nil, err
	}

	src := newItemScanner(r)
	for {
		h, err := src.peekHead()
		if err != nil {
			return nil, ir.NewDecodeFailed(-1, "trace header", err)
		}
		if h.major == majorTag && h.arg == tagSelfDescribe {
			src.skip(h.size)
			continue
		}
		if h.major != majorArray {
			return nil, ir.NewDecodeFailed(-1, "trace header",
				fmt.Errorf("expected array of records, got major type %d", h.major))
		}
		src.skip(h.size)

		rd := &Reader{dm: dm, src: src, remaining: -1}
		if !h.indefinite {
			if h.arg > uint64(maxArrayElements) {
				return nil, ir.NewDecodeFailed(-1, "trace header",
					fmt.Errorf("record count %d exceeds limit", h.arg))
			}
			rd.remaining = int64(h.arg)
		}
		return rd, nil
	}
}

// NewReaderBytes prepares to iterate the trace held in data.
func NewReaderBytes(data []byte) (*Reader, error) {
	return NewReader(bytes.NewReader(data))
}

func newDecMode() (cbor.DecMode, error) {
	dm, err := cbor.DecOptions{
		MaxNestedLevels:  maxNestedLevels,
		MaxArrayElements: maxArrayElements,
		MaxMapPairs:      maxMapPairs,
		IntDec:           cbor.IntDecConvertSignedOrBigInt,
		BigIntDec:        cbor.BigIntDecodePointer,
		UTF8:             cbor.UTF8RejectInvalid,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder options: %w", err)
	}
	return dm, nil
}

// Next returns the next record, or io.EOF after the last one.
// Any other error is a *ir.TraceError and ends iteration.
func (r *Reader) Next() (ir.Record, error) {
	if r.done {
		return nil, io.EOF
	}

	switch {
	case r.remaining == 0:
		return nil, r.finish()
	case r.remaining < 0:
		brk, err := r.src.atBreak()
		if err != nil {
			r.done = true
			return nil, ir.NewDecodeFailed(r.index, "decode record", err)
		}
		if brk {
			r.src.skip(1)
			return nil, r.finish()
		}
	}

	raw, err := r.src.item()
	if err != nil {
		r.done = true
		return nil, ir.NewDecodeFailed(r.index, "decode record", err)
	}
	if r.remaining > 0 {
		r.remaining--
	}

	index := r.index
	r.index++
	rec, err := decodeRecord(r.dm, index, raw, &r.shared)
	if err != nil {
		r.done = true
		return nil, err
	}
	return rec, nil
}

// finish counts and discards whatever follows the outer array.
func (r *Reader) finish() error {
	r.done = true
	n, err := r.src.drain()
	r.trailing = n
	if err != nil {
		return ir.NewDecodeFailed(r.index, "read trailing bytes", err)
	}
	return io.EOF
}

// Records returns the number of records read so far.
func (r *Reader) Records() int {
	return r.index
}

// Trailing returns the number of bytes found after the outer array.
// It is only meaningful once Next has returned io.EOF.
func (r *Reader) Trailing() int {
	return int(r.trailing)
}

// ReadAll decodes every record of the trace in data.
func ReadAll(data []byte) ([]ir.Record, error) {
	r, err := NewReaderBytes(data)
	if err != nil {
		return nil, err
	}
	records := []ir.Record{}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// decodeRecord classifies a record by its element count.
func decodeRecord(dm cbor.DecMode, index int, raw cbor.RawMessage, shared *int) (ir.Record, error) {
	h, err := readHead(raw)
	if err != nil {
		return nil, ir.NewDecodeFailed(index, "decode record", err)
	}
	if h.major != majorArray {
		return nil, ir.NewMalformedRecord(index, "record is not an array (major type %d)", h.major)
	}

	var elems []cbor.RawMessage
	if err := dm.Unmarshal(raw, &elems); err != nil {
		return nil, ir.NewDecodeFailed(index, "decode record", err)
	}

	d := &valueDecoder{dm: dm, index: index, shared: shared}
	switch len(elems) {
	case 1:
		id, err := d.objectRef(elems[0])
		if err != nil {
			return nil, err
		}
		return ir.Emit{Index: index, ID: id}, nil

	case 2:
		rec := ir.Attach{Index: index}
		if !bytes.Equal(elems[0], []byte{nullByte}) {
			id, err := d.objectRef(elems[0])
			if err != nil {
				return nil, err
			}
			rec.Parent = &id
		}
		children, err := d.payload(elems[1])
		if err != nil {
			return nil, err
		}
		rec.Children = children
		return rec, nil

	default:
		return nil, ir.NewMalformedRecord(index, "record has %d elements, want 1 or 2", len(elems))
	}
}
