package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CBOR major types.
const (
	majorUint   = 0
	majorNegInt = 1
	majorBytes  = 2
	majorText   = 3
	majorArray  = 4
	majorMap    = 5
	majorTag    = 6
	majorSimple = 7
)

const (
	tagPositiveBignum = 2
	tagNegativeBignum = 3
	tagShareable      = 28
	tagSharedRef      = 29
	tagObjectRef      = 39
	tagTimestamp      = 1001
	tagSelfDescribe   = 55799

	breakByte = 0xff
	nullByte  = 0xf6
)

// head is a decoded CBOR initial byte plus argument.
type head struct {
	major      byte
	arg        uint64
	indefinite bool
	size       int // bytes consumed by the head
}

// readHead parses the head of the data item at the start of data. It does
// not validate that the rest of the item is present.
func readHead(data []byte) (head, error) {
	if len(data) == 0 {
		return head{}, io.ErrUnexpectedEOF
	}
	h := head{major: data[0] >> 5}
	ai := data[0] & 0x1f
	switch {
	case ai < 24:
		h.arg, h.size = uint64(ai), 1
	case ai == 24:
		if len(data) < 2 {
			return head{}, io.ErrUnexpectedEOF
		}
		h.arg, h.size = uint64(data[1]), 2
	case ai == 25:
		if len(data) < 3 {
			return head{}, io.ErrUnexpectedEOF
		}
		h.arg, h.size = uint64(binary.BigEndian.Uint16(data[1:])), 3
	case ai == 26:
		if len(data) < 5 {
			return head{}, io.ErrUnexpectedEOF
		}
		h.arg, h.size = uint64(binary.BigEndian.Uint32(data[1:])), 5
	case ai == 27:
		if len(data) < 9 {
			return head{}, io.ErrUnexpectedEOF
		}
		h.arg, h.size = binary.BigEndian.Uint64(data[1:]), 9
	case ai == 31:
		switch h.major {
		case majorBytes, majorText, majorArray, majorMap, majorSimple:
			h.indefinite, h.size = true, 1
		default:
			return head{}, fmt.Errorf("indefinite length not allowed for major type %d", h.major)
		}
	default:
		return head{}, fmt.Errorf("reserved additional information %d", ai)
	}
	return h, nil
}

// isTag reports whether data starts with tag number n.
func isTag(data []byte, n uint64) bool {
	h, err := readHead(data)
	return err == nil && h.major == majorTag && h.arg == n
}
