package ir

import (
	"fmt"
	"math/big"
)

// ObjectID is the producer-assigned identifier of a shared value.
// It is valid from its definition until the Emit record that retires it.
type ObjectID int64

// Value is a sealed interface over decoded trace payloads.
// Only the types in this file implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null is the CBOR null (and undefined when decoded strictly).
type Null struct{}

func (Null) irValue() {}

// Bool is a CBOR boolean.
type Bool bool

func (Bool) irValue() {}

// Int is an integer that fits in int64.
type Int int64

func (Int) irValue() {}

// BigInt is an integer outside the int64 range (CBOR major type 1 overflow
// or tags 2/3). The decoder narrows in-range bignums to Int.
type BigInt struct {
	V *big.Int
}

func (BigInt) irValue() {}

// Float is a CBOR half, single or double precision float.
type Float float64

func (Float) irValue() {}

// String is a CBOR text string.
type String string

func (String) irValue() {}

// Opaque carries a CBOR data item this decoder passes through without
// interpreting it: byte strings, undefined, simple values and tags other
// than 1001, 2, 3 and 39. Raw holds the well-formed encoded item.
type Opaque struct {
	Raw []byte
}

func (Opaque) irValue() {}

// Array is a sequence payload.
type Array []Value

func (Array) irValue() {}

// Pair is one key/value entry of a Map.
type Pair struct {
	Key   Value
	Value Value
}

// Map is a key-value payload. Pair order is the order on the wire.
type Map []Pair

func (Map) irValue() {}

// Timestamp is tag 1001 carrying {1: sec, -9: nsec}.
type Timestamp struct {
	Sec  int64
	Nsec int64
}

func (Timestamp) irValue() {}

// Definition is an entry of an Attach payload that both introduces ID and
// contributes Value to the parent. It never appears nested inside a value.
type Definition struct {
	ID    ObjectID
	Value Value
}

func (Definition) irValue() {}

// Ref is a reference to a previously defined object (tag 39).
type Ref ObjectID

func (Ref) irValue() {}

// Shareable marks a value that later SharedRefs may point at (tag 28).
// Index counts tag 28 occurrences from the start of the trace, in
// encoding order, and is assigned before the content is decoded: a
// SharedRef inside Value to Index is a cycle.
type Shareable struct {
	Index int
	Value Value
}

func (Shareable) irValue() {}

// SharedRef points at the Shareable with the same Index (tag 29). Every
// SharedRef to one Shareable reaches the same materialized value.
type SharedRef int

func (SharedRef) irValue() {}

// NewBigInt returns Int when n fits in int64 and BigInt otherwise.
func NewBigInt(n *big.Int) Value {
	if n.IsInt64() {
		return Int(n.Int64())
	}
	return BigInt{V: new(big.Int).Set(n)}
}

// P is a shorthand for Pair.
// Example: Map{P(String("a"), Int(1))}
func P(key, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// TypeName returns a short human-readable name for v's variant.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "<nil>"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int, BigInt:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Opaque:
		return "opaque"
	case Array:
		return "sequence"
	case Map:
		return "mapping"
	case Timestamp:
		return "timestamp"
	case Definition:
		return "definition"
	case Ref:
		return "reference"
	case Shareable:
		return "shareable"
	case SharedRef:
		return "shared reference"
	default:
		return fmt.Sprintf("%T", v)
	}
}
