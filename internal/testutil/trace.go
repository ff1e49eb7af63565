package testutil

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// Ref returns an object reference (tag 39) for hand-built traces.
func Ref(id int64) cbor.Tag {
	return cbor.Tag{Number: 39, Content: id}
}

// Def returns a definition entry [39(id), v].
func Def(id int64, v any) []any {
	return []any{Ref(id), v}
}

// TS returns a timestamp (tag 1001) with sec and nsec.
func TS(sec, nsec int64) cbor.Tag {
	return cbor.Tag{Number: 1001, Content: map[int64]int64{1: sec, -9: nsec}}
}

// Attach returns an attach record. A nil parent addresses the root.
func Attach(parent any, children any) []any {
	return []any{parent, children}
}

// Emit returns an emit record.
func Emit(id int64) []any {
	return []any{Ref(id)}
}

// Trace encodes records as a definite-length CBOR array.
// Maps passed as children are encoded in core deterministic key order.
func Trace(t testing.TB, records ...[]any) []byte {
	t.Helper()
	if records == nil {
		records = [][]any{}
	}
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		t.Fatalf("cbor encoder options: %v", err)
	}
	data, err := em.Marshal(records)
	if err != nil {
		t.Fatalf("encode trace: %v", err)
	}
	return data
}

// Share marks v as shareable (tag 28).
func Share(v any) cbor.Tag {
	return cbor.Tag{Number: 28, Content: v}
}

// Shared refers to the n-th shareable value of the trace (tag 29).
func Shared(n uint64) cbor.Tag {
	return cbor.Tag{Number: 29, Content: n}
}
