package ir

// Record is one mutation record of a trace. Records are applied strictly
// in stream order; Index is the zero-based position in the outer array.
type Record interface {
	RecordIndex() int
	record()
}

// Attach adds every entry of Children to the container identified by
// Parent. A nil Parent addresses the root collection.
//
// Children is an Array (entries attach positionally) or a Map (each value
// is set under its key). Entries may be Definitions.
type Attach struct {
	Index    int
	Parent   *ObjectID
	Children Value
}

func (Attach) record() {}

// RecordIndex implements Record.
func (a Attach) RecordIndex() int { return a.Index }

// IsRoot reports whether the record targets the root collection.
func (a Attach) IsRoot() bool { return a.Parent == nil }

// Emit declares ID complete. If the value is an unattached root it is
// written out; the ID is retired either way.
type Emit struct {
	Index int
	ID    ObjectID
}

func (Emit) record() {}

// RecordIndex implements Record.
func (e Emit) RecordIndex() int { return e.Index }

// Parent returns a pointer to id for use as Attach.Parent.
func Parent(id ObjectID) *ObjectID {
	return &id
}
