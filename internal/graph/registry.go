package graph

import "github.com/roach88/hypetrace/internal/ir"

// Registry maps live ObjectIDs to the nodes they name.
//
// An id is live from its definition until it is retired by an Emit
// record. Retiring does not free the node: it may still be reachable
// through a container that is itself live.
type Registry struct {
	ids  map[ir.ObjectID]NodeID
	peak int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[ir.ObjectID]NodeID)}
}

// Define binds id to node. It fails with DUPLICATE_ID if id is live.
// The error carries record index -1; the builder fills in the record.
func (r *Registry) Define(id ir.ObjectID, node NodeID) error {
	if _, ok := r.ids[id]; ok {
		return ir.NewDuplicateID(-1, id)
	}
	r.ids[id] = node
	if len(r.ids) > r.peak {
		r.peak = len(r.ids)
	}
	return nil
}

// Resolve returns the node bound to id, failing with UNKNOWN_REFERENCE
// if id is not live.
func (r *Registry) Resolve(id ir.ObjectID) (NodeID, error) {
	node, ok := r.ids[id]
	if !ok {
		return NoNode, ir.NewUnknownReference(-1, id)
	}
	return node, nil
}

// Retire removes id. Retiring an id that is not live is a no-op.
func (r *Registry) Retire(id ir.ObjectID) {
	delete(r.ids, id)
}

// Len returns the number of live ids.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Peak returns the largest number of ids that were live at once.
func (r *Registry) Peak() int {
	return r.peak
}

// each calls fn for every live binding, in no particular order.
func (r *Registry) each(fn func(ir.ObjectID, NodeID)) {
	for id, node := range r.ids {
		fn(id, node)
	}
}
