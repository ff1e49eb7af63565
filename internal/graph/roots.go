package graph

import (
	"fmt"

	"github.com/roach88/hypetrace/internal/ir"
)

// RootTracker is the identity set of values attached to the root
// collection and not yet emitted.
type RootTracker struct {
	roots map[NodeID]struct{}
}

// NewRootTracker returns an empty tracker.
func NewRootTracker() *RootTracker {
	return &RootTracker{roots: make(map[NodeID]struct{})}
}

// MarkRoot records node as an unattached root. Marking the same node
// twice is a structural anomaly and reported as DUPLICATE_ROOT; the node
// stays marked.
func (t *RootTracker) MarkRoot(node NodeID) error {
	if _, ok := t.roots[node]; ok {
		return &ir.TraceError{
			Code:        ir.ErrCodeDuplicateRoot,
			Message:     fmt.Sprintf("node %d is already a root", node),
			RecordIndex: -1,
		}
	}
	t.roots[node] = struct{}{}
	return nil
}

// UnmarkIfRoot removes node and reports whether it was a root.
func (t *RootTracker) UnmarkIfRoot(node NodeID) bool {
	if _, ok := t.roots[node]; !ok {
		return false
	}
	delete(t.roots, node)
	return true
}

// IsRoot reports whether node is currently marked.
func (t *RootTracker) IsRoot(node NodeID) bool {
	_, ok := t.roots[node]
	return ok
}

// Len returns the number of pending roots.
func (t *RootTracker) Len() int {
	return len(t.roots)
}
