// Package graph materializes the value graph described by mutation records.
//
// ARCHITECTURE:
//
// Every payload value is copied into an Arena of index-addressed nodes.
// Structural identity is the NodeID: two references to one ObjectID reach
// the same node, and a container attached into itself forms a cycle
// through indices rather than pointers.
//
// Record Processing:
//  1. Attach resolves the parent (or the root sentinel for a null parent)
//  2. Each entry is materialized; definitions are registered first
//  3. The entry is appended, marked as a root, or set by key, according
//     to the parent's Kind
//  4. Emit resolves the id, hands a pending root to the Sink, and retires
//     the id
//
// Memory:
// Retiring an id does not free anything by itself. Builder runs a
// mark-sweep Collect from the live ids whenever the arena has doubled,
// which bounds memory by the live object set.
package graph
