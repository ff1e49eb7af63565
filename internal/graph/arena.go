package graph

import (
	"fmt"

	"github.com/roach88/hypetrace/internal/ir"
)

// NodeID is the stable index of a materialized value in an Arena.
// Structural identity is NodeID equality, never value equality.
type NodeID int32

// NoNode is the zero NodeID; no live node ever has it.
const NoNode NodeID = 0

// Kind is the container kind of a node, dispatched on at attach time.
type Kind uint8

const (
	// KindScalar is a leaf (null, bool, number, string, opaque CBOR).
	KindScalar Kind = iota + 1
	// KindSequence is an ordered list of child nodes.
	KindSequence
	// KindMapping is an ordered key/value container with unique keys.
	KindMapping
	// KindTimestamp is the (sec, nsec) leaf rendered as fixed-point.
	KindTimestamp
	// KindRoot is the sentinel parent addressed by a null parent ref.
	// It only exists as a dispatch target and never lives in the arena.
	KindRoot
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindTimestamp:
		return "timestamp"
	case KindRoot:
		return "root"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Entry is one key/value slot of a mapping node. Keys are plain values:
// they are never shared and never referenced by ObjectID.
type Entry struct {
	Key   ir.Value
	Value NodeID
}

// Node is a materialized value.
//
// Only the field matching Kind is meaningful:
//   - KindScalar, KindTimestamp: Value
//   - KindSequence: Items
//   - KindMapping: Entries (keyIndex maps canonical key to position)
type Node struct {
	Kind    Kind
	Value   ir.Value
	Items   []NodeID
	Entries []Entry

	keyIndex map[string]int
	mark     uint32
	live     bool
}

// IsContainer reports whether n can hold child nodes.
func (n *Node) IsContainer() bool {
	return n.Kind == KindSequence || n.Kind == KindMapping
}

// Len returns the number of children of a container node.
func (n *Node) Len() int {
	switch n.Kind {
	case KindSequence:
		return len(n.Items)
	case KindMapping:
		return len(n.Entries)
	default:
		return 0
	}
}

// Arena owns every materialized node. Slots are reused after a node is
// freed, so a NodeID must not be held across a collection unless the node
// is reachable from a live ObjectID.
//
// Arena is not safe for concurrent use; the builder and emitter run on a
// single goroutine.
type Arena struct {
	nodes []Node
	free  []NodeID
	live  int
	total int
}

// NewArena returns an empty arena. Slot 0 is reserved for NoNode.
func NewArena() *Arena {
	return &Arena{nodes: make([]Node, 1, 64)}
}

// Node returns the node at id. It panics on ids that were never allocated
// or have been freed.
func (a *Arena) Node(id NodeID) *Node {
	if id <= NoNode || int(id) >= len(a.nodes) || !a.nodes[id].live {
		panic(fmt.Sprintf("graph: invalid node id %d", id))
	}
	return &a.nodes[id]
}

// Live returns the number of allocated nodes.
func (a *Arena) Live() int {
	return a.live
}

// Allocated returns the number of allocations over the arena's lifetime.
func (a *Arena) Allocated() int {
	return a.total
}

func (a *Arena) alloc(kind Kind) NodeID {
	a.live++
	a.total++
	n := Node{Kind: kind, live: true}
	if len(a.free) > 0 {
		id := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		a.nodes[id] = n
		return id
	}
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

func (a *Arena) release(id NodeID) {
	a.nodes[id] = Node{}
	a.free = append(a.free, id)
	a.live--
}

// NewScalar allocates a leaf node holding v.
func (a *Arena) NewScalar(v ir.Value) NodeID {
	kind := KindScalar
	if _, ok := v.(ir.Timestamp); ok {
		kind = KindTimestamp
	}
	id := a.alloc(kind)
	a.nodes[id].Value = v
	return id
}

// NewSequence allocates an empty sequence node.
func (a *Arena) NewSequence() NodeID {
	return a.alloc(KindSequence)
}

// NewMapping allocates an empty mapping node.
func (a *Arena) NewMapping() NodeID {
	id := a.alloc(KindMapping)
	a.nodes[id].keyIndex = make(map[string]int)
	return id
}

// Append adds child to the end of sequence seq.
func (a *Arena) Append(seq, child NodeID) {
	n := a.Node(seq)
	n.Items = append(n.Items, child)
}

// Set stores value under key in mapping m. An existing key keeps its
// position and original key; only the value is replaced.
func (a *Arena) Set(m NodeID, key ir.Value, value NodeID) error {
	canon, err := ir.MarshalCanonical(key)
	if err != nil {
		return fmt.Errorf("mapping key: %w", err)
	}
	n := a.Node(m)
	if pos, ok := n.keyIndex[string(canon)]; ok {
		n.Entries[pos].Value = value
		return nil
	}
	n.keyIndex[string(canon)] = len(n.Entries)
	n.Entries = append(n.Entries, Entry{Key: key, Value: value})
	return nil
}

// Lookup returns the value stored under key in mapping m.
func (a *Arena) Lookup(m NodeID, key ir.Value) (NodeID, bool) {
	canon, err := ir.MarshalCanonical(key)
	if err != nil {
		return NoNode, false
	}
	n := a.Node(m)
	pos, ok := n.keyIndex[string(canon)]
	if !ok {
		return NoNode, false
	}
	return n.Entries[pos].Value, true
}
