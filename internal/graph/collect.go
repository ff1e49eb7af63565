package graph

import (
	"log/slog"

	"github.com/roach88/hypetrace/internal/ir"
)

// Collect frees every node that is not reachable from a live ObjectID or
// a shareable value.
//
// A node that neither reaches can never be resolved again: it cannot be
// emitted and nothing can be attached to it. Pending roots in that state
// are dropped from the RootTracker as well. Shareable values stay
// addressable for the rest of the trace and are never freed. Collect
// returns the number of nodes freed.
func (b *Builder) Collect() int {
	b.epoch++
	if b.epoch == 0 {
		for i := range b.arena.nodes {
			b.arena.nodes[i].mark = 0
		}
		b.epoch = 1
	}

	stack := make([]NodeID, 0, 64)
	b.registry.each(func(_ ir.ObjectID, node NodeID) {
		stack = append(stack, node)
	})
	for _, node := range b.shared {
		stack = append(stack, node)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &b.arena.nodes[id]
		if n.mark == b.epoch {
			continue
		}
		n.mark = b.epoch
		stack = append(stack, n.Items...)
		for _, e := range n.Entries {
			stack = append(stack, e.Value)
		}
	}

	freed, droppedRoots := 0, 0
	for i := 1; i < len(b.arena.nodes); i++ {
		n := &b.arena.nodes[i]
		if !n.live || n.mark == b.epoch {
			continue
		}
		if b.roots.UnmarkIfRoot(NodeID(i)) {
			droppedRoots++
		}
		b.arena.release(NodeID(i))
		freed++
	}

	b.stats.Collections++
	b.stats.Freed += freed
	b.nextCollect = max(b.threshold, 2*b.arena.Live())

	slog.Debug("collected value graph",
		"freed", freed,
		"live", b.arena.Live(),
		"dropped_roots", droppedRoots,
		"next", b.nextCollect,
	)
	return freed
}
