package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hypetrace/internal/ir"
)

func TestCollect_FreesRetiredValues(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder(rec, WithCollectThreshold(0))

	err := applyAll(t, b,
		attach(0, nil, ir.Array{def(1, ir.Array{ir.Int(1), ir.Int(2)})}),
		emit(1, 1),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Arena().Live())

	freed := b.Collect()
	assert.Equal(t, 3, freed)
	assert.Equal(t, 0, b.Arena().Live())

	stats := b.Stats()
	assert.Equal(t, 1, stats.Collections)
	assert.Equal(t, 3, stats.Freed)
}

func TestCollect_KeepsValuesReachableFromLiveIDs(t *testing.T) {
	b := NewBuilder(nil, WithCollectThreshold(0))

	err := applyAll(t, b,
		attach(0, nil, ir.Array{def(1, ir.Array{})}),
		attach(1, pid(1), ir.Array{def(2, ir.Map{}), ir.String("kept")}),
		emit(2, 2),
	)
	require.NoError(t, err)

	assert.Equal(t, 0, b.Collect())
	assert.Equal(t, 3, b.Arena().Live())
}

func TestCollect_DropsUnreachableRoots(t *testing.T) {
	b := NewBuilder(nil, WithCollectThreshold(0))

	require.NoError(t, applyAll(t, b, attach(0, nil, ir.Array{ir.Int(1), ir.Int(2)})))
	assert.Equal(t, 2, b.Roots().Len())

	assert.Equal(t, 2, b.Collect())
	assert.Equal(t, 0, b.Roots().Len())
}

func TestCollect_KeepsShareableValues(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder(rec, WithCollectThreshold(0))

	err := applyAll(t, b,
		attach(0, nil, ir.Array{def(1, ir.Shareable{Index: 0, Value: ir.Array{ir.Int(1)}})}),
		emit(1, 1),
	)
	require.NoError(t, err)

	assert.Equal(t, 0, b.Collect())
	require.NoError(t, applyAll(t, b,
		attach(2, nil, ir.Array{def(2, ir.Array{ir.SharedRef(0)})}),
		emit(3, 2),
	))

	require.Len(t, rec.nodes, 2)
	assert.Equal(t, rec.nodes[0], b.Arena().Node(rec.nodes[1]).Items[0])
}

func TestCollect_ReusesFreedSlots(t *testing.T) {
	b := NewBuilder(nil, WithCollectThreshold(0))

	require.NoError(t, applyAll(t, b,
		attach(0, nil, ir.Array{def(1, ir.Int(1))}),
		emit(1, 1),
	))
	b.Collect()

	require.NoError(t, applyAll(t, b, attach(2, nil, ir.Array{def(1, ir.Int(2))})))
	assert.Equal(t, 1, b.Arena().Live())
	assert.Equal(t, 2, b.Arena().Allocated())

	node, err := b.Registry().Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(2), b.Arena().Node(node).Value)
}

func TestCollect_BoundsArenaOnLongTraces(t *testing.T) {
	b := NewBuilder(nil, WithCollectThreshold(64))

	index := 0
	for i := 0; i < 10000; i++ {
		id := ir.ObjectID(i)
		require.NoError(t, b.Apply(attach(index, nil, ir.Array{def(id, ir.Array{ir.Int(int64(i)), ir.String("x")})})))
		index++
		require.NoError(t, b.Apply(emit(index, id)))
		index++
	}

	stats := b.Stats()
	assert.Greater(t, stats.Collections, 0)
	assert.LessOrEqual(t, stats.PeakNodes, 64+3)
	assert.Equal(t, 10000, stats.Emitted)
	assert.Equal(t, 1, stats.PeakLiveIDs)
}
