package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hypetrace/internal/ir"
)

func TestRegistry_DefineResolveRetire(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Define(1, 10))
	node, err := r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, NodeID(10), node)

	r.Retire(1)
	_, err = r.Resolve(1)
	assert.True(t, ir.IsUnknownReference(err))
}

func TestRegistry_DuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define(7, 1))

	err := r.Define(7, 2)
	require.Error(t, err)
	assert.True(t, ir.IsDuplicateID(err))

	var te *ir.TraceError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ir.ObjectID(7), te.ObjectID)

	// Original binding is untouched.
	node, err := r.Resolve(7)
	require.NoError(t, err)
	assert.Equal(t, NodeID(1), node)
}

func TestRegistry_RetireAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Retire(42)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RedefineAfterRetire(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define(1, 1))
	r.Retire(1)
	require.NoError(t, r.Define(1, 2))

	node, err := r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, NodeID(2), node)
}

func TestRegistry_Peak(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define(1, 1))
	require.NoError(t, r.Define(2, 2))
	r.Retire(1)
	require.NoError(t, r.Define(3, 3))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, r.Peak())
}
