package testutil

import "strconv"

// FixedRunIDGenerator generates the same run id every time.
//
// This enables deterministic archive contents and golden snapshot
// comparison. The same trace archived with the same FixedRunIDGenerator
// produces byte-identical run listings.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a new fixed run id generator.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements store.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// SequenceRunIDGenerator returns "run-1", "run-2", ... in order.
// It is not safe for concurrent use.
type SequenceRunIDGenerator struct {
	prefix string
	n      int
}

// NewSequenceRunIDGenerator creates a generator using prefix (default "run").
func NewSequenceRunIDGenerator(prefix string) *SequenceRunIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SequenceRunIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceRunIDGenerator) Generate() string {
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}
