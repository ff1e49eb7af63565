package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/hypetrace/internal/testutil"
)

// createTestStore opens a fresh archive with deterministic ids and times.
func createTestStore(t *testing.T) (*Store, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock(testutil.DefaultClockBase)
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithRunIDGenerator(testutil.NewSequenceRunIDGenerator("")),
		WithClock(clock),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}
