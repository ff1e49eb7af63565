package store

import "github.com/google/uuid"

// UUIDv7Generator generates time-sortable UUIDv7 run ids, so listings
// sorted by id follow creation order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// It panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
