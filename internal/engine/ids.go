package engine

import (
	"github.com/google/uuid"
)

// IDGenerator generates analysis IDs.
// Implemented by UUIDv7Generator (production) and
// testutil.SequentialIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 analysis IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so IDs sort
// roughly by creation time. Ordering still uses seq; the timestamp only
// helps when reading the database by hand.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
