package hawk

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so stored timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// StorageTime returns c.Now() in UTC truncated to the millisecond precision
// that storages keep.
func StorageTime(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Millisecond)
}

// IDGenerator abstracts UUID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
