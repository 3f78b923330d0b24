package uid

import "github.com/google/uuid"

// UUID issues correlation ids as time-ordered UUIDv7 strings, so ids sort by
// arrival in log search.
type UUID struct {
	v4 func() string
}

// NewUUID returns a UUIDv7 generator.
func NewUUID() UUID {
	return UUID{v4: uuid.NewString}
}

// Generate returns a new id. If the v7 clock source fails a random v4 id is
// returned instead.
func (u UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	if u.v4 == nil {
		return uuid.NewString()
	}
	return u.v4()
}
