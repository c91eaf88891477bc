package agent

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// TimeProvider interface for dependency injection
type TimeProvider interface {
	Now() time.Time
}

// IDGenerator interface for dependency injection
type IDGenerator interface {
	New() string
}

type defaultTimeProvider struct{}

func (defaultTimeProvider) Now() time.Time { return time.Now() }

// ulidGenerator issues lexically sortable turn IDs.
type ulidGenerator struct{}

func (ulidGenerator) New() string { return ulid.Make().String() }

// NewDefaultTimeProvider returns the wall clock
func NewDefaultTimeProvider() TimeProvider { return defaultTimeProvider{} }

// NewDefaultIDGenerator returns a ULID generator
func NewDefaultIDGenerator() IDGenerator { return ulidGenerator{} }
