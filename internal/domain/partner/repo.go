package partner

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no partner matches the lookup.
var ErrNotFound = errors.New("partner: not found")

// Repository persists trading partner configuration.
type Repository interface {
	Create(ctx context.Context, c *Config) error
	GetByID(ctx context.Context, id uuid.UUID) (*Config, error)
	GetByOrg(ctx context.Context, orgID uuid.UUID) (*Config, error)
	Update(ctx context.Context, c *Config) error
	List(ctx context.Context, limit, offset int) ([]*Config, int, error)
}

// Sequence allocates control numbers for a trading partner. Allocations must
// be unique and monotonically increasing per partner across the partner's
// whole transmission history: duplicate control numbers cause payer rejection.
// Next reserves count consecutive transaction control numbers starting at
// ControlNumbers.Transaction, so a batch can number each ST without further
// round trips.
type Sequence interface {
	Next(ctx context.Context, partnerID uuid.UUID, count int) (ControlNumbers, error)
}
