package eligibility

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists eligibility checks.
type Repository interface {
	Create(ctx context.Context, c *Check) error
	GetByID(ctx context.Context, id uuid.UUID) (*Check, error)
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*Check, int, error)
	// ListByClaim returns the checks run for one claim, newest first.
	ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*Check, error)
}
