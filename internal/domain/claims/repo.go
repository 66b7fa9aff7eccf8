package claims

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists claims. UpdateStatus is the optimistic transition
// primitive: the update is rejected with ErrStatusConflict when the stored
// status no longer matches the expected pre-transition state.
type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	// Update persists non-lifecycle fields (payload, issues, linkage).
	Update(ctx context.Context, c *Claim) error
	// UpdateStatus persists the claim with its new status, guarded by the
	// expected previous status.
	UpdateStatus(ctx context.Context, c *Claim, expected Status) error
	List(ctx context.Context, orgID uuid.UUID, status Status, limit, offset int) ([]*Claim, int, error)
	// ListByGroupControl finds the claims submitted under one functional
	// group, for matching inbound 999 acknowledgments.
	ListByGroupControl(ctx context.Context, partnerID uuid.UUID, groupControl int64) ([]*Claim, error)
	// ListSubmittedBefore finds claims still awaiting acknowledgment whose
	// submission is older than the cutoff.
	ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]*Claim, error)
}
