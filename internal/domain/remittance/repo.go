package remittance

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists ingested remittances.
type Repository interface {
	Create(ctx context.Context, r *Remittance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Remittance, error)
	// GetByChecksum finds a previously ingested file, the idempotency check
	// for redelivered 835s.
	GetByChecksum(ctx context.Context, checksum string) (*Remittance, error)
	List(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]*Remittance, int, error)
}
