package eligibility

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed eligibility check repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const checkCols = `id, org_id, partner_id, claim_id,
	subscriber, service_type_code, service_date,
	active, plan_name, coverage_start, coverage_end, benefits, reject_reasons,
	raw_request, raw_response, failure, checked_at, created_at`

func scanCheck(row pgx.Row) (*Check, error) {
	var c Check
	err := row.Scan(&c.ID, &c.OrgID, &c.PartnerID, &c.ClaimID,
		&c.Subscriber, &c.ServiceTypeCode, &c.ServiceDate,
		&c.Active, &c.PlanName, &c.CoverageStart, &c.CoverageEnd, &c.Benefits, &c.RejectReasons,
		&c.RawRequest, &c.RawResponse, &c.Failure, &c.CheckedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Check) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO eligibility_check (id, org_id, partner_id, claim_id,
			subscriber, service_type_code, service_date,
			active, plan_name, coverage_start, coverage_end, benefits, reject_reasons,
			raw_request, raw_response, failure, checked_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		c.ID, c.OrgID, c.PartnerID, c.ClaimID,
		c.Subscriber, c.ServiceTypeCode, c.ServiceDate,
		c.Active, c.PlanName, c.CoverageStart, c.CoverageEnd, c.Benefits, c.RejectReasons,
		c.RawRequest, c.RawResponse, c.Failure, c.CheckedAt, c.CreatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Check, error) {
	return scanCheck(r.pool.QueryRow(ctx, `SELECT `+checkCols+` FROM eligibility_check WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*Check, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM eligibility_check WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+checkCols+` FROM eligibility_check
		WHERE org_id = $1 ORDER BY checked_at DESC LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectChecks(rows)
	return items, total, err
}

func (r *repoPG) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*Check, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+checkCols+` FROM eligibility_check
		WHERE claim_id = $1 ORDER BY checked_at DESC`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChecks(rows)
}

func collectChecks(rows pgx.Rows) ([]*Check, error) {
	var items []*Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
