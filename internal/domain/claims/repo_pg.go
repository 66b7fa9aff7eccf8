package claims

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbill/edi-gateway/internal/domain/partner"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed claim repository. Structured fields
// (patient, provider, service lines, issues) live in JSONB columns; lifecycle
// and matching fields are first-class columns so status transitions and
// acknowledgment lookups stay indexable.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const claimCols = `id, org_id, partner_id, status,
	patient, provider, diagnosis_codes, service_lines,
	total_charge_cents, place_of_service,
	channel, interchange_control, group_control, transaction_control,
	file_name, edi_payload,
	payer_claim_id, paid_cents, remittance_id, issues,
	submitted_at, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	var channel *string
	err := row.Scan(&c.ID, &c.OrgID, &c.PartnerID, &c.Status,
		&c.Patient, &c.Provider, &c.DiagnosisCodes, &c.ServiceLines,
		&c.TotalChargeCents, &c.PlaceOfService,
		&channel, &c.InterchangeControl, &c.GroupControl, &c.TransactionControl,
		&c.FileName, &c.EDIPayload,
		&c.PayerClaimID, &c.PaidCents, &c.RemittanceID, &c.Issues,
		&c.SubmittedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if channel != nil {
		c.Channel = partner.Channel(*channel)
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Claim) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO claim (id, org_id, partner_id, status,
			patient, provider, diagnosis_codes, service_lines,
			total_charge_cents, place_of_service, issues, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.OrgID, c.PartnerID, c.Status,
		c.Patient, c.Provider, c.DiagnosisCodes, c.ServiceLines,
		c.TotalChargeCents, c.PlaceOfService, c.Issues, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return scanClaim(r.pool.QueryRow(ctx, `SELECT `+claimCols+` FROM claim WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Claim) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE claim SET
			patient=$2, provider=$3, diagnosis_codes=$4, service_lines=$5,
			total_charge_cents=$6, place_of_service=$7,
			channel=NULLIF($8,''), interchange_control=$9, group_control=$10, transaction_control=$11,
			file_name=$12, edi_payload=$13,
			payer_claim_id=$14, paid_cents=$15, remittance_id=$16, issues=$17,
			submitted_at=$18, updated_at=$19
		WHERE id = $1`,
		c.ID,
		c.Patient, c.Provider, c.DiagnosisCodes, c.ServiceLines,
		c.TotalChargeCents, c.PlaceOfService,
		string(c.Channel), c.InterchangeControl, c.GroupControl, c.TransactionControl,
		c.FileName, c.EDIPayload,
		c.PayerClaimID, c.PaidCents, c.RemittanceID, c.Issues,
		c.SubmittedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus is the optimistic transition write: the WHERE clause pins the
// expected pre-transition status, so a concurrent transition makes this a
// zero-row update instead of a lost one.
func (r *repoPG) UpdateStatus(ctx context.Context, c *Claim, expected Status) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE claim SET status=$3,
			channel=NULLIF($4,''), interchange_control=$5, group_control=$6, transaction_control=$7,
			file_name=$8, edi_payload=$9,
			payer_claim_id=$10, paid_cents=$11, remittance_id=$12, issues=$13,
			submitted_at=$14, updated_at=$15
		WHERE id = $1 AND status = $2`,
		c.ID, expected, c.Status,
		string(c.Channel), c.InterchangeControl, c.GroupControl, c.TransactionControl,
		c.FileName, c.EDIPayload,
		c.PayerClaimID, c.PaidCents, c.RemittanceID, c.Issues,
		c.SubmittedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, c.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, orgID uuid.UUID, status Status, limit, offset int) ([]*Claim, int, error) {
	filter := ` WHERE org_id = $1 AND ($2 = '' OR status = $2)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM claim`+filter, orgID, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+claimCols+` FROM claim`+filter+
		` ORDER BY created_at DESC LIMIT $3 OFFSET $4`, orgID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectClaims(rows)
	return items, total, err
}

func (r *repoPG) ListByGroupControl(ctx context.Context, partnerID uuid.UUID, groupControl int64) ([]*Claim, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+claimCols+` FROM claim
		WHERE partner_id = $1 AND group_control = $2`, partnerID, groupControl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

func (r *repoPG) ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]*Claim, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+claimCols+` FROM claim
		WHERE status = $1 AND submitted_at < $2`, StatusSubmitted, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

func collectClaims(rows pgx.Rows) ([]*Claim, error) {
	var items []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
