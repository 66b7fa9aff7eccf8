package remittance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed remittance repository. The checksum
// column carries a unique index, so even a racing double ingest of the same
// file collapses to one row.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const remitCols = `id, partner_id, file_name, checksum,
	payment_amount_cents, payment_method, payment_date, check_number, payer_name,
	claims, adjustments, created_at`

func scanRemittance(row pgx.Row) (*Remittance, error) {
	var r Remittance
	err := row.Scan(&r.ID, &r.PartnerID, &r.FileName, &r.Checksum,
		&r.PaymentAmountCents, &r.PaymentMethod, &r.PaymentDate, &r.CheckNumber, &r.PayerName,
		&r.Claims, &r.Adjustments, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *repoPG) Create(ctx context.Context, r *Remittance) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO remittance (id, partner_id, file_name, checksum,
			payment_amount_cents, payment_method, payment_date, check_number, payer_name,
			claims, adjustments, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.PartnerID, r.FileName, r.Checksum,
		r.PaymentAmountCents, r.PaymentMethod, r.PaymentDate, r.CheckNumber, r.PayerName,
		r.Claims, r.Adjustments, r.CreatedAt)
	return err
}

func (p *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Remittance, error) {
	return scanRemittance(p.pool.QueryRow(ctx, `SELECT `+remitCols+` FROM remittance WHERE id = $1`, id))
}

func (p *repoPG) GetByChecksum(ctx context.Context, checksum string) (*Remittance, error) {
	return scanRemittance(p.pool.QueryRow(ctx, `SELECT `+remitCols+` FROM remittance WHERE checksum = $1`, checksum))
}

func (p *repoPG) List(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]*Remittance, int, error) {
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM remittance WHERE partner_id = $1`, partnerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := p.pool.Query(ctx, `SELECT `+remitCols+` FROM remittance
		WHERE partner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, partnerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Remittance
	for rows.Next() {
		r, err := scanRemittance(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}
