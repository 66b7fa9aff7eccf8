package partner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed partner repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const configCols = `id, org_id, name, channel,
	sender_qualifier, sender_id, receiver_qualifier, receiver_id,
	payer_id, payer_name, usage_indicator,
	element_separator, component_separator, segment_terminator,
	soap_url, soap_username, soap_password,
	sftp_host, sftp_port, sftp_username, sftp_password, sftp_outbound_dir, sftp_inbound_dir,
	clearinghouse_url, clearinghouse_token_url, clearinghouse_client_id, clearinghouse_secret,
	created_at, updated_at`

func scanConfig(row pgx.Row) (*Config, error) {
	var c Config
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Channel,
		&c.SenderQualifier, &c.SenderID, &c.ReceiverQualifier, &c.ReceiverID,
		&c.PayerID, &c.PayerName, &c.UsageIndicator,
		&c.ElementSeparator, &c.ComponentSeparator, &c.SegmentTerminator,
		&c.SOAPURL, &c.SOAPUsername, &c.SOAPPassword,
		&c.SFTPHost, &c.SFTPPort, &c.SFTPUsername, &c.SFTPPassword, &c.SFTPOutboundDir, &c.SFTPInboundDir,
		&c.ClearinghouseURL, &c.ClearinghouseTokenURL, &c.ClearinghouseClientID, &c.ClearinghouseSecret,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Config) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trading_partner (id, org_id, name, channel,
			sender_qualifier, sender_id, receiver_qualifier, receiver_id,
			payer_id, payer_name, usage_indicator,
			element_separator, component_separator, segment_terminator,
			soap_url, soap_username, soap_password,
			sftp_host, sftp_port, sftp_username, sftp_password, sftp_outbound_dir, sftp_inbound_dir,
			clearinghouse_url, clearinghouse_token_url, clearinghouse_client_id, clearinghouse_secret)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`,
		c.ID, c.OrgID, c.Name, c.Channel,
		c.SenderQualifier, c.SenderID, c.ReceiverQualifier, c.ReceiverID,
		c.PayerID, c.PayerName, c.UsageIndicator,
		c.ElementSeparator, c.ComponentSeparator, c.SegmentTerminator,
		c.SOAPURL, c.SOAPUsername, c.SOAPPassword,
		c.SFTPHost, c.SFTPPort, c.SFTPUsername, c.SFTPPassword, c.SFTPOutboundDir, c.SFTPInboundDir,
		c.ClearinghouseURL, c.ClearinghouseTokenURL, c.ClearinghouseClientID, c.ClearinghouseSecret)
	if err != nil {
		return err
	}
	// Each partner owns exactly one control number sequence row.
	_, err = r.pool.Exec(ctx, `
		INSERT INTO control_number_sequence (partner_id, interchange, grp, transaction)
		VALUES ($1, 0, 0, 0) ON CONFLICT (partner_id) DO NOTHING`, c.ID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Config, error) {
	return scanConfig(r.pool.QueryRow(ctx, `SELECT `+configCols+` FROM trading_partner WHERE id = $1`, id))
}

func (r *repoPG) GetByOrg(ctx context.Context, orgID uuid.UUID) (*Config, error) {
	return scanConfig(r.pool.QueryRow(ctx, `SELECT `+configCols+` FROM trading_partner WHERE org_id = $1`, orgID))
}

func (r *repoPG) Update(ctx context.Context, c *Config) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE trading_partner SET name=$2, channel=$3,
			sender_qualifier=$4, sender_id=$5, receiver_qualifier=$6, receiver_id=$7,
			payer_id=$8, payer_name=$9, usage_indicator=$10,
			element_separator=$11, component_separator=$12, segment_terminator=$13,
			soap_url=$14, soap_username=$15, soap_password=$16,
			sftp_host=$17, sftp_port=$18, sftp_username=$19, sftp_password=$20,
			sftp_outbound_dir=$21, sftp_inbound_dir=$22,
			clearinghouse_url=$23, clearinghouse_token_url=$24, clearinghouse_client_id=$25, clearinghouse_secret=$26,
			updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Channel,
		c.SenderQualifier, c.SenderID, c.ReceiverQualifier, c.ReceiverID,
		c.PayerID, c.PayerName, c.UsageIndicator,
		c.ElementSeparator, c.ComponentSeparator, c.SegmentTerminator,
		c.SOAPURL, c.SOAPUsername, c.SOAPPassword,
		c.SFTPHost, c.SFTPPort, c.SFTPUsername, c.SFTPPassword,
		c.SFTPOutboundDir, c.SFTPInboundDir,
		c.ClearinghouseURL, c.ClearinghouseTokenURL, c.ClearinghouseClientID, c.ClearinghouseSecret)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Config, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trading_partner`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+configCols+` FROM trading_partner ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

// sequencePG allocates control numbers from the control_number_sequence row
// for a partner. The single-row UPDATE ... RETURNING makes concurrent
// allocations serialize inside Postgres, so two submissions can never draw the
// same number.
type sequencePG struct{ pool *pgxpool.Pool }

// NewSequencePG returns a Postgres-backed control number sequence.
func NewSequencePG(pool *pgxpool.Pool) Sequence {
	return &sequencePG{pool: pool}
}

func (s *sequencePG) Next(ctx context.Context, partnerID uuid.UUID, count int) (ControlNumbers, error) {
	if count < 1 {
		return ControlNumbers{}, fmt.Errorf("partner: control number count must be positive, got %d", count)
	}
	var c ControlNumbers
	var lastTransaction int64
	err := s.pool.QueryRow(ctx, `
		UPDATE control_number_sequence
		SET interchange = interchange + 1,
		    grp = grp + 1,
		    transaction = transaction + $2
		WHERE partner_id = $1
		RETURNING interchange, grp, transaction`,
		partnerID, count).Scan(&c.Interchange, &c.Group, &lastTransaction)
	if err != nil {
		return ControlNumbers{}, fmt.Errorf("partner: allocate control numbers: %w", err)
	}
	c.Transaction = lastTransaction - int64(count) + 1
	return c, nil
}
