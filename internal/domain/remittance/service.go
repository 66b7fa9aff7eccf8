package remittance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// ClaimUpdater posts an adjudication outcome onto a claim. The claims
// orchestrator implements it; all claim status changes stay on its state
// machine.
type ClaimUpdater interface {
	ApplyRemittance(ctx context.Context, claimRef, payerClaimID string, paidCents int64, denied bool, remittanceID uuid.UUID) error
}

// Service ingests 835 files and posts payments to claims.
type Service struct {
	repo   Repository
	claims ClaimUpdater
	log    zerolog.Logger
}

// NewService wires the remittance service.
func NewService(repo Repository, claims ClaimUpdater, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		claims: claims,
		log:    log.With().Str("component", "remittance").Logger(),
	}
}

// ProcessFile ingests one raw 835 file. Ingestion is idempotent on the file's
// SHA-256: a redelivered file returns the already stored remittance without
// touching any claim again. Claim references that are not our claim IDs are
// recorded on the remittance but skipped for posting.
func (s *Service) ProcessFile(ctx context.Context, partnerID uuid.UUID, fileName string, payload []byte) (*Remittance, error) {
	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])

	if existing, err := s.repo.GetByChecksum(ctx, checksum); err == nil {
		s.log.Info().Str("file", fileName).Str("remittance_id", existing.ID.String()).Msg("remittance file already ingested")
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("remittance: checksum lookup: %w", err)
	}

	segs, _, err := x12.DecodeInterchange(string(payload))
	if err != nil {
		return nil, fmt.Errorf("remittance: decode %s: %w", fileName, err)
	}
	env, err := x12.Unwrap(segs)
	if err != nil {
		return nil, fmt.Errorf("remittance: unwrap %s: %w", fileName, err)
	}

	r := &Remittance{
		ID:        uuid.New(),
		PartnerID: partnerID,
		FileName:  fileName,
		Checksum:  checksum,
	}
	found := false
	for _, grp := range env.Groups {
		for i := range grp.Sets {
			if grp.Sets[i].Code != "835" {
				continue
			}
			found = true
			detail, err := Parse835(&grp.Sets[i])
			if err != nil {
				return nil, err
			}
			for _, w := range detail.Warnings {
				s.log.Warn().Str("file", fileName).Msg(w)
			}
			// One payment header per advice; the first one wins if the
			// file carries several sets.
			if r.PaymentMethod == "" {
				r.PaymentAmountCents = detail.PaymentAmountCents
				r.PaymentMethod = detail.PaymentMethod
				r.PaymentDate = detail.PaymentDate
				r.CheckNumber = detail.CheckNumber
				r.PayerName = detail.PayerName
			}
			r.Claims = append(r.Claims, detail.Claims...)
			r.Adjustments = append(r.Adjustments, detail.Adjustments...)
		}
	}
	if !found {
		return nil, fmt.Errorf("remittance: %s contained no 835 transaction set", fileName)
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("remittance: store remittance: %w", err)
	}
	s.log.Info().
		Str("remittance_id", r.ID.String()).
		Str("file", fileName).
		Int("claims", len(r.Claims)).
		Int64("payment_cents", r.PaymentAmountCents).
		Msg("remittance ingested")

	for _, cp := range r.Claims {
		if _, err := uuid.Parse(cp.ClaimRef); err != nil {
			s.log.Warn().Str("claim_ref", cp.ClaimRef).Msg("835 claim reference is not ours, skipping posting")
			continue
		}
		if err := s.claims.ApplyRemittance(ctx, cp.ClaimRef, cp.PayerClaimID, cp.PaidCents, cp.Denied, r.ID); err != nil {
			s.log.Error().Err(err).Str("claim_ref", cp.ClaimRef).Msg("post remittance to claim")
		}
	}
	return r, nil
}

// Get returns one remittance.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Remittance, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a partner's remittances, newest first.
func (s *Service) List(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]*Remittance, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, partnerID, limit, offset)
}
