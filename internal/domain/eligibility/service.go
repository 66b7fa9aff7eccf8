package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/platform/transport"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// ClaimMarker promotes a draft claim once its coverage is verified. The claims
// orchestrator implements it; the indirection keeps this package off the claim
// lifecycle internals.
type ClaimMarker interface {
	MarkEligibilityVerified(ctx context.Context, id uuid.UUID) error
}

// Service runs realtime eligibility verification.
type Service struct {
	repo     Repository
	partners partner.Repository
	seq      partner.Sequence
	gateways map[partner.Channel]transport.Gateway
	claims   ClaimMarker
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// NewService wires the eligibility service. claims may be nil when checks are
// run standalone.
func NewService(repo Repository, partners partner.Repository, seq partner.Sequence,
	gateways []transport.Gateway, claims ClaimMarker, log zerolog.Logger) *Service {
	byChannel := make(map[partner.Channel]transport.Gateway, len(gateways))
	for _, g := range gateways {
		byChannel[g.Channel()] = g
	}
	return &Service{
		repo:     repo,
		partners: partners,
		seq:      seq,
		gateways: byChannel,
		claims:   claims,
		validate: validator.New(),
		log:      log.With().Str("component", "eligibility").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Verify sends a realtime 270 and records the parsed 271 outcome. A payer-side
// AAA rejection still persists the check, with Active false and the reject
// reasons recorded; the caller distinguishes "inactive" from "unanswerable" by
// RejectReasons. Transport and parse failures also persist the attempt, with
// Failure recording the cause, before the error is returned. When the check is
// tied to a claim and coverage is active, the claim is promoted to
// eligibility_verified.
func (s *Service) Verify(ctx context.Context, input *CheckInput) (*Check, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("eligibility: invalid check input: %w", err)
	}
	cfg, err := s.partners.GetByID(ctx, input.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("eligibility: load partner: %w", err)
	}
	gw, ok := s.gateways[cfg.Channel]
	if !ok {
		return nil, fmt.Errorf("eligibility: no gateway configured for channel %q", cfg.Channel)
	}

	serviceDate := s.now()
	if input.ServiceDate != "" {
		serviceDate, err = time.Parse("2006-01-02", input.ServiceDate)
		if err != nil {
			return nil, fmt.Errorf("eligibility: invalid service date %q: %w", input.ServiceDate, err)
		}
	}
	serviceType := input.ServiceTypeCode
	if serviceType == "" {
		serviceType = DefaultServiceType
	}

	check := &Check{
		ID:              uuid.New(),
		OrgID:           input.OrgID,
		PartnerID:       input.PartnerID,
		ClaimID:         input.ClaimID,
		Subscriber:      input.Subscriber,
		ServiceTypeCode: serviceType,
		ServiceDate:     serviceDate,
		CheckedAt:       s.now(),
	}

	nums, err := s.seq.Next(ctx, cfg.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("eligibility: %w", err)
	}
	opts := cfg.EnvelopeOptions(nums.Interchange, nums.Group, Version270)
	opts.Now = s.now()
	segs, err := x12.Wrap(opts, []x12.TransactionSet{{
		Code:          "270",
		ControlNumber: nums.Transaction,
		Version:       Version270,
		Segments:      Build270(check.ID, input.Subscriber, serviceType, serviceDate, cfg, opts.Now),
	}})
	if err != nil {
		return nil, fmt.Errorf("eligibility: envelope inquiry: %w", err)
	}
	request := x12.Encode(opts.Delimiters, segs)
	check.RawRequest = request

	reply, err := gw.RealtimeRequest(ctx, cfg, []byte(request))
	if err != nil {
		s.recordFailure(ctx, check, err)
		return nil, err
	}
	check.RawResponse = string(reply)

	resp, err := s.parse271Payload(reply)
	if err != nil {
		s.recordFailure(ctx, check, err)
		return nil, err
	}
	if resp.TraceID != "" && resp.TraceID != check.ID.String() {
		s.log.Warn().Str("check_id", check.ID.String()).Str("trace", resp.TraceID).Msg("271 trace does not match the inquiry")
	}

	check.Active = resp.Active
	check.PlanName = resp.PlanName
	check.CoverageStart = resp.CoverageStart
	check.CoverageEnd = resp.CoverageEnd
	check.Benefits = resp.Benefits
	check.RejectReasons = resp.RejectReasons

	if err := s.repo.Create(ctx, check); err != nil {
		return nil, fmt.Errorf("eligibility: store check: %w", err)
	}
	s.log.Info().
		Str("check_id", check.ID.String()).
		Bool("active", check.Active).
		Msg("eligibility verified")

	if check.Active && check.ClaimID != nil && s.claims != nil {
		if err := s.claims.MarkEligibilityVerified(ctx, *check.ClaimID); err != nil {
			s.log.Error().Err(err).Str("claim_id", check.ClaimID.String()).Msg("promote claim after eligibility")
		}
	}
	return check, nil
}

// recordFailure keeps an unanswerable inquiry as history. The store error, if
// any, is logged rather than returned so the original failure stays the one
// the caller sees.
func (s *Service) recordFailure(ctx context.Context, check *Check, cause error) {
	check.Failure = cause.Error()
	if err := s.repo.Create(ctx, check); err != nil {
		s.log.Error().Err(err).Str("check_id", check.ID.String()).Msg("store failed eligibility attempt")
	}
}

// Get returns one eligibility check.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Check, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns an organization's checks, newest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*Check, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, orgID, limit, offset)
}

// ListByClaim returns the checks run for one claim.
func (s *Service) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*Check, error) {
	return s.repo.ListByClaim(ctx, claimID)
}

func (s *Service) parse271Payload(payload []byte) (*Response, error) {
	segs, _, err := x12.DecodeInterchange(string(payload))
	if err != nil {
		return nil, fmt.Errorf("eligibility: decode 271 response: %w", err)
	}
	env, err := x12.Unwrap(segs)
	if err != nil {
		return nil, fmt.Errorf("eligibility: unwrap 271 response: %w", err)
	}
	for _, grp := range env.Groups {
		for i := range grp.Sets {
			if grp.Sets[i].Code == "271" {
				return Parse271(&grp.Sets[i])
			}
		}
	}
	return nil, fmt.Errorf("eligibility: response contained no 271 transaction set")
}
