package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/platform/transport"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// DefaultAckTimeout is how long a submitted claim waits for a functional
// acknowledgment before it is marked rejected with a timeout issue.
const DefaultAckTimeout = 72 * time.Hour

// Service orchestrates the claim lifecycle. All status transitions flow
// through here; handlers and the inbound poller never write status directly.
type Service struct {
	repo       Repository
	partners   partner.Repository
	seq        partner.Sequence
	gateways   map[partner.Channel]transport.Gateway
	validate   *validator.Validate
	log        zerolog.Logger
	ackTimeout time.Duration
	now        func() time.Time
}

// NewService wires the claim orchestrator. One gateway per channel; a partner
// whose channel has no gateway cannot submit.
func NewService(repo Repository, partners partner.Repository, seq partner.Sequence,
	gateways []transport.Gateway, log zerolog.Logger, ackTimeout time.Duration) *Service {
	byChannel := make(map[partner.Channel]transport.Gateway, len(gateways))
	for _, g := range gateways {
		byChannel[g.Channel()] = g
	}
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	return &Service{
		repo:       repo,
		partners:   partners,
		seq:        seq,
		gateways:   byChannel,
		validate:   validator.New(),
		log:        log.With().Str("component", "claims").Logger(),
		ackTimeout: ackTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GenerateClaim converts a billing record into a claim. The financial balance
// invariant is checked up front; a claim that does not balance is never
// created. The new claim lands in ready, skipping eligibility verification.
// Callers that want a verified claim create a draft via CreateDraft and run an
// eligibility check before BuildClaim.
func (s *Service) GenerateClaim(ctx context.Context, input *ClaimInput) (*Claim, error) {
	c, err := s.CreateDraft(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, c, StatusReady); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateDraft validates the input and persists a draft claim.
func (s *Service) CreateDraft(ctx context.Context, input *ClaimInput) (*Claim, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("claims: invalid claim input: %w", err)
	}

	lines := make([]ServiceLine, len(input.ServiceLines))
	for i, in := range input.ServiceLines {
		date, err := time.Parse("2006-01-02", in.ServiceDate)
		if err != nil {
			return nil, fmt.Errorf("claims: invalid service date %q: %w", in.ServiceDate, err)
		}
		lines[i] = ServiceLine{
			ProcedureCode:     in.ProcedureCode,
			Modifiers:         in.Modifiers,
			ChargeCents:       in.ChargeCents,
			Units:             in.Units,
			ServiceDate:       date,
			DiagnosisPointers: in.DiagnosisPointers,
		}
	}

	c := &Claim{
		ID:               uuid.New(),
		OrgID:            input.OrgID,
		PartnerID:        input.PartnerID,
		Status:           StatusDraft,
		Patient:          input.Patient,
		Provider:         input.Provider,
		DiagnosisCodes:   input.DiagnosisCodes,
		ServiceLines:     lines,
		TotalChargeCents: input.TotalChargeCents,
		PlaceOfService:   input.PlaceOfService,
	}
	if err := c.CheckBalance(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("claims: create claim: %w", err)
	}
	s.log.Info().Str("claim_id", c.ID.String()).Msg("claim created")
	return c, nil
}

// MarkEligibilityVerified records a passed eligibility check on a draft.
func (s *Service) MarkEligibilityVerified(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.transition(ctx, c, StatusEligibilityVerified)
}

// BuildClaim promotes a draft or eligibility-verified claim to ready. The 837
// body is built here once to surface balance or build errors before submit.
func (s *Service) BuildClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.partners.GetByID(ctx, c.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("claims: load partner: %w", err)
	}
	if _, err := Build837P(c, cfg, s.now()); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, c, StatusReady); err != nil {
		return nil, err
	}
	return c, nil
}

// Submit envelopes and transmits a ready claim over the partner's channel.
// Control numbers are allocated immediately before wrapping so the stored
// claim always records exactly the numbers that went on the wire. A transport
// failure leaves the claim in ready for retry; a timeout leaves it in ready
// but records a failed-unknown issue since the payer may have received it.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusReady {
		return nil, fmt.Errorf("%w: submit requires ready, claim is %s", ErrInvalidTransition, c.Status)
	}
	cfg, err := s.partners.GetByID(ctx, c.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("claims: load partner: %w", err)
	}
	gw, ok := s.gateways[cfg.Channel]
	if !ok {
		return nil, fmt.Errorf("claims: no gateway configured for channel %q", cfg.Channel)
	}

	body, err := Build837P(c, cfg, s.now())
	if err != nil {
		return nil, err
	}
	nums, err := s.seq.Next(ctx, cfg.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("claims: %w", err)
	}
	opts := cfg.EnvelopeOptions(nums.Interchange, nums.Group, Version837P)
	opts.Now = s.now()
	segs, err := x12.Wrap(opts, []x12.TransactionSet{{
		Code:          "837",
		ControlNumber: nums.Transaction,
		Version:       Version837P,
		Segments:      body,
	}})
	if err != nil {
		return nil, fmt.Errorf("claims: envelope claim: %w", err)
	}
	payload := x12.Encode(opts.Delimiters, segs)
	fileName := transport.OutboundFileName(cfg, nums.Interchange, opts.Now)

	ack, err := gw.SubmitClaim(ctx, cfg, fileName, []byte(payload))
	if err != nil {
		var terr *transport.TransportError
		if errors.As(err, &terr) {
			c.AddIssue("transport", "", terr.Error(), s.now())
			if updErr := s.repo.Update(ctx, c); updErr != nil {
				s.log.Error().Err(updErr).Str("claim_id", c.ID.String()).Msg("record transport issue")
			}
			if terr.Timeout {
				s.log.Warn().Str("claim_id", c.ID.String()).Msg("submission outcome unknown after timeout")
			}
		}
		return nil, err
	}

	now := s.now()
	c.Channel = cfg.Channel
	c.InterchangeControl = nums.Interchange
	c.GroupControl = nums.Group
	c.TransactionControl = nums.Transaction
	c.FileName = fileName
	c.EDIPayload = payload
	c.SubmittedAt = &now
	// An SFTP ack's reference is just the uploaded file name; only a
	// clearinghouse acceptance carries a payer-side claim reference.
	if ack.Accepted && ack.Reference != "" {
		c.PayerClaimID = ack.Reference
	}
	if err := s.transition(ctx, c, StatusSubmitted); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("claim_id", c.ID.String()).
		Str("channel", string(cfg.Channel)).
		Int64("interchange_control", nums.Interchange).
		Msg("claim submitted")

	// A clearinghouse can accept or reject in the same call. The rejection
	// reasons land as issues; acceptance advances the lifecycle immediately.
	if ack.Accepted {
		if err := s.transition(ctx, c, StatusAccepted); err != nil {
			return nil, err
		}
	} else if len(ack.Reasons) > 0 {
		for _, reason := range ack.Reasons {
			c.AddIssue("rejection", "", reason, now)
		}
		if err := s.transition(ctx, c, StatusRejected); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CheckStatus sends a realtime 276 for a submitted or accepted claim and
// applies the 277 response.
func (s *Service) CheckStatus(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusSubmitted && c.Status != StatusAccepted {
		return nil, fmt.Errorf("claims: status inquiry requires a submitted or accepted claim, got %s", c.Status)
	}
	cfg, err := s.partners.GetByID(ctx, c.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("claims: load partner: %w", err)
	}
	gw, ok := s.gateways[cfg.Channel]
	if !ok {
		return nil, fmt.Errorf("claims: no gateway configured for channel %q", cfg.Channel)
	}

	nums, err := s.seq.Next(ctx, cfg.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("claims: %w", err)
	}
	opts := cfg.EnvelopeOptions(nums.Interchange, nums.Group, Version276)
	opts.Now = s.now()
	segs, err := x12.Wrap(opts, []x12.TransactionSet{{
		Code:          "276",
		ControlNumber: nums.Transaction,
		Version:       Version276,
		Segments:      Build276(c, cfg, opts.Now),
	}})
	if err != nil {
		return nil, fmt.Errorf("claims: envelope inquiry: %w", err)
	}

	reply, err := gw.RealtimeRequest(ctx, cfg, []byte(x12.Encode(opts.Delimiters, segs)))
	if err != nil {
		return nil, err
	}
	responses, err := s.parse277Payload(reply)
	if err != nil {
		c.AddIssue("envelope", "", err.Error(), s.now())
		if updErr := s.repo.Update(ctx, c); updErr != nil {
			s.log.Error().Err(updErr).Str("claim_id", c.ID.String()).Msg("record envelope issue")
		}
		return nil, err
	}
	for _, resp := range responses {
		if resp.ClaimRef != c.ID.String() {
			s.log.Warn().Str("claim_id", c.ID.String()).Str("trace", resp.ClaimRef).Msg("277 trace for a different claim")
			continue
		}
		if err := s.applyStatus(ctx, c, resp); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// HandleStatusResponse applies one parsed 277 claim status from the inbound
// poller. The trace is our claim UUID echoed back in TRN02.
func (s *Service) HandleStatusResponse(ctx context.Context, resp *StatusResponse) error {
	id, err := uuid.Parse(resp.ClaimRef)
	if err != nil {
		return fmt.Errorf("claims: 277 trace %q is not a claim id: %w", resp.ClaimRef, err)
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.applyStatus(ctx, c, resp)
}

func (s *Service) applyStatus(ctx context.Context, c *Claim, resp *StatusResponse) error {
	if resp.PayerClaimID != "" {
		c.PayerClaimID = resp.PayerClaimID
	}
	switch {
	case resp.Rejected:
		if c.Status.Terminal() {
			s.log.Warn().Str("claim_id", c.ID.String()).Msg("277 rejection for a settled claim, ignoring")
			return s.repo.Update(ctx, c)
		}
		for _, reason := range resp.Reasons {
			c.AddIssue("rejection", resp.Category, reason, s.now())
		}
		if c.Status == StatusRejected {
			return s.repo.Update(ctx, c)
		}
		return s.transition(ctx, c, StatusRejected)
	case resp.Accepted && c.Status == StatusSubmitted:
		return s.transition(ctx, c, StatusAccepted)
	default:
		return s.repo.Update(ctx, c)
	}
}

// HandleFunctionalAck applies a 999 verdict to every claim submitted under the
// acknowledged functional group.
func (s *Service) HandleFunctionalAck(ctx context.Context, partnerID uuid.UUID, ack *FunctionalAck) error {
	batch, err := s.repo.ListByGroupControl(ctx, partnerID, ack.GroupControl)
	if err != nil {
		return fmt.Errorf("claims: match 999 to group %d: %w", ack.GroupControl, err)
	}
	if len(batch) == 0 {
		s.log.Warn().Int64("group_control", ack.GroupControl).Msg("999 for an unknown functional group")
		return nil
	}
	for _, c := range batch {
		if c.Status != StatusSubmitted {
			continue
		}
		if ack.Accepted {
			if err := s.transition(ctx, c, StatusAccepted); err != nil {
				return err
			}
			continue
		}
		for _, reason := range ack.Reasons {
			c.AddIssue("rejection", "999", reason, s.now())
		}
		if err := s.transition(ctx, c, StatusRejected); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRemittance records an adjudication outcome from an 835. A denied claim
// (zero payment with denial adjustments) moves to denied; anything else moves
// to paid. Remittance can arrive before the functional acknowledgment, so a
// still-submitted claim is advanced through accepted first.
func (s *Service) ApplyRemittance(ctx context.Context, claimRef string, payerClaimID string, paidCents int64, denied bool, remittanceID uuid.UUID) error {
	id, err := uuid.Parse(claimRef)
	if err != nil {
		return fmt.Errorf("claims: 835 claim reference %q is not a claim id: %w", claimRef, err)
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	target := StatusPaid
	if denied {
		target = StatusDenied
	}

	// Terminal claims accept remittance linkage only, never a status change.
	if c.Status.Terminal() {
		if c.RemittanceID == nil {
			c.RemittanceID = &remittanceID
			c.PaidCents = &paidCents
			if payerClaimID != "" {
				c.PayerClaimID = payerClaimID
			}
			return s.repo.Update(ctx, c)
		}
		return nil
	}

	if c.Status == StatusSubmitted {
		if err := s.transition(ctx, c, StatusAccepted); err != nil {
			return err
		}
	}
	c.PaidCents = &paidCents
	c.RemittanceID = &remittanceID
	if payerClaimID != "" {
		c.PayerClaimID = payerClaimID
	}
	if denied {
		c.AddIssue("rejection", "835", "claim denied on remittance", s.now())
	}
	return s.transition(ctx, c, target)
}

// ExpireStale rejects submitted claims whose functional acknowledgment never
// arrived within the ack timeout.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ackTimeout)
	stale, err := s.repo.ListSubmittedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("claims: list stale submissions: %w", err)
	}
	expired := 0
	for _, c := range stale {
		c.AddIssue("transport", "ack_timeout",
			fmt.Sprintf("no acknowledgment within %s of submission", s.ackTimeout), s.now())
		if err := s.transition(ctx, c, StatusRejected); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				continue
			}
			return expired, err
		}
		expired++
		s.log.Warn().Str("claim_id", c.ID.String()).Msg("claim rejected after ack timeout")
	}
	return expired, nil
}

// Get returns one claim.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns an organization's claims, optionally filtered by status.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, status Status, limit, offset int) ([]*Claim, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, orgID, status, limit, offset)
}

// transition moves the claim along a legal lifecycle edge with an optimistic
// write. The in-memory status is rolled back if the write loses the race.
func (s *Service) transition(ctx context.Context, c *Claim, to Status) error {
	from := c.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	c.Status = to
	if err := s.repo.UpdateStatus(ctx, c, from); err != nil {
		c.Status = from
		return err
	}
	s.log.Info().Str("claim_id", c.ID.String()).Str("from", string(from)).Str("to", string(to)).Msg("claim status changed")
	return nil
}

// parse277Payload decodes a raw 277 interchange and parses every 277 set in
// it.
func (s *Service) parse277Payload(payload []byte) ([]*StatusResponse, error) {
	segs, _, err := x12.DecodeInterchange(string(payload))
	if err != nil {
		return nil, fmt.Errorf("claims: decode 277 response: %w", err)
	}
	env, err := x12.Unwrap(segs)
	if err != nil {
		return nil, fmt.Errorf("claims: unwrap 277 response: %w", err)
	}
	var out []*StatusResponse
	for _, grp := range env.Groups {
		for i := range grp.Sets {
			if grp.Sets[i].Code != "277" {
				continue
			}
			responses, err := Parse277(&grp.Sets[i])
			if err != nil {
				return nil, err
			}
			out = append(out, responses...)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("claims: response contained no 277 transaction sets")
	}
	return out, nil
}
