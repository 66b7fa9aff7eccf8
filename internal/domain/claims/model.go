// Package claims owns the professional claim lifecycle: building 837P
// transactions, submitting them over a configured channel, tracking payer
// status, and recording remittance outcomes.
package claims

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// Status is a claim's lifecycle state.
type Status string

const (
	StatusDraft               Status = "draft"
	StatusEligibilityVerified Status = "eligibility_verified"
	StatusReady               Status = "ready"
	StatusSubmitted           Status = "submitted"
	StatusAccepted            Status = "accepted"
	StatusRejected            Status = "rejected"
	StatusPaid                Status = "paid"
	StatusDenied              Status = "denied"
)

// validTransitions is the claim state machine. Terminal states have no
// outgoing edges; a corrected claim is a new record, never a mutation of a
// terminal one.
var validTransitions = map[Status][]Status{
	StatusDraft:               {StatusEligibilityVerified, StatusReady},
	StatusEligibilityVerified: {StatusReady},
	StatusReady:               {StatusSubmitted},
	StatusSubmitted:           {StatusAccepted, StatusRejected},
	StatusAccepted:            {StatusPaid, StatusDenied},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// ErrInvalidTransition is returned when a lifecycle edge is not allowed.
var ErrInvalidTransition = errors.New("claims: invalid status transition")

// ErrStatusConflict is returned by an optimistic status update when the
// stored claim is no longer in the expected pre-transition state.
var ErrStatusConflict = errors.New("claims: claim status changed concurrently")

// ErrNotFound is returned when no claim matches the lookup.
var ErrNotFound = errors.New("claims: claim not found")

// ClaimBalanceError reports a violated financial invariant: the sum of
// service line charges does not equal the claim's total charge. Generation is
// blocked; the amounts are never silently adjusted.
type ClaimBalanceError struct {
	TotalCents   int64
	LineSumCents int64
}

func (e *ClaimBalanceError) Error() string {
	return fmt.Sprintf("claims: service line charges sum to %s but claim total is %s",
		x12.Amount(e.LineSumCents), x12.Amount(e.TotalCents))
}

// PayerRejectionError carries the payer's functional reject reason codes from
// a 999 or 277CA. The claim moves to rejected.
type PayerRejectionError struct {
	Reasons []string
}

func (e *PayerRejectionError) Error() string {
	return fmt.Sprintf("claims: payer rejected claim: %v", e.Reasons)
}

// Patient is the subscriber demographic slice a claim needs.
type Patient struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate time.Time `json:"birth_date"`
	Gender    string    `json:"gender"` // "M", "F", "U"
	MemberID  string    `json:"member_id"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zip       string    `json:"zip"`
}

// Provider is the billing provider slice a claim needs.
type Provider struct {
	OrgName  string `json:"org_name"`
	NPI      string `json:"npi"`
	TaxID    string `json:"tax_id"`
	Taxonomy string `json:"taxonomy"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
}

// ServiceLine is one billed procedure. Charges are cents.
type ServiceLine struct {
	ProcedureCode     string    `json:"procedure_code"`
	Modifiers         []string  `json:"modifiers,omitempty"`
	ChargeCents       int64     `json:"charge_cents"`
	Units             int       `json:"units"`
	ServiceDate       time.Time `json:"service_date"`
	DiagnosisPointers []int     `json:"diagnosis_pointers,omitempty"`
}

// Issue is one categorized problem recorded on a claim. Raw X12 parse errors
// never reach callers; they see the category and a readable detail.
type Issue struct {
	Category string    `json:"category"` // "transport", "rejection", "envelope", "balance"
	Code     string    `json:"code,omitempty"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// Claim is the persistent claim record. It is mutated only by the
// orchestrator; once in a terminal status only remittance linkage may be
// appended.
type Claim struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrgID     uuid.UUID `db:"org_id" json:"org_id"`
	PartnerID uuid.UUID `db:"partner_id" json:"partner_id"`
	Status    Status    `db:"status" json:"status"`

	Patient        Patient       `db:"patient" json:"patient"`
	Provider       Provider      `db:"provider" json:"provider"`
	DiagnosisCodes []string      `db:"diagnosis_codes" json:"diagnosis_codes"`
	ServiceLines   []ServiceLine `db:"service_lines" json:"service_lines"`

	TotalChargeCents int64  `db:"total_charge_cents" json:"total_charge_cents"`
	PlaceOfService   string `db:"place_of_service" json:"place_of_service"`

	// Submission bookkeeping, recorded at submit time for idempotent
	// resubmission detection.
	Channel            partner.Channel `db:"channel" json:"channel,omitempty"`
	InterchangeControl int64           `db:"interchange_control" json:"interchange_control,omitempty"`
	GroupControl       int64           `db:"group_control" json:"group_control,omitempty"`
	TransactionControl int64           `db:"transaction_control" json:"transaction_control,omitempty"`
	FileName           string          `db:"file_name" json:"file_name,omitempty"`
	EDIPayload         string          `db:"edi_payload" json:"-"`

	PayerClaimID string     `db:"payer_claim_id" json:"payer_claim_id,omitempty"`
	PaidCents    *int64     `db:"paid_cents" json:"paid_cents,omitempty"`
	RemittanceID *uuid.UUID `db:"remittance_id" json:"remittance_id,omitempty"`

	Issues []Issue `db:"issues" json:"issues,omitempty"`

	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// LineSumCents returns the sum of service line charges.
func (c *Claim) LineSumCents() int64 {
	var sum int64
	for _, l := range c.ServiceLines {
		sum += l.ChargeCents
	}
	return sum
}

// CheckBalance enforces the build-time financial invariant.
func (c *Claim) CheckBalance() error {
	if sum := c.LineSumCents(); sum != c.TotalChargeCents {
		return &ClaimBalanceError{TotalCents: c.TotalChargeCents, LineSumCents: sum}
	}
	return nil
}

// AddIssue appends a categorized issue.
func (c *Claim) AddIssue(category, code, detail string, at time.Time) {
	c.Issues = append(c.Issues, Issue{Category: category, Code: code, Detail: detail, At: at})
}

// ClaimInput is the record the CRUD layer hands over when converting a
// billing/timesheet record into a claim.
type ClaimInput struct {
	OrgID     uuid.UUID `json:"org_id" validate:"required"`
	PartnerID uuid.UUID `json:"partner_id" validate:"required"`

	Patient  Patient  `json:"patient" validate:"required"`
	Provider Provider `json:"provider" validate:"required"`

	DiagnosisCodes []string           `json:"diagnosis_codes" validate:"required,min=1"`
	ServiceLines   []ServiceLineInput `json:"service_lines" validate:"required,min=1,dive"`

	TotalChargeCents int64  `json:"total_charge_cents" validate:"required,gt=0"`
	PlaceOfService   string `json:"place_of_service"`
}

// ServiceLineInput is one service line as submitted by the CRUD layer.
type ServiceLineInput struct {
	ProcedureCode     string   `json:"procedure_code" validate:"required"`
	Modifiers         []string `json:"modifiers"`
	ChargeCents       int64    `json:"charge_cents" validate:"required,gt=0"`
	Units             int      `json:"units" validate:"required,gt=0"`
	ServiceDate       string   `json:"service_date" validate:"required,datetime=2006-01-02"`
	DiagnosisPointers []int    `json:"diagnosis_pointers"`
}
