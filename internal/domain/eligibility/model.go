// Package eligibility runs realtime 270/271 coverage verification against a
// trading partner and records the outcome.
package eligibility

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no eligibility check matches the lookup.
var ErrNotFound = errors.New("eligibility: check not found")

// Subscriber identifies the covered member for an inquiry.
type Subscriber struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate time.Time `json:"birth_date"`
	Gender    string    `json:"gender"`
	MemberID  string    `json:"member_id"`
}

// Benefit is one EB benefit detail from a 271.
type Benefit struct {
	Code          string `json:"code"`           // EB01: 1 active, 6 inactive, B copay, C deductible...
	CoverageLevel string `json:"coverage_level"` // EB02
	ServiceType   string `json:"service_type"`   // EB03
	PlanName      string `json:"plan_name"`      // EB05
	AmountCents   *int64 `json:"amount_cents,omitempty"`
	Description   string `json:"description,omitempty"` // MSG following the EB
}

// Check is one persisted eligibility verification: the inquiry, the payer's
// answer, and the raw payloads for audit.
type Check struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	OrgID     uuid.UUID  `db:"org_id" json:"org_id"`
	PartnerID uuid.UUID  `db:"partner_id" json:"partner_id"`
	ClaimID   *uuid.UUID `db:"claim_id" json:"claim_id,omitempty"`

	Subscriber      Subscriber `db:"subscriber" json:"subscriber"`
	ServiceTypeCode string     `db:"service_type_code" json:"service_type_code"`
	ServiceDate     time.Time  `db:"service_date" json:"service_date"`

	Active        bool       `db:"active" json:"active"`
	PlanName      string     `db:"plan_name" json:"plan_name,omitempty"`
	CoverageStart *time.Time `db:"coverage_start" json:"coverage_start,omitempty"`
	CoverageEnd   *time.Time `db:"coverage_end" json:"coverage_end,omitempty"`
	Benefits      []Benefit  `db:"benefits" json:"benefits,omitempty"`
	RejectReasons []string   `db:"reject_reasons" json:"reject_reasons,omitempty"`

	RawRequest  string `db:"raw_request" json:"-"`
	RawResponse string `db:"raw_response" json:"-"`

	// Failure records why an inquiry never produced a usable 271 (transport
	// or parse error). Failed attempts are kept as history alongside
	// answered ones.
	Failure string `db:"failure" json:"failure,omitempty"`

	CheckedAt time.Time `db:"checked_at" json:"checked_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CheckInput is an eligibility inquiry as submitted by the caller.
type CheckInput struct {
	OrgID     uuid.UUID  `json:"org_id" validate:"required"`
	PartnerID uuid.UUID  `json:"partner_id" validate:"required"`
	ClaimID   *uuid.UUID `json:"claim_id,omitempty"`

	Subscriber      Subscriber `json:"subscriber" validate:"required"`
	ServiceTypeCode string     `json:"service_type_code"`
	ServiceDate     string     `json:"service_date" validate:"omitempty,datetime=2006-01-02"`
}
