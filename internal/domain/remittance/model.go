// Package remittance ingests 835 payment advice files, records payer
// payments, and posts adjudication outcomes back onto claims.
package remittance

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no remittance matches the lookup.
var ErrNotFound = errors.New("remittance: remittance not found")

// Adjustment is one CAS monetary adjustment.
type Adjustment struct {
	GroupCode   string `json:"group_code"`  // CO, PR, OA, PI
	ReasonCode  string `json:"reason_code"` // CARC
	AmountCents int64  `json:"amount_cents"`
}

// LinePayment is one SVC service line payment.
type LinePayment struct {
	ProcedureCode string       `json:"procedure_code"`
	ChargeCents   int64        `json:"charge_cents"`
	PaidCents     int64        `json:"paid_cents"`
	Adjustments   []Adjustment `json:"adjustments,omitempty"`
}

// ClaimPayment is one CLP claim payment loop. ClaimRef is CLP01, the claim
// identifier we sent in CLM01 echoed back by the payer.
type ClaimPayment struct {
	ClaimRef         string        `json:"claim_ref"`
	StatusCode       string        `json:"status_code"` // CLP02: 1-3 paid, 4 denied, 22 reversal
	Denied           bool          `json:"denied"`
	ChargeCents      int64         `json:"charge_cents"`
	PaidCents        int64         `json:"paid_cents"`
	PatientRespCents int64         `json:"patient_resp_cents"`
	PayerClaimID     string        `json:"payer_claim_id,omitempty"` // CLP07
	Adjustments      []Adjustment  `json:"adjustments,omitempty"`
	Lines            []LinePayment `json:"lines,omitempty"`
}

// ProviderAdjustment is one PLB provider-level adjustment, applied to the
// payment as a whole rather than any claim.
type ProviderAdjustment struct {
	ReasonCode  string `json:"reason_code"`
	Reference   string `json:"reference,omitempty"`
	AmountCents int64  `json:"amount_cents"`
}

// Remittance is one ingested 835: the payment header plus every claim payment
// it carried. Checksum is the SHA-256 of the raw file; a redelivered file with
// the same checksum is never ingested twice.
type Remittance struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PartnerID uuid.UUID `db:"partner_id" json:"partner_id"`

	FileName string `db:"file_name" json:"file_name"`
	Checksum string `db:"checksum" json:"checksum"`

	PaymentAmountCents int64     `db:"payment_amount_cents" json:"payment_amount_cents"`
	PaymentMethod      string    `db:"payment_method" json:"payment_method"` // BPR04: ACH, CHK
	PaymentDate        time.Time `db:"payment_date" json:"payment_date"`
	CheckNumber        string    `db:"check_number" json:"check_number"` // TRN02
	PayerName          string    `db:"payer_name" json:"payer_name,omitempty"`

	Claims      []ClaimPayment       `db:"claims" json:"claims"`
	Adjustments []ProviderAdjustment `db:"adjustments" json:"adjustments,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
