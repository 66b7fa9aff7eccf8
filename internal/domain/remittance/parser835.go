package remittance

import (
	"fmt"
	"time"

	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// statusDenied is the CLP02 code for a denied claim.
const statusDenied = "4"

// Detail is the parsed content of one 835 transaction set before persistence.
type Detail struct {
	PaymentAmountCents int64
	PaymentMethod      string
	PaymentDate        time.Time
	CheckNumber        string
	PayerName          string
	Claims             []ClaimPayment
	Adjustments        []ProviderAdjustment
	Warnings           []string
}

// Parse835 extracts the payment header, every CLP claim payment loop with its
// CAS adjustments and SVC line payments, and trailing PLB provider
// adjustments. Malformed amounts inside one loop skip that loop with a
// warning rather than failing the whole advice.
func Parse835(set *x12.TransactionSet) (*Detail, error) {
	if set.Code != "835" {
		return nil, fmt.Errorf("remittance: expected an 835 transaction set, got %q", set.Code)
	}

	d := &Detail{}
	var (
		claim *ClaimPayment
		line  *LinePayment
	)
	flushLine := func() {
		if line != nil && claim != nil {
			claim.Lines = append(claim.Lines, *line)
		}
		line = nil
	}
	flushClaim := func() {
		flushLine()
		if claim != nil {
			d.Claims = append(d.Claims, *claim)
		}
		claim = nil
	}

	for _, seg := range set.Segments {
		switch seg.ID {
		case "BPR":
			if cents, err := x12.ParseAmount(seg.Get(2)); err == nil {
				d.PaymentAmountCents = cents
			} else {
				return nil, fmt.Errorf("remittance: unparseable BPR02 payment amount %q", seg.Get(2))
			}
			d.PaymentMethod = seg.Get(4)
			if t, err := x12.ParseDate(seg.Get(16)); err == nil {
				d.PaymentDate = t
			}
		case "TRN":
			d.CheckNumber = seg.Get(2)
		case "N1":
			if seg.Get(1) == "PR" {
				d.PayerName = seg.Get(2)
			}
		case "CLP":
			flushClaim()
			cp := ClaimPayment{
				ClaimRef:     seg.Get(1),
				StatusCode:   seg.Get(2),
				PayerClaimID: seg.Get(7),
			}
			cp.Denied = cp.StatusCode == statusDenied
			var err error
			if cp.ChargeCents, err = x12.ParseAmount(seg.Get(3)); err != nil {
				d.Warnings = append(d.Warnings, fmt.Sprintf("claim %s: unparseable CLP03 %q, loop skipped", cp.ClaimRef, seg.Get(3)))
				continue
			}
			if cp.PaidCents, err = x12.ParseAmount(seg.Get(4)); err != nil {
				d.Warnings = append(d.Warnings, fmt.Sprintf("claim %s: unparseable CLP04 %q, loop skipped", cp.ClaimRef, seg.Get(4)))
				continue
			}
			if v := seg.Get(5); v != "" {
				if cents, err := x12.ParseAmount(v); err == nil {
					cp.PatientRespCents = cents
				}
			}
			claim = &cp
		case "SVC":
			if claim == nil {
				d.Warnings = append(d.Warnings, "SVC outside a claim payment loop")
				continue
			}
			flushLine()
			lp := LinePayment{ProcedureCode: seg.Component(1, 2)}
			if cents, err := x12.ParseAmount(seg.Get(2)); err == nil {
				lp.ChargeCents = cents
			}
			if cents, err := x12.ParseAmount(seg.Get(3)); err == nil {
				lp.PaidCents = cents
			}
			line = &lp
		case "CAS":
			adjs := parseCAS(seg, &d.Warnings)
			switch {
			case line != nil:
				line.Adjustments = append(line.Adjustments, adjs...)
			case claim != nil:
				claim.Adjustments = append(claim.Adjustments, adjs...)
			default:
				d.Warnings = append(d.Warnings, "CAS outside a claim payment loop")
			}
		case "PLB":
			flushClaim()
			d.Adjustments = append(d.Adjustments, parsePLB(seg, &d.Warnings)...)
		}
	}
	flushClaim()

	if d.PaymentMethod == "" && d.PaymentAmountCents == 0 && len(d.Claims) == 0 {
		return nil, fmt.Errorf("remittance: 835 carried neither a payment header nor claim payments")
	}
	return d, nil
}

// parseCAS reads the repeating triples of a CAS segment: group code once, then
// reason/amount/quantity up to six times.
func parseCAS(seg x12.Segment, warnings *[]string) []Adjustment {
	group := seg.Get(1)
	var out []Adjustment
	for i := 2; seg.Get(i) != ""; i += 3 {
		reason := seg.Get(i)
		cents, err := x12.ParseAmount(seg.Get(i + 1))
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("unparseable CAS amount %q for reason %s", seg.Get(i+1), reason))
			continue
		}
		out = append(out, Adjustment{GroupCode: group, ReasonCode: reason, AmountCents: cents})
	}
	return out
}

// parsePLB reads the repeating pairs of a PLB segment: reason composite and
// amount, after the provider id and fiscal period date.
func parsePLB(seg x12.Segment, warnings *[]string) []ProviderAdjustment {
	var out []ProviderAdjustment
	for i := 3; seg.Get(i) != "" || seg.Component(i, 1) != ""; i += 2 {
		reason := seg.Component(i, 1)
		if reason == "" {
			break
		}
		cents, err := x12.ParseAmount(seg.Get(i + 1))
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("unparseable PLB amount %q for reason %s", seg.Get(i+1), reason))
			continue
		}
		out = append(out, ProviderAdjustment{
			ReasonCode:  reason,
			Reference:   seg.Component(i, 2),
			AmountCents: cents,
		})
	}
	return out
}
