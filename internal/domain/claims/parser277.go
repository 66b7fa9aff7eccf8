package claims

import (
	"fmt"
	"time"

	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// StatusResponse is the flat result of parsing one claim's status from a 277
// transaction set.
type StatusResponse struct {
	ClaimRef     string // TRN02: our claim identifier echoed back
	PayerClaimID string // REF*1K payer claim control number
	Category     string // STC01-1 claim status category code
	StatusCode   string // STC01-2 claim status code
	Accepted     bool
	Rejected     bool
	Reasons      []string
	StatusDate   time.Time
	PaidCents    int64

	// Warnings records skipped or unrecognized loops. Payer responses vary
	// in optional segment presence; one unexpected segment must not fail an
	// otherwise valid parse.
	Warnings []string
}

// Parse277 walks a decoded 277 transaction set, grouping by HL loops, and
// extracts one StatusResponse per claim-level trace. Unknown or malformed
// loops are skipped with a recorded warning.
func Parse277(set *x12.TransactionSet) ([]*StatusResponse, error) {
	if set.Code != "277" {
		return nil, fmt.Errorf("claims: expected a 277 transaction set, got %q", set.Code)
	}

	var (
		responses []*StatusResponse
		current   *StatusResponse
		warnings  []string
	)
	flush := func() {
		if current != nil && current.ClaimRef != "" {
			responses = append(responses, current)
		} else if current != nil {
			warnings = append(warnings, "dropped claim status loop without a TRN trace")
		}
		current = nil
	}

	for _, seg := range set.Segments {
		switch seg.ID {
		case "HL":
			// Level code 22 (subscriber) or PT (patient) opens the loop a
			// claim trace lives in; any other level just scopes context.
			if code := seg.Get(3); code == "22" || code == "PT" || code == "23" {
				flush()
				current = &StatusResponse{}
			}
		case "TRN":
			if current == nil {
				warnings = append(warnings, "TRN outside a subscriber loop")
				continue
			}
			if current.ClaimRef == "" {
				current.ClaimRef = seg.Get(2)
			}
		case "STC":
			if current == nil {
				warnings = append(warnings, "STC outside a subscriber loop")
				continue
			}
			applySTC(current, seg, &warnings)
		case "REF":
			if current == nil {
				continue
			}
			if seg.Get(1) == "1K" {
				current.PayerClaimID = seg.Get(2)
			}
		case "DTP":
			if current == nil {
				continue
			}
			if seg.Get(1) == "472" || seg.Get(1) == "050" {
				if t, err := x12.ParseDate(seg.Get(3)); err == nil {
					current.StatusDate = t
				} else {
					warnings = append(warnings, fmt.Sprintf("unparseable DTP date %q", seg.Get(3)))
				}
			}
		}
	}
	flush()

	for _, r := range responses {
		r.Warnings = warnings
	}
	if len(responses) == 0 {
		return nil, fmt.Errorf("claims: 277 contained no claim status traces")
	}
	return responses, nil
}

// applySTC interprets an STC claim status. STC01 is a composite of category
// code and status code: category A1/A2 mean acknowledged/accepted, A3/A6/A7
// mean rejected, F-class codes are adjudication outcomes.
func applySTC(r *StatusResponse, seg x12.Segment, warnings *[]string) {
	category := seg.Component(1, 1)
	statusCode := seg.Component(1, 2)
	if category == "" {
		*warnings = append(*warnings, "STC with empty status category")
		return
	}
	r.Category = category
	r.StatusCode = statusCode

	switch category {
	case "A1", "A2", "F0", "F1":
		r.Accepted = true
	case "A3", "A4", "A6", "A7", "A8", "E4":
		r.Rejected = true
		r.Reasons = append(r.Reasons, category+":"+statusCode)
	default:
		*warnings = append(*warnings, fmt.Sprintf("unrecognized status category %q", category))
	}

	if amt := seg.Get(4); amt != "" {
		if cents, err := x12.ParseAmount(amt); err == nil {
			r.PaidCents = cents
		}
	}
	if t, err := x12.ParseDate(seg.Get(2)); err == nil {
		r.StatusDate = t
	}
}
