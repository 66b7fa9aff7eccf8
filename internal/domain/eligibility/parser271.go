package eligibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// Response is the parsed outcome of a 271 eligibility response.
type Response struct {
	TraceID       string // TRN02 echoed from the inquiry
	Active        bool
	PlanName      string
	CoverageStart *time.Time
	CoverageEnd   *time.Time
	Benefits      []Benefit
	RejectReasons []string // AAA request validation failures
	Warnings      []string
}

// aaaReasons maps the AAA03 reject reason codes payers actually send.
var aaaReasons = map[string]string{
	"42": "unable to respond at current time",
	"43": "invalid or missing provider identification",
	"72": "invalid or missing subscriber id",
	"73": "invalid or missing subscriber name",
	"75": "subscriber not found",
	"76": "duplicate subscriber id",
	"79": "invalid participant identification",
}

// Parse271 extracts coverage status and benefit details from a 271
// transaction set. EB*1 means active coverage, EB*6 inactive; AAA segments
// are payer-side validation rejections that make the whole inquiry
// unanswerable.
func Parse271(set *x12.TransactionSet) (*Response, error) {
	if set.Code != "271" {
		return nil, fmt.Errorf("eligibility: expected a 271 transaction set, got %q", set.Code)
	}

	r := &Response{}
	sawEB := false
	for i, seg := range set.Segments {
		switch seg.ID {
		case "TRN":
			if r.TraceID == "" {
				r.TraceID = seg.Get(2)
			}
		case "AAA":
			code := seg.Get(3)
			reason, ok := aaaReasons[code]
			if !ok {
				reason = "reject reason " + code
			}
			r.RejectReasons = append(r.RejectReasons, reason)
		case "EB":
			sawEB = true
			b := Benefit{
				Code:          seg.Component(1, 1),
				CoverageLevel: seg.Get(2),
				ServiceType:   seg.Component(3, 1),
				PlanName:      seg.Get(5),
			}
			if amt := seg.Get(7); amt != "" {
				if cents, err := x12.ParseAmount(amt); err == nil {
					b.AmountCents = &cents
				} else {
					r.Warnings = append(r.Warnings, fmt.Sprintf("unparseable EB07 amount %q", amt))
				}
			}
			// An MSG directly after the EB annotates it.
			if i+1 < len(set.Segments) && set.Segments[i+1].ID == "MSG" {
				b.Description = set.Segments[i+1].Get(1)
			}
			r.Benefits = append(r.Benefits, b)

			switch b.Code {
			case "1":
				r.Active = true
			case "6":
				r.Active = false
			}
			if b.PlanName != "" && r.PlanName == "" {
				r.PlanName = b.PlanName
			}
		case "DTP":
			switch seg.Get(1) {
			case "291", "346", "307":
				r.applyCoverageDate(seg, &r.CoverageStart)
			case "347":
				r.applyCoverageDate(seg, &r.CoverageEnd)
			}
		}
	}

	if len(r.RejectReasons) > 0 {
		return r, nil
	}
	if !sawEB {
		return nil, fmt.Errorf("eligibility: 271 contained no EB benefit segments")
	}
	return r, nil
}

// applyCoverageDate handles both D8 single dates and RD8 start-end ranges.
func (r *Response) applyCoverageDate(seg x12.Segment, target **time.Time) {
	value := seg.Get(3)
	if seg.Get(2) == "RD8" {
		parts := strings.SplitN(value, "-", 2)
		if len(parts) == 2 {
			if start, err := x12.ParseDate(parts[0]); err == nil {
				r.CoverageStart = &start
			}
			if end, err := x12.ParseDate(parts[1]); err == nil {
				r.CoverageEnd = &end
			}
			return
		}
	}
	if t, err := x12.ParseDate(value); err == nil {
		*target = &t
	} else {
		r.Warnings = append(r.Warnings, fmt.Sprintf("unparseable coverage date %q", value))
	}
}
