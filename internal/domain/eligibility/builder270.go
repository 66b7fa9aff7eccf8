package eligibility

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// Version270 is the HIPAA 5010 implementation convention for eligibility
// inquiries and responses.
const Version270 = "005010X279A1"

// DefaultServiceType is EQ01 "health benefit plan coverage", the broadest
// inquiry.
const DefaultServiceType = "30"

// Build270 composes an eligibility inquiry body. The TRN trace carries the
// check's own ID so the matching 271 can be tied back to it.
func Build270(checkID uuid.UUID, sub Subscriber, serviceType string, serviceDate time.Time, cfg *partner.Config, now time.Time) []x12.Segment {
	if serviceType == "" {
		serviceType = DefaultServiceType
	}
	var segs []x12.Segment

	segs = append(segs, x12.Seg("BHT", "0022", "13", checkID.String(), x12.Date(now), now.UTC().Format("1504")))

	// 2000A information source (payer).
	segs = append(segs, x12.Seg("HL", "1", "", "20", "1"))
	segs = append(segs, x12.Seg("NM1", "PR", "2", cfg.PayerName, "", "", "", "", "PI", cfg.PayerID))

	// 2000B information receiver (the provider asking).
	segs = append(segs, x12.Seg("HL", "2", "1", "21", "1"))
	segs = append(segs, x12.Seg("NM1", "1P", "2", "", "", "", "", "", "XX", cfg.SenderID))

	// 2000C subscriber.
	segs = append(segs, x12.Seg("HL", "3", "2", "22", "0"))
	segs = append(segs, x12.Seg("TRN", "1", checkID.String()))
	segs = append(segs, x12.Seg("NM1", "IL", "1", sub.LastName, sub.FirstName, "", "", "", "MI", sub.MemberID))
	segs = append(segs, x12.Seg("DMG", "D8", x12.Date(sub.BirthDate), sub.Gender))
	if !serviceDate.IsZero() {
		segs = append(segs, x12.Seg("DTP", "291", "D8", x12.Date(serviceDate)))
	}
	segs = append(segs, x12.Seg("EQ", serviceType))

	return segs
}
