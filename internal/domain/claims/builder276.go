package claims

import (
	"time"

	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// Version276 is the HIPAA 5010 implementation convention for claim status
// inquiries.
const Version276 = "005010X212"

// Build276 composes a claim status inquiry body for a previously submitted
// claim. When the payer's claim control number is known it is carried as a
// REF*1K trace; otherwise the payer matches on patient, provider, and service
// date.
func Build276(c *Claim, cfg *partner.Config, now time.Time) []x12.Segment {
	var segs []x12.Segment

	segs = append(segs, x12.Seg("BHT", "0010", "13", c.ID.String(), x12.Date(now), now.UTC().Format("1504")))

	// 2000A information source (payer).
	segs = append(segs, x12.Seg("HL", "1", "", "20", "1"))
	segs = append(segs, x12.Seg("NM1", "PR", "2", cfg.PayerName, "", "", "", "", "PI", cfg.PayerID))

	// 2000B information receiver (the submitter).
	segs = append(segs, x12.Seg("HL", "2", "1", "21", "1"))
	segs = append(segs, x12.Seg("NM1", "41", "2", c.Provider.OrgName, "", "", "", "", "46", cfg.SenderID))

	// 2000C service provider.
	segs = append(segs, x12.Seg("HL", "3", "2", "19", "1"))
	segs = append(segs, x12.Seg("NM1", "1P", "2", c.Provider.OrgName, "", "", "", "", "XX", c.Provider.NPI))

	// 2000D subscriber with the claim trace.
	segs = append(segs, x12.Seg("HL", "4", "3", "22", "0"))
	segs = append(segs, x12.Seg("DMG", "D8", x12.Date(c.Patient.BirthDate), c.Patient.Gender))
	segs = append(segs, x12.Seg("NM1", "IL", "1", c.Patient.LastName, c.Patient.FirstName, "", "", "", "MI", c.Patient.MemberID))
	segs = append(segs, x12.Seg("TRN", "1", c.ID.String()))
	if c.PayerClaimID != "" {
		segs = append(segs, x12.Seg("REF", "1K", c.PayerClaimID))
	}
	segs = append(segs, x12.Seg("AMT", "T3", x12.Amount(c.TotalChargeCents)))
	if len(c.ServiceLines) > 0 {
		segs = append(segs, x12.Seg("DTP", "472", "D8", x12.Date(earliestServiceDate(c.ServiceLines))))
	}

	return segs
}
