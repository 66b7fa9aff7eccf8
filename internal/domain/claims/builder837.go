package claims

import (
	"strconv"
	"time"

	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// Version837P is the HIPAA 5010 implementation convention for professional
// claims.
const Version837P = "005010X222A1"

// Build837P composes the 837P transaction set body (everything between ST and
// SE) for one claim. The balance invariant is enforced here: generation is
// blocked with ClaimBalanceError when the service lines do not sum to the
// claim total.
func Build837P(c *Claim, cfg *partner.Config, now time.Time) ([]x12.Segment, error) {
	if err := c.CheckBalance(); err != nil {
		return nil, err
	}

	var segs []x12.Segment

	segs = append(segs, x12.Seg("BHT", "0019", "00", c.ID.String(), x12.Date(now), now.UTC().Format("1504"), "CH"))

	// 1000A submitter / 1000B receiver.
	segs = append(segs, x12.Seg("NM1", "41", "2", c.Provider.OrgName, "", "", "", "", "46", cfg.SenderID))
	segs = append(segs, x12.Seg("NM1", "40", "2", cfg.PayerName, "", "", "", "", "46", cfg.ReceiverID))

	// 2000A billing provider.
	segs = append(segs, x12.Seg("HL", "1", "", "20", "1"))
	if c.Provider.Taxonomy != "" {
		segs = append(segs, x12.Seg("PRV", "BI", "PXC", c.Provider.Taxonomy))
	}
	segs = append(segs, x12.Seg("NM1", "85", "2", c.Provider.OrgName, "", "", "", "", "XX", c.Provider.NPI))
	segs = append(segs, x12.Seg("N3", c.Provider.Address))
	segs = append(segs, x12.Seg("N4", c.Provider.City, c.Provider.State, c.Provider.Zip))
	if c.Provider.TaxID != "" {
		segs = append(segs, x12.Seg("REF", "EI", c.Provider.TaxID))
	}

	// 2000B subscriber. SBR01 "P" primary, SBR02 "18" self.
	segs = append(segs, x12.Seg("HL", "2", "1", "22", "0"))
	segs = append(segs, x12.Seg("SBR", "P", "18", "", "", "", "", "", "", "CI"))
	segs = append(segs, x12.Seg("NM1", "IL", "1", c.Patient.LastName, c.Patient.FirstName, "", "", "", "MI", c.Patient.MemberID))
	segs = append(segs, x12.Seg("N3", c.Patient.Address))
	segs = append(segs, x12.Seg("N4", c.Patient.City, c.Patient.State, c.Patient.Zip))
	segs = append(segs, x12.Seg("DMG", "D8", x12.Date(c.Patient.BirthDate), c.Patient.Gender))
	segs = append(segs, x12.Seg("NM1", "PR", "2", cfg.PayerName, "", "", "", "", "PI", cfg.PayerID))

	// 2300 claim. CLM05 is place of service : facility code qualifier :
	// frequency.
	pos := c.PlaceOfService
	if pos == "" {
		pos = "11"
	}
	clm := x12.Seg("CLM", c.ID.String(), x12.Amount(c.TotalChargeCents), "", "")
	clm.Elements = append(clm.Elements, x12.Composite(pos, "B", "1"))
	clm.Elements = append(clm.Elements, x12.Simple("Y"), x12.Simple("A"), x12.Simple("Y"), x12.Simple("Y"))
	segs = append(segs, clm)

	if len(c.ServiceLines) > 0 {
		segs = append(segs, x12.Seg("DTP", "472", "D8", x12.Date(earliestServiceDate(c.ServiceLines))))
	}

	if len(c.DiagnosisCodes) > 0 {
		hi := x12.Segment{ID: "HI"}
		for i, dx := range c.DiagnosisCodes {
			qualifier := "ABF"
			if i == 0 {
				qualifier = "ABK"
			}
			hi.Elements = append(hi.Elements, x12.Composite(qualifier, dx))
		}
		segs = append(segs, hi)
	}

	// 2400 service lines.
	for i, line := range c.ServiceLines {
		segs = append(segs, x12.Seg("LX", strconv.Itoa(i+1)))

		proc := append([]string{"HC", line.ProcedureCode}, line.Modifiers...)
		sv1 := x12.Segment{ID: "SV1"}
		sv1.Elements = append(sv1.Elements, x12.Composite(proc...))
		sv1.Elements = append(sv1.Elements,
			x12.Simple(x12.Amount(line.ChargeCents)),
			x12.Simple("UN"),
			x12.Simple(strconv.Itoa(line.Units)),
			x12.Simple(""),
			x12.Simple(""))
		if len(line.DiagnosisPointers) > 0 {
			pointers := make([]string, len(line.DiagnosisPointers))
			for j, p := range line.DiagnosisPointers {
				pointers[j] = strconv.Itoa(p)
			}
			sv1.Elements = append(sv1.Elements, x12.Composite(pointers...))
		}
		segs = append(segs, sv1)
		segs = append(segs, x12.Seg("DTP", "472", "D8", x12.Date(line.ServiceDate)))
	}

	return segs, nil
}

func earliestServiceDate(lines []ServiceLine) time.Time {
	earliest := lines[0].ServiceDate
	for _, l := range lines[1:] {
		if l.ServiceDate.Before(earliest) {
			earliest = l.ServiceDate
		}
	}
	return earliest
}
