package claims

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

func testPartnerConfig() *partner.Config {
	return &partner.Config{
		ID:                uuid.New(),
		Channel:           partner.ChannelPayerDirect,
		SenderQualifier:   "ZZ",
		SenderID:          "SUBMITTER01",
		ReceiverQualifier: "ZZ",
		ReceiverID:        "PAYER01",
		PayerID:           "12345",
		PayerName:         "ACME HEALTH",
		UsageIndicator:    "T",
	}
}

func testClaim() *Claim {
	serviceDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return &Claim{
		ID:        uuid.New(),
		OrgID:     uuid.New(),
		PartnerID: uuid.New(),
		Status:    StatusReady,
		Patient: Patient{
			FirstName: "JANE",
			LastName:  "DOE",
			BirthDate: time.Date(1985, 6, 1, 0, 0, 0, 0, time.UTC),
			Gender:    "F",
			MemberID:  "MBR123456",
			Address:   "12 ELM ST",
			City:      "SPRINGFIELD",
			State:     "IL",
			Zip:       "62701",
		},
		Provider: Provider{
			OrgName: "SPRINGFIELD FAMILY CARE",
			NPI:     "1234567890",
			TaxID:   "998877665",
			Address: "400 MAIN ST",
			City:    "SPRINGFIELD",
			State:   "IL",
			Zip:     "62701",
		},
		DiagnosisCodes: []string{"J0190", "R509"},
		ServiceLines: []ServiceLine{
			{ProcedureCode: "99213", ChargeCents: 4000, Units: 1, ServiceDate: serviceDate, DiagnosisPointers: []int{1}},
			{ProcedureCode: "87880", ChargeCents: 6000, Units: 1, ServiceDate: serviceDate, DiagnosisPointers: []int{1, 2}},
		},
		TotalChargeCents: 10000,
	}
}

func findSegments(segs []x12.Segment, id string) []x12.Segment {
	var out []x12.Segment
	for _, s := range segs {
		if s.ID == id {
			out = append(out, s)
		}
	}
	return out
}

func TestBuild837PClaimAmountAndLines(t *testing.T) {
	c := testClaim()
	segs, err := Build837P(c, testPartnerConfig(), time.Now())
	if err != nil {
		t.Fatalf("Build837P: %v", err)
	}

	clms := findSegments(segs, "CLM")
	if len(clms) != 1 {
		t.Fatalf("expected one CLM segment, got %d", len(clms))
	}
	if got := clms[0].Get(1); got != c.ID.String() {
		t.Errorf("CLM01 = %q, want claim id %q", got, c.ID.String())
	}
	if got := clms[0].Get(2); got != "100.00" {
		t.Errorf("CLM02 = %q, want \"100.00\"", got)
	}

	sv1s := findSegments(segs, "SV1")
	if len(sv1s) != 2 {
		t.Fatalf("expected two SV1 segments, got %d", len(sv1s))
	}
	if got := sv1s[0].Get(2); got != "40.00" {
		t.Errorf("first SV102 = %q, want \"40.00\"", got)
	}
	if got := sv1s[1].Get(2); got != "60.00" {
		t.Errorf("second SV102 = %q, want \"60.00\"", got)
	}
	if got := sv1s[0].Component(1, 2); got != "99213" {
		t.Errorf("first SV101-2 = %q, want \"99213\"", got)
	}

	if got := len(findSegments(segs, "LX")); got != 2 {
		t.Errorf("expected two LX segments, got %d", got)
	}
}

func TestBuild837PDiagnosisQualifiers(t *testing.T) {
	segs, err := Build837P(testClaim(), testPartnerConfig(), time.Now())
	if err != nil {
		t.Fatalf("Build837P: %v", err)
	}
	his := findSegments(segs, "HI")
	if len(his) != 1 {
		t.Fatalf("expected one HI segment, got %d", len(his))
	}
	hi := his[0]
	if got := hi.Component(1, 1); got != "ABK" {
		t.Errorf("principal diagnosis qualifier = %q, want ABK", got)
	}
	if got := hi.Component(1, 2); got != "J0190" {
		t.Errorf("principal diagnosis = %q, want J0190", got)
	}
	if got := hi.Component(2, 1); got != "ABF" {
		t.Errorf("secondary diagnosis qualifier = %q, want ABF", got)
	}
}

func TestBuild837PBlocksUnbalancedClaim(t *testing.T) {
	c := testClaim()
	c.TotalChargeCents = 9999
	_, err := Build837P(c, testPartnerConfig(), time.Now())
	var balanceErr *ClaimBalanceError
	if !errors.As(err, &balanceErr) {
		t.Fatalf("expected ClaimBalanceError, got %v", err)
	}
	if balanceErr.LineSumCents != 10000 || balanceErr.TotalCents != 9999 {
		t.Errorf("balance error carries %d/%d, want 10000/9999", balanceErr.LineSumCents, balanceErr.TotalCents)
	}
}

func TestBuild276CarriesTrace(t *testing.T) {
	c := testClaim()
	c.PayerClaimID = "PCN777"
	segs := Build276(c, testPartnerConfig(), time.Now())

	trns := findSegments(segs, "TRN")
	if len(trns) != 1 {
		t.Fatalf("expected one TRN segment, got %d", len(trns))
	}
	if got := trns[0].Get(2); got != c.ID.String() {
		t.Errorf("TRN02 = %q, want claim id", got)
	}
	refs := findSegments(segs, "REF")
	if len(refs) != 1 || refs[0].Get(1) != "1K" || refs[0].Get(2) != "PCN777" {
		t.Errorf("expected REF*1K*PCN777, got %v", refs)
	}
	amts := findSegments(segs, "AMT")
	if len(amts) != 1 || amts[0].Get(2) != "100.00" {
		t.Errorf("expected AMT*T3*100.00, got %v", amts)
	}
}
