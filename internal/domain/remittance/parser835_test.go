package remittance

import (
	"testing"

	"github.com/medbill/edi-gateway/internal/platform/x12"
)

func bpr(amount, method, date string) x12.Segment {
	values := make([]string, 16)
	values[0] = "I"
	values[1] = amount
	values[2] = "C"
	values[3] = method
	values[15] = date
	return x12.Seg("BPR", values...)
}

func svc(procedure, charge, paid string) x12.Segment {
	seg := x12.Segment{ID: "SVC"}
	seg.Elements = append(seg.Elements,
		x12.Composite("HC", procedure),
		x12.Simple(charge),
		x12.Simple(paid))
	return seg
}

func TestParse835PaidClaim(t *testing.T) {
	set := &x12.TransactionSet{Code: "835", Segments: []x12.Segment{
		bpr("100.00", "ACH", "20240401"),
		x12.Seg("TRN", "1", "CHK1001", "1999999999"),
		x12.Seg("N1", "PR", "ACME HEALTH"),
		x12.Seg("N1", "PE", "SPRINGFIELD FAMILY CARE"),
		x12.Seg("LX", "1"),
		x12.Seg("CLP", "claim-1", "1", "100.00", "100.00", "", "12", "PCN9"),
		svc("99213", "40.00", "40.00"),
		svc("87880", "60.00", "60.00"),
	}}

	d, err := Parse835(set)
	if err != nil {
		t.Fatalf("Parse835: %v", err)
	}
	if d.PaymentAmountCents != 10000 {
		t.Errorf("PaymentAmountCents = %d, want 10000", d.PaymentAmountCents)
	}
	if d.PaymentMethod != "ACH" || d.CheckNumber != "CHK1001" {
		t.Errorf("payment header = %s/%s, want ACH/CHK1001", d.PaymentMethod, d.CheckNumber)
	}
	if d.PaymentDate.Format("20060102") != "20240401" {
		t.Errorf("PaymentDate = %v, want 2024-04-01", d.PaymentDate)
	}
	if d.PayerName != "ACME HEALTH" {
		t.Errorf("PayerName = %q", d.PayerName)
	}
	if len(d.Claims) != 1 {
		t.Fatalf("expected one claim payment, got %d", len(d.Claims))
	}
	cp := d.Claims[0]
	if cp.ClaimRef != "claim-1" || cp.Denied {
		t.Errorf("claim = %+v, want claim-1 not denied", cp)
	}
	if cp.PaidCents != 10000 || cp.ChargeCents != 10000 {
		t.Errorf("amounts = %d/%d, want 10000/10000", cp.PaidCents, cp.ChargeCents)
	}
	if cp.PayerClaimID != "PCN9" {
		t.Errorf("PayerClaimID = %q, want PCN9", cp.PayerClaimID)
	}
	if len(cp.Lines) != 2 || cp.Lines[0].ProcedureCode != "99213" || cp.Lines[1].PaidCents != 6000 {
		t.Errorf("lines = %+v", cp.Lines)
	}
}

func TestParse835DeniedClaimWithAdjustments(t *testing.T) {
	set := &x12.TransactionSet{Code: "835", Segments: []x12.Segment{
		bpr("0.00", "NON", "20240401"),
		x12.Seg("TRN", "1", "CHK1002"),
		x12.Seg("CLP", "claim-2", "4", "100.00", "0.00", "", "12", "PCN10"),
		x12.Seg("CAS", "CO", "29", "100.00"),
	}}

	d, err := Parse835(set)
	if err != nil {
		t.Fatalf("Parse835: %v", err)
	}
	cp := d.Claims[0]
	if !cp.Denied {
		t.Error("CLP02=4 should be denied")
	}
	if len(cp.Adjustments) != 1 {
		t.Fatalf("expected one adjustment, got %+v", cp.Adjustments)
	}
	adj := cp.Adjustments[0]
	if adj.GroupCode != "CO" || adj.ReasonCode != "29" || adj.AmountCents != 10000 {
		t.Errorf("adjustment = %+v", adj)
	}
}

func TestParse835RepeatingCASTriples(t *testing.T) {
	set := &x12.TransactionSet{Code: "835", Segments: []x12.Segment{
		bpr("60.00", "ACH", "20240401"),
		x12.Seg("CLP", "claim-3", "1", "100.00", "60.00"),
		x12.Seg("CAS", "CO", "45", "30.00", "", "253", "10.00"),
	}}

	d, err := Parse835(set)
	if err != nil {
		t.Fatalf("Parse835: %v", err)
	}
	adjs := d.Claims[0].Adjustments
	if len(adjs) != 2 {
		t.Fatalf("expected two adjustments from one CAS, got %+v", adjs)
	}
	if adjs[1].ReasonCode != "253" || adjs[1].AmountCents != 1000 {
		t.Errorf("second adjustment = %+v", adjs[1])
	}
}

func TestParse835ProviderLevelAdjustment(t *testing.T) {
	plb := x12.Segment{ID: "PLB"}
	plb.Elements = append(plb.Elements,
		x12.Simple("1234567890"),
		x12.Simple("20241231"),
		x12.Composite("WO", "REF1"),
		x12.Simple("10.00"))

	set := &x12.TransactionSet{Code: "835", Segments: []x12.Segment{
		bpr("90.00", "ACH", "20240401"),
		x12.Seg("CLP", "claim-4", "1", "100.00", "100.00"),
		plb,
	}}

	d, err := Parse835(set)
	if err != nil {
		t.Fatalf("Parse835: %v", err)
	}
	if len(d.Adjustments) != 1 {
		t.Fatalf("expected one provider adjustment, got %+v", d.Adjustments)
	}
	pa := d.Adjustments[0]
	if pa.ReasonCode != "WO" || pa.Reference != "REF1" || pa.AmountCents != 1000 {
		t.Errorf("provider adjustment = %+v", pa)
	}
	// The PLB closes the claim loop first.
	if len(d.Claims) != 1 {
		t.Errorf("expected the claim loop flushed before PLB, got %d claims", len(d.Claims))
	}
}

func TestParse835MalformedLoopIsSkipped(t *testing.T) {
	set := &x12.TransactionSet{Code: "835", Segments: []x12.Segment{
		bpr("50.00", "ACH", "20240401"),
		x12.Seg("CLP", "claim-bad", "1", "not-money", "50.00"),
		x12.Seg("CLP", "claim-good", "1", "50.00", "50.00"),
	}}

	d, err := Parse835(set)
	if err != nil {
		t.Fatalf("Parse835: %v", err)
	}
	if len(d.Claims) != 1 || d.Claims[0].ClaimRef != "claim-good" {
		t.Fatalf("expected only the well-formed loop, got %+v", d.Claims)
	}
	if len(d.Warnings) == 0 {
		t.Error("skipping a malformed loop should record a warning")
	}
}

func TestParse835WrongSetCode(t *testing.T) {
	if _, err := Parse835(&x12.TransactionSet{Code: "837"}); err == nil {
		t.Fatal("expected an error for a non-835 set")
	}
}
