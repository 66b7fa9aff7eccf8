package x12

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testEnvelopeOptions() EnvelopeOptions {
	return EnvelopeOptions{
		SenderQualifier:    "ZZ",
		SenderID:           "SUBMITTER",
		ReceiverQualifier:  "ZZ",
		ReceiverID:         "OKPAYER",
		SenderCode:         "SUBMITTER",
		ReceiverCode:       "OKPAYER",
		InterchangeControl: 101,
		GroupControl:       11,
		Version:            "005010X222A1",
		UsageIndicator:     "T",
		Now:                time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func testBody() []Segment {
	return []Segment{
		Seg("BHT", "0019", "00", "CLM0001", "20260301", "1230", "CH"),
		Seg("NM1", "41", "2", "SUNRISE THERAPY", "", "", "", "", "46", "123456789"),
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	sets := []TransactionSet{{Code: "837", ControlNumber: 1, Version: "005010X222A1", Segments: testBody()}}
	wrapped, err := Wrap(testEnvelopeOptions(), sets)
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}

	encoded := Encode(DefaultDelimiters, wrapped)
	decoded, d, err := DecodeInterchange(encoded)
	if err != nil {
		t.Fatalf("DecodeInterchange() error: %v", err)
	}
	if d != DefaultDelimiters {
		t.Errorf("sniffed delimiters = %+v", d)
	}

	ic, err := Unwrap(decoded)
	if err != nil {
		t.Fatalf("Unwrap() error: %v", err)
	}
	if ic.ControlNumber != 101 {
		t.Errorf("interchange control = %d, want 101", ic.ControlNumber)
	}
	if ic.SenderID != "SUBMITTER" || ic.ReceiverID != "OKPAYER" {
		t.Errorf("sender/receiver = %q/%q", ic.SenderID, ic.ReceiverID)
	}
	if len(ic.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(ic.Groups))
	}
	group := ic.Groups[0]
	if group.FunctionalCode != "HC" || group.ControlNumber != 11 {
		t.Errorf("group = %+v", group)
	}
	if len(group.Sets) != 1 {
		t.Fatalf("sets = %d, want 1", len(group.Sets))
	}
	set := group.Sets[0]
	if set.Code != "837" || set.ControlNumber != 1 {
		t.Errorf("set = %+v", set)
	}
	if len(set.Segments) != len(testBody()) {
		t.Errorf("set body = %d segments, want %d", len(set.Segments), len(testBody()))
	}
}

func TestWrapMultipleTransactionSets(t *testing.T) {
	sets := []TransactionSet{
		{Code: "837", ControlNumber: 1, Segments: testBody()},
		{Code: "837", ControlNumber: 2, Segments: testBody()},
	}
	wrapped, err := Wrap(testEnvelopeOptions(), sets)
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}
	ic, err := Unwrap(wrapped)
	if err != nil {
		t.Fatalf("Unwrap() error: %v", err)
	}
	if len(ic.Groups[0].Sets) != 2 {
		t.Errorf("sets = %d, want 2", len(ic.Groups[0].Sets))
	}
	// GE01 reflects the set count.
	for _, seg := range wrapped {
		if seg.ID == "GE" && seg.Get(1) != "2" {
			t.Errorf("GE01 = %q, want 2", seg.Get(1))
		}
	}
}

func TestUnwrapInterchangeControlMismatch(t *testing.T) {
	sets := []TransactionSet{{Code: "837", ControlNumber: 1, Segments: testBody()}}
	wrapped, err := Wrap(testEnvelopeOptions(), sets)
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}
	// Corrupt IEA02 so it no longer matches ISA13.
	encoded := Encode(DefaultDelimiters, wrapped)
	corrupted := strings.Replace(encoded, "IEA*1*000000101", "IEA*1*000000999", 1)

	decoded, _, err := DecodeInterchange(corrupted)
	if err != nil {
		t.Fatalf("DecodeInterchange() error: %v", err)
	}
	_, err = Unwrap(decoded)
	var mismatch *EnvelopeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Unwrap() error = %v, want EnvelopeMismatchError", err)
	}
	if mismatch.Field != "IEA02" {
		t.Errorf("mismatch field = %q, want IEA02", mismatch.Field)
	}
}

func TestUnwrapSegmentCountMismatch(t *testing.T) {
	sets := []TransactionSet{{Code: "837", ControlNumber: 1, Segments: testBody()}}
	wrapped, err := Wrap(testEnvelopeOptions(), sets)
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}
	for i, seg := range wrapped {
		if seg.ID == "SE" {
			wrapped[i].Elements[0] = Simple("99")
		}
	}
	_, err = Unwrap(wrapped)
	var mismatch *EnvelopeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Unwrap() error = %v, want EnvelopeMismatchError", err)
	}
	if mismatch.Field != "SE01" {
		t.Errorf("mismatch field = %q, want SE01", mismatch.Field)
	}
}

func TestUnwrapGroupControlMismatch(t *testing.T) {
	sets := []TransactionSet{{Code: "270", ControlNumber: 7, Segments: []Segment{
		Seg("BHT", "0022", "13", "ELG0001", "20260301", "1230"),
	}}}
	wrapped, err := Wrap(testEnvelopeOptions(), sets)
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}
	for i, seg := range wrapped {
		if seg.ID == "GE" {
			wrapped[i].Elements[1] = Simple("999")
		}
	}
	_, err = Unwrap(wrapped)
	var mismatch *EnvelopeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Unwrap() error = %v, want EnvelopeMismatchError", err)
	}
	if mismatch.Field != "GE02" {
		t.Errorf("mismatch field = %q, want GE02", mismatch.Field)
	}
}

func TestWrapISAIsFixedWidth(t *testing.T) {
	sets := []TransactionSet{{Code: "276", ControlNumber: 3, Segments: []Segment{
		Seg("BHT", "0010", "13", "STAT0001", "20260301", "1230"),
	}}}
	wrapped, err := Wrap(testEnvelopeOptions(), sets)
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}
	encoded := Encode(DefaultDelimiters, wrapped)
	isaEnd := strings.IndexByte(encoded, '~') + 1
	if isaEnd != isaByteLength {
		t.Errorf("ISA segment is %d bytes, want %d", isaEnd, isaByteLength)
	}
}

func TestFunctionalIdentifier(t *testing.T) {
	cases := map[string]string{"270": "HS", "276": "HR", "837": "HC", "835": "HP", "999": "FA"}
	for code, want := range cases {
		if got := FunctionalIdentifier(code); got != want {
			t.Errorf("FunctionalIdentifier(%s) = %q, want %q", code, got, want)
		}
	}
}
