package x12

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// functionalIdentifierCodes maps transaction set codes to the GS01 functional
// identifier code for their group.
var functionalIdentifierCodes = map[string]string{
	"270": "HS",
	"271": "HB",
	"276": "HR",
	"277": "HN",
	"835": "HP",
	"837": "HC",
	"999": "FA",
}

// FunctionalIdentifier returns the GS01 code for a transaction set code.
func FunctionalIdentifier(setCode string) string {
	return functionalIdentifierCodes[setCode]
}

// TransactionSet is one ST..SE body. Segments excludes the ST and SE
// themselves; Wrap adds them and Unwrap strips them.
type TransactionSet struct {
	Code          string // e.g. "837"
	ControlNumber int64  // ST02/SE02
	Version       string // ST03 implementation convention, e.g. "005010X222A1"
	Segments      []Segment
}

// EnvelopeOptions carries everything needed to wrap transaction sets in
// ISA/GS..GE/IEA. Control numbers come from the trading partner's sequence;
// the envelope manager never invents them.
type EnvelopeOptions struct {
	SenderQualifier   string // ISA05
	SenderID          string // ISA06
	ReceiverQualifier string // ISA07
	ReceiverID        string // ISA08
	SenderCode        string // GS02 application sender code
	ReceiverCode      string // GS03 application receiver code
	InterchangeControl int64 // ISA13/IEA02
	GroupControl       int64 // GS06/GE02
	FunctionalCode     string // GS01; derived from the first set when empty
	Version            string // GS08 implementation version
	UsageIndicator     string // ISA15: "P" production, "T" test
	Now                time.Time
	Delimiters         Delimiters
}

// Interchange is a decoded envelope tree.
type Interchange struct {
	SenderQualifier   string
	SenderID          string
	ReceiverQualifier string
	ReceiverID        string
	ControlNumber     int64
	UsageIndicator    string
	Groups            []FunctionalGroup
}

// FunctionalGroup is one GS..GE within an interchange.
type FunctionalGroup struct {
	FunctionalCode string
	SenderCode     string
	ReceiverCode   string
	ControlNumber  int64
	Version        string
	Sets           []TransactionSet
}

// Wrap envelopes the transaction sets into a single functional group inside a
// single interchange, computing the SE/GE/IEA trailer counts.
func Wrap(opts EnvelopeOptions, sets []TransactionSet) ([]Segment, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("x12: wrap requires at least one transaction set")
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	d := opts.Delimiters
	if d.Element == 0 {
		d = DefaultDelimiters
	}
	functionalCode := opts.FunctionalCode
	if functionalCode == "" {
		functionalCode = FunctionalIdentifier(sets[0].Code)
	}
	if functionalCode == "" {
		return nil, fmt.Errorf("x12: no functional identifier code for transaction set %q", sets[0].Code)
	}

	var out []Segment
	out = append(out, isaSegment(opts, d))
	out = append(out, Seg("GS",
		functionalCode,
		opts.SenderCode,
		opts.ReceiverCode,
		opts.Now.Format("20060102"),
		opts.Now.Format("1504"),
		strconv.FormatInt(opts.GroupControl, 10),
		"X",
		opts.Version,
	))

	for _, set := range sets {
		ctrl := fmt.Sprintf("%04d", set.ControlNumber)
		st := Seg("ST", set.Code, ctrl)
		if set.Version != "" {
			st.Elements = append(st.Elements, Simple(set.Version))
		}
		out = append(out, st)
		out = append(out, set.Segments...)
		// SE01 counts every segment in the set including ST and SE.
		out = append(out, Seg("SE", strconv.Itoa(len(set.Segments)+2), ctrl))
	}

	out = append(out, Seg("GE", strconv.Itoa(len(sets)), strconv.FormatInt(opts.GroupControl, 10)))
	out = append(out, Seg("IEA", "1", fmt.Sprintf("%09d", opts.InterchangeControl)))
	return out, nil
}

func isaSegment(opts EnvelopeOptions, d Delimiters) Segment {
	usage := opts.UsageIndicator
	if usage == "" {
		usage = "P"
	}
	return Seg("ISA",
		"00", strings.Repeat(" ", 10),
		"00", strings.Repeat(" ", 10),
		opts.SenderQualifier, padRight(opts.SenderID, 15),
		opts.ReceiverQualifier, padRight(opts.ReceiverID, 15),
		opts.Now.Format("060102"),
		opts.Now.Format("1504"),
		string(d.Repetition),
		"00501",
		fmt.Sprintf("%09d", opts.InterchangeControl),
		"0",
		usage,
		string(d.Component),
	)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Unwrap validates an interchange's envelope structure and returns its tree.
// Trailer count or control number disagreement fails with
// EnvelopeMismatchError; it is reported, never corrected.
func Unwrap(segments []Segment) (*Interchange, error) {
	if len(segments) < 2 || segments[0].ID != "ISA" {
		return nil, &EnvelopeMismatchError{Field: "ISA", Want: "ISA as first segment", Got: firstID(segments)}
	}
	last := segments[len(segments)-1]
	if last.ID != "IEA" {
		return nil, &EnvelopeMismatchError{Field: "IEA", Want: "IEA as last segment", Got: last.ID}
	}

	isa := segments[0]
	ic := &Interchange{
		SenderQualifier:   strings.TrimSpace(isa.Get(5)),
		SenderID:          strings.TrimSpace(isa.Get(6)),
		ReceiverQualifier: strings.TrimSpace(isa.Get(7)),
		ReceiverID:        strings.TrimSpace(isa.Get(8)),
		UsageIndicator:    isa.Get(15),
	}
	var err error
	if ic.ControlNumber, err = parseControl("ISA13", isa.Get(13)); err != nil {
		return nil, err
	}
	ieaControl, err := parseControl("IEA02", last.Get(2))
	if err != nil {
		return nil, err
	}
	if ieaControl != ic.ControlNumber {
		return nil, &EnvelopeMismatchError{
			Field: "IEA02",
			Want:  strconv.FormatInt(ic.ControlNumber, 10),
			Got:   strconv.FormatInt(ieaControl, 10),
		}
	}

	body := segments[1 : len(segments)-1]
	i := 0
	for i < len(body) {
		if body[i].ID != "GS" {
			return nil, &EnvelopeMismatchError{Field: "GS", Want: "GS segment", Got: body[i].ID}
		}
		group, consumed, err := unwrapGroup(body[i:])
		if err != nil {
			return nil, err
		}
		ic.Groups = append(ic.Groups, *group)
		i += consumed
	}

	if got := strconv.Itoa(len(ic.Groups)); got != strings.TrimSpace(last.Get(1)) {
		return nil, &EnvelopeMismatchError{Field: "IEA01", Want: got, Got: last.Get(1)}
	}
	return ic, nil
}

func unwrapGroup(segments []Segment) (*FunctionalGroup, int, error) {
	gs := segments[0]
	group := &FunctionalGroup{
		FunctionalCode: gs.Get(1),
		SenderCode:     gs.Get(2),
		ReceiverCode:   gs.Get(3),
		Version:        gs.Get(8),
	}
	var err error
	if group.ControlNumber, err = parseControl("GS06", gs.Get(6)); err != nil {
		return nil, 0, err
	}

	i := 1
	for i < len(segments) && segments[i].ID == "ST" {
		set, consumed, err := unwrapSet(segments[i:])
		if err != nil {
			return nil, 0, err
		}
		group.Sets = append(group.Sets, *set)
		i += consumed
	}

	if i >= len(segments) || segments[i].ID != "GE" {
		return nil, 0, &EnvelopeMismatchError{Field: "GE", Want: "GE segment", Got: firstID(segments[i:])}
	}
	ge := segments[i]
	geControl, err := parseControl("GE02", ge.Get(2))
	if err != nil {
		return nil, 0, err
	}
	if geControl != group.ControlNumber {
		return nil, 0, &EnvelopeMismatchError{
			Field: "GE02",
			Want:  strconv.FormatInt(group.ControlNumber, 10),
			Got:   strconv.FormatInt(geControl, 10),
		}
	}
	if want := strconv.Itoa(len(group.Sets)); want != strings.TrimSpace(ge.Get(1)) {
		return nil, 0, &EnvelopeMismatchError{Field: "GE01", Want: want, Got: ge.Get(1)}
	}
	return group, i + 1, nil
}

func unwrapSet(segments []Segment) (*TransactionSet, int, error) {
	st := segments[0]
	set := &TransactionSet{Code: st.Get(1), Version: st.Get(3)}
	var err error
	if set.ControlNumber, err = parseControl("ST02", st.Get(2)); err != nil {
		return nil, 0, err
	}

	i := 1
	for i < len(segments) && segments[i].ID != "SE" {
		if segments[i].ID == "ST" || segments[i].ID == "GE" || segments[i].ID == "IEA" {
			return nil, 0, &EnvelopeMismatchError{Field: "SE", Want: "SE segment", Got: segments[i].ID}
		}
		set.Segments = append(set.Segments, segments[i])
		i++
	}
	if i >= len(segments) {
		return nil, 0, &EnvelopeMismatchError{Field: "SE", Want: "SE segment", Got: "end of input"}
	}

	se := segments[i]
	seControl, err := parseControl("SE02", se.Get(2))
	if err != nil {
		return nil, 0, err
	}
	if seControl != set.ControlNumber {
		return nil, 0, &EnvelopeMismatchError{
			Field: "SE02",
			Want:  strconv.FormatInt(set.ControlNumber, 10),
			Got:   strconv.FormatInt(seControl, 10),
		}
	}
	if want := strconv.Itoa(len(set.Segments) + 2); want != strings.TrimSpace(se.Get(1)) {
		return nil, 0, &EnvelopeMismatchError{Field: "SE01", Want: want, Got: se.Get(1)}
	}
	return set, i + 1, nil
}

func parseControl(field, raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &EnvelopeMismatchError{Field: field, Want: "numeric control number", Got: raw}
	}
	return n, nil
}

func firstID(segments []Segment) string {
	if len(segments) == 0 {
		return "none"
	}
	return segments[0].ID
}
