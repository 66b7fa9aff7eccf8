// Package x12 implements the X12 segment codec and interchange envelope
// handling used by the EDI claim transactions (270/271, 276/277, 837P, 835,
// 999). Segments are delimiter-separated element lists; the three delimiters
// are declared in the ISA header and consistent for a whole interchange.
package x12

import (
	"strings"
)

// Delimiters holds the separator characters for one interchange.
type Delimiters struct {
	Element    byte
	Component  byte
	Repetition byte
	Segment    byte
}

// DefaultDelimiters are the conventional HIPAA 5010 separators.
var DefaultDelimiters = Delimiters{Element: '*', Component: ':', Repetition: '^', Segment: '~'}

// Element is a single segment element. Composite elements carry their parts
// in Components; simple elements have a single component equal to Value.
type Element struct {
	Value      string
	Components []string
}

// Simple returns a non-composite element.
func Simple(value string) Element {
	return Element{Value: value, Components: []string{value}}
}

// Composite returns an element made of component-separated parts.
func Composite(parts ...string) Element {
	return Element{Components: parts}
}

// Segment is one decoded X12 segment: an ID and its ordered elements.
// Element indices are 1-based in accessors, matching the X12 convention
// (NM103 is seg.Get(3)).
type Segment struct {
	ID       string
	Elements []Element
}

// Seg builds a segment from simple element values. Composite elements can be
// appended afterwards or built with Composite.
func Seg(id string, values ...string) Segment {
	s := Segment{ID: id}
	for _, v := range values {
		s.Elements = append(s.Elements, Simple(v))
	}
	return s
}

// Get returns the value of the i-th element (1-based), or "" when absent.
func (s Segment) Get(i int) string {
	if i < 1 || i > len(s.Elements) {
		return ""
	}
	return s.Elements[i-1].Value
}

// Component returns the j-th component of the i-th element (both 1-based),
// or "" when absent.
func (s Segment) Component(i, j int) string {
	if i < 1 || i > len(s.Elements) {
		return ""
	}
	comps := s.Elements[i-1].Components
	if j < 1 || j > len(comps) {
		return ""
	}
	return comps[j-1]
}

// Encode renders segments using the given delimiters. Trailing empty elements
// are trimmed per X12 convention, except on ISA which is fixed-width.
func Encode(d Delimiters, segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(encodeSegment(d, seg))
		b.WriteByte(d.Segment)
	}
	return b.String()
}

func encodeSegment(d Delimiters, seg Segment) string {
	elements := seg.Elements
	if seg.ID != "ISA" {
		for len(elements) > 0 && elementEmpty(elements[len(elements)-1]) {
			elements = elements[:len(elements)-1]
		}
	}

	parts := make([]string, 0, len(elements)+1)
	parts = append(parts, seg.ID)
	for _, el := range elements {
		if len(el.Components) > 1 {
			parts = append(parts, strings.Join(el.Components, string(d.Component)))
		} else {
			parts = append(parts, el.Value)
		}
	}
	return strings.Join(parts, string(d.Element))
}

func elementEmpty(el Element) bool {
	if el.Value != "" {
		return false
	}
	for _, c := range el.Components {
		if c != "" {
			return false
		}
	}
	return true
}

// Decode splits raw interchange text into segments using the given
// delimiters. Whitespace between segments (newlines in wrapped files) is
// tolerated. Segments in the known-segment table are bounds-checked; an
// unknown but well-formed segment ID decodes generically, so transaction
// parsers can skip response segments the table does not cover instead of
// failing the whole interchange. Trailing empty elements omitted by the
// sender are accepted.
func Decode(d Delimiters, data string) ([]Segment, error) {
	var segments []Segment
	idx := 0
	for _, raw := range strings.Split(data, string(d.Segment)) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		seg, err := decodeSegment(d, raw, idx)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
		idx++
	}
	return segments, nil
}

func decodeSegment(d Delimiters, raw string, idx int) (Segment, error) {
	fields := strings.Split(raw, string(d.Element))
	id := fields[0]

	if !plausibleSegmentID(id) {
		return Segment{}, &MalformedSegmentError{ID: id, Index: idx, Reason: "not a segment ID"}
	}

	seg := Segment{ID: id}
	for _, f := range fields[1:] {
		seg.Elements = append(seg.Elements, Element{
			Value:      f,
			Components: strings.Split(f, string(d.Component)),
		})
	}

	spec, ok := segmentSpecs[id]
	if !ok {
		// Not in the table: keep it so parsers can skip it.
		return seg, nil
	}
	n := len(seg.Elements)
	if n < spec.minElements || n > spec.maxElements {
		return Segment{}, &MalformedSegmentError{
			ID:     id,
			Index:  idx,
			Reason: elementCountReason(n, spec),
		}
	}
	return seg, nil
}

// plausibleSegmentID reports whether id has the shape of an X12 segment ID:
// two or three uppercase letters or digits. Anything else means the input is
// not delimiter-separated X12 at all.
func plausibleSegmentID(id string) bool {
	if len(id) < 2 || len(id) > 3 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// SniffDelimiters reads the delimiters declared by a raw interchange. The ISA
// segment is fixed-width: the element separator is the byte after "ISA", the
// component separator is ISA16 at offset 104, and the segment terminator
// immediately follows it.
func SniffDelimiters(data string) (Delimiters, error) {
	if len(data) < isaByteLength || data[:3] != "ISA" {
		return Delimiters{}, &MalformedSegmentError{ID: "ISA", Index: 0, Reason: "interchange does not start with a full ISA segment"}
	}
	d := Delimiters{
		Element:    data[3],
		Repetition: data[82],
		Component:  data[104],
		Segment:    data[105],
	}
	return d, nil
}

// DecodeInterchange sniffs the delimiters from the ISA header and decodes the
// whole interchange.
func DecodeInterchange(data string) ([]Segment, Delimiters, error) {
	d, err := SniffDelimiters(data)
	if err != nil {
		return nil, Delimiters{}, err
	}
	segs, err := Decode(d, data)
	if err != nil {
		return nil, d, err
	}
	return segs, d, nil
}
