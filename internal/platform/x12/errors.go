package x12

import "fmt"

// MalformedSegmentError indicates a segment that could not be decoded: either
// its ID is not a known segment, or its element count falls outside the
// segment's required/optional range.
type MalformedSegmentError struct {
	ID     string // segment ID as found in the input
	Index  int    // zero-based position of the segment within the input
	Reason string
}

func (e *MalformedSegmentError) Error() string {
	return fmt.Sprintf("x12: malformed segment %q at index %d: %s", e.ID, e.Index, e.Reason)
}

// EnvelopeMismatchError indicates an interchange whose trailer counts or
// control numbers do not agree with its body. It is always surfaced, never
// silently corrected.
type EnvelopeMismatchError struct {
	Field string // e.g. "IEA02", "GE01", "SE01"
	Want  string
	Got   string
}

func (e *EnvelopeMismatchError) Error() string {
	return fmt.Sprintf("x12: envelope mismatch on %s: want %s, got %s", e.Field, e.Want, e.Got)
}
