package x12

import "fmt"

// segmentSpec bounds the element count for one segment ID. Counts below the
// minimum or above the maximum fail decoding; anything in between is accepted
// so that optional trailing elements may be omitted by the sender.
type segmentSpec struct {
	minElements int
	maxElements int
}

func elementCountReason(n int, spec segmentSpec) string {
	return fmt.Sprintf("element count %d outside range %d..%d", n, spec.minElements, spec.maxElements)
}

// isaByteLength is the fixed byte length of an ISA segment including its
// terminator: 16 fixed-width elements plus separators.
const isaByteLength = 106

// segmentSpecs covers the segments appearing in the envelopes and in the
// 270/271, 276/277, 837P, 835 and 999 transaction sets.
var segmentSpecs = map[string]segmentSpec{
	// Envelope
	"ISA": {16, 16},
	"IEA": {2, 2},
	"GS":  {8, 8},
	"GE":  {2, 2},
	"ST":  {2, 3},
	"SE":  {2, 2},

	// Shared
	"BHT": {4, 6},
	"HL":  {3, 4},
	"NM1": {2, 12},
	"N1":  {2, 6},
	"N3":  {1, 2},
	"N4":  {1, 7},
	"REF": {2, 4},
	"PER": {2, 9},
	"DTP": {3, 3},
	"DTM": {2, 6},
	"TRN": {2, 4},
	"DMG": {2, 11},
	"AMT": {2, 3},
	"QTY": {2, 4},
	"CUR": {2, 21},

	// 270/271 eligibility
	"EQ":  {1, 5},
	"EB":  {1, 13},
	"INS": {2, 17},
	"MSG": {1, 3},
	"AAA": {3, 4},
	"LS":  {1, 1},
	"LE":  {1, 1},

	// 276/277 claim status
	"STC": {1, 12},
	"SVC": {2, 7},

	// 837P professional claim
	"SBR": {1, 9},
	"PAT": {1, 9},
	"CLM": {2, 20},
	"HI":  {1, 12},
	"LX":  {1, 1},
	"SV1": {2, 21},
	"PRV": {2, 6},
	"CN1": {1, 6},
	"K3":  {1, 3},
	"NTE": {2, 2},

	// 835 remittance
	"BPR": {2, 21},
	"CLP": {4, 14},
	"CAS": {3, 19},
	"PLB": {4, 14},
	"RDM": {1, 5},
	"MOA": {1, 9},
	"MIA": {1, 24},
	"LQ":  {1, 2},
	"TS3": {4, 24},
	"TS2": {1, 19},

	// 999 functional acknowledgment
	"AK1": {2, 3},
	"AK2": {2, 3},
	"IK3": {3, 4},
	"IK4": {2, 4},
	"IK5": {1, 6},
	"AK9": {4, 9},
	"CTX": {1, 6},
}
