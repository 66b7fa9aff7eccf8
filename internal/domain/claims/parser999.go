package claims

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// FunctionalAck is the parsed result of a 999 (or 997) functional
// acknowledgment: the payer's syntax-level verdict on a previously submitted
// functional group.
type FunctionalAck struct {
	FunctionalCode string // AK101: functional identifier of the acknowledged group
	GroupControl   int64  // AK102: control number of the acknowledged group
	Accepted       bool   // AK901 "A" or "E" (accepted with errors)
	Reasons        []string
}

// Parse999 extracts the acknowledgment verdict from a 999 transaction set.
// IK3/IK4 segment-level errors become reasons; AK9 carries the group
// disposition.
func Parse999(set *x12.TransactionSet) (*FunctionalAck, error) {
	if set.Code != "999" && set.Code != "997" {
		return nil, fmt.Errorf("claims: expected a 999 transaction set, got %q", set.Code)
	}

	ack := &FunctionalAck{}
	sawAK9 := false
	for _, seg := range set.Segments {
		switch seg.ID {
		case "AK1":
			ack.FunctionalCode = seg.Get(1)
			if n, err := parseInt64(seg.Get(2)); err == nil {
				ack.GroupControl = n
			}
		case "IK3":
			ack.Reasons = append(ack.Reasons, fmt.Sprintf("segment %s at position %s: error %s", seg.Get(1), seg.Get(2), seg.Get(4)))
		case "IK4":
			ack.Reasons = append(ack.Reasons, fmt.Sprintf("element %s: error %s", seg.Get(1), seg.Get(3)))
		case "IK5":
			if code := seg.Get(1); code != "A" && code != "" {
				ack.Reasons = append(ack.Reasons, "transaction set "+code+":"+seg.Get(2))
			}
		case "AK9":
			sawAK9 = true
			switch seg.Get(1) {
			case "A", "E":
				ack.Accepted = true
			default:
				ack.Accepted = false
				if code := seg.Get(1); code != "" {
					ack.Reasons = append(ack.Reasons, "group disposition "+code)
				}
			}
		}
	}
	if !sawAK9 {
		return nil, fmt.Errorf("claims: 999 missing AK9 group disposition")
	}
	return ack, nil
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
