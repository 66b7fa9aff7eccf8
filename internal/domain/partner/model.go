// Package partner holds per-organization trading partner configuration and
// the control number sequences scoped to each partner.
package partner

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// Channel selects the submission path for a partner.
type Channel string

const (
	// ChannelPayerDirect submits over the payer's own gateway: SOAP for
	// realtime 270/276 and SFTP for 837 batch files.
	ChannelPayerDirect Channel = "payer_direct"
	// ChannelClearinghouse submits through the clearinghouse REST API.
	ChannelClearinghouse Channel = "clearinghouse"
)

// Config is the per-organization trading partner record: identifiers,
// endpoints, and credentials for both channels. It is loaded once per
// submission and never mutated by the claims subsystem.
type Config struct {
	ID    uuid.UUID `db:"id" json:"id"`
	OrgID uuid.UUID `db:"org_id" json:"org_id"`
	Name  string    `db:"name" json:"name"`

	Channel Channel `db:"channel" json:"channel"`

	// Interchange identity.
	SenderQualifier   string `db:"sender_qualifier" json:"sender_qualifier"`
	SenderID          string `db:"sender_id" json:"sender_id"`
	ReceiverQualifier string `db:"receiver_qualifier" json:"receiver_qualifier"`
	ReceiverID        string `db:"receiver_id" json:"receiver_id"`
	PayerID           string `db:"payer_id" json:"payer_id"`
	PayerName         string `db:"payer_name" json:"payer_name"`
	UsageIndicator    string `db:"usage_indicator" json:"usage_indicator"` // "P" or "T"

	// Delimiters, consistent within one interchange.
	ElementSeparator   string `db:"element_separator" json:"element_separator"`
	ComponentSeparator string `db:"component_separator" json:"component_separator"`
	SegmentTerminator  string `db:"segment_terminator" json:"segment_terminator"`

	// Payer-direct SOAP endpoint (realtime 270/276).
	SOAPURL      string `db:"soap_url" json:"soap_url"`
	SOAPUsername string `db:"soap_username" json:"-"`
	SOAPPassword string `db:"soap_password" json:"-"`

	// Payer-direct SFTP endpoint (837 batch, inbound 999/277/835).
	SFTPHost        string `db:"sftp_host" json:"sftp_host"`
	SFTPPort        int    `db:"sftp_port" json:"sftp_port"`
	SFTPUsername    string `db:"sftp_username" json:"-"`
	SFTPPassword    string `db:"sftp_password" json:"-"`
	SFTPOutboundDir string `db:"sftp_outbound_dir" json:"sftp_outbound_dir"`
	SFTPInboundDir  string `db:"sftp_inbound_dir" json:"sftp_inbound_dir"`

	// Clearinghouse REST endpoint.
	ClearinghouseURL      string `db:"clearinghouse_url" json:"clearinghouse_url"`
	ClearinghouseTokenURL string `db:"clearinghouse_token_url" json:"clearinghouse_token_url"`
	ClearinghouseClientID string `db:"clearinghouse_client_id" json:"-"`
	ClearinghouseSecret   string `db:"clearinghouse_secret" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Delimiters returns the partner's configured delimiters, falling back to the
// HIPAA defaults for any character left unset.
func (c *Config) Delimiters() x12.Delimiters {
	d := x12.DefaultDelimiters
	if c.ElementSeparator != "" {
		d.Element = c.ElementSeparator[0]
	}
	if c.ComponentSeparator != "" {
		d.Component = c.ComponentSeparator[0]
	}
	if c.SegmentTerminator != "" {
		d.Segment = c.SegmentTerminator[0]
	}
	return d
}

// EnvelopeOptions builds the envelope options for this partner with the given
// interchange and group control numbers.
func (c *Config) EnvelopeOptions(interchange, group int64, version string) x12.EnvelopeOptions {
	usage := c.UsageIndicator
	if usage == "" {
		usage = "P"
	}
	return x12.EnvelopeOptions{
		SenderQualifier:    c.SenderQualifier,
		SenderID:           c.SenderID,
		ReceiverQualifier:  c.ReceiverQualifier,
		ReceiverID:         c.ReceiverID,
		SenderCode:         c.SenderID,
		ReceiverCode:       c.ReceiverID,
		InterchangeControl: interchange,
		GroupControl:       group,
		Version:            version,
		UsageIndicator:     usage,
		Delimiters:         c.Delimiters(),
	}
}

// ControlNumbers is one allocation from a partner's sequence: the interchange,
// group, and first transaction control numbers for a single transmission.
type ControlNumbers struct {
	Interchange int64
	Group       int64
	Transaction int64
}
