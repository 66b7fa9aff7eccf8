// Package transport carries X12 payloads to trading partners. The payer-direct
// channel pairs a synchronous SOAP client (270/276) with an SFTP client (837
// batch upload, inbound 999/277/835 files); the clearinghouse channel is a
// JSON REST API authenticated with OAuth2 client credentials. Business logic
// selects a Gateway by channel and never branches on transport internals.
package transport

import (
	"context"
	"fmt"

	"github.com/medbill/edi-gateway/internal/domain/partner"
)

// TransportError wraps a network, timeout, or auth failure. It is retryable
// by the caller; the claim stays in its pre-transition state. Timeout marks a
// failed-unknown outcome: the payload may or may not have been received.
type TransportError struct {
	Channel string
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transport: %s %s timed out: %v", e.Channel, e.Op, e.Err)
	}
	return fmt.Sprintf("transport: %s %s failed: %v", e.Channel, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SubmitAck is the synchronous result of a claim submission. Accepted is true
// only when the remote end functionally accepted the claim in the same call;
// an SFTP upload succeeds without acceptance and leaves Accepted false until
// a 999/277 arrives.
type SubmitAck struct {
	Accepted  bool
	Reference string
	Reasons   []string
}

// Gateway is one submission channel for a trading partner.
type Gateway interface {
	Channel() partner.Channel
	// SubmitClaim delivers one enveloped 837 payload.
	SubmitClaim(ctx context.Context, cfg *partner.Config, fileName string, payload []byte) (*SubmitAck, error)
	// RealtimeRequest sends a 270 or 276 interchange and returns the paired
	// 271 or 277 response payload.
	RealtimeRequest(ctx context.Context, cfg *partner.Config, payload []byte) ([]byte, error)
}

// InboundFetcher retrieves response files from the payer's inbound directory.
type InboundFetcher interface {
	ListInbound(ctx context.Context, cfg *partner.Config) ([]string, error)
	Download(ctx context.Context, cfg *partner.Config, name string) ([]byte, error)
	// Archive moves a processed file out of the inbound directory so it is
	// not listed again.
	Archive(ctx context.Context, cfg *partner.Config, name string) error
}

// PayerDirectGateway submits over the payer's own gateway: SOAP for realtime
// and SFTP for batch.
type PayerDirectGateway struct {
	soap *SOAPClient
	sftp *SFTPClient
}

// NewPayerDirectGateway pairs a SOAP client and an SFTP client into one
// channel.
func NewPayerDirectGateway(soap *SOAPClient, sftp *SFTPClient) *PayerDirectGateway {
	return &PayerDirectGateway{soap: soap, sftp: sftp}
}

func (g *PayerDirectGateway) Channel() partner.Channel { return partner.ChannelPayerDirect }

// SubmitClaim uploads the 837 file to the partner's outbound directory. The
// upload completing means submitted, not accepted; acceptance arrives later
// as a 999/277 in the inbound directory.
func (g *PayerDirectGateway) SubmitClaim(ctx context.Context, cfg *partner.Config, fileName string, payload []byte) (*SubmitAck, error) {
	if err := g.sftp.Upload(ctx, cfg, fileName, payload); err != nil {
		return nil, err
	}
	return &SubmitAck{Accepted: false, Reference: fileName}, nil
}

func (g *PayerDirectGateway) RealtimeRequest(ctx context.Context, cfg *partner.Config, payload []byte) ([]byte, error) {
	return g.soap.Request(ctx, cfg, payload)
}
