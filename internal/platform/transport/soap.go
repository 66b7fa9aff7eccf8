package transport

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/medbill/edi-gateway/internal/domain/partner"
)

// DefaultSOAPTimeout bounds a synchronous payer call. On timeout the call is
// failed-unknown: the claim must stay in its pre-submission state for an
// explicit retry, never silently advance.
const DefaultSOAPTimeout = 30 * time.Second

// SOAPClient posts WS-Security-authenticated SOAP 1.1 envelopes carrying an
// X12 payload and unwraps the paired response envelope.
type SOAPClient struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewSOAPClient returns a SOAP client with the given per-request timeout;
// zero means DefaultSOAPTimeout.
func NewSOAPClient(timeout time.Duration) *SOAPClient {
	if timeout <= 0 {
		timeout = DefaultSOAPTimeout
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

type soapEnvelope struct {
	XMLName xml.Name   `xml:"soapenv:Envelope"`
	NSSoap  string     `xml:"xmlns:soapenv,attr"`
	NSWsse  string     `xml:"xmlns:wsse,attr"`
	Header  soapHeader `xml:"soapenv:Header"`
	Body    soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct {
	Security wsseSecurity `xml:"wsse:Security"`
}

type wsseSecurity struct {
	MustUnderstand string            `xml:"soapenv:mustUnderstand,attr"`
	UsernameToken  wsseUsernameToken `xml:"wsse:UsernameToken"`
}

type wsseUsernameToken struct {
	Username string       `xml:"wsse:Username"`
	Password wssePassword `xml:"wsse:Password"`
}

type wssePassword struct {
	Type  string `xml:"Type,attr"`
	Value string `xml:",chardata"`
}

type soapBody struct {
	Request coreTransaction `xml:"cor:COREEnvelopeRealTimeRequest"`
	NSCore  string          `xml:"xmlns:cor,attr"`
}

// coreTransaction is the CAQH CORE real-time envelope body: the X12 payload
// travels as a raw string element.
type coreTransaction struct {
	PayloadType    string `xml:"PayloadType"`
	ProcessingMode string `xml:"ProcessingMode"`
	SenderID       string `xml:"SenderID"`
	ReceiverID     string `xml:"ReceiverID"`
	TimeStamp      string `xml:"TimeStamp"`
	Payload        string `xml:"Payload"`
}

type soapResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Payload   string `xml:"Payload"`
			ErrorCode string `xml:"ErrorCode"`
			ErrorText string `xml:"ErrorMessage"`
		} `xml:",any"`
	} `xml:"Body"`
}

// Request posts the X12 payload to the partner's SOAP endpoint and returns
// the response payload. Timeouts surface as TransportError with Timeout set.
func (c *SOAPClient) Request(ctx context.Context, cfg *partner.Config, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	env := soapEnvelope{
		NSSoap: "http://schemas.xmlsoap.org/soap/envelope/",
		NSWsse: "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd",
		Header: soapHeader{Security: wsseSecurity{
			MustUnderstand: "1",
			UsernameToken: wsseUsernameToken{
				Username: cfg.SOAPUsername,
				Password: wssePassword{
					Type:  "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText",
					Value: cfg.SOAPPassword,
				},
			},
		}},
		Body: soapBody{
			NSCore: "http://www.caqh.org/SOAP/WSDL/CORERule2.2.0.xsd",
			Request: coreTransaction{
				PayloadType:    payloadType(cfg, payload),
				ProcessingMode: "RealTime",
				SenderID:       cfg.SenderID,
				ReceiverID:     cfg.ReceiverID,
				TimeStamp:      time.Now().UTC().Format(time.RFC3339),
				Payload:        string(payload),
			},
		},
	}

	body, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal soap envelope: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.SOAPURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: build soap request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "RealTimeTransaction")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{
			Channel: string(partner.ChannelPayerDirect),
			Op:      "soap request",
			Timeout: isTimeout(err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "soap read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Channel: string(partner.ChannelPayerDirect),
			Op:      "soap request",
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBytes, 200)),
		}
	}

	var parsed soapResponseEnvelope
	if err := xml.Unmarshal(respBytes, &parsed); err != nil {
		return nil, &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "soap parse response", Err: err}
	}
	if parsed.Body.Response.Payload == "" {
		reason := parsed.Body.Response.ErrorText
		if reason == "" {
			reason = "empty payload in response envelope"
		}
		return nil, &TransportError{Channel: string(partner.ChannelPayerDirect), Op: "soap response", Err: errors.New(reason)}
	}
	return []byte(parsed.Body.Response.Payload), nil
}

// payloadType maps the interchange's transaction set to the CORE payload type
// identifier expected by the payer.
func payloadType(cfg *partner.Config, payload []byte) string {
	st := "ST" + string(cfg.Delimiters().Element)
	switch {
	case bytes.Contains(payload, []byte(st+"270")):
		return "X12_270_Request_005010X279A1"
	case bytes.Contains(payload, []byte(st+"276")):
		return "X12_276_Request_005010X212"
	default:
		return "X12_005010_Request"
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
