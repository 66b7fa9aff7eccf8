package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/medbill/edi-gateway/internal/domain/partner"
)

// ClearinghouseClient submits claims and realtime inquiries through the
// clearinghouse REST API. The clearinghouse translates JSON to X12
// internally, but we still build and send the underlying X12 payload so
// direct-channel and clearinghouse-channel claims are byte-identical for
// audit.
type ClearinghouseClient struct {
	timeout time.Duration

	mu      sync.Mutex
	sources map[string]*http.Client // token-bearing client per partner
}

// NewClearinghouseClient returns a clearinghouse client with the given
// per-request timeout; zero means DefaultSOAPTimeout.
func NewClearinghouseClient(timeout time.Duration) *ClearinghouseClient {
	if timeout <= 0 {
		timeout = DefaultSOAPTimeout
	}
	return &ClearinghouseClient{
		timeout: timeout,
		sources: make(map[string]*http.Client),
	}
}

func (c *ClearinghouseClient) Channel() partner.Channel { return partner.ChannelClearinghouse }

// httpClient returns an OAuth2 client-credentials HTTP client for the
// partner, caching the token source so tokens are reused until expiry.
func (c *ClearinghouseClient) httpClient(ctx context.Context, cfg *partner.Config) *http.Client {
	key := cfg.ClearinghouseTokenURL + "|" + cfg.ClearinghouseClientID

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.sources[key]; ok {
		return client
	}

	ccfg := &clientcredentials.Config{
		ClientID:     cfg.ClearinghouseClientID,
		ClientSecret: cfg.ClearinghouseSecret,
		TokenURL:     cfg.ClearinghouseTokenURL,
	}
	// Detach token refresh from the request context so a cancelled request
	// does not poison the cached source.
	client := oauth2.NewClient(context.WithoutCancel(ctx), ccfg.TokenSource(context.WithoutCancel(ctx)))
	client.Timeout = c.timeout
	c.sources[key] = client
	return client
}

type clearinghouseSubmission struct {
	TradingPartnerServiceID string `json:"tradingPartnerServiceId"`
	FileName                string `json:"fileName"`
	X12                     string `json:"x12"`
}

type clearinghouseSubmitResponse struct {
	Status    string   `json:"status"` // "accepted" or "rejected"
	Reference string   `json:"reference"`
	Reasons   []string `json:"reasons,omitempty"`
}

// SubmitClaim posts the enveloped 837 to the clearinghouse claims endpoint
// and returns its synchronous disposition.
func (c *ClearinghouseClient) SubmitClaim(ctx context.Context, cfg *partner.Config, fileName string, payload []byte) (*SubmitAck, error) {
	body, err := json.Marshal(clearinghouseSubmission{
		TradingPartnerServiceID: cfg.PayerID,
		FileName:                fileName,
		X12:                     string(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("transport: marshal clearinghouse submission: %w", err)
	}

	respBytes, err := c.post(ctx, cfg, cfg.ClearinghouseURL+"/claims", body)
	if err != nil {
		return nil, err
	}

	var parsed clearinghouseSubmitResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return nil, &TransportError{Channel: string(partner.ChannelClearinghouse), Op: "parse submit response", Err: err}
	}
	return &SubmitAck{
		Accepted:  parsed.Status == "accepted",
		Reference: parsed.Reference,
		Reasons:   parsed.Reasons,
	}, nil
}

type clearinghouseRealtime struct {
	TradingPartnerServiceID string `json:"tradingPartnerServiceId"`
	X12                     string `json:"x12"`
}

type clearinghouseRealtimeResponse struct {
	X12 string `json:"x12"`
}

// RealtimeRequest posts a 270/276 and returns the translated 271/277 payload.
func (c *ClearinghouseClient) RealtimeRequest(ctx context.Context, cfg *partner.Config, payload []byte) ([]byte, error) {
	body, err := json.Marshal(clearinghouseRealtime{
		TradingPartnerServiceID: cfg.PayerID,
		X12:                     string(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("transport: marshal clearinghouse inquiry: %w", err)
	}

	respBytes, err := c.post(ctx, cfg, cfg.ClearinghouseURL+"/realtime", body)
	if err != nil {
		return nil, err
	}

	var parsed clearinghouseRealtimeResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return nil, &TransportError{Channel: string(partner.ChannelClearinghouse), Op: "parse realtime response", Err: err}
	}
	if parsed.X12 == "" {
		return nil, &TransportError{Channel: string(partner.ChannelClearinghouse), Op: "realtime response", Err: fmt.Errorf("empty x12 payload")}
	}
	return []byte(parsed.X12), nil
}

func (c *ClearinghouseClient) post(ctx context.Context, cfg *partner.Config, url string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: build clearinghouse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient(ctx, cfg).Do(req)
	if err != nil {
		return nil, &TransportError{
			Channel: string(partner.ChannelClearinghouse),
			Op:      "post " + url,
			Timeout: isTimeout(err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Channel: string(partner.ChannelClearinghouse), Op: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Channel: string(partner.ChannelClearinghouse),
			Op:      "post " + url,
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBytes, 200)),
		}
	}
	return respBytes, nil
}
