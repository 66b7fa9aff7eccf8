package transport

import (
	"context"
	"sync"

	"github.com/medbill/edi-gateway/internal/domain/partner"
)

// FakeGateway is an in-memory Gateway and InboundFetcher for tests and local
// development. It records submitted payloads and serves canned responses.
type FakeGateway struct {
	ChannelName partner.Channel

	// Responses.
	Ack           *SubmitAck
	RealtimeReply []byte
	Inbound       map[string][]byte
	Err           error

	mu        sync.Mutex
	Submitted [][]byte
	FileNames []string
	Requests  [][]byte
	Archived  []string
}

// NewFakeGateway returns a fake for the given channel that acknowledges every
// submission.
func NewFakeGateway(ch partner.Channel) *FakeGateway {
	return &FakeGateway{
		ChannelName: ch,
		Ack:         &SubmitAck{Accepted: false, Reference: "fake"},
		Inbound:     make(map[string][]byte),
	}
}

func (f *FakeGateway) Channel() partner.Channel { return f.ChannelName }

func (f *FakeGateway) SubmitClaim(_ context.Context, _ *partner.Config, fileName string, payload []byte) (*SubmitAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Submitted = append(f.Submitted, append([]byte(nil), payload...))
	f.FileNames = append(f.FileNames, fileName)
	ack := *f.Ack
	return &ack, nil
}

func (f *FakeGateway) RealtimeRequest(_ context.Context, _ *partner.Config, payload []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Requests = append(f.Requests, append([]byte(nil), payload...))
	return f.RealtimeReply, nil
}

func (f *FakeGateway) ListInbound(_ context.Context, _ *partner.Config) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var names []string
	for name := range f.Inbound {
		names = append(names, name)
	}
	return names, nil
}

func (f *FakeGateway) Download(_ context.Context, _ *partner.Config, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Inbound[name], nil
}

func (f *FakeGateway) Archive(_ context.Context, _ *partner.Config, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Inbound, name)
	f.Archived = append(f.Archived, name)
	return nil
}
