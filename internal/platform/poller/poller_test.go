package poller

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbill/edi-gateway/internal/domain/claims"
	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/domain/remittance"
	"github.com/medbill/edi-gateway/internal/platform/transport"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

type mockPartnerRepo struct {
	cfgs []*partner.Config
}

func (m *mockPartnerRepo) Create(context.Context, *partner.Config) error { return nil }
func (m *mockPartnerRepo) GetByID(context.Context, uuid.UUID) (*partner.Config, error) {
	return nil, nil
}
func (m *mockPartnerRepo) GetByOrg(context.Context, uuid.UUID) (*partner.Config, error) {
	return nil, nil
}
func (m *mockPartnerRepo) Update(context.Context, *partner.Config) error { return nil }
func (m *mockPartnerRepo) List(context.Context, int, int) ([]*partner.Config, int, error) {
	return m.cfgs, len(m.cfgs), nil
}

type mockClaimDispatcher struct {
	mu       sync.Mutex
	acks     []*claims.FunctionalAck
	statuses []*claims.StatusResponse
	expired  int
}

func (m *mockClaimDispatcher) HandleFunctionalAck(_ context.Context, _ uuid.UUID, ack *claims.FunctionalAck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acks = append(m.acks, ack)
	return nil
}

func (m *mockClaimDispatcher) HandleStatusResponse(_ context.Context, resp *claims.StatusResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, resp)
	return nil
}

func (m *mockClaimDispatcher) ExpireStale(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired++
	return 0, nil
}

type mockRemitDispatcher struct {
	mu    sync.Mutex
	files []string
}

func (m *mockRemitDispatcher) ProcessFile(_ context.Context, _ uuid.UUID, fileName string, _ []byte) (*remittance.Remittance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, fileName)
	return &remittance.Remittance{ID: uuid.New()}, nil
}

func payerDirectConfig() *partner.Config {
	return &partner.Config{
		ID:                uuid.New(),
		Name:              "acme",
		Channel:           partner.ChannelPayerDirect,
		SenderQualifier:   "ZZ",
		SenderID:          "PAYER01",
		ReceiverQualifier: "ZZ",
		ReceiverID:        "SUBMITTER01",
		UsageIndicator:    "T",
		SFTPInboundDir:    "/inbound",
	}
}

func wrapFile(t *testing.T, cfg *partner.Config, code, version string, body []x12.Segment) []byte {
	t.Helper()
	opts := cfg.EnvelopeOptions(7001, 7001, version)
	segs, err := x12.Wrap(opts, []x12.TransactionSet{{
		Code: code, ControlNumber: 1, Version: version, Segments: body,
	}})
	if err != nil {
		t.Fatalf("wrap %s: %v", code, err)
	}
	return []byte(x12.Encode(opts.Delimiters, segs))
}

func TestSweepDispatchesByTransactionSet(t *testing.T) {
	cfg := payerDirectConfig()
	fetcher := transport.NewFakeGateway(partner.ChannelPayerDirect)
	fetcher.Inbound["ack.edi"] = wrapFile(t, cfg, "999", "005010X231A1", []x12.Segment{
		x12.Seg("AK1", "HC", "12"),
		x12.Seg("AK9", "A", "1", "1", "1"),
	})
	fetcher.Inbound["status.edi"] = wrapFile(t, cfg, "277", "005010X212", []x12.Segment{
		x12.Seg("HL", "1", "", "22", "0"),
		x12.Seg("TRN", "2", "claim-1"),
		x12.Seg("STC", "A2:20", "20240320"),
	})
	fetcher.Inbound["remit.edi"] = wrapFile(t, cfg, "835", "005010X221A1", []x12.Segment{
		x12.Seg("BPR", "I", "100.00", "C", "ACH"),
		x12.Seg("TRN", "1", "CHK1"),
		x12.Seg("CLP", "claim-1", "1", "100.00", "100.00"),
	})

	claimDisp := &mockClaimDispatcher{}
	remitDisp := &mockRemitDispatcher{}
	p := New(&mockPartnerRepo{cfgs: []*partner.Config{cfg}}, fetcher, claimDisp, remitDisp, 0, zerolog.Nop())

	p.Sweep(context.Background())

	if len(claimDisp.acks) != 1 || claimDisp.acks[0].GroupControl != 12 {
		t.Errorf("acks = %+v, want one for group 12", claimDisp.acks)
	}
	if len(claimDisp.statuses) != 1 || claimDisp.statuses[0].ClaimRef != "claim-1" {
		t.Errorf("statuses = %+v, want one for claim-1", claimDisp.statuses)
	}
	if len(remitDisp.files) != 1 || remitDisp.files[0] != "remit.edi" {
		t.Errorf("remit files = %v, want [remit.edi]", remitDisp.files)
	}
	if len(fetcher.Archived) != 3 {
		t.Errorf("archived %d files, want all 3", len(fetcher.Archived))
	}
	if claimDisp.expired != 1 {
		t.Errorf("ExpireStale ran %d times, want 1", claimDisp.expired)
	}
}

func TestSweepLeavesFailedFilesForRetry(t *testing.T) {
	cfg := payerDirectConfig()
	fetcher := transport.NewFakeGateway(partner.ChannelPayerDirect)
	fetcher.Inbound["garbage.edi"] = []byte("this is not an interchange")
	fetcher.Inbound["ack.edi"] = wrapFile(t, cfg, "999", "005010X231A1", []x12.Segment{
		x12.Seg("AK1", "HC", "13"),
		x12.Seg("AK9", "A", "1", "1", "1"),
	})

	claimDisp := &mockClaimDispatcher{}
	p := New(&mockPartnerRepo{cfgs: []*partner.Config{cfg}}, fetcher, claimDisp, &mockRemitDispatcher{}, 0, zerolog.Nop())

	p.Sweep(context.Background())

	if len(claimDisp.acks) != 1 {
		t.Errorf("the valid file should still be processed, acks = %+v", claimDisp.acks)
	}
	if len(fetcher.Archived) != 1 || fetcher.Archived[0] != "ack.edi" {
		t.Errorf("archived = %v, want only ack.edi", fetcher.Archived)
	}
	if _, ok := fetcher.Inbound["garbage.edi"]; !ok {
		t.Error("the failed file must stay inbound for the next sweep")
	}
}

func TestSweepSkipsClearinghousePartners(t *testing.T) {
	cfg := payerDirectConfig()
	cfg.Channel = partner.ChannelClearinghouse

	fetcher := transport.NewFakeGateway(partner.ChannelClearinghouse)
	fetcher.Inbound["ack.edi"] = []byte("should never be read")

	p := New(&mockPartnerRepo{cfgs: []*partner.Config{cfg}}, fetcher, &mockClaimDispatcher{}, &mockRemitDispatcher{}, 0, zerolog.Nop())
	p.Sweep(context.Background())

	if len(fetcher.Archived) != 0 {
		t.Error("clearinghouse partners have no inbound directory to sweep")
	}
}
