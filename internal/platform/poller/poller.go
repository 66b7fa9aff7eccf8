// Package poller periodically sweeps trading partner SFTP inbound directories
// and dispatches the response files payers drop there: 999 functional
// acknowledgments, 277 claim statuses, and 835 remittance advices.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbill/edi-gateway/internal/domain/claims"
	"github.com/medbill/edi-gateway/internal/domain/partner"
	"github.com/medbill/edi-gateway/internal/domain/remittance"
	"github.com/medbill/edi-gateway/internal/platform/transport"
	"github.com/medbill/edi-gateway/internal/platform/x12"
)

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = 5 * time.Minute

// ClaimDispatcher is the slice of the claims orchestrator the poller needs.
type ClaimDispatcher interface {
	HandleFunctionalAck(ctx context.Context, partnerID uuid.UUID, ack *claims.FunctionalAck) error
	HandleStatusResponse(ctx context.Context, resp *claims.StatusResponse) error
	ExpireStale(ctx context.Context) (int, error)
}

// RemitDispatcher ingests a raw 835 file.
type RemitDispatcher interface {
	ProcessFile(ctx context.Context, partnerID uuid.UUID, fileName string, payload []byte) (*remittance.Remittance, error)
}

// Poller sweeps inbound directories on an interval. Each file is processed in
// isolation: a file that fails stays in the inbound directory for the next
// sweep and never blocks its siblings.
type Poller struct {
	partners partner.Repository
	fetcher  transport.InboundFetcher
	claims   ClaimDispatcher
	remits   RemitDispatcher
	interval time.Duration
	log      zerolog.Logger
}

// New wires an inbound poller.
func New(partners partner.Repository, fetcher transport.InboundFetcher,
	claimDisp ClaimDispatcher, remitDisp RemitDispatcher,
	interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		partners: partners,
		fetcher:  fetcher,
		claims:   claimDisp,
		remits:   remitDisp,
		interval: interval,
		log:      log.With().Str("component", "poller").Logger(),
	}
}

// Run sweeps until the context is canceled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.log.Info().Dur("interval", p.interval).Msg("inbound poller started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("inbound poller stopped")
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over every payer-direct partner, then expires claims
// whose acknowledgment window has lapsed.
func (p *Poller) Sweep(ctx context.Context) {
	cfgs, _, err := p.partners.List(ctx, 1000, 0)
	if err != nil {
		p.log.Error().Err(err).Msg("list partners")
		return
	}
	for _, cfg := range cfgs {
		if cfg.Channel != partner.ChannelPayerDirect || cfg.SFTPInboundDir == "" {
			continue
		}
		p.sweepPartner(ctx, cfg)
	}
	if n, err := p.claims.ExpireStale(ctx); err != nil {
		p.log.Error().Err(err).Msg("expire stale submissions")
	} else if n > 0 {
		p.log.Warn().Int("expired", n).Msg("stale submissions rejected")
	}
}

func (p *Poller) sweepPartner(ctx context.Context, cfg *partner.Config) {
	names, err := p.fetcher.ListInbound(ctx, cfg)
	if err != nil {
		p.log.Error().Err(err).Str("partner", cfg.Name).Msg("list inbound")
		return
	}
	for _, name := range names {
		payload, err := p.fetcher.Download(ctx, cfg, name)
		if err != nil {
			p.log.Error().Err(err).Str("partner", cfg.Name).Str("file", name).Msg("download inbound file")
			continue
		}
		if err := p.processFile(ctx, cfg, name, payload); err != nil {
			p.log.Error().Err(err).Str("partner", cfg.Name).Str("file", name).Msg("process inbound file")
			continue
		}
		if err := p.fetcher.Archive(ctx, cfg, name); err != nil {
			p.log.Error().Err(err).Str("partner", cfg.Name).Str("file", name).Msg("archive inbound file")
		}
	}
}

// processFile classifies a downloaded file by its transaction set codes and
// dispatches accordingly. A file holding an 835 goes to remittance whole,
// since ingestion is idempotent on the file checksum.
func (p *Poller) processFile(ctx context.Context, cfg *partner.Config, name string, payload []byte) error {
	segs, _, err := x12.DecodeInterchange(string(payload))
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	env, err := x12.Unwrap(segs)
	if err != nil {
		return fmt.Errorf("unwrap %s: %w", name, err)
	}

	for _, grp := range env.Groups {
		for i := range grp.Sets {
			set := &grp.Sets[i]
			switch set.Code {
			case "835":
				if _, err := p.remits.ProcessFile(ctx, cfg.ID, name, payload); err != nil {
					return err
				}
				// The whole file was ingested; no per-set work remains.
				return nil
			case "999", "997":
				ack, err := claims.Parse999(set)
				if err != nil {
					return err
				}
				if err := p.claims.HandleFunctionalAck(ctx, cfg.ID, ack); err != nil {
					return err
				}
			case "277":
				responses, err := claims.Parse277(set)
				if err != nil {
					return err
				}
				for _, resp := range responses {
					if err := p.claims.HandleStatusResponse(ctx, resp); err != nil {
						p.log.Warn().Err(err).Str("file", name).Str("trace", resp.ClaimRef).Msg("apply claim status")
					}
				}
			default:
				p.log.Warn().Str("file", name).Str("set", set.Code).Msg("unexpected inbound transaction set")
			}
		}
	}
	return nil
}
