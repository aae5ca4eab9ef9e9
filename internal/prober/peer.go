package prober

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/ipfsprobe/internal/gateway"
	"github.com/nao1215/ipfsprobe/internal/log"
	"github.com/nao1215/ipfsprobe/internal/model"
	"github.com/nao1215/ipfsprobe/internal/retry"
)

// PeerProber runs stage 2 for one provider. It is safe for concurrent use.
type PeerProber struct {
	gateway gateway.Gateway
	policy  *retry.Policy
	opts    options
}

// NewPeerProber creates a PeerProber.
func NewPeerProber(gw gateway.Gateway, policy *retry.Policy, opts ...Option) *PeerProber {
	o := defaultOptions()
	o.apply(opts)
	return &PeerProber{gateway: gw, policy: policy, opts: o}
}

// Probe looks up a routable address for providerID. The result carries the
// provider ID and its appearance count so it can be consumed in any order.
func (p *PeerProber) Probe(ctx context.Context, providerID string, appearances int) model.PeerResult {
	result := model.PeerResult{ProviderID: providerID, Appearances: appearances}
	ctx = log.WithAttrs(ctx, "peer", providerID)

	var lastLines []string
	wait := p.policy.Jitter()
	for attempt := range p.opts.peerAttempts {
		if err := p.opts.sleep(ctx, wait); err != nil {
			break
		}
		lines, err := p.gateway.FindPeerAddress(ctx, providerID)
		if errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			p.opts.logger.DebugContext(ctx, "peer lookup failed", "attempt", attempt+1, "error", err)
		} else if ip, ok := gateway.SelectAddress(lines); ok {
			result.Reachable = true
			result.IPAddress = ip
			return result
		} else {
			lastLines = lines
		}

		next := p.policy.Decide(attempt, p.opts.peerAttempts)
		if !next.ShouldRetry {
			break
		}
		wait = next.Wait
	}

	p.opts.logger.WarnContext(ctx, "no suitable connection possible",
		"attempts", p.opts.peerAttempts,
		slog.Any("addresses", lastLines),
	)
	return result
}
