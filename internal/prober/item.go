package prober

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/ipfsprobe/internal/gateway"
	"github.com/nao1215/ipfsprobe/internal/log"
	"github.com/nao1215/ipfsprobe/internal/model"
	"github.com/nao1215/ipfsprobe/internal/retry"
	"github.com/nao1215/ipfsprobe/internal/tally"
)

// Default attempt budgets.
const (
	DefaultWebsiteAttempts  = 2
	DefaultProviderAttempts = 2
	DefaultPeerAttempts     = 3

	// DefaultScheme is prepended to the original link of an article.
	DefaultScheme = "https"
)

// Option configures a prober.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	sleep            retry.SleepFunc
	websiteAttempts  int
	providerAttempts int
	peerAttempts     int
	scheme           string
	retryOnEmpty     bool
}

func defaultOptions() options {
	return options{
		sleep:            retry.Sleep,
		websiteAttempts:  DefaultWebsiteAttempts,
		providerAttempts: DefaultProviderAttempts,
		peerAttempts:     DefaultPeerAttempts,
		scheme:           DefaultScheme,
		retryOnEmpty:     true,
	}
}

func (o *options) apply(opts []Option) {
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSleep replaces the function used to wait out jitter.
func WithSleep(fn retry.SleepFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithWebsiteAttempts sets the website fetch budget per item.
func WithWebsiteAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.websiteAttempts = n
		}
	}
}

// WithProviderAttempts sets the provider lookup budget per item.
func WithProviderAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.providerAttempts = n
		}
	}
}

// WithPeerAttempts sets the address lookup budget per provider.
func WithPeerAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.peerAttempts = n
		}
	}
}

// WithScheme sets the URL scheme used to fetch websites.
func WithScheme(scheme string) Option {
	return func(o *options) {
		if scheme != "" {
			o.scheme = scheme
		}
	}
}

// WithRetryOnEmpty controls whether a provider lookup that completes
// without output uses up an attempt and tries again (true, the default) or
// is accepted as a definitive zero.
func WithRetryOnEmpty(retryOnEmpty bool) Option {
	return func(o *options) {
		o.retryOnEmpty = retryOnEmpty
	}
}

// ItemProber runs stage 1 for one article. It is safe for concurrent use.
type ItemProber struct {
	gateway gateway.Gateway
	policy  *retry.Policy
	opts    options
}

// NewItemProber creates an ItemProber.
func NewItemProber(gw gateway.Gateway, policy *retry.Policy, opts ...Option) *ItemProber {
	o := defaultOptions()
	o.apply(opts)
	return &ItemProber{gateway: gw, policy: policy, opts: o}
}

// URL returns the address used to check the website of input.
func (p *ItemProber) URL(input model.SampleInput) string {
	return p.opts.scheme + "://" + input.OriginalLink
}

// Probe checks the website and the providers of input and records every
// distinct provider of a successful lookup in t. It always returns exactly
// one result.
func (p *ItemProber) Probe(ctx context.Context, input model.SampleInput, t *tally.Tally) model.ItemResult {
	result := model.NewItemResult(input)
	ctx = log.WithAttrs(ctx, "link", input.OriginalLink, "cid", input.ResolvedCID)

	result.WebsiteReachable = p.checkWebsite(ctx, input)

	if ids := p.findProviders(ctx, input.ResolvedCID); len(ids) > 0 {
		unique := t.Record(ids)
		result.ProviderIDs = unique
		result.ProviderCount = len(unique)
		result.HadProviders = true
	} else {
		p.opts.logger.WarnContext(ctx, "no providers found", "attempts", p.opts.providerAttempts)
	}

	return result
}

func (p *ItemProber) checkWebsite(ctx context.Context, input model.SampleInput) bool {
	url := p.URL(input)
	for attempt := range p.opts.websiteAttempts {
		if ctx.Err() != nil {
			break
		}
		resp, err := p.gateway.Fetch(ctx, url)
		if err != nil {
			p.opts.logger.DebugContext(ctx, "website fetch failed", "url", url, "attempt", attempt+1, "error", err)
			continue
		}
		if gateway.IsReachable(resp) {
			return true
		}
		p.opts.logger.DebugContext(ctx, "website not reachable", "url", url, "attempt", attempt+1, "status", resp.StatusCode)
	}
	p.opts.logger.WarnContext(ctx, "website does not load", "url", url)
	return false
}

// findProviders returns the provider IDs of the first lookup that produced
// any, or nil when every attempt failed or came back empty.
func (p *ItemProber) findProviders(ctx context.Context, cid string) []string {
	wait := p.policy.Jitter()
	for attempt := range p.opts.providerAttempts {
		if err := p.opts.sleep(ctx, wait); err != nil {
			return nil
		}
		ids, err := p.gateway.FindProviders(ctx, cid)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			p.opts.logger.DebugContext(ctx, "provider lookup failed", "attempt", attempt+1, "error", err)
		default:
			if ids = tally.Dedupe(ids); len(ids) > 0 {
				return ids
			}
			if !p.opts.retryOnEmpty {
				return nil
			}
			p.opts.logger.DebugContext(ctx, "provider lookup returned nothing", "attempt", attempt+1)
		}

		next := p.policy.Decide(attempt, p.opts.providerAttempts)
		if !next.ShouldRetry {
			break
		}
		wait = next.Wait
	}
	return nil
}
