package research

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matref/property-cli/internal/config"
	"github.com/matref/property-cli/internal/resilience"
)

// ErrNotFound is returned when no provider could answer a lookup.
var ErrNotFound = eris.New("research: no provider finding")

// stopConfidence ends the provider cascade early: a finding this strong
// makes further lookups wasted spend.
const stopConfidence = 0.95

// Registry queries the configured providers in order, throttled per
// provider and retried on transient failures.
type Registry struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	retry     resilience.RetryConfig
}

// NewRegistry builds a registry from the ordered provider identifiers in
// config. Providers not named in config are ignored; names with no
// registered implementation are logged and skipped.
func NewRegistry(cfg config.ResearchConfig, available ...Provider) *Registry {
	byName := make(map[string]Provider, len(available))
	for _, p := range available {
		byName[p.Name()] = p
	}

	r := &Registry{
		limiters: make(map[string]*rate.Limiter),
		retry:    resilience.DefaultRetryConfig(),
	}
	if cfg.MaxAttempts > 0 {
		r.retry.MaxAttempts = cfg.MaxAttempts
	}

	perSec := cfg.RatePerSecond
	if perSec <= 0 {
		perSec = 5
	}

	for _, name := range cfg.Providers {
		p, ok := byName[name]
		if !ok {
			zap.L().Warn("research: unknown provider in config", zap.String("provider", name))
			continue
		}
		r.providers = append(r.providers, p)
		r.limiters[name] = rate.NewLimiter(rate.Limit(perSec), 1)
	}

	return r
}

// Providers returns the ordered provider names the registry will query.
func (r *Registry) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Research queries providers in configured order and returns the highest
// confidence finding, stopping early once a finding is strong enough.
// Individual provider failures are logged and skipped; ErrNotFound is
// returned only when every provider came up empty.
func (r *Registry) Research(ctx context.Context, material, category, property string) (*Finding, error) {
	var best *Finding

	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "research: context")
		}
		if err := r.limiters[p.Name()].Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "research: rate wait %s", p.Name())
		}

		retryCfg := r.retry
		retryCfg.OnRetry = resilience.RetryLogger(p.Name(), "lookup")

		finding, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*Finding, error) {
			return p.Lookup(ctx, material, category, property)
		})
		if err != nil {
			zap.L().Warn("research: provider lookup failed",
				zap.String("provider", p.Name()),
				zap.String("material", material),
				zap.String("property", property),
				zap.Error(err),
			)
			continue
		}
		if finding == nil {
			continue
		}

		if best == nil || finding.Confidence > best.Confidence {
			best = finding
		}
		if best.Confidence >= stopConfidence {
			break
		}
	}

	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}
