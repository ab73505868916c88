package phase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/scoring"
)

// Provider reads the latest market-phase row written by the external
// classifier. Results are cached briefly; a missing or stale row falls back
// to the configured default phase with zero cut pressure.
type Provider struct {
	Repo   repository.Repository
	Config config.PhaseConfig
	Logger *zap.Logger

	mu     sync.Mutex
	lastAt time.Time
	cache  scoring.Phase
}

func (p *Provider) cacheTTL() time.Duration {
	if p.Config.CacheTTL > 0 {
		return p.Config.CacheTTL
	}
	return time.Minute
}

func (p *Provider) staleAfter() time.Duration {
	if p.Config.StaleAfter > 0 {
		return p.Config.StaleAfter
	}
	return 2 * time.Hour
}

func (p *Provider) fallback() scoring.Phase {
	name := p.Config.Default
	if name == "" {
		name = models.PhaseNeutral
	}
	return scoring.Phase{Name: name, CutPressure: 0, ObservedAt: time.Now().UTC()}
}

func (p *Provider) Current(ctx context.Context) (scoring.Phase, error) {
	now := time.Now().UTC()

	p.mu.Lock()
	if !p.lastAt.IsZero() && now.Sub(p.lastAt) < p.cacheTTL() {
		c := p.cache
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	out := p.fallback()
	if p.Repo != nil {
		row, err := p.Repo.LatestPhase(ctx)
		if err != nil {
			return scoring.Phase{}, err
		}
		switch {
		case row == nil:
			if p.Logger != nil {
				p.Logger.Warn("phase: no classification rows, using default",
					zap.String("phase", out.Name))
			}
		case now.Sub(row.ObservedAt) > p.staleAfter():
			if p.Logger != nil {
				p.Logger.Warn("phase: classification stale, using default",
					zap.String("phase", out.Name),
					zap.Time("observed_at", row.ObservedAt))
			}
		default:
			out = scoring.Phase{Name: row.Phase, CutPressure: row.CutPressure, ObservedAt: row.ObservedAt}
		}
	}

	p.mu.Lock()
	p.lastAt = now
	p.cache = out
	p.mu.Unlock()

	return out, nil
}
