package scoring

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
)

// Phase is the coarse market-phase view the scorer consumes.
type Phase struct {
	Name        string
	CutPressure float64
	ObservedAt  time.Time
}

// PhaseSource supplies the current phase. The concrete provider caches and
// falls back on staleness; the scorer does not care.
type PhaseSource interface {
	Current(ctx context.Context) (Phase, error)
}

// Scores carries the two risk scalars for one position at one point in time.
type Scores struct {
	Aggression   float64
	ExitPressure float64
	Phase        string
	ComputedAt   time.Time
}

type cachedScores struct {
	at     time.Time
	scores Scores
}

// Scorer computes the aggression and exit-pressure scalars from the portfolio
// phase and per-position allocation state. Results are cached per position for
// a short window so several flags in one tick reuse the same snapshot.
type Scorer struct {
	Config config.ScoringConfig
	Phase  PhaseSource
	Logger *zap.Logger

	mu    sync.Mutex
	cache map[uint64]cachedScores
}

func (s *Scorer) ttl() time.Duration {
	if s.Config.TTL > 0 {
		return s.Config.TTL
	}
	return 5 * time.Minute
}

// Scores returns the cached pair when fresh, otherwise recomputes.
func (s *Scorer) Scores(ctx context.Context, p *models.Position, price decimal.Decimal) (Scores, error) {
	if p == nil {
		return Scores{}, nil
	}
	now := time.Now().UTC()

	s.mu.Lock()
	if c, ok := s.cache[p.ID]; ok && now.Sub(c.at) < s.ttl() {
		out := c.scores
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	phase := Phase{Name: models.PhaseNeutral}
	if s.Phase != nil {
		got, err := s.Phase.Current(ctx)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("scoring: phase lookup failed, using neutral", zap.Error(err))
			}
		} else {
			phase = got
		}
	}

	out := s.compute(p, price, phase, now)

	s.mu.Lock()
	if s.cache == nil {
		s.cache = make(map[uint64]cachedScores)
	}
	s.cache[p.ID] = cachedScores{at: now, scores: out}
	s.mu.Unlock()

	return out, nil
}

// Invalidate drops the cached pair for a position. Called after an execution
// changes the allocation state the scores were derived from.
func (s *Scorer) Invalidate(positionID uint64) {
	s.mu.Lock()
	delete(s.cache, positionID)
	s.mu.Unlock()
}

func (s *Scorer) compute(p *models.Position, price decimal.Decimal, phase Phase, now time.Time) Scores {
	bias, ok := s.Config.PhaseBias[phase.Name]
	if !ok || bias <= 0 {
		bias = 0.5
	}
	cut := clamp01(phase.CutPressure)
	deployed := clamp01(p.DeployedFraction())
	cushion := math.Min(p.RealizedProfitFraction(), 1)
	drawdown := p.DrawdownFraction(price)

	a := bias - s.Config.CutWeight*cut - s.Config.DeployWeight*deployed + s.Config.DrawdownWeight*drawdown
	e := (1 - bias) + s.Config.CutWeight*cut + s.Config.DeployWeight*deployed - s.Config.CushionWeight*cushion

	return Scores{
		Aggression:   clamp01(a),
		ExitPressure: clamp01(e),
		Phase:        phase.Name,
		ComputedAt:   now,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
