package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/audit"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/metrics"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/trend"
)

// LifecycleService owns the maintenance cadence: refreshing bar counts,
// promoting dormant positions past the minimum-history gate, and
// bootstrapping trend context from stored history.
type LifecycleService struct {
	Repo    repository.Repository
	Engine  *trend.Engine
	Audit   *audit.Recorder
	Logger  *zap.Logger
	MinBars int64
	MaxRows int
}

func (s *LifecycleService) minBars() int64 {
	if s.MinBars > 0 {
		return s.MinBars
	}
	return 350
}

func (s *LifecycleService) maxRows() int {
	if s.MaxRows > 0 {
		return s.MaxRows
	}
	return 500
}

// RunPromotion refreshes bar counts from the bars table and moves every
// dormant position at or past the gate onto the watchlist. A position exactly
// at the threshold promotes on this pass.
func (s *LifecycleService) RunPromotion(ctx context.Context) {
	if s == nil || s.Repo == nil {
		return
	}
	if _, err := s.Repo.RefreshBarCounts(ctx, ""); err != nil {
		if s.Logger != nil {
			s.Logger.Error("lifecycle: bar count refresh failed", zap.Error(err))
		}
		return
	}

	candidates, err := s.Repo.ListPromotablePositions(ctx, s.minBars())
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("lifecycle: promotable scan failed", zap.Error(err))
		}
		return
	}

	now := time.Now().UTC()
	promoted := 0
	for _, p := range candidates {
		ok, err := s.Repo.UpdatePositionStatus(ctx, p.ID, models.PositionStatusDormant, models.PositionStatusWatchlist, now)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Error("lifecycle: promotion failed",
					zap.Error(err),
					zap.String("instrument", p.Instrument),
					zap.String("timeframe", p.Timeframe))
			}
			continue
		}
		if !ok {
			continue
		}
		promoted++
		metrics.Promotions.Inc()
		if s.Audit != nil {
			s.Audit.Enqueue(&models.DecisionRecord{
				Kind:       models.RecordKindTransition,
				PositionID: p.ID,
				Instrument: p.Instrument,
				Venue:      p.Venue,
				Timeframe:  p.Timeframe,
				Reason:     "minimum bar history reached",
				Outcome:    models.OutcomeNone,
				FromStatus: models.PositionStatusDormant,
				ToStatus:   models.PositionStatusWatchlist,
			})
		}
	}

	if s.Logger != nil && promoted > 0 {
		s.Logger.Info("lifecycle: promoted dormant positions", zap.Int("promoted", promoted))
	}
}

// RunBootstrap folds stored indicator history into a fresh trend context for
// positions that have none yet. Bootstrap emits no flags and never executes;
// landing on S1/S2 is provisional until a live transition confirms.
func (s *LifecycleService) RunBootstrap(ctx context.Context) {
	if s == nil || s.Repo == nil || s.Engine == nil {
		return
	}
	positions, err := s.Repo.ListPositionsByStatus(ctx, []string{
		models.PositionStatusDormant,
		models.PositionStatusWatchlist,
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("lifecycle: bootstrap scan failed", zap.Error(err))
		}
		return
	}

	bootstrapped := 0
	for i := range positions {
		p := &positions[i]
		fs, err := p.FeatureSet()
		if err != nil {
			if s.Logger != nil {
				s.Logger.Error("lifecycle: feature bag decode failed",
					zap.Error(err),
					zap.String("instrument", p.Instrument),
					zap.String("timeframe", p.Timeframe))
			}
			continue
		}
		if len(fs.Trend) > 0 {
			continue
		}

		snaps, err := s.Repo.ListIndicatorsSince(ctx, p.Instrument, p.Venue, p.Timeframe, nil, s.maxRows())
		if err != nil {
			if s.Logger != nil {
				s.Logger.Error("lifecycle: indicator history load failed",
					zap.Error(err),
					zap.String("instrument", p.Instrument),
					zap.String("timeframe", p.Timeframe))
			}
			continue
		}
		if len(snaps) == 0 {
			continue
		}

		tctx, _ := s.Engine.Bootstrap(trend.RowsFromSnapshots(snaps))
		if err := saveTrendContext(ctx, s.Repo, p, fs, tctx, snaps[len(snaps)-1].TS); err != nil {
			if s.Logger != nil {
				s.Logger.Error("lifecycle: context save failed",
					zap.Error(err),
					zap.String("instrument", p.Instrument),
					zap.String("timeframe", p.Timeframe))
			}
			continue
		}
		bootstrapped++
		if s.Logger != nil {
			s.Logger.Info("lifecycle: trend context bootstrapped",
				zap.String("instrument", p.Instrument),
				zap.String("timeframe", p.Timeframe),
				zap.String("state", string(tctx.State)),
				zap.Bool("provisional", tctx.Provisional))
		}
	}

	if s.Logger != nil && bootstrapped > 0 {
		s.Logger.Info("lifecycle: bootstrap pass complete", zap.Int("bootstrapped", bootstrapped))
	}
}

func saveTrendContext(ctx context.Context, repo repository.Repository, p *models.Position, fs models.FeatureSet, tctx trend.Context, indicatorTS time.Time) error {
	raw, err := json.Marshal(tctx)
	if err != nil {
		return err
	}
	fs.Trend = raw
	fs.IndicatorTS = &indicatorTS
	if err := p.SetFeatureSet(fs); err != nil {
		return err
	}
	return repo.SavePositionFeatures(ctx, p.ID, p.Features)
}
