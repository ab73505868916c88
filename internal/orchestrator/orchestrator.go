package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/audit"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/executor"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/metrics"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/scoring"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/service"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/trend"
)

// Orchestrator runs one decision pass per timeframe cron fire: load eligible
// positions, fold new bars through the trend engine, score, decide, execute,
// and append the audit trail. Each position is isolated; one failure never
// stops the pass.
type Orchestrator struct {
	Repo       repository.Repository
	Engine     *trend.Engine
	Scorer     *scoring.Scorer
	Decider    *Decider
	Dispatcher *executor.Dispatcher
	Audit      *audit.Recorder
	Settings   *service.SettingsService
	Logger     *zap.Logger
	Config     config.EngineConfig
}

func (o *Orchestrator) workers() int {
	if o.Config.Workers > 0 {
		return o.Config.Workers
	}
	return 4
}

func (o *Orchestrator) minBars() int64 {
	if o.Config.MinBars > 0 {
		return int64(o.Config.MinBars)
	}
	return 350
}

func (o *Orchestrator) catchupRows() int {
	if o.Config.CatchupRows > 0 {
		return o.Config.CatchupRows
	}
	return 500
}

func (o *Orchestrator) window() time.Duration {
	if o.Config.IdempotencyWindow > 0 {
		return o.Config.IdempotencyWindow
	}
	return 3 * time.Minute
}

// Tick evaluates every eligible position on one timeframe. Called by the
// timeframe's cron entry shortly after bar close.
func (o *Orchestrator) Tick(ctx context.Context, timeframe string) {
	if o == nil || o.Repo == nil {
		return
	}
	start := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues(timeframe).Observe(time.Since(start).Seconds())
	}()

	if o.Settings != nil && o.Settings.IsEnabled(ctx, service.SettingEnginePaused, false) {
		o.Logger.Info("orchestrator: engine paused, skipping pass", zap.String("timeframe", timeframe))
		return
	}

	positions, err := o.Repo.ListEligiblePositions(ctx, timeframe)
	if err != nil {
		o.Logger.Error("orchestrator: eligible scan failed",
			zap.Error(err), zap.String("timeframe", timeframe))
		return
	}
	if len(positions) == 0 {
		o.Logger.Debug("orchestrator: nothing eligible", zap.String("timeframe", timeframe))
		return
	}

	sem := make(chan struct{}, o.workers())
	var wg sync.WaitGroup
	for i := range positions {
		p := positions[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			o.evaluate(ctx, &p)
		}()
	}
	wg.Wait()

	o.Logger.Info("orchestrator: pass complete",
		zap.String("timeframe", timeframe),
		zap.Int("positions", len(positions)),
		zap.Duration("elapsed", time.Since(start)))
}

func (o *Orchestrator) evaluate(ctx context.Context, p *models.Position) {
	log := o.Logger.With(
		zap.String("instrument", p.Instrument),
		zap.String("venue", p.Venue),
		zap.String("timeframe", p.Timeframe))

	if p.BarsCount < o.minBars() {
		log.Debug("orchestrator: below minimum bar history", zap.Int64("bars", p.BarsCount))
		return
	}

	fs, err := p.FeatureSet()
	if err != nil {
		log.Error("orchestrator: feature bag decode failed", zap.Error(err))
		return
	}
	tctx := trend.NewContext()
	if len(fs.Trend) > 0 {
		if err := json.Unmarshal(fs.Trend, &tctx); err != nil {
			// A poisoned bag restarts from a cold context rather than
			// wedging the position.
			log.Error("orchestrator: trend context decode failed, restarting cold", zap.Error(err))
			tctx = trend.NewContext()
		}
	}

	var since *time.Time
	if !tctx.Prev.TS.IsZero() {
		ts := tctx.Prev.TS
		since = &ts
	}
	snaps, err := o.Repo.ListIndicatorsSince(ctx, p.Instrument, p.Venue, p.Timeframe, since, o.catchupRows())
	if err != nil {
		log.Error("orchestrator: indicator load failed", zap.Error(err))
		return
	}
	if len(snaps) == 0 {
		log.Debug("orchestrator: no new bars")
		return
	}

	// Catch-up folds every missed bar; only the final verdict is acted on.
	var out trend.Output
	for i := range snaps {
		tctx, out = o.Engine.Advance(tctx, trend.RowFromSnapshot(snaps[i]))
	}
	last := snaps[len(snaps)-1]
	price := last.Close

	metrics.Evaluations.WithLabelValues(p.Timeframe, string(out.State)).Inc()

	sc, err := o.Scorer.Scores(ctx, p, price)
	if err != nil {
		log.Error("orchestrator: scoring failed", zap.Error(err))
		return
	}

	// Persist the advanced context before any execution so a crash between
	// here and the fill cannot re-fold the same bars into a second order.
	raw, err := json.Marshal(tctx)
	if err != nil {
		log.Error("orchestrator: trend context encode failed", zap.Error(err))
		return
	}
	fs.Trend = raw
	ts := last.TS
	fs.IndicatorTS = &ts
	fs.Risk = &models.RiskResult{
		Aggression:   sc.Aggression,
		ExitPressure: sc.ExitPressure,
		Phase:        sc.Phase,
		ComputedAt:   sc.ComputedAt,
	}
	if err := p.SetFeatureSet(fs); err != nil {
		log.Error("orchestrator: feature bag encode failed", zap.Error(err))
		return
	}
	if err := o.Repo.SavePositionFeatures(ctx, p.ID, p.Features); err != nil {
		log.Error("orchestrator: feature save failed", zap.Error(err))
		return
	}

	dec := o.Decider.Decide(p, out, sc, price)
	metrics.Decisions.WithLabelValues(p.Timeframe, dec.Type).Inc()

	rec := &models.DecisionRecord{
		Kind:         models.RecordKindDecision,
		PositionID:   p.ID,
		Instrument:   p.Instrument,
		Venue:        p.Venue,
		Timeframe:    p.Timeframe,
		DecisionType: dec.Type,
		SizeFraction: dec.Fraction,
		Notional:     dec.Notional,
		Price:        price,
		TrendState:   string(out.State),
		Flags:        flagsJSON(out),
		SubScores:    subScoresJSON(out),
		Aggression:   sc.Aggression,
		ExitPressure: sc.ExitPressure,
		Tier:         dec.Tier,
		Reason:       dec.Reason,
		Outcome:      models.OutcomeNone,
	}

	if bad, detail := holdingsMismatch(p); bad {
		metrics.InvariantViolations.Inc()
		log.Error("orchestrator: holdings and status disagree, skipping execution",
			zap.String("detail", detail))
		rec.DecisionType = models.DecisionTypeHold
		rec.Reason = detail
		o.enqueue(rec)
		return
	}

	if !dec.Actionable() {
		o.enqueue(rec)
		return
	}

	now := time.Now().UTC()
	claimed, err := o.Repo.ClaimExecution(ctx, p.ID, now, o.window())
	if err != nil {
		log.Error("orchestrator: execution claim failed", zap.Error(err))
		rec.Outcome = models.OutcomeFailed
		rec.ErrorText = err.Error()
		metrics.ExecutionOutcomes.WithLabelValues(p.Timeframe, rec.Outcome).Inc()
		o.enqueue(rec)
		return
	}
	if !claimed {
		log.Warn("orchestrator: duplicate execution window, skipping",
			zap.String("decision", dec.Type))
		rec.Outcome = models.OutcomeSkippedDuplicate
		metrics.ExecutionOutcomes.WithLabelValues(p.Timeframe, rec.Outcome).Inc()
		o.enqueue(rec)
		return
	}

	order := executor.Order{
		Instrument:    p.Instrument,
		Venue:         p.Venue,
		Timeframe:     p.Timeframe,
		Side:          dec.Side,
		Price:         price,
		ClientOrderID: uuid.NewString(),
	}
	switch dec.Side {
	case repository.SideBuy:
		order.Notional = dec.Notional
		if price.IsPositive() {
			order.Quantity = dec.Notional.Div(price)
		}
	case repository.SideSell:
		order.Quantity = p.Quantity.Mul(decimal.NewFromFloat(dec.Fraction))
		order.Notional = order.Quantity.Mul(price)
	}
	rec.ClientOrderID = order.ClientOrderID

	receipt, err := o.Dispatcher.Execute(ctx, order)
	if err != nil {
		log.Error("orchestrator: execution failed",
			zap.Error(err),
			zap.String("decision", dec.Type),
			zap.String("side", dec.Side))
		rec.Outcome = models.OutcomeFailed
		rec.ErrorText = err.Error()
		metrics.ExecutionOutcomes.WithLabelValues(p.Timeframe, rec.Outcome).Inc()
		o.enqueue(rec)
		return
	}

	applied, err := o.Repo.ApplyExecution(ctx, repository.ApplyExecutionParams{
		PositionID: p.ID,
		Side:       dec.Side,
		Quantity:   receipt.Quantity,
		Notional:   receipt.Notional,
		At:         now,
	})
	if err != nil {
		log.Error("orchestrator: holdings update failed after fill",
			zap.Error(err),
			zap.String("reference", receipt.Reference))
		rec.Outcome = models.OutcomeFailed
		rec.ErrorText = err.Error()
		rec.ExecutionRef = receipt.Reference
		metrics.ExecutionOutcomes.WithLabelValues(p.Timeframe, rec.Outcome).Inc()
		o.enqueue(rec)
		return
	}

	o.Scorer.Invalidate(p.ID)

	rec.Outcome = models.OutcomeExecuted
	if receipt.DryRun {
		rec.Outcome = models.OutcomeDryRun
	}
	rec.ExecutionRef = receipt.Reference
	rec.Quantity = receipt.Quantity
	rec.Notional = receipt.Notional
	if receipt.Price.IsPositive() {
		rec.Price = receipt.Price
	}
	metrics.ExecutionOutcomes.WithLabelValues(p.Timeframe, rec.Outcome).Inc()
	o.enqueue(rec)

	log.Info("orchestrator: decision executed",
		zap.String("decision", dec.Type),
		zap.String("side", dec.Side),
		zap.String("state", string(out.State)),
		zap.String("tier", dec.Tier),
		zap.String("outcome", rec.Outcome),
		zap.String("quantity", receipt.Quantity.String()),
		zap.String("notional", receipt.Notional.String()))

	if applied.StatusChanged() {
		o.enqueue(&models.DecisionRecord{
			Kind:       models.RecordKindTransition,
			PositionID: p.ID,
			Instrument: p.Instrument,
			Venue:      p.Venue,
			Timeframe:  p.Timeframe,
			Reason:     transitionReason(dec),
			Outcome:    models.OutcomeNone,
			FromStatus: applied.FromStatus,
			ToStatus:   applied.ToStatus,
		})
	}
}

func (o *Orchestrator) enqueue(rec *models.DecisionRecord) {
	if o.Audit != nil {
		o.Audit.Enqueue(rec)
	}
}

// holdingsMismatch checks the status/holdings invariant: active positions hold
// a positive quantity, watchlist positions hold none.
func holdingsMismatch(p *models.Position) (bool, string) {
	switch p.Status {
	case models.PositionStatusActive:
		if !p.Quantity.IsPositive() {
			return true, "active position with zero holdings"
		}
	case models.PositionStatusWatchlist:
		if p.Quantity.IsPositive() {
			return true, "watchlist position with holdings"
		}
	}
	return false, ""
}

func transitionReason(dec Decision) string {
	switch dec.Type {
	case models.DecisionTypeAdd:
		return "first entry filled"
	case models.DecisionTypeExit:
		return "holdings fully released"
	case models.DecisionTypeTrim:
		return "holdings trimmed to zero"
	}
	return "execution changed holdings"
}

func flagsJSON(out trend.Output) datatypes.JSON {
	m := map[string]bool{}
	if out.BuySignal {
		m["buy_signal"] = true
	}
	if out.BuyFlag {
		m["buy_flag"] = true
	}
	if out.FirstDipBuy {
		m["first_dip_buy"] = true
	}
	if out.TrimFlag {
		m["trim_flag"] = true
	}
	if out.EmergencyExit {
		m["emergency_exit"] = true
	}
	if out.ReclaimedEMA333 {
		m["reclaimed_ema333"] = true
	}
	if out.ExitPosition {
		m["exit_position"] = true
	}
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func subScoresJSON(out trend.Output) datatypes.JSON {
	raw, err := json.Marshal(out.SubScores)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
