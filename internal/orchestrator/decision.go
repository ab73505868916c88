package orchestrator

import (
	"github.com/shopspring/decimal"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/scoring"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/trend"
)

// Decision is the single resolved action for one position on one bar. Adds
// carry a headroom-clamped notional; trims and exits carry a fraction of
// current holdings. A hold carries only the reason.
type Decision struct {
	Type     string
	Side     string
	Fraction float64
	Notional decimal.Decimal
	Tier     string
	Reason   string
}

// Actionable reports whether the decision reaches the executor.
func (d Decision) Actionable() bool {
	return d.Type != models.DecisionTypeHold
}

func hold(reason string) Decision {
	return Decision{Type: models.DecisionTypeHold, Reason: reason}
}

// Decider collapses a flag set into one decision. Flags are not mutually
// exclusive; exits outrank trims outrank entries.
type Decider struct {
	Sizing *scoring.Sizing
}

func (d *Decider) Decide(p *models.Position, out trend.Output, sc scoring.Scores, price decimal.Decimal) Decision {
	if p == nil {
		return hold("no position")
	}
	held := p.Quantity.IsPositive()

	switch {
	case out.ExitPosition:
		if !held {
			return hold("structure invalidated with nothing held")
		}
		return Decision{
			Type:     models.DecisionTypeExit,
			Side:     repository.SideSell,
			Fraction: 1,
			Reason:   "trend structure invalidated",
		}

	case out.EmergencyExit:
		if !held {
			return hold("emergency break with nothing held")
		}
		return Decision{
			Type:     models.DecisionTypeExit,
			Side:     repository.SideSell,
			Fraction: 1,
			Reason:   "decisive break of long baseline",
		}

	case out.TrimFlag && held:
		tier := d.Sizing.TierFor(sc.ExitPressure)
		frac := d.Sizing.TrimFraction(tier,
			clampFloat(p.DeployedFraction()),
			p.RealizedProfitFraction())
		if frac <= 0 {
			return hold("trim sized to zero")
		}
		return Decision{
			Type:     models.DecisionTypeTrim,
			Side:     repository.SideSell,
			Fraction: frac,
			Tier:     tier,
			Reason:   "extended with renewed strength",
		}

	case out.AnyEntry():
		tier := d.Sizing.TierFor(sc.Aggression)
		frac := d.Sizing.EntryFraction(
			out.State == trend.StateEarly,
			tier,
			out.FirstDipBuy,
			p.RealizedProfitFraction(),
			p.DrawdownFraction(price))
		notional := d.Sizing.EntryNotional(p, frac)
		if !notional.IsPositive() {
			return hold("allocation fully deployed")
		}
		return Decision{
			Type:     models.DecisionTypeAdd,
			Side:     repository.SideBuy,
			Fraction: frac,
			Notional: notional,
			Tier:     tier,
			Reason:   entryReason(out),
		}

	case out.ReclaimedEMA333:
		// Re-entry after an emergency exit sizes from the late-stage table
		// with no dip boost; the reclaim is confirmation, not a discount.
		tier := d.Sizing.TierFor(sc.Aggression)
		frac := d.Sizing.EntryFraction(false, tier, false,
			p.RealizedProfitFraction(),
			p.DrawdownFraction(price))
		notional := d.Sizing.EntryNotional(p, frac)
		if !notional.IsPositive() {
			return hold("allocation fully deployed")
		}
		return Decision{
			Type:     models.DecisionTypeAdd,
			Side:     repository.SideBuy,
			Fraction: frac,
			Notional: notional,
			Tier:     tier,
			Reason:   "long baseline reclaimed",
		}
	}

	return hold("no actionable flags")
}

func entryReason(out trend.Output) string {
	switch {
	case out.FirstDipBuy:
		return "first dip after extension"
	case out.BuySignal:
		return "trend ignition"
	default:
		return "pullback recovery"
	}
}

func clampFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
