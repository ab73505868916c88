package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
)

const (
	TierAggressive = "aggressive"
	TierNormal     = "normal"
	TierPatient    = "patient"
)

// Sizing turns a score tier plus the position's allocation state into order
// fractions. All methods are pure.
type Sizing struct {
	cfg config.SizingConfig
}

func NewSizing(cfg config.SizingConfig) *Sizing {
	if cfg.AggressiveCut <= 0 {
		cfg.AggressiveCut = 0.7
	}
	if cfg.NormalCut <= 0 {
		cfg.NormalCut = 0.3
	}
	if cfg.EntryS1 == (config.TierFractions{}) {
		cfg.EntryS1 = config.TierFractions{Aggressive: 0.50, Normal: 0.30, Patient: 0.10}
	}
	if cfg.EntryLate == (config.TierFractions{}) {
		cfg.EntryLate = config.TierFractions{Aggressive: 0.25, Normal: 0.15, Patient: 0.05}
	}
	if cfg.Trim == (config.TierFractions{}) {
		cfg.Trim = config.TierFractions{Aggressive: 0.50, Normal: 0.10, Patient: 0.03}
	}
	if cfg.FirstDipBoost <= 0 {
		cfg.FirstDipBoost = 2.0
	}
	if cfg.EntryMultMin <= 0 {
		cfg.EntryMultMin = 0.3
	}
	if cfg.EntryMultMax <= 0 {
		cfg.EntryMultMax = 1.5
	}
	if cfg.TrimMultMin <= 0 {
		cfg.TrimMultMin = 0.3
	}
	if cfg.TrimMultMax <= 0 {
		cfg.TrimMultMax = 3.0
	}
	if cfg.ProfitShrinkStart <= 0 {
		cfg.ProfitShrinkStart = 1.0
	}
	if cfg.ProfitShrinkEnd <= cfg.ProfitShrinkStart {
		cfg.ProfitShrinkEnd = cfg.ProfitShrinkStart + 0.5
	}
	if cfg.DrawdownBoostCap <= 0 {
		cfg.DrawdownBoostCap = 0.2
	}
	if cfg.TrimRampStart <= 0 || cfg.TrimRampStart >= 1 {
		cfg.TrimRampStart = 0.5
	}
	return &Sizing{cfg: cfg}
}

// TierFor buckets a score at the 0.7 / 0.3 cutpoints.
func (s *Sizing) TierFor(score float64) string {
	if score >= s.cfg.AggressiveCut {
		return TierAggressive
	}
	if score >= s.cfg.NormalCut {
		return TierNormal
	}
	return TierPatient
}

func pick(t config.TierFractions, tier string) float64 {
	switch tier {
	case TierAggressive:
		return t.Aggressive
	case TierNormal:
		return t.Normal
	default:
		return t.Patient
	}
}

// EntryBase is the tier table lookup: first-stage entries size from the
// larger S1 table, later-stage entries from the S2/S3 table.
func (s *Sizing) EntryBase(firstStage bool, tier string) float64 {
	if firstStage {
		return pick(s.cfg.EntryS1, tier)
	}
	return pick(s.cfg.EntryLate, tier)
}

// EntryMultiplier scales the entry by the allocation's history: shrink toward
// the floor once realized profit has paid back the whole allocation, boost
// toward the cap while the position is underwater.
func (s *Sizing) EntryMultiplier(realizedProfitFrac, drawdownFrac float64) float64 {
	if realizedProfitFrac >= s.cfg.ProfitShrinkStart {
		span := s.cfg.ProfitShrinkEnd - s.cfg.ProfitShrinkStart
		t := clamp01((realizedProfitFrac - s.cfg.ProfitShrinkStart) / span)
		return 1 + t*(s.cfg.EntryMultMin-1)
	}
	if drawdownFrac > 0 {
		t := clamp01(drawdownFrac / s.cfg.DrawdownBoostCap)
		return 1 + t*(s.cfg.EntryMultMax-1)
	}
	return 1
}

// EntryFraction is the planned entry size as a fraction of the allocation cap
// before the headroom clamp.
func (s *Sizing) EntryFraction(firstStage bool, tier string, firstDip bool, realizedProfitFrac, drawdownFrac float64) float64 {
	base := s.EntryBase(firstStage, tier)
	if firstDip {
		base *= s.cfg.FirstDipBoost
	}
	f := base * s.EntryMultiplier(realizedProfitFrac, drawdownFrac)
	if f > 1 {
		f = 1
	}
	return f
}

// EntryNotional converts the fraction to native currency and clamps it to the
// allocation headroom. Zero means the cap is fully deployed.
func (s *Sizing) EntryNotional(p *models.Position, fraction float64) decimal.Decimal {
	if p == nil || fraction <= 0 {
		return decimal.Zero
	}
	headroom := p.AllocationCap.Sub(p.NetInvested())
	if !headroom.IsPositive() {
		return decimal.Zero
	}
	notional := p.AllocationCap.Mul(decimal.NewFromFloat(fraction))
	if notional.GreaterThan(headroom) {
		return headroom
	}
	return notional
}

// TrimMultiplier scales trims by allocation pressure: harder as the deployed
// fraction approaches the cap, muted once the position has paid for itself.
func (s *Sizing) TrimMultiplier(deployedFrac, realizedProfitFrac float64) float64 {
	if realizedProfitFrac >= s.cfg.ProfitShrinkStart {
		return s.cfg.TrimMultMin
	}
	m := 1.0
	if deployedFrac > s.cfg.TrimRampStart {
		span := 1 - s.cfg.TrimRampStart
		t := clamp01((deployedFrac - s.cfg.TrimRampStart) / span)
		m = 1 + t*(s.cfg.TrimMultMax-1)
	}
	if m < s.cfg.TrimMultMin {
		m = s.cfg.TrimMultMin
	}
	if m > s.cfg.TrimMultMax {
		m = s.cfg.TrimMultMax
	}
	return m
}

// TrimFraction is the slice of current holdings to sell, capped at 100%.
func (s *Sizing) TrimFraction(tier string, deployedFrac, realizedProfitFrac float64) float64 {
	f := pick(s.cfg.Trim, tier) * s.TrimMultiplier(deployedFrac, realizedProfitFrac)
	if f > 1 {
		f = 1
	}
	return f
}
