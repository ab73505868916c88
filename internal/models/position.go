package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PositionStatusDormant   = "dormant"
	PositionStatusWatchlist = "watchlist"
	PositionStatusActive    = "active"
	PositionStatusPaused    = "paused"
	PositionStatusArchived  = "archived"
)

// ValidStatusTransitions maps each position status to the statuses it may move to.
var ValidStatusTransitions = map[string][]string{
	PositionStatusDormant:   {PositionStatusWatchlist, PositionStatusPaused, PositionStatusArchived},
	PositionStatusWatchlist: {PositionStatusActive, PositionStatusPaused, PositionStatusArchived},
	PositionStatusActive:    {PositionStatusWatchlist, PositionStatusPaused},
	PositionStatusPaused:    {PositionStatusDormant, PositionStatusWatchlist, PositionStatusActive, PositionStatusArchived},
	PositionStatusArchived:  {},
}

func CanTransitionStatus(from, to string) bool {
	for _, allowed := range ValidStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Position is one managed holding for a token on a venue at a single timeframe.
// The (instrument, venue, timeframe) triple is the identity; the same token on
// two timeframes is two independent positions.
type Position struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Instrument string `gorm:"type:varchar(100);not null;uniqueIndex:idx_positions_identity,priority:1"`
	Venue      string `gorm:"type:varchar(50);not null;uniqueIndex:idx_positions_identity,priority:2"`
	Timeframe  string `gorm:"type:varchar(10);not null;uniqueIndex:idx_positions_identity,priority:3;index"`
	Pair       string `gorm:"type:varchar(60)"`

	Status string `gorm:"type:varchar(20);not null;default:'dormant';index"`

	// Cumulative holdings in native currency. Quantity is the token amount held,
	// Invested the total native spent on entries, Extracted the total native
	// received from trims and exits. Everything else is derived.
	Quantity  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Invested  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Extracted decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	AllocationCap decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	Features       datatypes.JSON `gorm:"type:jsonb"`
	CuratorSources datatypes.JSON `gorm:"type:jsonb"`

	BarsCount       int64      `gorm:"not null;default:0"`
	LastExecutionAt *time.Time `gorm:"type:timestamptz;index"`
	FirstEntryAt    *time.Time `gorm:"type:timestamptz"`
	ClosedAt        *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}

// NetInvested is invested minus extracted, floored at zero. It is the native
// capital still at work in the position.
func (p *Position) NetInvested() decimal.Decimal {
	net := p.Invested.Sub(p.Extracted)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// DeployedFraction reports how much of the allocation cap is currently deployed.
func (p *Position) DeployedFraction() float64 {
	if p.AllocationCap.IsZero() || p.AllocationCap.IsNegative() {
		return 0
	}
	return p.NetInvested().Div(p.AllocationCap).InexactFloat64()
}

// RealizedProfitFraction measures extracted value against the allocation cap.
// A value >= 1 means the position has already paid back its full allocation.
func (p *Position) RealizedProfitFraction() float64 {
	if p.AllocationCap.IsZero() || p.AllocationCap.IsNegative() {
		return 0
	}
	return p.Extracted.Div(p.AllocationCap).InexactFloat64()
}

// AvgEntryPrice is net invested per unit held. Undefined (ok=false) when the
// position holds nothing or has no net capital deployed.
func (p *Position) AvgEntryPrice() (decimal.Decimal, bool) {
	if p.Quantity.IsZero() || p.Quantity.IsNegative() {
		return decimal.Zero, false
	}
	net := p.NetInvested()
	if net.IsZero() {
		return decimal.Zero, false
	}
	return net.Div(p.Quantity), true
}

// DrawdownFraction is the unrealized loss relative to the average entry price,
// clamped to [0, 1]. Zero when flat, at breakeven, or in profit.
func (p *Position) DrawdownFraction(price decimal.Decimal) float64 {
	avg, ok := p.AvgEntryPrice()
	if !ok || price.IsNegative() || avg.IsZero() {
		return 0
	}
	if price.GreaterThanOrEqual(avg) {
		return 0
	}
	dd := decimal.NewFromInt(1).Sub(price.Div(avg)).InexactFloat64()
	if dd < 0 {
		return 0
	}
	if dd > 1 {
		return 1
	}
	return dd
}

// Eligible reports whether the position participates in decision ticks.
func (p *Position) Eligible() bool {
	return p.Status == PositionStatusWatchlist || p.Status == PositionStatusActive
}
