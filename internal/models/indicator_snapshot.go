package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndicatorSnapshot is the precomputed indicator row for one closed bar,
// written by the external indicator job. EMA333 is null until the long
// horizon has enough history.
type IndicatorSnapshot struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Instrument string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_indicator_snapshots_key,priority:1"`
	Venue      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_indicator_snapshots_key,priority:2"`
	Timeframe  string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_indicator_snapshots_key,priority:3"`
	TS         time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_indicator_snapshots_key,priority:4;index"`

	Close  decimal.Decimal     `gorm:"type:numeric(20,10);not null"`
	EMA20  decimal.Decimal     `gorm:"column:ema20;type:numeric(20,10);not null"`
	EMA60  decimal.Decimal     `gorm:"column:ema60;type:numeric(20,10);not null"`
	EMA120 decimal.Decimal     `gorm:"column:ema120;type:numeric(20,10);not null"`
	EMA333 decimal.NullDecimal `gorm:"column:ema333;type:numeric(20,10)"`
	ATR14  decimal.Decimal     `gorm:"column:atr14;type:numeric(20,10);not null;default:0"`

	RSI14   float64 `gorm:"column:rsi14;not null;default:0"`
	ADX14   float64 `gorm:"column:adx14;not null;default:0"`
	VolumeZ float64 `gorm:"column:volume_z;not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (IndicatorSnapshot) TableName() string {
	return "indicator_snapshots"
}
