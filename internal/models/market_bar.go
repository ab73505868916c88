package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketBar is one closed OHLCV bar written by the external ingestion layer.
// This service only reads bars (counts for the dormant gate, history for
// trend bootstrap).
type MarketBar struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Instrument string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_market_bars_key,priority:1"`
	Venue      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_market_bars_key,priority:2"`
	Timeframe  string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_market_bars_key,priority:3"`
	TS         time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_market_bars_key,priority:4;index"`

	Open   decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	High   decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Low    decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Close  decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Volume decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (MarketBar) TableName() string {
	return "market_bars"
}
