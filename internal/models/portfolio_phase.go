package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PhaseExpansion    = "expansion"
	PhaseNeutral      = "neutral"
	PhaseContraction  = "contraction"
	PhaseCapitulation = "capitulation"
)

// PortfolioPhase is the coarse market-phase classification produced by the
// external phase job on its own cadence. The engine reads the latest row.
type PortfolioPhase struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Phase       string  `gorm:"type:varchar(20);not null"`
	CutPressure float64 `gorm:"not null;default:0"`

	Details datatypes.JSON `gorm:"type:jsonb"`

	ObservedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PortfolioPhase) TableName() string {
	return "portfolio_phases"
}
