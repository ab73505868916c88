package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	RecordKindDecision   = "decision"
	RecordKindTransition = "transition"
)

const (
	DecisionTypeHold = "hold"
	DecisionTypeAdd  = "add"
	DecisionTypeTrim = "trim"
	DecisionTypeExit = "exit"
)

const (
	OutcomeNone             = "none"
	OutcomeExecuted         = "executed"
	OutcomeDryRun           = "dry_run"
	OutcomeFailed           = "failed"
	OutcomeSkippedDuplicate = "skipped_duplicate"
)

// DecisionRecord is the append-only audit trail: one row per evaluation
// (kind=decision) and one per status change (kind=transition). Rows are
// inserted and listed, never updated.
type DecisionRecord struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Kind string `gorm:"type:varchar(12);not null;default:'decision';index"`

	PositionID uint64 `gorm:"not null;index"`
	Instrument string `gorm:"type:varchar(100);not null;index"`
	Venue      string `gorm:"type:varchar(50);not null"`
	Timeframe  string `gorm:"type:varchar(10);not null;index"`

	DecisionType string  `gorm:"type:varchar(10);index"`
	SizeFraction float64 `gorm:"not null;default:0"`

	Notional decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Quantity decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Price    decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	TrendState string         `gorm:"type:varchar(4)"`
	Flags      datatypes.JSON `gorm:"type:jsonb"`
	SubScores  datatypes.JSON `gorm:"type:jsonb"`

	Aggression   float64 `gorm:"not null;default:0"`
	ExitPressure float64 `gorm:"not null;default:0"`
	Tier         string  `gorm:"type:varchar(12)"`

	Reason  string `gorm:"type:text"`
	Outcome string `gorm:"type:varchar(20);not null;default:'none';index"`

	ExecutionRef  string `gorm:"type:varchar(64)"`
	ClientOrderID string `gorm:"type:varchar(64)"`
	ErrorText     string `gorm:"type:text"`

	FromStatus string `gorm:"type:varchar(20)"`
	ToStatus   string `gorm:"type:varchar(20)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (DecisionRecord) TableName() string {
	return "decision_records"
}
