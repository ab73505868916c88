package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
)

// Repository is the single data-access surface for the decision engine.
// Bars, indicator snapshots, and portfolio phases are read models owned by
// external producers; positions, decision records, and settings are owned
// here.
type Repository interface {
	// Positions
	UpsertPosition(ctx context.Context, item *models.Position) error
	GetPositionByID(ctx context.Context, id uint64) (*models.Position, error)
	GetPositionByIdentity(ctx context.Context, instrument, venue, timeframe string) (*models.Position, error)
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	CountPositions(ctx context.Context, params ListPositionsParams) (int64, error)
	ListEligiblePositions(ctx context.Context, timeframe string) ([]models.Position, error)
	ListPositionsByStatus(ctx context.Context, statuses []string) ([]models.Position, error)
	UpdatePositionStatus(ctx context.Context, id uint64, from, to string, at time.Time) (bool, error)
	SavePositionFeatures(ctx context.Context, id uint64, features datatypes.JSON) error
	PositionsSummary(ctx context.Context) (PositionsSummary, error)

	// Execution bookkeeping
	ClaimExecution(ctx context.Context, id uint64, now time.Time, window time.Duration) (bool, error)
	ApplyExecution(ctx context.Context, params ApplyExecutionParams) (*ExecutionApplied, error)

	// Maintenance
	RefreshBarCounts(ctx context.Context, timeframe string) (int64, error)
	ListPromotablePositions(ctx context.Context, minBars int64) ([]models.Position, error)

	// Market data read models
	CountBars(ctx context.Context, instrument, venue, timeframe string) (int64, error)
	ListIndicatorsSince(ctx context.Context, instrument, venue, timeframe string, since *time.Time, limit int) ([]models.IndicatorSnapshot, error)
	LatestIndicator(ctx context.Context, instrument, venue, timeframe string) (*models.IndicatorSnapshot, error)

	// Portfolio phase read model
	LatestPhase(ctx context.Context) (*models.PortfolioPhase, error)

	// Audit (append-only)
	InsertDecisionRecord(ctx context.Context, item *models.DecisionRecord) error
	ListDecisionRecords(ctx context.Context, params ListDecisionRecordsParams) ([]models.DecisionRecord, error)
	CountDecisionRecords(ctx context.Context, params ListDecisionRecordsParams) (int64, error)

	// System settings
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context) ([]models.SystemSetting, error)
}

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// ApplyExecutionParams carries the holdings delta from one executed order.
type ApplyExecutionParams struct {
	PositionID uint64
	Side       string
	Quantity   decimal.Decimal
	Notional   decimal.Decimal
	At         time.Time
}

// ExecutionApplied reports the position after the delta and any status change
// the delta caused (first entry, full exit).
type ExecutionApplied struct {
	Position   *models.Position
	FromStatus string
	ToStatus   string
}

func (e *ExecutionApplied) StatusChanged() bool {
	return e != nil && e.FromStatus != "" && e.ToStatus != "" && e.FromStatus != e.ToStatus
}

type ListPositionsParams struct {
	Limit      int
	Offset     int
	Status     *string
	Timeframe  *string
	Instrument *string
	Venue      *string
	OrderBy    string
	Asc        *bool
}

type ListDecisionRecordsParams struct {
	Limit        int
	Offset       int
	PositionID   *uint64
	Instrument   *string
	Timeframe    *string
	DecisionType *string
	Outcome      *string
	Kind         *string
	Since        *time.Time
	OrderBy      string
	Asc          *bool
}

type PositionsSummary struct {
	Total           int64
	ByStatus        map[string]int64
	AllocationTotal decimal.Decimal
	DeployedTotal   decimal.Decimal
	ExtractedTotal  decimal.Decimal
}
