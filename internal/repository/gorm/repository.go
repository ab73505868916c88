package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Positions ---------------------------------------------------------------

func (s *Store) UpsertPosition(ctx context.Context, item *models.Position) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Instrument) == "" || strings.TrimSpace(item.Venue) == "" || strings.TrimSpace(item.Timeframe) == "" {
		return nil
	}
	// Re-approvals may raise the allocation cap, never lower it, and never
	// touch holdings or status.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instrument"}, {Name: "venue"}, {Name: "timeframe"}},
		DoUpdates: clause.Assignments(map[string]any{
			"allocation_cap":  gorm.Expr("GREATEST(positions.allocation_cap, EXCLUDED.allocation_cap)"),
			"pair":            gorm.Expr("EXCLUDED.pair"),
			"curator_sources": gorm.Expr("EXCLUDED.curator_sources"),
			"updated_at":      time.Now().UTC(),
		}),
	}).Create(item).Error
}

func (s *Store) GetPositionByID(ctx context.Context, id uint64) (*models.Position, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Position
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPositionByIdentity(ctx context.Context, instrument, venue, timeframe string) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	instrument = strings.TrimSpace(instrument)
	venue = strings.TrimSpace(venue)
	timeframe = strings.TrimSpace(timeframe)
	if instrument == "" || venue == "" || timeframe == "" {
		return nil, nil
	}
	var item models.Position
	err := s.db.WithContext(ctx).
		Where("instrument = ? AND venue = ? AND timeframe = ?", instrument, venue, timeframe).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyPositionFilters(s.db.WithContext(ctx).Model(&models.Position{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Position
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyPositionFilters(s.db.WithContext(ctx).Model(&models.Position{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyPositionFilters(query *gorm.DB, params repository.ListPositionsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Timeframe != nil && strings.TrimSpace(*params.Timeframe) != "" {
		query = query.Where("timeframe = ?", strings.TrimSpace(*params.Timeframe))
	}
	if params.Instrument != nil && strings.TrimSpace(*params.Instrument) != "" {
		query = query.Where("instrument = ?", strings.TrimSpace(*params.Instrument))
	}
	if params.Venue != nil && strings.TrimSpace(*params.Venue) != "" {
		query = query.Where("venue = ?", strings.TrimSpace(*params.Venue))
	}
	return query
}

func (s *Store) ListEligiblePositions(ctx context.Context, timeframe string) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	timeframe = strings.TrimSpace(timeframe)
	if timeframe == "" {
		return nil, nil
	}
	var items []models.Position
	err := s.db.WithContext(ctx).
		Where("timeframe = ?", timeframe).
		Where("status IN ?", []string{models.PositionStatusWatchlist, models.PositionStatusActive}).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositionsByStatus(ctx context.Context, statuses []string) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	statuses = cleanStrings(statuses)
	if len(statuses) == 0 {
		return nil, nil
	}
	var items []models.Position
	err := s.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdatePositionStatus(ctx context.Context, id uint64, from, to string, at time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	if !models.CanTransitionStatus(from, to) {
		return false, nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Model(&models.Position{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) SavePositionFeatures(ctx context.Context, id uint64, features datatypes.JSON) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Position{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"features":   features,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Store) PositionsSummary(ctx context.Context) (repository.PositionsSummary, error) {
	if s == nil || s.db == nil {
		return repository.PositionsSummary{}, nil
	}
	var totals struct {
		Total           int64
		AllocationTotal float64
		DeployedTotal   float64
		ExtractedTotal  float64
	}
	err := s.db.WithContext(ctx).
		Table("positions").
		Select(`
			COUNT(*) AS total,
			COALESCE(SUM(allocation_cap),0) AS allocation_total,
			COALESCE(SUM(GREATEST(invested - extracted, 0)),0) AS deployed_total,
			COALESCE(SUM(extracted),0) AS extracted_total
		`).
		Scan(&totals).Error
	if err != nil {
		return repository.PositionsSummary{}, err
	}

	var rows []struct {
		Status string
		N      int64
	}
	err = s.db.WithContext(ctx).
		Table("positions").
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return repository.PositionsSummary{}, err
	}

	byStatus := make(map[string]int64, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r.N
	}
	return repository.PositionsSummary{
		Total:           totals.Total,
		ByStatus:        byStatus,
		AllocationTotal: decimal.NewFromFloat(totals.AllocationTotal),
		DeployedTotal:   decimal.NewFromFloat(totals.DeployedTotal),
		ExtractedTotal:  decimal.NewFromFloat(totals.ExtractedTotal),
	}, nil
}

// --- Execution bookkeeping ---------------------------------------------------

// ClaimExecution is the idempotency gate: a single-row conditional update that
// succeeds for at most one caller per window. It is a cooperative time guard,
// not a lock.
func (s *Store) ClaimExecution(ctx context.Context, id uint64, now time.Time, window time.Duration) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoff := now.Add(-window)
	res := s.db.WithContext(ctx).Model(&models.Position{}).
		Where("id = ?", id).
		Where("last_execution_at IS NULL OR last_execution_at < ?", cutoff).
		Updates(map[string]any{
			"last_execution_at": now,
			"updated_at":        now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ApplyExecution(ctx context.Context, params repository.ApplyExecutionParams) (*repository.ExecutionApplied, error) {
	if s == nil || s.db == nil || params.PositionID == 0 {
		return nil, nil
	}
	at := params.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var applied *repository.ExecutionApplied
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Position
		if err := tx.First(&p, "id = ?", params.PositionID).Error; err != nil {
			return err
		}

		from := p.Status
		updates := map[string]any{"updated_at": at}

		switch params.Side {
		case repository.SideBuy:
			p.Quantity = p.Quantity.Add(params.Quantity)
			p.Invested = p.Invested.Add(params.Notional)
			if p.Status == models.PositionStatusWatchlist {
				p.Status = models.PositionStatusActive
			}
			if p.FirstEntryAt == nil {
				p.FirstEntryAt = &at
				updates["first_entry_at"] = at
			}
		case repository.SideSell:
			p.Quantity = p.Quantity.Sub(params.Quantity)
			if p.Quantity.IsNegative() {
				p.Quantity = decimal.Zero
			}
			p.Extracted = p.Extracted.Add(params.Notional)
			if p.Quantity.IsZero() {
				if p.Status == models.PositionStatusActive {
					p.Status = models.PositionStatusWatchlist
				}
				p.ClosedAt = &at
				updates["closed_at"] = at
			}
		default:
			return nil
		}

		updates["quantity"] = p.Quantity
		updates["invested"] = p.Invested
		updates["extracted"] = p.Extracted
		updates["status"] = p.Status

		if err := tx.Model(&models.Position{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return err
		}

		applied = &repository.ExecutionApplied{Position: &p, FromStatus: from, ToStatus: p.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// --- Maintenance -------------------------------------------------------------

func (s *Store) RefreshBarCounts(ctx context.Context, timeframe string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := `UPDATE positions SET bars_count = (
		SELECT COUNT(*) FROM market_bars b
		WHERE b.instrument = positions.instrument
		  AND b.venue = positions.venue
		  AND b.timeframe = positions.timeframe
	)`
	timeframe = strings.TrimSpace(timeframe)
	var res *gorm.DB
	if timeframe == "" {
		res = s.db.WithContext(ctx).Exec(query)
	} else {
		res = s.db.WithContext(ctx).Exec(query+` WHERE timeframe = ?`, timeframe)
	}
	return res.RowsAffected, res.Error
}

func (s *Store) ListPromotablePositions(ctx context.Context, minBars int64) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Position
	err := s.db.WithContext(ctx).
		Where("status = ?", models.PositionStatusDormant).
		Where("bars_count >= ?", minBars).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Market data read models -------------------------------------------------

func (s *Store) CountBars(ctx context.Context, instrument, venue, timeframe string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.MarketBar{}).
		Where("instrument = ? AND venue = ? AND timeframe = ?", instrument, venue, timeframe).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListIndicatorsSince(ctx context.Context, instrument, venue, timeframe string, since *time.Time, limit int) ([]models.IndicatorSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.IndicatorSnapshot{}).
		Where("instrument = ? AND venue = ? AND timeframe = ?", instrument, venue, timeframe)
	if since != nil && !since.IsZero() {
		query = query.Where("ts > ?", *since)
	}
	limit = normalizeLimit(limit, 500)
	var items []models.IndicatorSnapshot
	if err := query.Order("ts asc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LatestIndicator(ctx context.Context, instrument, venue, timeframe string) (*models.IndicatorSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.IndicatorSnapshot
	err := s.db.WithContext(ctx).
		Where("instrument = ? AND venue = ? AND timeframe = ?", instrument, venue, timeframe).
		Order("ts desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Portfolio phase ---------------------------------------------------------

func (s *Store) LatestPhase(ctx context.Context) (*models.PortfolioPhase, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PortfolioPhase
	err := s.db.WithContext(ctx).Order("observed_at desc").First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Audit -------------------------------------------------------------------

func (s *Store) InsertDecisionRecord(ctx context.Context, item *models.DecisionRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListDecisionRecords(ctx context.Context, params repository.ListDecisionRecordsParams) ([]models.DecisionRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyDecisionRecordFilters(s.db.WithContext(ctx).Model(&models.DecisionRecord{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.DecisionRecord
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDecisionRecords(ctx context.Context, params repository.ListDecisionRecordsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyDecisionRecordFilters(s.db.WithContext(ctx).Model(&models.DecisionRecord{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyDecisionRecordFilters(query *gorm.DB, params repository.ListDecisionRecordsParams) *gorm.DB {
	if params.PositionID != nil && *params.PositionID != 0 {
		query = query.Where("position_id = ?", *params.PositionID)
	}
	if params.Instrument != nil && strings.TrimSpace(*params.Instrument) != "" {
		query = query.Where("instrument = ?", strings.TrimSpace(*params.Instrument))
	}
	if params.Timeframe != nil && strings.TrimSpace(*params.Timeframe) != "" {
		query = query.Where("timeframe = ?", strings.TrimSpace(*params.Timeframe))
	}
	if params.DecisionType != nil && strings.TrimSpace(*params.DecisionType) != "" {
		query = query.Where("decision_type = ?", strings.TrimSpace(*params.DecisionType))
	}
	if params.Outcome != nil && strings.TrimSpace(*params.Outcome) != "" {
		query = query.Where("outcome = ?", strings.TrimSpace(*params.Outcome))
	}
	if params.Kind != nil && strings.TrimSpace(*params.Kind) != "" {
		query = query.Where("kind = ?", strings.TrimSpace(*params.Kind))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

// --- System settings ---------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Key) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SystemSetting
	if err := s.db.WithContext(ctx).Order("key asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers -----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
