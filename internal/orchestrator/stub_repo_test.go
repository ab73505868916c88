package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
)

// stubRepo is an in-memory Repository for orchestrator tests. The claim,
// status, and holdings methods mirror the gorm store's conditional-update
// semantics so the idempotency and transition paths behave the same.
type stubRepo struct {
	mu sync.Mutex

	seq        uint64
	positions  map[uint64]*models.Position
	indicators []models.IndicatorSnapshot
	records    []*models.DecisionRecord
	settings   map[string]*models.SystemSetting
	phase      *models.PortfolioPhase
	bars       map[string]int64

	applyErr error
}

var _ repository.Repository = (*stubRepo)(nil)

func newStubRepo() *stubRepo {
	return &stubRepo{
		positions: map[uint64]*models.Position{},
		settings:  map[string]*models.SystemSetting{},
		bars:      map[string]int64{},
	}
}

func barKey(instrument, venue, timeframe string) string {
	return strings.Join([]string{instrument, venue, timeframe}, "|")
}

func (s *stubRepo) addPosition(p *models.Position) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p.ID = s.seq
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	s.positions[p.ID] = p
	return p.ID
}

func (s *stubRepo) addSnapshot(snap models.IndicatorSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicators = append(s.indicators, snap)
}

func (s *stubRepo) setSwitch(key string, enabled bool) {
	raw, _ := json.Marshal(enabled)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = &models.SystemSetting{Key: key, Value: datatypes.JSON(raw)}
}

func (s *stubRepo) recordsOfKind(kind string) []*models.DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DecisionRecord
	for _, rec := range s.records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

func (s *stubRepo) position(id uint64) *models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[id]
}

func (s *stubRepo) UpsertPosition(ctx context.Context, item *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.positions {
		if p.Instrument == item.Instrument && p.Venue == item.Venue && p.Timeframe == item.Timeframe {
			if item.AllocationCap.GreaterThan(p.AllocationCap) {
				p.AllocationCap = item.AllocationCap
			}
			p.Pair = item.Pair
			p.CuratorSources = item.CuratorSources
			p.UpdatedAt = time.Now().UTC()
			item.ID = p.ID
			return nil
		}
	}
	s.seq++
	item.ID = s.seq
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	cp := *item
	s.positions[item.ID] = &cp
	return nil
}

func (s *stubRepo) GetPositionByID(ctx context.Context, id uint64) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *stubRepo) GetPositionByIdentity(ctx context.Context, instrument, venue, timeframe string) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.positions {
		if p.Instrument == instrument && p.Venue == venue && p.Timeframe == timeframe {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) matchPositions(params repository.ListPositionsParams) []models.Position {
	var out []models.Position
	for _, p := range s.positions {
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.Timeframe != nil && p.Timeframe != *params.Timeframe {
			continue
		}
		if params.Instrument != nil && p.Instrument != *params.Instrument {
			continue
		}
		if params.Venue != nil && p.Venue != *params.Venue {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *stubRepo) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.matchPositions(params)
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return nil, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *stubRepo) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matchPositions(params))), nil
}

func (s *stubRepo) ListEligiblePositions(ctx context.Context, timeframe string) ([]models.Position, error) {
	if timeframe == "" {
		return nil, fmt.Errorf("timeframe is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, p := range s.positions {
		if p.Timeframe == timeframe && p.Eligible() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) ListPositionsByStatus(ctx context.Context, statuses []string) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := map[string]bool{}
	for _, st := range statuses {
		allowed[st] = true
	}
	var out []models.Position
	for _, p := range s.positions {
		if len(allowed) == 0 || allowed[p.Status] {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) UpdatePositionStatus(ctx context.Context, id uint64, from, to string, at time.Time) (bool, error) {
	if !models.CanTransitionStatus(from, to) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = at
	return true, nil
}

func (s *stubRepo) SavePositionFeatures(ctx context.Context, id uint64, features datatypes.JSON) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return fmt.Errorf("position %d not found", id)
	}
	p.Features = features
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *stubRepo) PositionsSummary(ctx context.Context) (repository.PositionsSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := repository.PositionsSummary{ByStatus: map[string]int64{}}
	for _, p := range s.positions {
		out.Total++
		out.ByStatus[p.Status]++
		out.AllocationTotal = out.AllocationTotal.Add(p.AllocationCap)
		out.DeployedTotal = out.DeployedTotal.Add(p.NetInvested())
		out.ExtractedTotal = out.ExtractedTotal.Add(p.Extracted)
	}
	return out, nil
}

func (s *stubRepo) ClaimExecution(ctx context.Context, id uint64, now time.Time, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return false, nil
	}
	if p.LastExecutionAt != nil && !p.LastExecutionAt.Before(now.Add(-window)) {
		return false, nil
	}
	ts := now
	p.LastExecutionAt = &ts
	return true, nil
}

func (s *stubRepo) ApplyExecution(ctx context.Context, params repository.ApplyExecutionParams) (*repository.ExecutionApplied, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	p, ok := s.positions[params.PositionID]
	if !ok {
		return nil, fmt.Errorf("position %d not found", params.PositionID)
	}
	from := p.Status
	switch params.Side {
	case repository.SideBuy:
		p.Quantity = p.Quantity.Add(params.Quantity)
		p.Invested = p.Invested.Add(params.Notional)
		if p.Status == models.PositionStatusWatchlist {
			p.Status = models.PositionStatusActive
		}
		if p.FirstEntryAt == nil {
			ts := params.At
			p.FirstEntryAt = &ts
		}
	case repository.SideSell:
		p.Quantity = p.Quantity.Sub(params.Quantity)
		if p.Quantity.IsNegative() {
			p.Quantity = decimal.Zero
		}
		p.Extracted = p.Extracted.Add(params.Notional)
		if p.Quantity.IsZero() && p.Status == models.PositionStatusActive {
			p.Status = models.PositionStatusWatchlist
			ts := params.At
			p.ClosedAt = &ts
		}
	default:
		return nil, fmt.Errorf("invalid side %q", params.Side)
	}
	p.UpdatedAt = params.At
	cp := *p
	return &repository.ExecutionApplied{Position: &cp, FromStatus: from, ToStatus: p.Status}, nil
}

func (s *stubRepo) RefreshBarCounts(ctx context.Context, timeframe string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.positions {
		if timeframe != "" && p.Timeframe != timeframe {
			continue
		}
		if count, ok := s.bars[barKey(p.Instrument, p.Venue, p.Timeframe)]; ok {
			p.BarsCount = count
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) ListPromotablePositions(ctx context.Context, minBars int64) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, p := range s.positions {
		if p.Status == models.PositionStatusDormant && p.BarsCount >= minBars {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) CountBars(ctx context.Context, instrument, venue, timeframe string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bars[barKey(instrument, venue, timeframe)], nil
}

func (s *stubRepo) ListIndicatorsSince(ctx context.Context, instrument, venue, timeframe string, since *time.Time, limit int) ([]models.IndicatorSnapshot, error) {
	if limit <= 0 {
		limit = 500
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.IndicatorSnapshot
	for _, snap := range s.indicators {
		if snap.Instrument != instrument || snap.Venue != venue || snap.Timeframe != timeframe {
			continue
		}
		if since != nil && !snap.TS.After(*since) {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubRepo) LatestIndicator(ctx context.Context, instrument, venue, timeframe string) (*models.IndicatorSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.IndicatorSnapshot
	for i := range s.indicators {
		snap := s.indicators[i]
		if snap.Instrument != instrument || snap.Venue != venue || snap.Timeframe != timeframe {
			continue
		}
		if latest == nil || snap.TS.After(latest.TS) {
			cp := snap
			latest = &cp
		}
	}
	return latest, nil
}

func (s *stubRepo) LatestPhase(ctx context.Context) (*models.PortfolioPhase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == nil {
		return nil, nil
	}
	cp := *s.phase
	return &cp, nil
}

func (s *stubRepo) InsertDecisionRecord(ctx context.Context, item *models.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	item.ID = s.seq
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	cp := *item
	s.records = append(s.records, &cp)
	return nil
}

func (s *stubRepo) matchRecords(params repository.ListDecisionRecordsParams) []*models.DecisionRecord {
	var out []*models.DecisionRecord
	for _, rec := range s.records {
		if params.PositionID != nil && rec.PositionID != *params.PositionID {
			continue
		}
		if params.Instrument != nil && rec.Instrument != *params.Instrument {
			continue
		}
		if params.Timeframe != nil && rec.Timeframe != *params.Timeframe {
			continue
		}
		if params.DecisionType != nil && rec.DecisionType != *params.DecisionType {
			continue
		}
		if params.Outcome != nil && rec.Outcome != *params.Outcome {
			continue
		}
		if params.Kind != nil && rec.Kind != *params.Kind {
			continue
		}
		if params.Since != nil && rec.CreatedAt.Before(*params.Since) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (s *stubRepo) ListDecisionRecords(ctx context.Context, params repository.ListDecisionRecordsParams) ([]models.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := s.matchRecords(params)
	asc := params.Asc != nil && *params.Asc
	sort.Slice(matched, func(i, j int) bool {
		if asc {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ID > matched[j].ID
	})
	if params.Offset > 0 {
		if params.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[params.Offset:]
	}
	if params.Limit > 0 && len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}
	out := make([]models.DecisionRecord, 0, len(matched))
	for _, rec := range matched {
		out = append(out, *rec)
	}
	return out, nil
}

func (s *stubRepo) CountDecisionRecords(ctx context.Context, params repository.ListDecisionRecordsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matchRecords(params))), nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.settings[item.Key]; ok {
		existing.Value = item.Value
		existing.Description = item.Description
		existing.UpdatedAt = now
		return nil
	}
	cp := *item
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.settings[item.Key] = &cp
	return nil
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *stubRepo) ListSystemSettings(ctx context.Context) ([]models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SystemSetting, 0, len(s.settings))
	for _, item := range s.settings {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
