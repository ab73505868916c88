package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/audit"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/trend"
)

// stubRepo covers the repository slices the services in this package touch.
// Anything else panics through the embedded nil interface.
type stubRepo struct {
	repository.Repository

	mu         sync.Mutex
	seq        uint64
	positions  map[uint64]*models.Position
	indicators []models.IndicatorSnapshot
	records    []*models.DecisionRecord
	settings   map[string]*models.SystemSetting
	bars       map[string]int64

	indicatorCalls int
}

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
	s.positions[p.ID] = p
	return p.ID
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
			item.ID = p.ID
			return nil
		}
	}
	s.seq++
	item.ID = s.seq
	cp := *item
	s.positions[item.ID] = &cp
	return nil
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
	if p, ok := s.positions[id]; ok {
		p.Features = features
	}
	return nil
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

func (s *stubRepo) ListIndicatorsSince(ctx context.Context, instrument, venue, timeframe string, since *time.Time, limit int) ([]models.IndicatorSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicatorCalls++
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
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubRepo) InsertDecisionRecord(ctx context.Context, item *models.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.records = append(s.records, &cp)
	return nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.settings[item.Key]; ok {
		existing.Value = item.Value
		existing.Description = item.Description
		return nil
	}
	cp := *item
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

// drainAudit runs the recorder against a canceled context so every queued
// record lands synchronously.
func drainAudit(rec *audit.Recorder) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)
}

var life0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func lifeSnap(n int, close, ema20, ema60, ema120 float64) models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Instrument: "WIF-DEMO",
		Venue:      "raydium",
		Timeframe:  "4h",
		TS:         life0.Add(time.Duration(n) * 4 * time.Hour),
		Close:      decimal.NewFromFloat(close),
		EMA20:      decimal.NewFromFloat(ema20),
		EMA60:      decimal.NewFromFloat(ema60),
		EMA120:     decimal.NewFromFloat(ema120),
		EMA333:     decimal.NewNullDecimal(decimal.NewFromInt(80)),
		ATR14:      decimal.NewFromInt(2),
		RSI14:      50,
	}
}

func dormantPosition(instrument string) *models.Position {
	return &models.Position{
		Instrument:    instrument,
		Venue:         "raydium",
		Timeframe:     "4h",
		Status:        models.PositionStatusDormant,
		AllocationCap: decimal.NewFromInt(1000),
	}
}

func TestRunPromotion_GateIsInclusive(t *testing.T) {
	repo := newStubRepo()
	ready := dormantPosition("WIF-DEMO")
	short := dormantPosition("BONK-DEMO")
	readyID := repo.addPosition(ready)
	shortID := repo.addPosition(short)
	// Counts are stale on the rows; the pass must refresh them first.
	repo.bars[barKey("WIF-DEMO", "raydium", "4h")] = 350
	repo.bars[barKey("BONK-DEMO", "raydium", "4h")] = 349

	rec := audit.NewRecorder(repo, zap.NewNop())
	svc := &LifecycleService{Repo: repo, Audit: rec, Logger: zap.NewNop()}
	svc.RunPromotion(context.Background())
	drainAudit(rec)

	if got := repo.position(readyID); got.Status != models.PositionStatusWatchlist {
		t.Fatalf("status=%s want watchlist at exactly the gate", got.Status)
	}
	if got := repo.position(shortID); got.Status != models.PositionStatusDormant {
		t.Fatalf("status=%s want dormant one bar short", got.Status)
	}
	if got := repo.position(shortID); got.BarsCount != 349 {
		t.Fatalf("bars=%d want refreshed 349", got.BarsCount)
	}

	if len(repo.records) != 1 {
		t.Fatalf("records=%d want 1", len(repo.records))
	}
	tr := repo.records[0]
	if tr.Kind != models.RecordKindTransition {
		t.Fatalf("kind=%s want transition", tr.Kind)
	}
	if tr.PositionID != readyID {
		t.Fatalf("position id=%d want %d", tr.PositionID, readyID)
	}
	if tr.FromStatus != models.PositionStatusDormant || tr.ToStatus != models.PositionStatusWatchlist {
		t.Fatalf("transition %s->%s want dormant->watchlist", tr.FromStatus, tr.ToStatus)
	}
	if tr.Reason != "minimum bar history reached" {
		t.Fatalf("reason=%q", tr.Reason)
	}
}

func TestRunBootstrap_SeedsColdContexts(t *testing.T) {
	repo := newStubRepo()
	p := dormantPosition("WIF-DEMO")
	id := repo.addPosition(p)
	// Ignition then pullback: a mid-trend landing must come out provisional.
	repo.indicators = append(repo.indicators,
		lifeSnap(1, 99, 100, 96, 90),
		lifeSnap(2, 101, 100.5, 96, 90),
		lifeSnap(3, 97.5, 100, 96, 90),
	)

	svc := &LifecycleService{Repo: repo, Engine: trend.New(trend.Config{}), Logger: zap.NewNop()}
	svc.RunBootstrap(context.Background())

	got := repo.position(id)
	fs, err := got.FeatureSet()
	if err != nil {
		t.Fatalf("feature bag: %v", err)
	}
	if len(fs.Trend) == 0 {
		t.Fatal("trend context not seeded")
	}
	var tctx trend.Context
	if err := json.Unmarshal(fs.Trend, &tctx); err != nil {
		t.Fatalf("context decode: %v", err)
	}
	if tctx.State != trend.StatePullback {
		t.Fatalf("state=%s want S2", tctx.State)
	}
	if !tctx.Provisional {
		t.Fatal("mid-trend bootstrap landing must be provisional")
	}
	wantTS := life0.Add(3 * 4 * time.Hour)
	if fs.IndicatorTS == nil || !fs.IndicatorTS.Equal(wantTS) {
		t.Fatalf("indicator ts=%v want %v", fs.IndicatorTS, wantTS)
	}
}

func TestRunBootstrap_SkipsSeededContexts(t *testing.T) {
	repo := newStubRepo()
	p := dormantPosition("WIF-DEMO")
	raw, err := json.Marshal(trend.NewContext())
	if err != nil {
		t.Fatalf("marshal context: %v", err)
	}
	if err := p.SetFeatureSet(models.FeatureSet{Trend: raw}); err != nil {
		t.Fatalf("feature bag: %v", err)
	}
	repo.addPosition(p)
	repo.indicators = append(repo.indicators, lifeSnap(1, 99, 100, 96, 90))

	svc := &LifecycleService{Repo: repo, Engine: trend.New(trend.Config{}), Logger: zap.NewNop()}
	svc.RunBootstrap(context.Background())

	if repo.indicatorCalls != 0 {
		t.Fatalf("indicator loads=%d want 0 for an already-seeded position", repo.indicatorCalls)
	}
}

func TestRunBootstrap_NoHistoryWritesNothing(t *testing.T) {
	repo := newStubRepo()
	p := dormantPosition("WIF-DEMO")
	id := repo.addPosition(p)

	svc := &LifecycleService{Repo: repo, Engine: trend.New(trend.Config{}), Logger: zap.NewNop()}
	svc.RunBootstrap(context.Background())

	if got := repo.position(id); len(got.Features) != 0 {
		t.Fatal("feature bag written with no indicator history")
	}
}
