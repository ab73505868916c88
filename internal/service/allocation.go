package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
)

// ApprovalInput is one upstream curator approval: a total native allocation
// for an instrument, to be split across the configured timeframes.
type ApprovalInput struct {
	Instrument      string          `json:"instrument"`
	Venue           string          `json:"venue"`
	Pair            string          `json:"pair"`
	TotalAllocation decimal.Decimal `json:"total_allocation"`
	Sources         []string        `json:"sources"`
}

// AllocationService materializes approvals into dormant positions, one per
// enabled timeframe, each with its fixed slice of the total allocation.
type AllocationService struct {
	Repo       repository.Repository
	Logger     *zap.Logger
	Timeframes []config.TimeframeConfig
}

func (s *AllocationService) Approve(ctx context.Context, in ApprovalInput) ([]models.Position, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	in.Instrument = strings.TrimSpace(in.Instrument)
	in.Venue = strings.TrimSpace(in.Venue)
	if in.Instrument == "" || in.Venue == "" {
		return nil, fmt.Errorf("instrument and venue are required")
	}
	if !in.TotalAllocation.IsPositive() {
		return nil, fmt.Errorf("total allocation must be positive")
	}

	var sources datatypes.JSON
	if len(in.Sources) > 0 {
		raw, err := json.Marshal(in.Sources)
		if err != nil {
			return nil, err
		}
		sources = datatypes.JSON(raw)
	}

	out := make([]models.Position, 0, len(s.Timeframes))
	for _, tf := range s.Timeframes {
		if !tf.Enabled || tf.AllocationPct <= 0 {
			continue
		}
		cap := in.TotalAllocation.Mul(decimal.NewFromFloat(tf.AllocationPct))
		item := &models.Position{
			Instrument:     in.Instrument,
			Venue:          in.Venue,
			Timeframe:      tf.Name,
			Pair:           strings.TrimSpace(in.Pair),
			Status:         models.PositionStatusDormant,
			AllocationCap:  cap,
			CuratorSources: sources,
		}
		if err := s.Repo.UpsertPosition(ctx, item); err != nil {
			return nil, err
		}
		stored, err := s.Repo.GetPositionByIdentity(ctx, in.Instrument, in.Venue, tf.Name)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			out = append(out, *stored)
		}
	}

	if s.Logger != nil {
		s.Logger.Info("allocation: approval materialized",
			zap.String("instrument", in.Instrument),
			zap.String("venue", in.Venue),
			zap.String("total", in.TotalAllocation.StringFixed(6)),
			zap.Int("positions", len(out)))
	}
	return out, nil
}
