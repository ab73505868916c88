package orchestrator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/scoring"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/trend"
)

func testDecider() *Decider {
	return &Decider{Sizing: scoring.NewSizing(config.SizingConfig{})}
}

func neutralScores() scoring.Scores {
	return scoring.Scores{Aggression: 0.5, ExitPressure: 0.5}
}

func heldActive() *models.Position {
	return &models.Position{
		Status:        models.PositionStatusActive,
		Quantity:      decimal.NewFromInt(10),
		Invested:      decimal.NewFromInt(500),
		AllocationCap: decimal.NewFromInt(1000),
	}
}

func flatWatchlist() *models.Position {
	return &models.Position{
		Status:        models.PositionStatusWatchlist,
		AllocationCap: decimal.NewFromInt(1000),
	}
}

func TestDecide_ExitOutranksEverything(t *testing.T) {
	d := testDecider()
	out := trend.Output{
		State:         trend.StateMature,
		ExitPosition:  true,
		EmergencyExit: true,
		TrimFlag:      true,
		BuySignal:     true,
	}

	dec := d.Decide(heldActive(), out, neutralScores(), decimal.NewFromInt(100))

	if dec.Type != models.DecisionTypeExit {
		t.Fatalf("type=%s want exit", dec.Type)
	}
	if dec.Side != repository.SideSell {
		t.Fatalf("side=%s want sell", dec.Side)
	}
	if dec.Fraction != 1 {
		t.Fatalf("fraction=%v want 1", dec.Fraction)
	}
	if dec.Reason != "trend structure invalidated" {
		t.Fatalf("reason=%q", dec.Reason)
	}
}

func TestDecide_EmergencyOutranksTrim(t *testing.T) {
	d := testDecider()
	out := trend.Output{State: trend.StateMature, EmergencyExit: true, TrimFlag: true}

	dec := d.Decide(heldActive(), out, neutralScores(), decimal.NewFromInt(75))

	if dec.Type != models.DecisionTypeExit {
		t.Fatalf("type=%s want exit", dec.Type)
	}
	if dec.Fraction != 1 {
		t.Fatalf("fraction=%v want 1", dec.Fraction)
	}
	if dec.Reason != "decisive break of long baseline" {
		t.Fatalf("reason=%q", dec.Reason)
	}
}

func TestDecide_ExitFlagsWithNothingHeldHold(t *testing.T) {
	d := testDecider()
	price := decimal.NewFromInt(90)

	dec := d.Decide(flatWatchlist(), trend.Output{ExitPosition: true}, neutralScores(), price)
	if dec.Actionable() {
		t.Fatalf("structural exit on a flat position should hold, got %s", dec.Type)
	}
	if dec.Reason != "structure invalidated with nothing held" {
		t.Fatalf("reason=%q", dec.Reason)
	}

	dec = d.Decide(flatWatchlist(), trend.Output{EmergencyExit: true}, neutralScores(), price)
	if dec.Actionable() {
		t.Fatalf("emergency on a flat position should hold, got %s", dec.Type)
	}
	if dec.Reason != "emergency break with nothing held" {
		t.Fatalf("reason=%q", dec.Reason)
	}
}

func TestDecide_TrimOutranksEntryWhenHeld(t *testing.T) {
	d := testDecider()
	out := trend.Output{State: trend.StateMature, TrimFlag: true, BuyFlag: true}

	dec := d.Decide(heldActive(), out, neutralScores(), decimal.NewFromInt(100))

	if dec.Type != models.DecisionTypeTrim {
		t.Fatalf("type=%s want trim", dec.Type)
	}
	if dec.Side != repository.SideSell {
		t.Fatalf("side=%s want sell", dec.Side)
	}
	if dec.Tier != scoring.TierNormal {
		t.Fatalf("tier=%s want normal", dec.Tier)
	}
	if dec.Fraction != 0.10 {
		t.Fatalf("fraction=%v want 0.10", dec.Fraction)
	}
}

func TestDecide_TrimWithNothingHeldFallsThroughToEntry(t *testing.T) {
	d := testDecider()
	out := trend.Output{State: trend.StatePullback, TrimFlag: true, BuyFlag: true}

	dec := d.Decide(flatWatchlist(), out, neutralScores(), decimal.NewFromInt(95))

	if dec.Type != models.DecisionTypeAdd {
		t.Fatalf("type=%s want add", dec.Type)
	}
	if dec.Side != repository.SideBuy {
		t.Fatalf("side=%s want buy", dec.Side)
	}
	if !dec.Notional.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("notional=%s want 150", dec.Notional)
	}
	if dec.Reason != "pullback recovery" {
		t.Fatalf("reason=%q", dec.Reason)
	}
}

func TestDecide_EntrySizesFromFirstStageTable(t *testing.T) {
	d := testDecider()
	out := trend.Output{State: trend.StateEarly, BuySignal: true}

	dec := d.Decide(flatWatchlist(), out, neutralScores(), decimal.NewFromInt(101))

	if dec.Type != models.DecisionTypeAdd {
		t.Fatalf("type=%s want add", dec.Type)
	}
	if dec.Fraction != 0.30 {
		t.Fatalf("fraction=%v want 0.30", dec.Fraction)
	}
	if !dec.Notional.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("notional=%s want 300", dec.Notional)
	}
	if dec.Reason != "trend ignition" {
		t.Fatalf("reason=%q", dec.Reason)
	}
}

func TestDecide_FirstDipDoublesLateEntry(t *testing.T) {
	d := testDecider()
	out := trend.Output{State: trend.StateMature, FirstDipBuy: true}

	dec := d.Decide(flatWatchlist(), out, neutralScores(), decimal.NewFromInt(92))

	if dec.Type != models.DecisionTypeAdd {
		t.Fatalf("type=%s want add", dec.Type)
	}
	if dec.Fraction != 0.30 {
		t.Fatalf("fraction=%v want 0.30 (late 0.15 doubled)", dec.Fraction)
	}
	if !dec.Notional.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("notional=%s want 300", dec.Notional)
	}
	if dec.Reason != "first dip after extension" {
		t.Fatalf("reason=%q", dec.Reason)
	}
}

func TestDecide_EntryWithoutHeadroomHolds(t *testing.T) {
	d := testDecider()
	p := &models.Position{
		Status:        models.PositionStatusActive,
		Quantity:      decimal.NewFromInt(10),
		Invested:      decimal.NewFromInt(1000),
		AllocationCap: decimal.NewFromInt(1000),
	}
	out := trend.Output{State: trend.StatePullback, BuyFlag: true}

	dec := d.Decide(p, out, neutralScores(), decimal.NewFromInt(100))

	if dec.Actionable() {
		t.Fatalf("fully deployed position should hold, got %s", dec.Type)
	}
	if dec.Reason != "allocation fully deployed" {
		t.Fatalf("reason=%q", dec.Reason)
	}
}

func TestDecide_ReclaimUsesLateTableWithoutBoost(t *testing.T) {
	d := testDecider()
	p := &models.Position{
		Status:        models.PositionStatusWatchlist,
		Invested:      decimal.NewFromInt(1000),
		Extracted:     decimal.NewFromInt(750),
		AllocationCap: decimal.NewFromInt(1000),
	}
	out := trend.Output{State: trend.StateMature, ReclaimedEMA333: true}

	dec := d.Decide(p, out, neutralScores(), decimal.NewFromInt(82))

	if dec.Type != models.DecisionTypeAdd {
		t.Fatalf("type=%s want add", dec.Type)
	}
	if dec.Fraction != 0.15 {
		t.Fatalf("fraction=%v want late 0.15 with no boost", dec.Fraction)
	}
	if !dec.Notional.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("notional=%s want 150", dec.Notional)
	}
	if dec.Reason != "long baseline reclaimed" {
		t.Fatalf("reason=%q", dec.Reason)
	}
}

func TestDecide_TrimTierTracksExitPressure(t *testing.T) {
	d := testDecider()
	out := trend.Output{State: trend.StateMature, TrimFlag: true}
	price := decimal.NewFromInt(100)

	hot := d.Decide(heldActive(), out, scoring.Scores{ExitPressure: 0.8}, price)
	if hot.Tier != scoring.TierAggressive || hot.Fraction != 0.50 {
		t.Fatalf("hot trim tier=%s fraction=%v want aggressive 0.50", hot.Tier, hot.Fraction)
	}

	cold := d.Decide(heldActive(), out, scoring.Scores{ExitPressure: 0.2}, price)
	if cold.Tier != scoring.TierPatient || cold.Fraction != 0.03 {
		t.Fatalf("cold trim tier=%s fraction=%v want patient 0.03", cold.Tier, cold.Fraction)
	}
}

func TestDecide_QuietBarHolds(t *testing.T) {
	d := testDecider()

	dec := d.Decide(heldActive(), trend.Output{State: trend.StateEarly}, neutralScores(), decimal.NewFromInt(100))
	if dec.Actionable() {
		t.Fatalf("flag-free bar should hold, got %s", dec.Type)
	}
	if dec.Reason != "no actionable flags" {
		t.Fatalf("reason=%q", dec.Reason)
	}

	if got := d.Decide(nil, trend.Output{}, neutralScores(), decimal.Zero); got.Actionable() {
		t.Fatalf("nil position should hold, got %s", got.Type)
	}
}
