package executor

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
)

// SettingLiveEnabled is the system-setting key for the global live/dry-run
// switch. When unset the config default applies.
const SettingLiveEnabled = "trading.live_enabled"

// Order is one venue-neutral execution request. Buys carry the native
// notional to spend; sells carry the token quantity to release. Price is the
// reference price from the latest closed bar.
type Order struct {
	Instrument    string          `json:"instrument"`
	Venue         string          `json:"venue"`
	Timeframe     string          `json:"timeframe"`
	Side          string          `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Notional      decimal.Decimal `json:"notional"`
	Price         decimal.Decimal `json:"price"`
	ClientOrderID string          `json:"client_order_id"`
}

// Receipt reports the fill for one executed order.
type Receipt struct {
	Reference string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Notional  decimal.Decimal
	Status    string
	DryRun    bool
}

// Executor places one order synchronously. One attempt, no retry; the next
// scheduled evaluation decides fresh on failure.
type Executor interface {
	Execute(ctx context.Context, order Order) (*Receipt, error)
}

// Switch reads a boolean runtime setting with a fallback.
type Switch interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

// Dispatcher routes each order to the live or dry-run executor. The mode is
// resolved per execution so the switch takes effect without a restart.
type Dispatcher struct {
	Live        Executor
	Dry         Executor
	Switch      Switch
	LiveDefault bool
	Logger      *zap.Logger
}

func (d *Dispatcher) Execute(ctx context.Context, order Order) (*Receipt, error) {
	if d.liveMode(ctx) && d.Live != nil {
		return d.Live.Execute(ctx, order)
	}
	if d.Logger != nil {
		d.Logger.Debug("executor: dry-run mode",
			zap.String("instrument", order.Instrument),
			zap.String("side", order.Side))
	}
	return d.Dry.Execute(ctx, order)
}

func (d *Dispatcher) liveMode(ctx context.Context) bool {
	if d.Switch == nil {
		return d.LiveDefault
	}
	return d.Switch.IsEnabled(ctx, SettingLiveEnabled, d.LiveDefault)
}

// normalizeReceipt fills derivable blanks so holdings math downstream always
// has price, quantity, and notional.
func normalizeReceipt(r *Receipt, order Order) *Receipt {
	if r == nil {
		return nil
	}
	if r.Price.IsZero() {
		r.Price = order.Price
	}
	if r.Quantity.IsZero() && r.Price.IsPositive() && r.Notional.IsPositive() {
		r.Quantity = r.Notional.Div(r.Price)
	}
	if r.Notional.IsZero() && r.Price.IsPositive() && r.Quantity.IsPositive() {
		r.Notional = r.Quantity.Mul(r.Price)
	}
	return r
}

func validSide(side string) bool {
	return side == repository.SideBuy || side == repository.SideSell
}
