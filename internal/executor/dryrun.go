package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DryRun fabricates fills at the reference price and never touches the venue.
// Holdings and audit records are written the same as live so a dry-run engine
// exercises the full path.
type DryRun struct {
	Logger *zap.Logger
}

func (d *DryRun) Execute(ctx context.Context, order Order) (*Receipt, error) {
	if !validSide(order.Side) {
		return nil, fmt.Errorf("invalid order side %q", order.Side)
	}
	if !order.Price.IsPositive() {
		return nil, fmt.Errorf("dry-run requires a positive reference price")
	}

	receipt := normalizeReceipt(&Receipt{
		Reference: "dry-" + order.ClientOrderID,
		Price:     order.Price,
		Quantity:  order.Quantity,
		Notional:  order.Notional,
		Status:    "simulated",
		DryRun:    true,
	}, order)

	if d.Logger != nil {
		d.Logger.Info("executor: simulated fill",
			zap.String("instrument", order.Instrument),
			zap.String("venue", order.Venue),
			zap.String("side", order.Side),
			zap.String("notional", receipt.Notional.StringFixed(6)),
			zap.String("quantity", receipt.Quantity.StringFixed(6)),
			zap.String("price", receipt.Price.StringFixed(10)),
		)
	}
	return receipt, nil
}
