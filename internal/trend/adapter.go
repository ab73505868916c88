package trend

import (
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
)

// RowFromSnapshot converts a stored indicator row into engine input.
func RowFromSnapshot(s models.IndicatorSnapshot) Row {
	row := Row{
		TS:      s.TS,
		Close:   s.Close.InexactFloat64(),
		EMA20:   s.EMA20.InexactFloat64(),
		EMA60:   s.EMA60.InexactFloat64(),
		EMA120:  s.EMA120.InexactFloat64(),
		ATR:     s.ATR14.InexactFloat64(),
		RSI:     s.RSI14,
		ADX:     s.ADX14,
		VolumeZ: s.VolumeZ,
	}
	if s.EMA333.Valid {
		row.EMA333 = s.EMA333.Decimal.InexactFloat64()
		row.HasEMA333 = row.EMA333 > 0
	}
	return row
}

// RowsFromSnapshots converts a window preserving order.
func RowsFromSnapshots(items []models.IndicatorSnapshot) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, RowFromSnapshot(item))
	}
	return rows
}
