package db

import (
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Position{},
		&models.MarketBar{},
		&models.IndicatorSnapshot{},
		&models.PortfolioPhase{},
		&models.DecisionRecord{},
		&models.SystemSetting{},
	)
}
