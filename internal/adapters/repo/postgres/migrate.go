package postgres

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/phenrril/printstock/internal/domain"
)

var indexStatements = []string{
	"CREATE INDEX IF NOT EXISTS idx_products_category_lower_name ON products (category, LOWER(name))",
	"CREATE INDEX IF NOT EXISTS idx_products_dimensions_gin ON products USING gin (dimensions)",
	"CREATE INDEX IF NOT EXISTS idx_detailed_stock_pending ON detailed_stock (created_at) WHERE state <> 'committed'",
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&productRow{}, &domain.LedgerEntry{}, &domain.DetailedStockRecord{}); err != nil {
		return err
	}
	createIndexes(func(stmt string) error { return db.Exec(stmt).Error })
	return nil
}

// createIndexes runs every index statement. Failures are logged and counted;
// startup continues.
func createIndexes(exec func(stmt string) error) (failed int) {
	for _, stmt := range indexStatements {
		if err := exec(stmt); err != nil {
			log.Warn().Err(err).Str("statement", stmt).Msg("create index failed")
			failed++
		}
	}
	return failed
}
