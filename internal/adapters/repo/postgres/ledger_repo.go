package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenrril/printstock/internal/domain"
)

type LedgerRepo struct{ db *gorm.DB }

func NewLedgerRepo(db *gorm.DB) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *LedgerRepo) FindBySubmission(ctx context.Context, submissionID uuid.UUID) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	if err := r.db.WithContext(ctx).First(&e, "submission_id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *LedgerRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.LedgerEntry, error) {
	var list []domain.LedgerEntry
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order(`"timestamp" asc`).Find(&list).Error
	return list, err
}

func (r *LedgerRepo) SumByProduct(ctx context.Context, productID uuid.UUID) (float64, error) {
	var sum float64
	err := r.db.WithContext(ctx).Model(&domain.LedgerEntry{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN -quantity ELSE quantity END), 0)", domain.DirectionOut).
		Where("product_id = ?", productID).
		Scan(&sum).Error
	return sum, err
}
