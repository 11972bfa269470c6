package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenrril/printstock/internal/domain"
)

type DetailedRecordRepo struct{ db *gorm.DB }

func NewDetailedRecordRepo(db *gorm.DB) *DetailedRecordRepo { return &DetailedRecordRepo{db: db} }

func (r *DetailedRecordRepo) Append(ctx context.Context, rec *domain.DetailedStockRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *DetailedRecordRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.DetailedStockRecord, error) {
	var rec domain.DetailedStockRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *DetailedRecordRepo) UpdateState(ctx context.Context, id uuid.UUID, state domain.CommitState) error {
	res := r.db.WithContext(ctx).Model(&domain.DetailedStockRecord{}).Where("id = ?", id).Update("state", state)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DetailedRecordRepo) ListPending(ctx context.Context) ([]domain.DetailedStockRecord, error) {
	var list []domain.DetailedStockRecord
	err := r.db.WithContext(ctx).Where("state <> ?", domain.StateCommitted).Order("created_at asc").Find(&list).Error
	return list, err
}
