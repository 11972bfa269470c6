package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/phenrril/printstock/internal/domain"
)

// productRow is the products table. Dimensions are stored as jsonb in the
// shape produced by domain.EncodeDimensions.
type productRow struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Name        string            `gorm:"size:200;not null"`
	Category    string            `gorm:"size:32;not null;index"`
	IdentityKey string            `gorm:"size:512;not null;uniqueIndex"`
	Stock       float64           `gorm:"type:decimal(14,4);not null;default:0;check:stock_non_negative,stock >= 0"`
	Imported    bool              `gorm:"not null"`
	Dimensions  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time
	LastUpdated *time.Time
}

func (productRow) TableName() string { return "products" }

func toRow(p *domain.Product) (*productRow, error) {
	dims, err := domain.EncodeDimensions(p.Dimensions)
	if err != nil {
		return nil, err
	}
	return &productRow{
		ID:          p.ID,
		Name:        p.Name,
		Category:    string(p.Category),
		IdentityKey: p.IdentityKey,
		Stock:       p.Stock,
		Imported:    p.Imported,
		Dimensions:  datatypes.JSONMap(dims),
		CreatedAt:   p.CreatedAt,
		LastUpdated: p.LastUpdated,
	}, nil
}

func (r *productRow) toDomain() (*domain.Product, error) {
	cat := domain.Category(r.Category)
	dims, err := domain.DecodeDimensions(cat, map[string]any(r.Dimensions))
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Category:    cat,
		IdentityKey: r.IdentityKey,
		Stock:       r.Stock,
		Imported:    r.Imported,
		Dimensions:  dims,
		CreatedAt:   r.CreatedAt,
		LastUpdated: r.LastUpdated,
	}, nil
}

type ProductRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	row, err := toRow(p)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *ProductRepo) first(ctx context.Context, query string, args ...any) (*domain.Product, error) {
	var row productRow
	if err := r.db.WithContext(ctx).Where(query, args...).Order("created_at asc").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

func (r *ProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ProductRepo) FindByIdentity(ctx context.Context, key string) (*domain.Product, error) {
	return r.first(ctx, "identity_key = ?", key)
}

func (r *ProductRepo) FindByName(ctx context.Context, name string, category domain.Category) (*domain.Product, error) {
	return r.first(ctx, "LOWER(name) = LOWER(?) AND category = ?", strings.TrimSpace(name), string(category))
}

func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	var rows []productRow
	q := r.db.WithContext(ctx).Model(&productRow{})
	if f.Category != "" {
		q = q.Where("category = ?", string(f.Category))
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+query+"%")
	}
	if err := q.Order("name asc").Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	list := make([]domain.Product, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, nil
}

func (r *ProductRepo) UpdateDimensions(ctx context.Context, id uuid.UUID, d domain.Dimensions, identityKey string) error {
	dims, err := domain.EncodeDimensions(d)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&productRow{}).Where("id = ?", id).Updates(map[string]any{
		"dimensions":   datatypes.JSONMap(dims),
		"identity_key": identityKey,
		"last_updated": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AdjustStock applies delta in a single UPDATE. Outgoing deltas only match
// rows holding enough stock.
func (r *ProductRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta float64) error {
	q := r.db.WithContext(ctx).Model(&productRow{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("COALESCE(stock,0) >= ?", -delta)
	}
	res := q.Updates(map[string]any{
		"stock":        gorm.Expr("COALESCE(stock,0) + ?", delta),
		"last_updated": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&productRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *ProductRepo) SetStock(ctx context.Context, id uuid.UUID, stock float64) error {
	res := r.db.WithContext(ctx).Model(&productRow{}).Where("id = ?", id).Updates(map[string]any{
		"stock":        stock,
		"last_updated": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
