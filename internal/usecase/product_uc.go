package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/printstock/internal/domain"
)

type ProductUC struct {
	Products domain.ProductRepo
	Ledger   domain.LedgerRepo
}

type ReportRow struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Category    domain.Category `json:"category"`
	Stock       float64         `json:"stock"`
	LastUpdated *time.Time      `json:"lastUpdated"`
}

func (uc *ProductUC) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	list, err := uc.Products.List(ctx, f)
	return list, domain.WrapStore("list products", err)
}

func (uc *ProductUC) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, err := uc.Products.FindByID(ctx, id)
	return p, domain.WrapStore("find product", err)
}

// Create registers a bare product with no stock and empty dimensions.
func (uc *ProductUC) Create(ctx context.Context, name, category string) (*domain.Product, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || strings.TrimSpace(category) == "" {
		return nil, domain.NewValidationError("name", "name and category are required")
	}
	cat, ok := domain.ParseCategory(category)
	if !ok {
		return nil, domain.NewValidationError("category", "unknown product type")
	}
	dims, err := domain.DecodeDimensions(cat, map[string]any{})
	if err != nil {
		return nil, err
	}
	key := domain.IdentityKey(name, cat, dims)
	if _, err := uc.Products.FindByIdentity(ctx, key); err == nil {
		return nil, domain.NewValidationError("name", "product already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WrapStore("find product", err)
	}

	p := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Category:    cat,
		IdentityKey: key,
		Imported:    true,
		Dimensions:  dims,
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.Products.Create(ctx, p); err != nil {
		return nil, domain.WrapStore("create product", err)
	}
	return p, nil
}

// ListLedger lists the stock movements of a product, oldest first.
func (uc *ProductUC) ListLedger(ctx context.Context, productID uuid.UUID) ([]domain.LedgerEntry, error) {
	if _, err := uc.Products.FindByID(ctx, productID); err != nil {
		return nil, domain.WrapStore("find product", err)
	}
	entries, err := uc.Ledger.ListByProduct(ctx, productID)
	if err != nil {
		return nil, domain.WrapStore("list ledger", err)
	}
	return entries, nil
}

func (uc *ProductUC) Report(ctx context.Context) ([]ReportRow, error) {
	list, err := uc.Products.List(ctx, domain.ProductFilter{})
	if err != nil {
		return nil, domain.WrapStore("list products", err)
	}
	rows := make([]ReportRow, 0, len(list))
	for _, p := range list {
		rows = append(rows, ReportRow{ID: p.ID, Name: p.Name, Category: p.Category, Stock: p.Stock, LastUpdated: p.LastUpdated})
	}
	return rows, nil
}

func (uc *ProductUC) Categories() []domain.Category {
	return domain.Categories
}
