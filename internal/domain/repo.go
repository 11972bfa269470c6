package domain

import (
	"context"

	"github.com/google/uuid"
)

type ProductRepo interface {
	Create(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByIdentity(ctx context.Context, key string) (*Product, error)
	FindByName(ctx context.Context, name string, category Category) (*Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, error)
	UpdateDimensions(ctx context.Context, id uuid.UUID, d Dimensions, identityKey string) error
	// AdjustStock adds delta to the stock atomically. A negative delta that
	// would take the stock below zero fails with ErrInsufficientStock.
	AdjustStock(ctx context.Context, id uuid.UUID, delta float64) error
	SetStock(ctx context.Context, id uuid.UUID, stock float64) error
}

type LedgerRepo interface {
	Append(ctx context.Context, e *LedgerEntry) error
	FindBySubmission(ctx context.Context, submissionID uuid.UUID) (*LedgerEntry, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]LedgerEntry, error)
	SumByProduct(ctx context.Context, productID uuid.UUID) (float64, error)
}

type DetailedRecordRepo interface {
	Append(ctx context.Context, r *DetailedStockRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*DetailedStockRecord, error)
	UpdateState(ctx context.Context, id uuid.UUID, state CommitState) error
	ListPending(ctx context.Context) ([]DetailedStockRecord, error)
}

// Locker serializes work on one key across requests (and instances, for
// the redis implementation).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
