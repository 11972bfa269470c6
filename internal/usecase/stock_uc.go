package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/printstock/internal/domain"
)

// LowStockThreshold is the stock below which a product counts as low.
const LowStockThreshold = 10

type StockUC struct {
	Products domain.ProductRepo
	Ledger   domain.LedgerRepo
	Records  domain.DetailedRecordRepo
	Locks    domain.Locker
}

type ReconciliationResult struct {
	SubmissionID uuid.UUID `json:"id"`
	ProductID    uuid.UUID `json:"productId"`
	ProductName  string    `json:"productName"`
	Created      bool      `json:"created"`
	Merged       bool      `json:"merged"`
	Quantity     float64   `json:"quantity"`
}

type DuplicateAction string

const (
	ActionDiscard     DuplicateAction = "discard"
	ActionAddWithDate DuplicateAction = "add_with_date"
)

type ConfirmResult struct {
	Action     DuplicateAction       `json:"action"`
	UniqueName string                `json:"uniqueName,omitempty"`
	Result     *ReconciliationResult `json:"result,omitempty"`
}

type StockSummary struct {
	Total    float64 `json:"total"`
	LowStock int     `json:"lowStock"`
}

func identityLockKey(key string) string   { return "identity:" + key }
func productLockKey(id uuid.UUID) string { return "product:" + id.String() }

// Reconcile matches a detailed intake against the catalog and credits it.
// A roll of blankets or underpacking that matches an existing roll fails
// with *domain.DuplicateError and writes nothing.
func (uc *StockUC) Reconcile(ctx context.Context, in domain.IntakeSubmission) (*ReconciliationResult, error) {
	res, err := uc.reconcile(ctx, &in, domain.SourceDetailed, in.Payload())
	observeIntake(domain.SourceDetailed, res, err)
	return res, err
}

// reconcile validates in and credits it. payload is the submission as
// received, before units and names are normalized.
func (uc *StockUC) reconcile(ctx context.Context, in *domain.IntakeSubmission, src domain.IntakeSource, payload map[string]any) (*ReconciliationResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	dims := in.Dimensions()
	key := domain.IdentityKey(in.ProductName, in.Category(), dims)

	unlock, err := uc.Locks.Lock(ctx, identityLockKey(key))
	if err != nil {
		return nil, fmt.Errorf("lock variant: %w", err)
	}
	defer unlock()

	existing, err := uc.Products.FindByIdentity(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WrapStore("find product", err)
	}

	res := &ReconciliationResult{Quantity: in.Quantity()}
	var product *domain.Product
	switch {
	case existing != nil && in.IsRoll():
		return nil, &domain.DuplicateError{Existing: existing.Summary(), RequiresConfirmation: true}
	case existing != nil:
		merged := dims
		if existing.Dimensions != nil {
			merged = existing.Dimensions.Merge(dims)
		}
		newKey := domain.IdentityKey(existing.Name, existing.Category, merged)
		if err := uc.Products.UpdateDimensions(ctx, existing.ID, merged, newKey); err != nil {
			return nil, domain.WrapStore("merge dimensions", err)
		}
		existing.Dimensions = merged
		existing.IdentityKey = newKey
		product = existing
		res.Merged = true
	default:
		product, err = uc.createVariant(ctx, in.ProductName, in.Category(), dims, key)
		if err != nil {
			return nil, err
		}
		res.Created = true
	}
	res.ProductID = product.ID
	res.ProductName = product.Name

	rec := &domain.DetailedStockRecord{
		ID:        uuid.New(),
		ProductID: product.ID,
		Source:    src,
		Quantity:  res.Quantity,
		Payload:   payload,
		State:     domain.StateValidated,
	}
	res.SubmissionID = rec.ID
	if err := uc.commit(ctx, rec); err != nil {
		return res, err
	}
	log.Info().
		Str("submission", rec.ID.String()).
		Str("product", product.ID.String()).
		Str("source", string(src)).
		Bool("created", res.Created).
		Float64("quantity", res.Quantity).
		Msg("intake committed")
	return res, nil
}

func (uc *StockUC) createVariant(ctx context.Context, name string, cat domain.Category, dims domain.Dimensions, key string) (*domain.Product, error) {
	p := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Category:    cat,
		IdentityKey: key,
		Stock:       0,
		Imported:    true,
		Dimensions:  dims,
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.Products.Create(ctx, p); err != nil {
		return nil, domain.WrapStore("create product", err)
	}
	return p, nil
}

// ConfirmDuplicate resolves a DuplicateError. discard writes nothing;
// add_with_date records the roll as a new variant named
// "<name> (<importDate>)".
func (uc *StockUC) ConfirmDuplicate(ctx context.Context, action string, roll domain.IntakeSubmission) (*ConfirmResult, error) {
	switch DuplicateAction(strings.TrimSpace(action)) {
	case ActionDiscard:
		observeOutcome(domain.SourceDetailed, "discarded")
		log.Info().Str("product", roll.ProductName).Msg("duplicate roll discarded")
		return &ConfirmResult{Action: ActionDiscard}, nil
	case ActionAddWithDate:
	default:
		return nil, domain.NewValidationError("action", "must be one of: discard add_with_date")
	}

	if strings.TrimSpace(roll.ImportDate) == "" {
		return nil, domain.NewValidationError("importDate", "required")
	}
	payload := roll.Payload()
	if err := roll.Validate(); err != nil {
		return nil, err
	}
	unique := domain.DisambiguatedName(roll.ProductName, roll.ImportDate)

	unlock, err := uc.Locks.Lock(ctx, "name:"+string(roll.Category())+"|"+strings.ToLower(unique))
	if err != nil {
		return nil, fmt.Errorf("lock name: %w", err)
	}
	defer unlock()

	_, err = uc.Products.FindByName(ctx, unique, roll.Category())
	switch {
	case err == nil:
		return nil, domain.NewValidationError("productName", fmt.Sprintf("a product named %q already exists", unique))
	case !errors.Is(err, domain.ErrNotFound):
		return nil, domain.WrapStore("find product", err)
	}

	roll.ProductName = unique
	payload["productName"] = unique
	res, err := uc.reconcile(ctx, &roll, domain.SourceDetailed, payload)
	observeIntake(domain.SourceDetailed, res, err)
	if err != nil {
		var dup *domain.DuplicateError
		if errors.As(err, &dup) {
			return nil, domain.NewValidationError("productName", fmt.Sprintf("a product named %q already exists", unique))
		}
		return nil, err
	}
	return &ConfirmResult{Action: ActionAddWithDate, UniqueName: unique, Result: res}, nil
}

// StockIn credits qty to a product outside of reconciliation.
func (uc *StockUC) StockIn(ctx context.Context, productID uuid.UUID, qty float64) (*domain.Product, error) {
	return uc.adjust(ctx, productID, qty, domain.DirectionIn)
}

// StockOut issues qty from a product; it never takes the stock below zero.
func (uc *StockUC) StockOut(ctx context.Context, productID uuid.UUID, qty float64) (*domain.Product, error) {
	return uc.adjust(ctx, productID, qty, domain.DirectionOut)
}

func (uc *StockUC) adjust(ctx context.Context, productID uuid.UUID, qty float64, dir domain.Direction) (*domain.Product, error) {
	if productID == uuid.Nil {
		return nil, domain.NewValidationError("productId", "required")
	}
	if qty <= 0 {
		return nil, domain.NewValidationError("quantity", "must be greater than zero")
	}
	unlock, err := uc.Locks.Lock(ctx, productLockKey(productID))
	if err != nil {
		return nil, fmt.Errorf("lock product: %w", err)
	}
	defer unlock()

	p, err := uc.Products.FindByID(ctx, productID)
	if err != nil {
		return nil, domain.WrapStore("find product", err)
	}
	if dir == domain.DirectionOut && p.Stock < qty {
		return nil, domain.ErrInsufficientStock
	}
	entry := &domain.LedgerEntry{ID: uuid.New(), ProductID: productID, Quantity: qty, Direction: dir, Timestamp: time.Now().UTC()}
	if err := uc.Ledger.Append(ctx, entry); err != nil {
		return nil, domain.WrapStore("append ledger", err)
	}
	if err := uc.Products.AdjustStock(ctx, productID, entry.Signed()); err != nil {
		log.Error().Err(err).Str("product", productID.String()).Str("entry", entry.ID.String()).Msg("stock not updated after ledger append")
		return nil, domain.WrapStore("adjust stock", err)
	}
	p.Stock = domain.RoundTo(p.Stock+entry.Signed(), domain.ComparePlaces)
	return p, nil
}

// Summary totals the stock of every product and counts those below
// LowStockThreshold.
func (uc *StockUC) Summary(ctx context.Context) (StockSummary, error) {
	list, err := uc.Products.List(ctx, domain.ProductFilter{})
	if err != nil {
		return StockSummary{}, domain.WrapStore("list products", err)
	}
	var s StockSummary
	for _, p := range list {
		s.Total += p.Stock
		if p.Stock < LowStockThreshold {
			s.LowStock++
		}
	}
	s.Total = domain.RoundTo(s.Total, domain.ComparePlaces)
	return s, nil
}
