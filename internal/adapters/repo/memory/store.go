// Package memory keeps the catalog, ledger and detailed records in process.
// It backs STORE_DRIVER=memory and the use case tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/printstock/internal/domain"
)

type ProductRepo struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]domain.Product
	identity map[string]uuid.UUID
	// FailAdjust makes AdjustStock fail, for exercising partial commits.
	FailAdjust error
}

func NewProductRepo() *ProductRepo {
	return &ProductRepo{byID: map[uuid.UUID]domain.Product{}, identity: map[string]uuid.UUID{}}
}

func clone(p domain.Product) domain.Product {
	if p.Dimensions != nil {
		if m, err := domain.EncodeDimensions(p.Dimensions); err == nil {
			if d, err := domain.DecodeDimensions(p.Category, m); err == nil {
				p.Dimensions = d
			}
		}
	}
	if p.LastUpdated != nil {
		t := *p.LastUpdated
		p.LastUpdated = &t
	}
	return p
}

func (r *ProductRepo) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.IdentityKey != "" {
		if _, taken := r.identity[p.IdentityKey]; taken {
			return &domain.StoreError{Op: "create product", Err: errDuplicateKey}
		}
		r.identity[p.IdentityKey] = p.ID
	}
	r.byID[p.ID] = clone(*p)
	return nil
}

func (r *ProductRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := clone(p)
	return &c, nil
}

func (r *ProductRepo) FindByIdentity(ctx context.Context, key string) (*domain.Product, error) {
	r.mu.RLock()
	id, ok := r.identity[key]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// FindByName returns the oldest product with the name in the category,
// compared case-insensitively.
func (r *ProductRepo) FindByName(_ context.Context, name string, category domain.Category) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *domain.Product
	for _, p := range r.byID {
		if p.Category != category || !strings.EqualFold(p.Name, name) {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			c := clone(p)
			found = &c
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (r *ProductRepo) List(_ context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	list := make([]domain.Product, 0, len(r.byID))
	for _, p := range r.byID {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		list = append(list, clone(p))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name == list[j].Name {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (r *ProductRepo) UpdateDimensions(_ context.Context, id uuid.UUID, d domain.Dimensions, identityKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if identityKey != p.IdentityKey {
		if other, taken := r.identity[identityKey]; taken && other != id {
			return &domain.StoreError{Op: "update dimensions", Err: errDuplicateKey}
		}
		delete(r.identity, p.IdentityKey)
		r.identity[identityKey] = id
	}
	now := time.Now().UTC()
	p.Dimensions = d
	p.IdentityKey = identityKey
	p.LastUpdated = &now
	r.byID[id] = clone(p)
	return nil
}

func (r *ProductRepo) AdjustStock(_ context.Context, id uuid.UUID, delta float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAdjust != nil {
		return r.FailAdjust
	}
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if delta < 0 && p.Stock+delta < 0 {
		return domain.ErrInsufficientStock
	}
	now := time.Now().UTC()
	p.Stock = domain.RoundTo(p.Stock+delta, domain.ComparePlaces)
	p.LastUpdated = &now
	r.byID[id] = p
	return nil
}

func (r *ProductRepo) SetStock(_ context.Context, id uuid.UUID, stock float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	p.Stock = stock
	p.LastUpdated = &now
	r.byID[id] = p
	return nil
}

type LedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
	// FailAppend makes Append fail, for exercising partial commits.
	FailAppend error
}

func NewLedgerRepo() *LedgerRepo { return &LedgerRepo{} }

func (r *LedgerRepo) Append(_ context.Context, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAppend != nil {
		return r.FailAppend
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.SubmissionID != nil {
		for _, x := range r.entries {
			if x.SubmissionID != nil && *x.SubmissionID == *e.SubmissionID {
				return &domain.StoreError{Op: "append ledger", Err: errDuplicateKey}
			}
		}
	}
	r.entries = append(r.entries, *e)
	return nil
}

func (r *LedgerRepo) FindBySubmission(_ context.Context, submissionID uuid.UUID) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.SubmissionID != nil && *e.SubmissionID == submissionID {
			c := e
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *LedgerRepo) ListByProduct(_ context.Context, productID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := []domain.LedgerEntry{}
	for _, e := range r.entries {
		if e.ProductID == productID {
			list = append(list, e)
		}
	}
	return list, nil
}

func (r *LedgerRepo) SumByProduct(ctx context.Context, productID uuid.UUID) (float64, error) {
	list, _ := r.ListByProduct(ctx, productID)
	sum := 0.0
	for _, e := range list {
		sum += e.Signed()
	}
	return domain.RoundTo(sum, domain.ComparePlaces), nil
}

// Len is the number of entries, for tests.
func (r *LedgerRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

type DetailedRecordRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.DetailedStockRecord
	order   []uuid.UUID

	// FailState makes UpdateState fail when moving a record to that state,
	// for exercising partial commits.
	FailState domain.CommitState
}

// ErrStateWrite is returned by UpdateState when FailState matches.
var ErrStateWrite = errors.New("memory: state write failed")

func NewDetailedRecordRepo() *DetailedRecordRepo {
	return &DetailedRecordRepo{records: map[uuid.UUID]domain.DetailedStockRecord{}}
}

func (r *DetailedRecordRepo) Append(_ context.Context, rec *domain.DetailedStockRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if _, exists := r.records[rec.ID]; exists {
		return &domain.StoreError{Op: "append detailed record", Err: errDuplicateKey}
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.records[rec.ID] = *rec
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *DetailedRecordRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.DetailedStockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *DetailedRecordRepo) UpdateState(_ context.Context, id uuid.UUID, state domain.CommitState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailState != "" && r.FailState == state {
		return ErrStateWrite
	}
	rec, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.State = state
	rec.UpdatedAt = time.Now().UTC()
	r.records[id] = rec
	return nil
}

func (r *DetailedRecordRepo) ListPending(_ context.Context) ([]domain.DetailedStockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := []domain.DetailedStockRecord{}
	for _, id := range r.order {
		if rec := r.records[id]; rec.State != domain.StateCommitted {
			list = append(list, rec)
		}
	}
	return list, nil
}

// Len is the number of records, for tests.
func (r *DetailedRecordRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
