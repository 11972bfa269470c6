package usecase_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/printstock/internal/adapters/lock"
	"github.com/phenrril/printstock/internal/adapters/repo/memory"
	"github.com/phenrril/printstock/internal/domain"
	"github.com/phenrril/printstock/internal/usecase"
)

// resumeOnLock starts the resumer once the first product lock is held.
type resumeOnLock struct {
	domain.Locker
	fired  atomic.Bool
	onHeld func()
}

func (l *resumeOnLock) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := l.Locker.Lock(ctx, key)
	if err == nil && strings.HasPrefix(key, "product:") && l.fired.CompareAndSwap(false, true) {
		l.onHeld()
	}
	return unlock, err
}

// TestCommit_ResumerDuringCommitCreditsOnce verifies a resumer that picks up
// an intake while its commit is still running does not credit it again.
func TestCommit_ResumerDuringCommitCreditsOnce(t *testing.T) {
	products := memory.NewProductRepo()
	ledger := memory.NewLedgerRepo()
	records := memory.NewDetailedRecordRepo()
	locks := &resumeOnLock{Locker: lock.NewLocal()}
	uc := &usecase.StockUC{Products: products, Ledger: ledger, Records: records, Locks: locks}
	ctx := context.Background()

	var wg sync.WaitGroup
	var resumeErr error
	locks.onHeld = func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(2 * time.Second)
			for records.Len() == 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			_, resumeErr = uc.ResumePending(ctx)
		}()
	}

	res, err := uc.Reconcile(ctx, chemical("L", 4))
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, resumeErr)

	p, err := products.FindByID(ctx, res.ProductID)
	require.NoError(t, err)
	sum, err := ledger.SumByProduct(ctx, res.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, p.Stock)
	assert.Equal(t, 4.0, sum)
	assert.Equal(t, 1, ledger.Len())

	rec, err := records.FindByID(ctx, res.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, rec.State)
}

// TestResume_LedgerWrittenStateNot verifies an intake whose ledger entry was
// written but not recorded in its state is resynced, not credited twice.
func TestResume_LedgerWrittenStateNot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.records.FailState = domain.StateLedgerAppended
	res, err := f.stock.Reconcile(ctx, chemical("L", 4))
	require.Error(t, err)
	require.NotNil(t, res)

	rec, err := f.records.FindByID(ctx, res.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDetailedRecorded, rec.State)
	assert.Equal(t, 1, f.ledger.Len())

	f.records.FailState = ""
	require.NoError(t, f.stock.Resume(ctx, res.SubmissionID))
	assert.Equal(t, 4.0, f.product(t, res.ProductID).Stock)
	assert.Equal(t, 1, f.ledger.Len())

	rec, err = f.records.FindByID(ctx, res.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, rec.State)
}

// TestResume_StockMovedStateNot verifies an intake whose stock was already
// credited before its state write failed keeps a single credit.
func TestResume_StockMovedStateNot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.records.FailState = domain.StateCatalogUpdated
	res, err := f.stock.Reconcile(ctx, chemical("L", 4))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 4.0, f.product(t, res.ProductID).Stock)

	f.records.FailState = ""
	n, err := f.stock.ResumePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 4.0, f.product(t, res.ProductID).Stock)
	assert.Equal(t, 1, f.ledger.Len())
}

// TestReconcile_KeepsSubmittedPayload verifies the detailed record stores the
// intake as received, before unit names are normalized.
func TestReconcile_KeepsSubmittedPayload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := blanketRoll()
	in.LengthUnit = "Meters"
	in.ProductType = "Blankets"

	res, err := f.stock.Reconcile(ctx, in)
	require.NoError(t, err)

	rec, err := f.records.FindByID(ctx, res.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, "Meters", rec.Payload["lengthUnit"])
	assert.Equal(t, "Blankets", rec.Payload["productType"])
}

// TestImportBatch_KeepsRowCells verifies a bulk record stores the sheet cells
// rather than the values converted to meters.
func TestImportBatch_KeepsRowCells(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	row := usecase.RowRecord{
		"Product Type":     "underpacking",
		"Product Name":     "Underpack 0.3",
		"Number Of Pieces": "10",
		"Length":           "500",
		"Length Unit":      "mm",
		"Width":            "400",
		"Width Unit":       "mm",
	}

	report, err := f.imports.ImportBatch(ctx, []usecase.RowRecord{row}, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Inserted)

	p, err := f.products.FindByName(ctx, "Underpack 0.3", domain.CategoryUnderpacking)
	require.NoError(t, err)
	entries, err := f.catalog.ListLedger(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].SubmissionID)

	rec, err := f.records.FindByID(ctx, *entries[0].SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBulk, rec.Source)
	assert.Equal(t, "500", rec.Payload["Length"])
	assert.Equal(t, "mm", rec.Payload["Length Unit"])
}

// TestReconcile_SameSizeInOtherUnitsMerges verifies pieces given in mm and
// later in meters without units stay on one product, also after the merge.
func TestReconcile_SameSizeInOtherUnitsMerges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pieces := func(length, width float64, unit string) domain.IntakeSubmission {
		return domain.IntakeSubmission{
			ProductType:    "underpacking",
			ProductName:    "Underpack Sheet",
			StockType:      "pieces",
			NumberOfPieces: domain.Float(5),
			Length:         domain.Float(length),
			LengthUnit:     unit,
			Width:          domain.Float(width),
			WidthUnit:      unit,
		}
	}

	first, err := f.stock.Reconcile(ctx, pieces(500, 400, "mm"))
	require.NoError(t, err)
	second, err := f.stock.Reconcile(ctx, pieces(0.5, 0.4, ""))
	require.NoError(t, err)
	third, err := f.stock.Reconcile(ctx, pieces(0.5, 0.4, ""))
	require.NoError(t, err)

	assert.True(t, second.Merged)
	assert.True(t, third.Merged)
	assert.False(t, third.Created)
	assert.Equal(t, first.ProductID, second.ProductID)
	assert.Equal(t, first.ProductID, third.ProductID)
	assert.Equal(t, 1, f.count(t))
	assert.Equal(t, 15.0, f.product(t, first.ProductID).Stock)
}
