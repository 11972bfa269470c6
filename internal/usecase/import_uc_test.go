package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/printstock/internal/domain"
	"github.com/phenrril/printstock/internal/usecase"
)

func blanketRow() usecase.RowRecord {
	return usecase.RowRecord{
		"Product Type": "Blankets",
		"Product Name": "Blanket A",
		"Roll Number":  "R-1",
		"Length":       "10",
		"Width":        "1.5",
		"Thickness":    "1.95",
	}
}

func TestCheckColumns(t *testing.T) {
	require.NoError(t, usecase.CheckColumns([]string{"product_type", "Product Name", "Length"}))

	err := usecase.CheckColumns([]string{"Product Type", "Length"})
	var mc *domain.MissingColumnsError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, []string{"productName"}, mc.Columns)
}

// TestImportBatch_InsertsThenSkips verifies new rows create credited
// products and identical rows are skipped on re-import.
func TestImportBatch_InsertsThenSkips(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	report, err := f.imports.ImportBatch(ctx, []usecase.RowRecord{blanketRow()}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Empty(t, report.Failed)

	p, err := f.products.FindByName(ctx, "blanket a", domain.CategoryBlankets)
	require.NoError(t, err)
	assert.Equal(t, 15.0, p.Stock)
	assert.True(t, p.Imported)
	d, ok := p.Dimensions.(domain.SheetDimensions)
	require.True(t, ok)
	assert.Equal(t, domain.StockTypeRoll, d.StockType)

	sum, err := f.ledger.SumByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, sum)

	report, err = f.imports.ImportBatch(ctx, []usecase.RowRecord{blanketRow()}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, f.count(t))
	assert.Equal(t, 15.0, f.product(t, p.ID).Stock)
}

// TestImportBatch_ComparesNormalizedUnits verifies a row in meters matches a
// variant recorded in millimeters.
func TestImportBatch_ComparesNormalizedUnits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := blanketRoll()
	in.Length = domain.Float(10000)
	in.LengthUnit = "mm"
	in.Width = domain.Float(1500)
	in.WidthUnit = "mm"
	_, err := f.stock.Reconcile(ctx, in)
	require.NoError(t, err)

	report, err := f.imports.ImportBatch(ctx, []usecase.RowRecord{blanketRow()}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Conflicts)
}

// TestImportBatch_Conflicts verifies differing rows are reported and left
// alone unless overwrite is set, and that overwriting keeps the stock.
func TestImportBatch_Conflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.stock.Reconcile(ctx, chemical("L", 4))
	require.NoError(t, err)

	row := usecase.RowRecord{
		"productType":   "chemicals",
		"productName":   "Fountain Solution",
		"productFormat": "Can",
		"chemicalUnit":  "kg",
	}

	report, err := f.imports.ImportBatch(ctx, []usecase.RowRecord{row}, false)
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	require.NotNil(t, report)
	require.Len(t, report.Conflicts, 1)
	c := report.Conflicts[0]
	assert.Equal(t, 2, c.Row)
	assert.Equal(t, res.ProductID, c.ProductID)
	assert.Equal(t, []domain.FieldDiff{{Field: "chemicalUnit", Existing: "l", Incoming: "kg"}}, c.Diffs)

	p := f.product(t, res.ProductID)
	assert.Equal(t, domain.ChemicalDimensions{ProductFormat: "Can", ChemicalUnit: "L"}, p.Dimensions)

	report, err = f.imports.ImportBatch(ctx, []usecase.RowRecord{row}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	p = f.product(t, res.ProductID)
	assert.Equal(t, domain.ChemicalDimensions{ProductFormat: "Can", ChemicalUnit: "kg"}, p.Dimensions)
	assert.Equal(t, 4.0, p.Stock)
	assert.NotNil(t, p.LastUpdated)
}

// TestImportBatch_FailedRowsDoNotStopBatch verifies a bad row is reported by
// its sheet row number and later rows still apply.
func TestImportBatch_FailedRowsDoNotStopBatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	bad := blanketRow()
	bad["Length"] = "abc"
	unknown := usecase.RowRecord{"Product Type": "paper", "Product Name": "A4"}
	good := usecase.RowRecord{
		"Product Type": "ink",
		"Product Name": "Cyan",
		"Stock":        "n/a",
		"Notes":        "ignored",
	}

	report, err := f.imports.ImportBatch(ctx, []usecase.RowRecord{bad, unknown, good}, false)
	require.NoError(t, err)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, 2, report.Failed[0].Row)
	assert.Contains(t, report.Failed[0].Error, "length")
	assert.Equal(t, 3, report.Failed[1].Row)
	assert.Equal(t, 1, report.Inserted)

	p, err := f.products.FindByName(ctx, "Cyan", domain.CategoryInk)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Stock)
}

func TestImportBatch_MissingColumns(t *testing.T) {
	f := newFixture()
	report, err := f.imports.ImportBatch(context.Background(), []usecase.RowRecord{{"Product Name": "x"}}, false)
	assert.Nil(t, report)
	var mc *domain.MissingColumnsError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, []string{"productType"}, mc.Columns)
}

// TestImportBatch_PiecesInferred verifies sheet rows with a pieces count and
// no stock type are stored as pieces.
func TestImportBatch_PiecesInferred(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	row := usecase.RowRecord{
		"productType":    "underpacking",
		"productName":    "Underpacking Sheet",
		"numberOfPieces": "1000",
		"length":         "500",
		"lengthUnit":     "mm",
		"width":          "0,4",
	}

	report, err := f.imports.ImportBatch(ctx, []usecase.RowRecord{row}, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Inserted)

	p, err := f.products.FindByName(ctx, "Underpacking Sheet", domain.CategoryUnderpacking)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, p.Stock)
	d := p.Dimensions.(domain.SheetDimensions)
	assert.Equal(t, domain.StockTypePieces, d.StockType)
	require.NotNil(t, d.Length)
	assert.Equal(t, 0.5, *d.Length)
	require.NotNil(t, d.SqMtrPerPiece)
	assert.Equal(t, 0.2, *d.SqMtrPerPiece)
}
