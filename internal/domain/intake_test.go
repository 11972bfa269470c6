package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blanketRoll() IntakeSubmission {
	return IntakeSubmission{
		ProductType: "blankets",
		ProductName: "Blanket A",
		StockType:   "roll",
		RollNumber:  "R-1",
		Length:      Float(10),
		Width:       Float(1.5),
		Thickness:   Float(1.95),
	}
}

func requireFieldError(t *testing.T, err error, field string) *ValidationError {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, field, ve.Field)
	return ve
}

func TestValidate_BlanketRoll(t *testing.T) {
	in := blanketRoll()
	require.NoError(t, in.Validate())
	assert.Equal(t, CategoryBlankets, in.Category())
	assert.True(t, in.IsRoll())
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*IntakeSubmission)
		field string
	}{
		{"product name", func(in *IntakeSubmission) { in.ProductName = "  " }, "productName"},
		{"product type", func(in *IntakeSubmission) { in.ProductType = "" }, "productType"},
		{"roll number for blanket rolls", func(in *IntakeSubmission) { in.RollNumber = "" }, "rollNumber"},
		{"length for rolls", func(in *IntakeSubmission) { in.Length = nil }, "length"},
		{"stock type for sheets", func(in *IntakeSubmission) { in.StockType = "" }, "stockType"},
		{"pieces count", func(in *IntakeSubmission) { in.StockType = "pieces" }, "numberOfPieces"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := blanketRoll()
			tt.edit(&in)
			requireFieldError(t, in.Validate(), tt.field)
		})
	}
}

func TestValidate_UnderpackingRollWithoutRollNumber(t *testing.T) {
	in := blanketRoll()
	in.ProductType = "Underpacking"
	in.RollNumber = ""
	require.NoError(t, in.Validate())
	assert.Equal(t, "underpacking", in.ProductType)
}

func TestValidate_CategoryFields(t *testing.T) {
	litho := IntakeSubmission{ProductType: "litho perf", ProductName: "Perf", LithoPieceType: "strip"}
	requireFieldError(t, litho.Validate(), "perforationType")

	matrix := IntakeSubmission{ProductType: "matrix", ProductName: "M", MatrixSizeWidth: Float(0.4), MatrixSizeHeight: Float(1.2)}
	requireFieldError(t, matrix.Validate(), "thickness")

	rules := IntakeSubmission{ProductType: "rules", ProductName: "Crease", RuleFormat: "2pt"}
	requireFieldError(t, rules.Validate(), "rulePackedAs")

	chem := IntakeSubmission{ProductType: "chemicals", ProductName: "Fountain"}
	requireFieldError(t, chem.Validate(), "productFormat")

	ink := IntakeSubmission{ProductType: "ink", ProductName: "Black"}
	assert.NoError(t, ink.Validate())
}

func TestValidate_UnknownCategory(t *testing.T) {
	in := IntakeSubmission{ProductType: "paper", ProductName: "A4"}
	ve := requireFieldError(t, in.Validate(), "productType")
	assert.Equal(t, "unknown product type", ve.Reason)
}

func TestValidate_Formats(t *testing.T) {
	in := blanketRoll()
	in.ImportDate = "01/02/2024"
	requireFieldError(t, in.Validate(), "importDate")

	in = blanketRoll()
	in.Width = Float(-1)
	requireFieldError(t, in.Validate(), "width")

	in = blanketRoll()
	in.LengthUnit = "Meters"
	require.NoError(t, in.Validate())
	assert.Equal(t, "mtr", in.LengthUnit)
}

func TestValidateRow_SkipsCategoryRequirements(t *testing.T) {
	in := IntakeSubmission{ProductType: "blankets", ProductName: "Blanket A", StockType: "roll"}
	assert.NoError(t, in.ValidateRow())

	in = IntakeSubmission{ProductType: "paper", ProductName: "A4"}
	requireFieldError(t, in.ValidateRow(), "productType")
}

func TestQuantity(t *testing.T) {
	roll := blanketRoll()
	require.NoError(t, roll.Validate())
	assert.Equal(t, 15.0, roll.Quantity())

	roll.SqMtr = Float(14.8)
	assert.Equal(t, 14.8, roll.Quantity())

	pieces := IntakeSubmission{ProductType: "blankets", ProductName: "B", StockType: "pieces", NumberOfPieces: Float(12)}
	assert.Equal(t, 12.0, pieces.Quantity())

	chem := IntakeSubmission{ProductType: "chemicals", ProductName: "C", ProductFormat: "Can", Stock: Float(4)}
	assert.Equal(t, 4.0, chem.Quantity())

	chem.Stock = nil
	assert.Equal(t, 0.0, chem.Quantity())
}

func TestDimensions_DerivesArea(t *testing.T) {
	roll := blanketRoll()
	roll.Length = Float(1000)
	roll.LengthUnit = "mm"
	require.NoError(t, roll.Validate())
	d := roll.Dimensions().(SheetDimensions)
	require.NotNil(t, d.SqMtr)
	assert.Equal(t, 1.5, *d.SqMtr)

	pieces := IntakeSubmission{ProductType: "underpacking", ProductName: "U", StockType: "pieces",
		NumberOfPieces: Float(3), Length: Float(0.5), Width: Float(0.4)}
	pd := pieces.Dimensions().(SheetDimensions)
	require.NotNil(t, pd.SqMtrPerPiece)
	assert.Equal(t, 0.2, *pd.SqMtrPerPiece)
}

func TestPayload_KeepsSubmittedFields(t *testing.T) {
	in := blanketRoll()
	p := in.Payload()
	assert.Equal(t, "Blanket A", p["productName"])
	assert.Equal(t, 10.0, p["length"])
	assert.Equal(t, "R-1", p["rollNumber"])
}

func TestDisambiguatedName(t *testing.T) {
	assert.Equal(t, "Blanket A (2024-01-01)", DisambiguatedName("Blanket A", "2024-01-01"))
}

func TestValidate_DefaultsUnitsOfPresentValues(t *testing.T) {
	in := IntakeSubmission{ProductType: "underpacking", ProductName: "U", StockType: "pieces",
		NumberOfPieces: Float(3), Length: Float(0.5), Thickness: Float(0.3)}
	require.NoError(t, in.Validate())
	assert.Equal(t, "mtr", in.LengthUnit)
	assert.Equal(t, "", in.WidthUnit)
	assert.Equal(t, "mm", in.ThicknessUnit)
}
