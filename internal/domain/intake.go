package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// IntakeSubmission is one stock-in submission as posted by the detailed
// intake form or produced from an uploaded sheet row.
type IntakeSubmission struct {
	ProductType   string   `json:"productType" validate:"required"`
	ProductName   string   `json:"productName" validate:"required,max=200"`
	StockType     string   `json:"stockType"`
	Length        *float64 `json:"length" validate:"omitempty,gte=0"`
	Width         *float64 `json:"width" validate:"omitempty,gte=0"`
	Thickness     *float64 `json:"thickness" validate:"omitempty,gte=0"`
	LengthUnit    string   `json:"lengthUnit" validate:"omitempty,oneof=mm cm inch mtr"`
	WidthUnit     string   `json:"widthUnit" validate:"omitempty,oneof=mm cm inch mtr"`
	ThicknessUnit string   `json:"thicknessUnit" validate:"omitempty,oneof=mm micron"`
	RollNumber    string   `json:"rollNumber"`

	NumberOfPieces *float64 `json:"numberOfPieces" validate:"omitempty,gte=0"`
	SqMtr          *float64 `json:"sqMtr" validate:"omitempty,gte=0"`
	ImportDate     string   `json:"importDate" validate:"omitempty,datetime=2006-01-02"`
	TakenDate      string   `json:"takenDate" validate:"omitempty,datetime=2006-01-02"`

	LithoPieceType  string `json:"lithoPieceType"`
	PerforationType string `json:"perforationType"`

	MatrixSizeWidth  *float64 `json:"matrixSizeWidth" validate:"omitempty,gte=0"`
	MatrixSizeHeight *float64 `json:"matrixSizeHeight" validate:"omitempty,gte=0"`

	RuleFormat          string   `json:"ruleFormat"`
	RulePackedAs        string   `json:"rulePackedAs"`
	RuleContainerLength *float64 `json:"ruleContainerLength" validate:"omitempty,gte=0"`
	RuleContainerWidth  *float64 `json:"ruleContainerWidth" validate:"omitempty,gte=0"`
	RuleContainerType   string   `json:"ruleContainerType"`

	ProductFormat string `json:"productFormat"`
	ChemicalUnit  string `json:"chemicalUnit"`

	// Stock is the raw count credited for categories without a dedicated
	// quantity field.
	Stock *float64 `json:"stock" validate:"omitempty,gte=0"`
}

var (
	intakeValidate = newIntakeValidator(true)
	// rowValidate checks field formats only; uploaded rows may describe a
	// variant partially.
	rowValidate = newIntakeValidator(false)
)

func newIntakeValidator(perCategory bool) *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if perCategory {
		v.RegisterStructValidation(intakeStructLevel, IntakeSubmission{})
	}
	return v
}

// intakeStructLevel enforces the category and stock type dependent
// required fields.
func intakeStructLevel(sl validator.StructLevel) {
	in := sl.Current().Interface().(IntakeSubmission)
	cat, ok := ParseCategory(in.ProductType)
	if !ok {
		if strings.TrimSpace(in.ProductType) != "" {
			sl.ReportError(in.ProductType, "productType", "ProductType", "category", "")
		}
		return
	}
	requireText := func(v, name, structName string) {
		if strings.TrimSpace(v) == "" {
			sl.ReportError(v, name, structName, "required", "")
		}
	}
	requireNumber := func(v *float64, name, structName string) {
		if v == nil {
			sl.ReportError(v, name, structName, "required", "")
		}
	}

	switch cat.Family() {
	case FamilySheet:
		switch StockType(in.StockType) {
		case StockTypeRoll:
			if cat == CategoryBlankets {
				requireText(in.RollNumber, "rollNumber", "RollNumber")
			}
			requireNumber(in.Length, "length", "Length")
			requireNumber(in.Width, "width", "Width")
			requireNumber(in.Thickness, "thickness", "Thickness")
		case StockTypePieces:
			requireNumber(in.NumberOfPieces, "numberOfPieces", "NumberOfPieces")
		case "":
			sl.ReportError(in.StockType, "stockType", "StockType", "required", "")
		default:
			sl.ReportError(in.StockType, "stockType", "StockType", "oneof", "roll pieces")
		}
	case FamilyLithoPerf:
		requireText(in.LithoPieceType, "lithoPieceType", "LithoPieceType")
		requireText(in.PerforationType, "perforationType", "PerforationType")
	case FamilyMatrix:
		requireNumber(in.MatrixSizeWidth, "matrixSizeWidth", "MatrixSizeWidth")
		requireNumber(in.MatrixSizeHeight, "matrixSizeHeight", "MatrixSizeHeight")
		requireNumber(in.Thickness, "thickness", "Thickness")
	case FamilyRules:
		requireText(in.RuleFormat, "ruleFormat", "RuleFormat")
		requireText(in.RulePackedAs, "rulePackedAs", "RulePackedAs")
	case FamilyChemicals:
		requireText(in.ProductFormat, "productFormat", "ProductFormat")
	}
}

func (in *IntakeSubmission) normalize() {
	in.ProductType = strings.TrimSpace(in.ProductType)
	if c, ok := ParseCategory(in.ProductType); ok {
		in.ProductType = string(c)
	}
	in.ProductName = strings.Join(strings.Fields(in.ProductName), " ")
	in.StockType = strings.ToLower(strings.TrimSpace(in.StockType))
	if u, ok := NormalizeLengthUnit(in.LengthUnit); ok && in.LengthUnit != "" {
		in.LengthUnit = u
	}
	if u, ok := NormalizeLengthUnit(in.WidthUnit); ok && in.WidthUnit != "" {
		in.WidthUnit = u
	}
	in.ThicknessUnit = strings.ToLower(strings.TrimSpace(in.ThicknessUnit))
	// a value without a unit is in meters (lengths) or mm (thickness)
	if in.Length != nil && in.LengthUnit == "" {
		in.LengthUnit = "mtr"
	}
	if in.Width != nil && in.WidthUnit == "" {
		in.WidthUnit = "mtr"
	}
	if in.Thickness != nil && in.ThicknessUnit == "" {
		in.ThicknessUnit = "mm"
	}
	for _, s := range []*string{
		&in.RollNumber, &in.ImportDate, &in.TakenDate, &in.LithoPieceType, &in.PerforationType,
		&in.RuleFormat, &in.RulePackedAs, &in.RuleContainerType, &in.ProductFormat, &in.ChemicalUnit,
	} {
		*s = strings.TrimSpace(*s)
	}
}

// Validate normalizes the submission in place and checks it. The first
// failing field is returned as a *ValidationError.
func (in *IntakeSubmission) Validate() error {
	in.normalize()
	return firstFieldError(intakeValidate.Struct(in))
}

// ValidateRow is the check applied to uploaded rows: formats and a known
// category, without the per-category required fields.
func (in *IntakeSubmission) ValidateRow() error {
	in.normalize()
	if err := firstFieldError(rowValidate.Struct(in)); err != nil {
		return err
	}
	if _, ok := ParseCategory(in.ProductType); !ok {
		return NewValidationError("productType", "unknown product type")
	}
	return nil
}

func firstFieldError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewValidationError(fe.Field(), reasonFor(fe))
	}
	return err
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "category":
		return "unknown product type"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gte":
		return "must not be negative"
	case "max":
		return "too long"
	}
	return "invalid (" + fe.Tag() + ")"
}

// Category is only meaningful after Validate succeeded.
func (in *IntakeSubmission) Category() Category {
	c, _ := ParseCategory(in.ProductType)
	return c
}

func (in *IntakeSubmission) Dimensions() Dimensions {
	cat := in.Category()
	switch cat.Family() {
	case FamilySheet:
		d := SheetDimensions{
			StockType:     StockType(in.StockType),
			RollNumber:    in.RollNumber,
			Length:        in.Length,
			Width:         in.Width,
			Thickness:     in.Thickness,
			LengthUnit:    in.LengthUnit,
			WidthUnit:     in.WidthUnit,
			ThicknessUnit: in.ThicknessUnit,
			ImportDate:    in.ImportDate,
			TakenDate:     in.TakenDate,
		}
		area, hasArea := in.area()
		switch d.StockType {
		case StockTypeRoll:
			d.SqMtr = in.SqMtr
			if d.SqMtr == nil && hasArea {
				d.SqMtr = Float(area)
			}
		case StockTypePieces:
			d.NumberOfPieces = in.NumberOfPieces
			if hasArea {
				d.SqMtrPerPiece = Float(RoundTo(area, ComparePlaces))
			}
		}
		return d
	case FamilyLithoPerf:
		return LithoPerfDimensions{LithoPieceType: in.LithoPieceType, PerforationType: in.PerforationType}
	case FamilyMatrix:
		return MatrixDimensions{
			MatrixSizeWidth:  in.MatrixSizeWidth,
			MatrixSizeHeight: in.MatrixSizeHeight,
			Thickness:        in.Thickness,
			ThicknessUnit:    in.ThicknessUnit,
		}
	case FamilyRules:
		return RuleDimensions{
			RuleFormat:          in.RuleFormat,
			RulePackedAs:        in.RulePackedAs,
			RuleContainerLength: in.RuleContainerLength,
			RuleContainerWidth:  in.RuleContainerWidth,
			RuleContainerType:   in.RuleContainerType,
		}
	case FamilyChemicals:
		return ChemicalDimensions{ProductFormat: in.ProductFormat, ChemicalUnit: in.ChemicalUnit}
	}
	return GenericDimensions{}
}

// area is length x width in square meters, unrounded per side.
func (in *IntakeSubmission) area() (float64, bool) {
	if in.Length == nil || in.Width == nil {
		return 0, false
	}
	l, err := ToMeters(*in.Length, in.LengthUnit)
	if err != nil {
		return 0, false
	}
	w, err := ToMeters(*in.Width, in.WidthUnit)
	if err != nil {
		return 0, false
	}
	return Area(l, w), true
}

// Quantity is the amount credited to the product: square meters for rolls,
// pieces for cut pieces, the raw stock count otherwise. Absent is zero.
func (in *IntakeSubmission) Quantity() float64 {
	cat := in.Category()
	if cat.IsSheet() {
		switch StockType(in.StockType) {
		case StockTypeRoll:
			if in.SqMtr != nil {
				return *in.SqMtr
			}
			if a, ok := in.area(); ok {
				return a
			}
			return 0
		case StockTypePieces:
			if in.NumberOfPieces != nil {
				return *in.NumberOfPieces
			}
			return 0
		}
	}
	if in.Stock != nil {
		return *in.Stock
	}
	return 0
}

func (in *IntakeSubmission) IsRoll() bool {
	return in.Category().IsSheet() && StockType(in.StockType) == StockTypeRoll
}

// IdentityKey is the catalog key this submission resolves to.
func (in *IntakeSubmission) IdentityKey() string {
	return IdentityKey(in.ProductName, in.Category(), in.Dimensions())
}

// Payload is the submission as a plain mapping, kept verbatim in the
// detailed stock record.
func (in *IntakeSubmission) Payload() map[string]any {
	out := map[string]any{}
	raw, err := json.Marshal(in)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

// DisambiguatedName is the product name used when a roll that looks like a
// duplicate is accepted as a distinct variant.
func DisambiguatedName(name, importDate string) string {
	return fmt.Sprintf("%s (%s)", name, importDate)
}
