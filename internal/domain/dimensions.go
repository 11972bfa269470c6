package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Family groups categories that share a dimensions shape.
type Family string

const (
	FamilySheet     Family = "sheet"
	FamilyLithoPerf Family = "litho_perf"
	FamilyMatrix    Family = "matrix"
	FamilyRules     Family = "rules"
	FamilyChemicals Family = "chemicals"
	FamilyGeneric   Family = "generic"
)

func (c Category) Family() Family {
	switch c {
	case CategoryBlankets, CategoryUnderpacking:
		return FamilySheet
	case CategoryLithoPerf:
		return FamilyLithoPerf
	case CategoryMatrix:
		return FamilyMatrix
	case CategoryRules:
		return FamilyRules
	case CategoryChemicals:
		return FamilyChemicals
	}
	return FamilyGeneric
}

// Dimensions describes the physical variant of a product. There is one
// implementation per Family.
type Dimensions interface {
	Family() Family
	// IdentityParts returns the canonical identity fields of the variant.
	IdentityParts() []string
	// Compared returns canonical values of the descriptive fields, used to
	// detect differences between a stored variant and an imported row.
	Compared() map[string]string
	// Merge overlays the present fields of next; absent fields keep their
	// current value. A next of another family is ignored.
	Merge(next Dimensions) Dimensions
}

type SheetDimensions struct {
	StockType      StockType `json:"stockType,omitempty"`
	RollNumber     string    `json:"rollNumber,omitempty"`
	Length         *float64  `json:"length,omitempty"`
	Width          *float64  `json:"width,omitempty"`
	Thickness      *float64  `json:"thickness,omitempty"`
	LengthUnit     string    `json:"lengthUnit,omitempty"`
	WidthUnit      string    `json:"widthUnit,omitempty"`
	ThicknessUnit  string    `json:"thicknessUnit,omitempty"`
	NumberOfPieces *float64  `json:"numberOfPieces,omitempty"`
	SqMtr          *float64  `json:"sqMtr,omitempty"`
	SqMtrPerPiece  *float64  `json:"sqMtrPerPiece,omitempty"`
	ImportDate     string    `json:"importDate,omitempty"`
	TakenDate      string    `json:"takenDate,omitempty"`
}

func (SheetDimensions) Family() Family { return FamilySheet }

func (d SheetDimensions) lengthMeters() string { return metersKey(d.Length, d.LengthUnit) }
func (d SheetDimensions) widthMeters() string  { return metersKey(d.Width, d.WidthUnit) }

func (d SheetDimensions) thicknessMM() string {
	if d.Thickness == nil {
		return ""
	}
	return CanonicalNumber(Float(ThicknessToMM(*d.Thickness, d.ThicknessUnit)))
}

func (d SheetDimensions) IdentityParts() []string {
	if d.StockType == StockTypeRoll {
		if d.RollNumber != "" {
			return []string{"roll", "rollNumber=" + canonText(d.RollNumber), "thickness=" + d.thicknessMM()}
		}
		return []string{"roll", "length=" + d.lengthMeters(), "width=" + d.widthMeters(), "thickness=" + d.thicknessMM()}
	}
	return []string{string(d.StockType), "length=" + d.lengthMeters(), "width=" + d.widthMeters(), "thickness=" + d.thicknessMM()}
}

func (d SheetDimensions) Compared() map[string]string {
	return map[string]string{
		"stockType":  string(d.StockType),
		"rollNumber": canonText(d.RollNumber),
		"length":     d.lengthMeters(),
		"width":      d.widthMeters(),
		"thickness":  d.thicknessMM(),
		"importDate": d.ImportDate,
		"takenDate":  d.TakenDate,
	}
}

func (d SheetDimensions) Merge(next Dimensions) Dimensions {
	n, ok := next.(SheetDimensions)
	if !ok {
		return d
	}
	if n.StockType != "" {
		d.StockType = n.StockType
	}
	d.RollNumber = mergeText(d.RollNumber, n.RollNumber)
	d.Length, d.LengthUnit = mergeMeasure(d.Length, d.LengthUnit, n.Length, n.LengthUnit)
	d.Width, d.WidthUnit = mergeMeasure(d.Width, d.WidthUnit, n.Width, n.WidthUnit)
	d.Thickness, d.ThicknessUnit = mergeMeasure(d.Thickness, d.ThicknessUnit, n.Thickness, n.ThicknessUnit)
	d.NumberOfPieces = mergeNumber(d.NumberOfPieces, n.NumberOfPieces)
	d.SqMtr = mergeNumber(d.SqMtr, n.SqMtr)
	d.SqMtrPerPiece = mergeNumber(d.SqMtrPerPiece, n.SqMtrPerPiece)
	d.ImportDate = mergeText(d.ImportDate, n.ImportDate)
	d.TakenDate = mergeText(d.TakenDate, n.TakenDate)
	return d
}

type LithoPerfDimensions struct {
	LithoPieceType  string `json:"lithoPieceType,omitempty"`
	PerforationType string `json:"perforationType,omitempty"`
}

func (LithoPerfDimensions) Family() Family { return FamilyLithoPerf }

func (d LithoPerfDimensions) IdentityParts() []string {
	return []string{"lithoPieceType=" + canonText(d.LithoPieceType), "perforationType=" + canonText(d.PerforationType)}
}

func (d LithoPerfDimensions) Compared() map[string]string {
	return map[string]string{
		"lithoPieceType":  canonText(d.LithoPieceType),
		"perforationType": canonText(d.PerforationType),
	}
}

func (d LithoPerfDimensions) Merge(next Dimensions) Dimensions {
	n, ok := next.(LithoPerfDimensions)
	if !ok {
		return d
	}
	d.LithoPieceType = mergeText(d.LithoPieceType, n.LithoPieceType)
	d.PerforationType = mergeText(d.PerforationType, n.PerforationType)
	return d
}

type MatrixDimensions struct {
	MatrixSizeWidth  *float64 `json:"matrixSizeWidth,omitempty"`
	MatrixSizeHeight *float64 `json:"matrixSizeHeight,omitempty"`
	Thickness        *float64 `json:"thickness,omitempty"`
	ThicknessUnit    string   `json:"thicknessUnit,omitempty"`
}

func (MatrixDimensions) Family() Family { return FamilyMatrix }

func (d MatrixDimensions) thicknessMM() string {
	if d.Thickness == nil {
		return ""
	}
	return CanonicalNumber(Float(ThicknessToMM(*d.Thickness, d.ThicknessUnit)))
}

func (d MatrixDimensions) IdentityParts() []string {
	return []string{
		"matrixSizeWidth=" + CanonicalNumber(d.MatrixSizeWidth),
		"matrixSizeHeight=" + CanonicalNumber(d.MatrixSizeHeight),
		"thickness=" + d.thicknessMM(),
	}
}

func (d MatrixDimensions) Compared() map[string]string {
	return map[string]string{
		"matrixSizeWidth":  CanonicalNumber(d.MatrixSizeWidth),
		"matrixSizeHeight": CanonicalNumber(d.MatrixSizeHeight),
		"thickness":        d.thicknessMM(),
	}
}

func (d MatrixDimensions) Merge(next Dimensions) Dimensions {
	n, ok := next.(MatrixDimensions)
	if !ok {
		return d
	}
	d.MatrixSizeWidth = mergeNumber(d.MatrixSizeWidth, n.MatrixSizeWidth)
	d.MatrixSizeHeight = mergeNumber(d.MatrixSizeHeight, n.MatrixSizeHeight)
	d.Thickness, d.ThicknessUnit = mergeMeasure(d.Thickness, d.ThicknessUnit, n.Thickness, n.ThicknessUnit)
	return d
}

type RuleDimensions struct {
	RuleFormat          string   `json:"ruleFormat,omitempty"`
	RulePackedAs        string   `json:"rulePackedAs,omitempty"`
	RuleContainerLength *float64 `json:"ruleContainerLength,omitempty"`
	RuleContainerWidth  *float64 `json:"ruleContainerWidth,omitempty"`
	RuleContainerType   string   `json:"ruleContainerType,omitempty"`
}

func (RuleDimensions) Family() Family { return FamilyRules }

func (d RuleDimensions) IdentityParts() []string {
	return []string{
		"ruleFormat=" + canonText(d.RuleFormat),
		"rulePackedAs=" + canonText(d.RulePackedAs),
		"ruleContainerLength=" + CanonicalNumber(d.RuleContainerLength),
		"ruleContainerWidth=" + CanonicalNumber(d.RuleContainerWidth),
		"ruleContainerType=" + canonText(d.RuleContainerType),
	}
}

func (d RuleDimensions) Compared() map[string]string {
	return map[string]string{
		"ruleFormat":          canonText(d.RuleFormat),
		"rulePackedAs":        canonText(d.RulePackedAs),
		"ruleContainerLength": CanonicalNumber(d.RuleContainerLength),
		"ruleContainerWidth":  CanonicalNumber(d.RuleContainerWidth),
		"ruleContainerType":   canonText(d.RuleContainerType),
	}
}

func (d RuleDimensions) Merge(next Dimensions) Dimensions {
	n, ok := next.(RuleDimensions)
	if !ok {
		return d
	}
	d.RuleFormat = mergeText(d.RuleFormat, n.RuleFormat)
	d.RulePackedAs = mergeText(d.RulePackedAs, n.RulePackedAs)
	d.RuleContainerLength = mergeNumber(d.RuleContainerLength, n.RuleContainerLength)
	d.RuleContainerWidth = mergeNumber(d.RuleContainerWidth, n.RuleContainerWidth)
	d.RuleContainerType = mergeText(d.RuleContainerType, n.RuleContainerType)
	return d
}

type ChemicalDimensions struct {
	ProductFormat string `json:"productFormat,omitempty"`
	ChemicalUnit  string `json:"chemicalUnit,omitempty"`
}

func (ChemicalDimensions) Family() Family { return FamilyChemicals }

func (d ChemicalDimensions) IdentityParts() []string {
	return []string{"productFormat=" + canonText(d.ProductFormat)}
}

func (d ChemicalDimensions) Compared() map[string]string {
	return map[string]string{
		"productFormat": canonText(d.ProductFormat),
		"chemicalUnit":  canonText(d.ChemicalUnit),
	}
}

func (d ChemicalDimensions) Merge(next Dimensions) Dimensions {
	n, ok := next.(ChemicalDimensions)
	if !ok {
		return d
	}
	d.ProductFormat = mergeText(d.ProductFormat, n.ProductFormat)
	d.ChemicalUnit = mergeText(d.ChemicalUnit, n.ChemicalUnit)
	return d
}

// GenericDimensions is used by film, plate, ink and other: name and category
// alone identify the product.
type GenericDimensions struct{}

func (GenericDimensions) Family() Family                  { return FamilyGeneric }
func (GenericDimensions) IdentityParts() []string         { return nil }
func (GenericDimensions) Compared() map[string]string     { return map[string]string{} }
func (d GenericDimensions) Merge(_ Dimensions) Dimensions { return d }

// IdentityKey is the catalog lookup key of a variant.
func IdentityKey(name string, category Category, d Dimensions) string {
	parts := []string{string(category), canonText(name)}
	if d != nil {
		parts = append(parts, d.IdentityParts()...)
	}
	return strings.Join(parts, "|")
}

// EncodeDimensions flattens a variant into the mapping stored by the
// document and jsonb adapters.
func EncodeDimensions(d Dimensions) (map[string]any, error) {
	out := map[string]any{}
	if d == nil {
		return out, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeDimensions rebuilds the variant of the category from its stored
// mapping. Unknown keys are ignored.
func DecodeDimensions(category Category, m map[string]any) (Dimensions, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	switch category.Family() {
	case FamilySheet:
		var d SheetDimensions
		err = json.Unmarshal(raw, &d)
		return d, wrapDecode(category, err)
	case FamilyLithoPerf:
		var d LithoPerfDimensions
		err = json.Unmarshal(raw, &d)
		return d, wrapDecode(category, err)
	case FamilyMatrix:
		var d MatrixDimensions
		err = json.Unmarshal(raw, &d)
		return d, wrapDecode(category, err)
	case FamilyRules:
		var d RuleDimensions
		err = json.Unmarshal(raw, &d)
		return d, wrapDecode(category, err)
	case FamilyChemicals:
		var d ChemicalDimensions
		err = json.Unmarshal(raw, &d)
		return d, wrapDecode(category, err)
	}
	return GenericDimensions{}, nil
}

func wrapDecode(category Category, err error) error {
	if err != nil {
		return fmt.Errorf("decode %s dimensions: %w", category, err)
	}
	return nil
}

func metersKey(v *float64, unit string) string {
	if v == nil {
		return ""
	}
	m, err := ToMeters(*v, unit)
	if err != nil {
		return CanonicalNumber(v) + unit
	}
	return CanonicalNumber(&m)
}

func canonText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func mergeText(cur, next string) string {
	if strings.TrimSpace(next) != "" {
		return next
	}
	return cur
}

func mergeNumber(cur, next *float64) *float64 {
	if next != nil {
		v := *next
		return &v
	}
	return cur
}

// mergeMeasure keeps a value and its unit together: a present next value
// brings its own unit, even when that unit is empty.
func mergeMeasure(cur *float64, curUnit string, next *float64, nextUnit string) (*float64, string) {
	if next == nil {
		return cur, curUnit
	}
	v := *next
	return &v, nextUnit
}
