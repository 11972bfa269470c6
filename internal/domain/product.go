package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryBlankets     Category = "blankets"
	CategoryUnderpacking Category = "underpacking"
	CategoryLithoPerf    Category = "litho perf"
	CategoryMatrix       Category = "matrix"
	CategoryRules        Category = "rules"
	CategoryChemicals    Category = "chemicals"
	CategoryFilm         Category = "film"
	CategoryPlate        Category = "plate"
	CategoryInk          Category = "ink"
	CategoryOther        Category = "other"
)

var Categories = []Category{
	CategoryBlankets, CategoryLithoPerf, CategoryUnderpacking, CategoryRules, CategoryMatrix,
	CategoryChemicals, CategoryFilm, CategoryPlate, CategoryInk, CategoryOther,
}

// ParseCategory accepts the category names used by the intake forms and the
// upload template, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	v := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if v == "lithoperf" || v == "litho-perf" || v == "litho_perf" {
		v = string(CategoryLithoPerf)
	}
	for _, c := range Categories {
		if string(c) == v {
			return c, true
		}
	}
	return "", false
}

// IsSheet reports whether the category is stocked as rolls or cut pieces.
func (c Category) IsSheet() bool {
	return c == CategoryBlankets || c == CategoryUnderpacking
}

type StockType string

const (
	StockTypeRoll   StockType = "roll"
	StockTypePieces StockType = "pieces"
	StockTypeCoil   StockType = "coil"
	StockTypePacket StockType = "pkt"
)

type Product struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Category    Category   `json:"category"`
	IdentityKey string     `json:"identityKey"`
	Stock       float64    `json:"stock"`
	Imported    bool       `json:"imported"`
	Dimensions  Dimensions `json:"dimensions"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// Summary is the view of an existing variant returned with a duplicate roll.
func (p *Product) Summary() ProductSummary {
	s := ProductSummary{ID: p.ID, Name: p.Name, Category: p.Category, Stock: p.Stock}
	if d, ok := p.Dimensions.(SheetDimensions); ok {
		s.RollNumber = d.RollNumber
		s.Length = d.Length
		s.Width = d.Width
		s.Thickness = d.Thickness
		s.ImportDate = d.ImportDate
	}
	return s
}

type ProductSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Category   Category  `json:"category"`
	Stock      float64   `json:"stock"`
	RollNumber string    `json:"rollNumber,omitempty"`
	Length     *float64  `json:"length,omitempty"`
	Width      *float64  `json:"width,omitempty"`
	Thickness  *float64  `json:"thickness,omitempty"`
	ImportDate string    `json:"importDate,omitempty"`
}

type ProductFilter struct {
	Category Category
	Query    string
}

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// LedgerEntry is an append-only stock movement. SubmissionID is set for
// entries produced by an intake and is unique per intake.
type LedgerEntry struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID    uuid.UUID  `gorm:"type:uuid;index" json:"productId"`
	SubmissionID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"submissionId,omitempty"`
	Quantity     float64    `gorm:"type:decimal(14,4);not null" json:"quantity"`
	Direction    Direction  `gorm:"type:varchar(3);not null" json:"type"`
	Timestamp    time.Time  `gorm:"index" json:"timestamp"`
}

func (LedgerEntry) TableName() string { return "stock_transactions" }

// Signed returns the quantity as a stock delta.
func (e LedgerEntry) Signed() float64 {
	if e.Direction == DirectionOut {
		return -e.Quantity
	}
	return e.Quantity
}

type IntakeSource string

const (
	SourceDetailed IntakeSource = "detailed"
	SourceBulk     IntakeSource = "bulk"
)

type CommitState string

const (
	StateValidated        CommitState = "validated"
	StateDetailedRecorded CommitState = "detailed_recorded"
	StateLedgerAppended   CommitState = "ledger_appended"
	StateCatalogUpdated   CommitState = "catalog_updated"
	StateCommitted        CommitState = "committed"
)

// DetailedStockRecord keeps the raw submission of one intake. Its ID is the
// submission id; State tracks how far the commit got.
type DetailedStockRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID      `gorm:"type:uuid;index" json:"productId"`
	Source    IntakeSource   `gorm:"type:varchar(16)" json:"source"`
	Quantity  float64        `gorm:"type:decimal(14,4)" json:"quantity"`
	Payload   map[string]any `gorm:"type:jsonb;serializer:json" json:"payload"`
	State     CommitState    `gorm:"type:varchar(24);index" json:"state"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (DetailedStockRecord) TableName() string { return "detailed_stock" }
