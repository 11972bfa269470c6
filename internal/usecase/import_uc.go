package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/printstock/internal/domain"
)

// RowRecord is one sheet row keyed by its column header.
type RowRecord map[string]string

// payload keeps the row cells as read from the sheet.
func (r RowRecord) payload() map[string]any {
	out := make(map[string]any, len(r))
	for h, v := range r {
		out[h] = v
	}
	return out
}

type RowFailure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type BatchReport struct {
	Inserted  int                  `json:"inserted"`
	Updated   int                  `json:"updated"`
	Skipped   int                  `json:"skipped"`
	Conflicts []domain.RowConflict `json:"conflicts"`
	Failed    []RowFailure         `json:"failed"`
}

// ImportUC applies uploaded stock sheets to the catalog row by row.
type ImportUC struct {
	Stock *StockUC
	// DefaultLengthUnit applies to length and width cells without a unit
	// column. Empty means mtr.
	DefaultLengthUnit string
}

var RequiredColumns = []string{"productType", "productName"}

var absentCells = map[string]bool{"": true, "-": true, "n/a": true, "na": true, "null": true, "none": true, "nan": true}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006/01/02", "02-01-2006", "01-02-06", "2006-01-02 15:04:05", time.RFC3339}

// columnAliases maps a folded header onto the field it fills. Folding drops
// case, spaces, dots, dashes and underscores.
var columnAliases = map[string]string{
	"producttype":         "productType",
	"type":                "productType",
	"category":            "productType",
	"productname":         "productName",
	"name":                "productName",
	"product":             "productName",
	"stocktype":           "stockType",
	"length":              "length",
	"width":               "width",
	"thickness":           "thickness",
	"lengthunit":          "lengthUnit",
	"widthunit":           "widthUnit",
	"thicknessunit":       "thicknessUnit",
	"rollnumber":          "rollNumber",
	"rollno":              "rollNumber",
	"numberofpieces":      "numberOfPieces",
	"pieces":              "numberOfPieces",
	"sqmtr":               "sqMtr",
	"sqm":                 "sqMtr",
	"importdate":          "importDate",
	"takendate":           "takenDate",
	"lithopiecetype":      "lithoPieceType",
	"perforationtype":     "perforationType",
	"matrixsizewidth":     "matrixSizeWidth",
	"matrixsizeheight":    "matrixSizeHeight",
	"ruleformat":          "ruleFormat",
	"rulepackedas":        "rulePackedAs",
	"rulecontainerlength": "ruleContainerLength",
	"rulecontainerwidth":  "ruleContainerWidth",
	"rulecontainertype":   "ruleContainerType",
	"productformat":       "productFormat",
	"chemicalunit":        "chemicalUnit",
	"stock":               "stock",
	"quantity":            "stock",
}

func foldHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", ".", "", "-", "", "_", "").Replace(h)
}

// ColumnName returns the field a header fills, or "" for unknown headers.
func ColumnName(header string) string {
	return columnAliases[foldHeader(header)]
}

// CheckColumns fails with *domain.MissingColumnsError when a required
// column is absent from the headers.
func CheckColumns(headers []string) error {
	have := map[string]bool{}
	for _, h := range headers {
		have[ColumnName(h)] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &domain.MissingColumnsError{Columns: missing}
	}
	return nil
}

// ImportBatch processes rows in order. Rows that cannot be parsed are
// collected in Failed and the batch continues; rows already applied are not
// rolled back. When rows differ from stored variants and overwrite is false
// the report is returned together with a *domain.ConflictError.
func (uc *ImportUC) ImportBatch(ctx context.Context, rows []RowRecord, overwrite bool) (*BatchReport, error) {
	report := &BatchReport{Conflicts: []domain.RowConflict{}, Failed: []RowFailure{}}
	if len(rows) > 0 {
		headers := make([]string, 0, len(rows[0]))
		for h := range rows[0] {
			headers = append(headers, h)
		}
		if err := CheckColumns(headers); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rowNum := i + 2
		outcome, conflict, err := uc.importRow(ctx, rowNum, row, overwrite)
		if err != nil {
			log.Warn().Err(err).Int("row", rowNum).Msg("import row failed")
			report.Failed = append(report.Failed, RowFailure{Row: rowNum, Error: err.Error()})
			importRows.WithLabelValues("failed").Inc()
			continue
		}
		importRows.WithLabelValues(outcome).Inc()
		switch outcome {
		case "inserted":
			report.Inserted++
		case "updated":
			report.Updated++
		case "skipped":
			report.Skipped++
		case "conflict":
			report.Conflicts = append(report.Conflicts, *conflict)
		}
	}

	log.Info().
		Int("rows", len(rows)).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("conflicts", len(report.Conflicts)).
		Int("failed", len(report.Failed)).
		Bool("overwrite", overwrite).
		Msg("stock import finished")

	if len(report.Conflicts) > 0 {
		return report, &domain.ConflictError{Conflicts: report.Conflicts}
	}
	return report, nil
}

func (uc *ImportUC) importRow(ctx context.Context, rowNum int, row RowRecord, overwrite bool) (string, *domain.RowConflict, error) {
	in, err := uc.parseRow(row)
	if err != nil {
		return "", nil, err
	}
	if err := in.ValidateRow(); err != nil {
		return "", nil, err
	}
	cat := in.Category()
	incoming := in.Dimensions()

	existing, err := uc.Stock.Products.FindByName(ctx, in.ProductName, cat)
	if errors.Is(err, domain.ErrNotFound) {
		if err := uc.insert(ctx, in, incoming, row); err != nil {
			return "", nil, err
		}
		return "inserted", nil, nil
	}
	if err != nil {
		return "", nil, domain.WrapStore("find product", err)
	}

	diffs := DiffDimensions(existing.Dimensions, incoming)
	if len(diffs) == 0 {
		return "skipped", nil, nil
	}
	if !overwrite {
		return "conflict", &domain.RowConflict{
			Row:       rowNum,
			ProductID: existing.ID,
			Name:      existing.Name,
			Category:  existing.Category,
			Diffs:     diffs,
		}, nil
	}
	if err := uc.overwrite(ctx, existing.ID, incoming); err != nil {
		return "", nil, err
	}
	return "updated", nil, nil
}

func (uc *ImportUC) insert(ctx context.Context, in *domain.IntakeSubmission, dims domain.Dimensions, row RowRecord) error {
	s := uc.Stock
	key := domain.IdentityKey(in.ProductName, in.Category(), dims)
	unlock, err := s.Locks.Lock(ctx, identityLockKey(key))
	if err != nil {
		return fmt.Errorf("lock variant: %w", err)
	}
	defer unlock()

	p, err := s.createVariant(ctx, in.ProductName, in.Category(), dims, key)
	if err != nil {
		return err
	}
	rec := &domain.DetailedStockRecord{
		ID:        uuid.New(),
		ProductID: p.ID,
		Source:    domain.SourceBulk,
		Quantity:  in.Quantity(),
		Payload:   row.payload(),
		State:     domain.StateValidated,
	}
	return s.commit(ctx, rec)
}

// overwrite merges the incoming fields into the stored variant. Stock is
// not touched.
func (uc *ImportUC) overwrite(ctx context.Context, id uuid.UUID, incoming domain.Dimensions) error {
	s := uc.Stock
	unlock, err := s.Locks.Lock(ctx, productLockKey(id))
	if err != nil {
		return fmt.Errorf("lock product: %w", err)
	}
	defer unlock()

	p, err := s.Products.FindByID(ctx, id)
	if err != nil {
		return domain.WrapStore("find product", err)
	}
	merged := incoming
	if p.Dimensions != nil {
		merged = p.Dimensions.Merge(incoming)
	}
	key := domain.IdentityKey(p.Name, p.Category, merged)
	if err := s.Products.UpdateDimensions(ctx, id, merged, key); err != nil {
		return domain.WrapStore("update dimensions", err)
	}
	return nil
}

// DiffDimensions lists the fields the incoming variant sets to a value
// different from the stored one. Fields absent from incoming never differ.
func DiffDimensions(stored, incoming domain.Dimensions) []domain.FieldDiff {
	if incoming == nil {
		return nil
	}
	have := map[string]string{}
	if stored != nil {
		have = stored.Compared()
	}
	next := incoming.Compared()
	fields := make([]string, 0, len(next))
	for f := range next {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var diffs []domain.FieldDiff
	for _, f := range fields {
		v := next[f]
		if v == "" || have[f] == v {
			continue
		}
		diffs = append(diffs, domain.FieldDiff{Field: f, Existing: have[f], Incoming: v})
	}
	return diffs
}

func (uc *ImportUC) parseRow(row RowRecord) (*domain.IntakeSubmission, error) {
	cells := map[string]string{}
	for h, v := range row {
		name := ColumnName(h)
		if name == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if absentCells[strings.ToLower(v)] {
			continue
		}
		cells[name] = v
	}

	in := &domain.IntakeSubmission{
		ProductType:       cells["productType"],
		ProductName:       cells["productName"],
		StockType:         cells["stockType"],
		ThicknessUnit:     cells["thicknessUnit"],
		RollNumber:        cells["rollNumber"],
		LithoPieceType:    cells["lithoPieceType"],
		PerforationType:   cells["perforationType"],
		RuleFormat:        cells["ruleFormat"],
		RulePackedAs:      cells["rulePackedAs"],
		RuleContainerType: cells["ruleContainerType"],
		ProductFormat:     cells["productFormat"],
		ChemicalUnit:      cells["chemicalUnit"],
	}

	numbers := []struct {
		field string
		dst   **float64
	}{
		{"length", &in.Length},
		{"width", &in.Width},
		{"thickness", &in.Thickness},
		{"numberOfPieces", &in.NumberOfPieces},
		{"sqMtr", &in.SqMtr},
		{"matrixSizeWidth", &in.MatrixSizeWidth},
		{"matrixSizeHeight", &in.MatrixSizeHeight},
		{"ruleContainerLength", &in.RuleContainerLength},
		{"ruleContainerWidth", &in.RuleContainerWidth},
		{"stock", &in.Stock},
	}
	for _, n := range numbers {
		v, err := parseNumber(cells[n.field])
		if err != nil {
			return nil, domain.NewValidationError(n.field, "must be a number")
		}
		*n.dst = v
	}

	var err error
	if in.ImportDate, err = parseDate(cells["importDate"]); err != nil {
		return nil, domain.NewValidationError("importDate", "unrecognised date")
	}
	if in.TakenDate, err = parseDate(cells["takenDate"]); err != nil {
		return nil, domain.NewValidationError("takenDate", "unrecognised date")
	}

	if in.Length, err = uc.toMeters(in.Length, cells["lengthUnit"]); err != nil {
		return nil, domain.NewValidationError("lengthUnit", err.Error())
	}
	if in.Width, err = uc.toMeters(in.Width, cells["widthUnit"]); err != nil {
		return nil, domain.NewValidationError("widthUnit", err.Error())
	}
	if in.Length != nil {
		in.LengthUnit = "mtr"
	}
	if in.Width != nil {
		in.WidthUnit = "mtr"
	}

	if cat, ok := domain.ParseCategory(in.ProductType); ok && cat.IsSheet() && in.StockType == "" {
		in.StockType = string(domain.StockTypeRoll)
		if in.NumberOfPieces != nil {
			in.StockType = string(domain.StockTypePieces)
		}
	}
	return in, nil
}

func (uc *ImportUC) toMeters(v *float64, unit string) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	if unit == "" {
		unit = uc.DefaultLengthUnit
	}
	m, err := domain.ToMeters(*v, unit)
	if err != nil {
		return nil, err
	}
	return domain.Float(domain.RoundTo(m, domain.ComparePlaces)), nil
}

// parseNumber reads a numeric cell. A comma is a thousands separator when
// a dot is present and the decimal separator otherwise.
func parseNumber(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return domain.Float(d.InexactFloat64()), nil
}

// parseDate returns the cell as YYYY-MM-DD. Plain numbers are Excel
// serial dates.
func parseDate(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	serial, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("unrecognised date %q", s)
	}
	t, err := excelize.ExcelDateToTime(serial.InexactFloat64(), false)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}
