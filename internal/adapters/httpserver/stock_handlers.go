package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/phenrril/printstock/internal/adapters/sheet"
	"github.com/phenrril/printstock/internal/domain"
	"github.com/phenrril/printstock/internal/usecase"
)

func (s *Server) apiStockSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sum, err := s.stock.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, 200, sum)
}

type adjustRequest struct {
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

func (req adjustRequest) parse() (uuid.UUID, error) {
	if strings.TrimSpace(req.ProductID) == "" || req.Quantity == 0 {
		return uuid.Nil, domain.NewValidationError("productId", "Product ID and quantity are required")
	}
	id, err := uuid.Parse(strings.TrimSpace(req.ProductID))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("productId", "invalid id")
	}
	return id, nil
}

func (s *Server) apiStockIn(w http.ResponseWriter, r *http.Request) {
	s.adjust(w, r, s.stock.StockIn, "Stock added successfully")
}

func (s *Server) apiStockOut(w http.ResponseWriter, r *http.Request) {
	s.adjust(w, r, s.stock.StockOut, "Stock issued successfully")
}

func (s *Server) adjust(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, qty float64) (*domain.Product, error), message string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := req.parse()
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := fn(r.Context(), id, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"message": message, "stock": p.Stock})
}

func (s *Server) apiStockInDetailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var in domain.IntakeSubmission
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.stock.Reconcile(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"message":   "Stock added successfully",
		"id":        res.SubmissionID,
		"productId": res.ProductID,
		"quantity":  res.Quantity,
		"created":   res.Created,
	})
}

type confirmRequest struct {
	Action   string                  `json:"action"`
	RollData domain.IntakeSubmission `json:"rollData"`
}

func (s *Server) apiConfirmDuplicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.stock.ConfirmDuplicate(r.Context(), req.Action, req.RollData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Action == usecase.ActionDiscard {
		writeJSON(w, 200, map[string]any{"message": "Duplicate roll discarded"})
		return
	}
	writeJSON(w, 200, map[string]any{
		"message":    "Roll added as a new product",
		"id":         res.Result.SubmissionID,
		"productId":  res.Result.ProductID,
		"uniqueName": res.UniqueName,
	})
}

func (s *Server) apiUploadExcel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeJSON(w, 400, map[string]any{"error": "invalid multipart upload"})
		return
	}
	var field string
	for _, name := range []string{"excel-file", "file"} {
		if len(r.MultipartForm.File[name]) > 0 {
			field = name
			break
		}
	}
	if field == "" {
		writeJSON(w, 400, map[string]any{"error": "No file uploaded"})
		return
	}
	fh := r.MultipartForm.File[field][0]
	if !sheet.Supported(fh.Filename) {
		writeJSON(w, 400, map[string]any{"error": sheet.ErrUnsupportedFormat.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeJSON(w, 400, map[string]any{"error": "cannot open upload"})
		return
	}
	defer f.Close()

	table, err := sheet.Read(fh.Filename, f)
	if err != nil {
		writeJSON(w, 400, map[string]any{"error": err.Error()})
		return
	}
	if err := usecase.CheckColumns(table.Headers); err != nil {
		writeError(w, r, err)
		return
	}
	overwrite, _ := strconv.ParseBool(strings.TrimSpace(r.FormValue("overwrite")))

	rows := make([]usecase.RowRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		rows = append(rows, usecase.RowRecord(row))
	}
	rep, err := s.imports.ImportBatch(r.Context(), rows, overwrite)
	var ce *domain.ConflictError
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "CONFLICTS_FOUND",
			"conflicts": ce.Conflicts,
			"inserted":  rep.Inserted,
			"updated":   rep.Updated,
			"skipped":   rep.Skipped,
			"failed":    rep.Failed,
		})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	writeJSON(w, 200, rep)
}
