package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/printstock/internal/domain"
	"github.com/phenrril/printstock/internal/usecase"
)

const defaultMaxUpload = 25 << 20

type Server struct {
	mux       *http.ServeMux
	stock     *usecase.StockUC
	imports   *usecase.ImportUC
	products  *usecase.ProductUC
	maxUpload int64
}

// New builds the API handler. maxUpload caps multipart uploads in bytes;
// zero uses 25 MiB.
func New(st *usecase.StockUC, im *usecase.ImportUC, p *usecase.ProductUC, maxUpload int64) http.Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	s := &Server{mux: http.NewServeMux(), stock: st, imports: im, products: p, maxUpload: maxUpload}
	s.routes()
	return Chain(s.mux,
		RequestID,
		Recovery,
		Logging,
		Metrics,
	)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.HandleFunc("/api/stock", s.apiStockSummary)
	s.mux.HandleFunc("/api/stock/in", s.apiStockIn)
	s.mux.HandleFunc("/api/stock/out", s.apiStockOut)
	s.mux.HandleFunc("/api/stock/in/detailed", s.apiStockInDetailed)
	s.mux.HandleFunc("/api/stock/in/detailed/confirm-duplicate", s.apiConfirmDuplicate)
	s.mux.HandleFunc("/api/stock/upload-excel", s.apiUploadExcel)

	s.mux.HandleFunc("/api/products", s.apiProducts)
	s.mux.HandleFunc("/api/products/", s.apiProductLedger)
	s.mux.HandleFunc("/api/categories", s.apiCategories)
	s.mux.HandleFunc("/api/reports", s.apiReports)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid json")
	}
	return nil
}

// writeError maps domain errors onto status codes. Anything unrecognised
// is a 500 and gets logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *domain.ValidationError
		de  *domain.DuplicateError
		mce *domain.MissingColumnsError
		ce  *domain.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Error(), "field": ve.Field})
	case errors.As(err, &de):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                "DUPLICATE_ROLL",
			"message":              de.Error(),
			"existingProduct":      de.Existing,
			"requiresConfirmation": de.RequiresConfirmation,
		})
	case errors.As(err, &mce):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": mce.Error(), "missingColumns": mce.Columns})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "CONFLICTS_FOUND", "conflicts": ce.Conflicts})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": domain.ErrInsufficientStock.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Product not found"})
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}
