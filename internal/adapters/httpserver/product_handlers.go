package httpserver

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/phenrril/printstock/internal/domain"
)

func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f := domain.ProductFilter{Query: r.URL.Query().Get("q")}
		if c := r.URL.Query().Get("category"); c != "" {
			cat, ok := domain.ParseCategory(c)
			if !ok {
				writeError(w, r, domain.NewValidationError("category", "unknown product type"))
				return
			}
			f.Category = cat
		}
		list, err := s.products.List(r.Context(), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, 200, list)
	case http.MethodPost:
		var req struct {
			Name     string `json:"name"`
			Category string `json:"category"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		p, err := s.products.Create(r.Context(), req.Name, req.Category)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, 201, map[string]any{"message": "Product added successfully", "product": p})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// apiProductLedger serves /api/products/{id}/ledger.
func (s *Server) apiProductLedger(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/products/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "ledger" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, r, domain.NewValidationError("id", "invalid id"))
		return
	}
	entries, err := s.products.ListLedger(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, 200, entries)
}

func (s *Server) apiCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, 200, s.products.Categories())
}

func (s *Server) apiReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	rows, err := s.products.Report(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, 200, rows)
}
