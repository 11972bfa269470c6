package httpserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/printstock/internal/adapters/lock"
	"github.com/phenrril/printstock/internal/adapters/repo/memory"
	"github.com/phenrril/printstock/internal/usecase"
)

func newTestHandler() http.Handler {
	products := memory.NewProductRepo()
	ledger := memory.NewLedgerRepo()
	st := &usecase.StockUC{Products: products, Ledger: ledger, Records: memory.NewDetailedRecordRepo(), Locks: lock.NewLocal()}
	return New(st, &usecase.ImportUC{Stock: st}, &usecase.ProductUC{Products: products, Ledger: ledger}, 0)
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, decode(t, rec)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return out
}

func upload(t *testing.T, h http.Handler, filename, content string, overwrite bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("excel-file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if overwrite {
		require.NoError(t, mw.WriteField("overwrite", "true"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/stock/upload-excel", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, decode(t, rec)
}

var roll = map[string]any{
	"productType": "blankets",
	"productName": "Blanket A",
	"stockType":   "roll",
	"rollNumber":  "R-1",
	"length":      10,
	"width":       1.5,
	"thickness":   1.95,
	"importDate":  "2024-01-01",
}

func TestDetailedIntake_DuplicateAndConfirm(t *testing.T) {
	h := newTestHandler()

	rec, body := do(t, h, http.MethodPost, "/api/stock/in/detailed", roll)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["created"])
	assert.Equal(t, 15.0, body["quantity"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, body = do(t, h, http.MethodPost, "/api/stock/in/detailed", roll)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_ROLL", body["error"])
	assert.Equal(t, true, body["requiresConfirmation"])
	existing, ok := body["existingProduct"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Blanket A", existing["name"])

	rec, body = do(t, h, http.MethodPost, "/api/stock/in/detailed/confirm-duplicate", map[string]any{"action": "discard", "rollData": roll})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Duplicate roll discarded", body["message"])

	rec, body = do(t, h, http.MethodPost, "/api/stock/in/detailed/confirm-duplicate", map[string]any{"action": "add_with_date", "rollData": roll})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Blanket A (2024-01-01)", body["uniqueName"])

	rec, body = do(t, h, http.MethodGet, "/api/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30.0, body["total"])
	assert.Equal(t, 0.0, body["lowStock"])
}

func TestDetailedIntake_ValidationError(t *testing.T) {
	h := newTestHandler()
	in := map[string]any{"productType": "blankets", "productName": "Blanket A", "stockType": "roll"}

	rec, body := do(t, h, http.MethodPost, "/api/stock/in/detailed", in)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rollNumber", body["field"])

	req := httptest.NewRequest(http.MethodPost, "/api/stock/in/detailed", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	h.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/stock/in/detailed", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStockInOut(t *testing.T) {
	h := newTestHandler()

	rec, body := do(t, h, http.MethodPost, "/api/products", map[string]any{"name": "Black", "category": "ink"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := body["product"].(map[string]any)
	id := product["id"].(string)

	rec, body = do(t, h, http.MethodPost, "/api/stock/in", map[string]any{"productId": id, "quantity": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Stock added successfully", body["message"])
	assert.Equal(t, 4.0, body["stock"])

	rec, body = do(t, h, http.MethodPost, "/api/stock/out", map[string]any{"productId": id, "quantity": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient stock", body["error"])

	rec, body = do(t, h, http.MethodPost, "/api/stock/out", map[string]any{"productId": id})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "Product ID and quantity are required")

	rec, _ = do(t, h, http.MethodPost, "/api/stock/in", map[string]any{"productId": uuid.NewString(), "quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/products/"+id+"/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "in", entries[0]["type"])

	rec, _ = do(t, h, http.MethodGet, "/api/products/"+uuid.NewString()+"/ledger", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProduct_MissingName(t *testing.T) {
	h := newTestHandler()
	rec, body := do(t, h, http.MethodPost, "/api/products", map[string]any{"category": "ink"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", body["field"])

	rec, _ = do(t, h, http.MethodGet, "/api/products?category=paper", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload(t *testing.T) {
	h := newTestHandler()
	sheet := "Product Type,Product Name,Product Format,Chemical Unit,Stock\n" +
		"chemicals,Fountain,Can,L,4\n"

	rec, body := upload(t, h, "stock.csv", sheet, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, body["inserted"])

	changed := "Product Type,Product Name,Product Format,Chemical Unit\n" +
		"chemicals,Fountain,Can,kg\n"
	rec, body = upload(t, h, "stock.csv", changed, false)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "CONFLICTS_FOUND", body["error"])
	conflicts, ok := body["conflicts"].([]any)
	require.True(t, ok)
	assert.Len(t, conflicts, 1)

	rec, body = upload(t, h, "stock.csv", changed, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, body["updated"])

	rec, body = do(t, h, http.MethodGet, "/api/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, body["total"])
}

func TestUpload_Rejects(t *testing.T) {
	h := newTestHandler()

	rec, body := upload(t, h, "stock.csv", "Product Name,Stock\nx,1\n", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"productType"}, body["missingColumns"])

	rec, _ = upload(t, h, "stock.pdf", "whatever", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/stock", routeLabel("/api/stock"))
	assert.Equal(t, "/api/products/{id}/ledger", routeLabel("/api/products/"+uuid.NewString()+"/ledger"))
	assert.Equal(t, "other", routeLabel("/wp-admin"))
}

func TestRecovery(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), RequestID, Recovery)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
