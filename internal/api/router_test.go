package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsledger/internal/models"
	"partsledger/internal/services"
	"partsledger/internal/store"
)

type testServer struct {
	router   *gin.Engine
	store    *store.MemoryStore
	catalog  *services.CatalogService
	invoices *services.InvoiceService
}

func newTestServer(t *testing.T, mutate ...func(*RouterDeps)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	catalog := services.NewCatalogService(st)
	invoices := services.NewInvoiceService(st)
	invoices.SetReceiptOptions("PARTS TEST", time.UTC)
	deps := RouterDeps{
		Catalog:   catalog,
		Invoices:  invoices,
		Dashboard: services.NewDashboardService(st, time.UTC),
		Version:   "test",
	}
	for _, m := range mutate {
		m(&deps)
	}
	return &testServer{router: SetupRouter(deps), store: st, catalog: catalog, invoices: invoices}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) addItem(t *testing.T, sku, name, price string, stock int) models.Item {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/items", gin.H{
		"sku": sku, "name": name, "category": "Brakes",
		"cost_price": "1", "selling_price": price, "stock_quantity": stock,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	return item
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func invoiceBody(status string, lines ...gin.H) gin.H {
	return gin.H{"customer_name": "", "items": lines, "payment_mode": "Cash", "status": status}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealth_ReportsRedis(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) { d.Redis = fakePinger{} })
	body := decodeBody(t, s.do(t, http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["redis"])

	s = newTestServer(t, func(d *RouterDeps) { d.Redis = fakePinger{err: errors.New("connection refused")} })
	w := s.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["redis"])
}

func TestItems_CreateValidatesInput(t *testing.T) {
	s := newTestServer(t)

	item := s.addItem(t, "BRK-100", "Brake Pad", "200", 10)
	assert.Equal(t, models.DefaultMinStock, item.MinStock)

	w := s.do(t, http.MethodPost, "/api/v1/items", gin.H{"sku": "", "name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, CodeValidation, body["code"])
	assert.Equal(t, "sku", body["field"])

	w = s.do(t, http.MethodPost, "/api/v1/items", gin.H{"sku": "A", "name": "x", "selling_price": "-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItems_SearchGroupsBySKU(t *testing.T) {
	s := newTestServer(t)
	first := s.addItem(t, "BRK-100", "Brake pad front", "200", 10)
	fluid := s.addItem(t, "OIL-1", "Brake fluid", "90", 10)
	variant := s.addItem(t, "BRK-100", "Brake pad front OEM", "260", 10)
	s.addItem(t, "FLT-9", "Air filter", "150", 10)

	w := s.do(t, http.MethodGet, "/api/v1/items?search=BRAKE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 3)
	assert.Equal(t, []string{first.ID, variant.ID, fluid.ID}, []string{items[0].ID, items[1].ID, items[2].ID})

	w = s.do(t, http.MethodGet, "/api/v1/items", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 4)
}

func TestItems_LowStockAndGet(t *testing.T) {
	s := newTestServer(t)
	low := s.addItem(t, "A", "bolt", "10", 5)
	s.addItem(t, "B", "nut", "10", 50)

	w := s.do(t, http.MethodGet, "/api/v1/items/low-stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ID)

	w = s.do(t, http.MethodGet, "/api/v1/items/"+low.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/items/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, decodeBody(t, w)["code"])
}

func TestItems_UpdateRestockAdjustAndMovements(t *testing.T) {
	s := newTestServer(t)
	item := s.addItem(t, "A", "bolt", "10", 2)

	w := s.do(t, http.MethodPut, "/api/v1/items/"+item.ID, gin.H{"name": "hex bolt", "selling_price": "11.5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "hex bolt", decodeBody(t, w)["name"])

	w = s.do(t, http.MethodPost, "/api/v1/items/"+item.ID+"/restock", gin.H{"quantity": 8, "notes": "PO-17"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 10, decodeBody(t, w)["stock_quantity"])

	w = s.do(t, http.MethodPost, "/api/v1/items/"+item.ID+"/adjust", gin.H{"quantity": -11})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeInsufficientStock, decodeBody(t, w)["code"])

	w = s.do(t, http.MethodPost, "/api/v1/items/"+item.ID+"/adjust", gin.H{"quantity": -1, "notes": "damaged"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/items/"+item.ID+"/movements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["count"])
}

// upload posts content as multipart field "file" plus any extra form fields.
func (s *testServer) upload(t *testing.T, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

const importSheet = "sku,name,category,cost_price,selling_price,stock\nBRK-1,Brake pad,Brakes,100,150,4\n,missing sku,,1,2,3\n"

func TestItems_ImportCSV(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "catalog.csv", importSheet, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["imported_count"])
	assert.EqualValues(t, 1, body["error_count"])
}

func TestItems_ImportFormatFieldOverridesExtension(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "catalog.dat", importSheet, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(t, "catalog.dat", importSheet, map[string]string{"format": "CSV"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decodeBody(t, w)["imported_count"])

	w = s.upload(t, "catalog.csv", importSheet, map[string]string{"format": "ods"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoices_CompletedSaleAndRevert(t *testing.T) {
	s := newTestServer(t)
	item := s.addItem(t, "BRK-100", "Brake Pad", "200", 10)

	w := s.do(t, http.MethodPost, "/api/v1/invoices", invoiceBody("completed",
		gin.H{"item_id": item.ID, "quantity": 3, "selected_price": "180"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := decodeBody(t, w)
	assert.Equal(t, "INV-000001", inv["invoice_number"])
	assert.Equal(t, "540", inv["final_total"])
	assert.Equal(t, models.DefaultCustomerName, inv["customer_name"])

	got, err := s.catalog.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.StockQuantity)

	id := inv["id"].(string)
	w = s.do(t, http.MethodDelete, "/api/v1/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err = s.catalog.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.StockQuantity)

	w = s.do(t, http.MethodDelete, "/api/v1/invoices/"+id, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeInvalidState, decodeBody(t, w)["code"])
}

func TestInvoices_InsufficientStockPersistsNothing(t *testing.T) {
	s := newTestServer(t)
	item := s.addItem(t, "A", "bolt", "10", 2)

	w := s.do(t, http.MethodPost, "/api/v1/invoices", invoiceBody("completed",
		gin.H{"item_id": item.ID, "quantity": 3, "selected_price": "10"}))
	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, CodeInsufficientStock, body["code"])
	assert.Equal(t, item.ID, body["item_id"])
	assert.EqualValues(t, 2, body["available"])
	assert.EqualValues(t, 3, body["requested"])

	w = s.do(t, http.MethodGet, "/api/v1/invoices", nil)
	var list []models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestInvoices_OngoingLifecycle(t *testing.T) {
	s := newTestServer(t)
	item := s.addItem(t, "A", "bolt", "10", 5)

	w := s.do(t, http.MethodPost, "/api/v1/invoices", invoiceBody("ongoing",
		gin.H{"item_id": item.ID, "quantity": 2, "selected_price": "10"}))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody(t, w)["id"].(string)

	w = s.do(t, http.MethodGet, "/api/v1/invoices/ongoing", nil)
	var ongoing []models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ongoing))
	require.Len(t, ongoing, 1)

	w = s.do(t, http.MethodPut, "/api/v1/invoices/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decodeBody(t, w)["status"])

	w = s.do(t, http.MethodPut, "/api/v1/invoices/"+id+"/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/invoices/missing/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/invoices?status=completed", nil)
	var completed []models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &completed))
	assert.Len(t, completed, 1)

	w = s.do(t, http.MethodGet, "/api/v1/invoices?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoices_RejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoices_Receipts(t *testing.T) {
	s := newTestServer(t)
	item := s.addItem(t, "A", "bolt", "10", 5)
	w := s.do(t, http.MethodPost, "/api/v1/invoices", invoiceBody("completed",
		gin.H{"item_id": item.ID, "quantity": 1, "selected_price": "10"}))
	id := decodeBody(t, w)["id"].(string)

	w = s.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/receipt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "PARTS TEST")
	assert.Contains(t, w.Body.String(), "INV-000001")

	w = s.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/thermal-receipt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w)["receipt"], "INV-000001")
}

func TestDashboard_Stats(t *testing.T) {
	s := newTestServer(t)
	item := s.addItem(t, "BRK-100", "Brake Pad", "200", 10)
	s.do(t, http.MethodPost, "/api/v1/invoices", invoiceBody("completed",
		gin.H{"item_id": item.ID, "quantity": 6, "selected_price": "200"}))
	s.do(t, http.MethodPost, "/api/v1/invoices", invoiceBody("ongoing",
		gin.H{"item_id": item.ID, "quantity": 1, "selected_price": "200"}))

	w := s.do(t, http.MethodGet, "/api/v1/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(t, w)
	assert.EqualValues(t, 1, stats["total_items"])
	assert.EqualValues(t, 2, stats["total_invoices"])
	assert.EqualValues(t, 1, stats["today_invoices"])
	assert.Equal(t, "1200", stats["today_revenue"])
	assert.EqualValues(t, 1, stats["ongoing_invoices"])
	assert.EqualValues(t, 1, stats["low_stock_items"])
}

// memoryIdempotency is an in-process IdempotencyStore.
type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]*StoredResponse
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]*StoredResponse)}
}

func (m *memoryIdempotency) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = nil
	return true, nil
}

func (m *memoryIdempotency) Load(_ context.Context, key string) (*StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryIdempotency) Save(_ context.Context, key string, resp StoredResponse, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = &resp
	return nil
}

func (m *memoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func TestInvoices_IdempotencyKeyReplaysFirstResponse(t *testing.T) {
	idem := newMemoryIdempotency()
	s := newTestServer(t, func(d *RouterDeps) { d.Idempotency = idem })
	item := s.addItem(t, "A", "bolt", "10", 5)
	body := invoiceBody("completed", gin.H{"item_id": item.ID, "quantity": 2, "selected_price": "10"})

	first := s.do(t, http.MethodPost, "/api/v1/invoices", body, IdempotencyHeader, "till-1-0001")
	require.Equal(t, http.StatusCreated, first.Code)
	second := s.do(t, http.MethodPost, "/api/v1/invoices", body, IdempotencyHeader, "till-1-0001")
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	got, err := s.catalog.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity, "stock taken once")

	third := s.do(t, http.MethodPost, "/api/v1/invoices", body, IdempotencyHeader, "till-1-0002")
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "INV-000002", decodeBody(t, third)["invoice_number"])
}

func TestInvoices_IdempotencyKeyReleasedOnFailure(t *testing.T) {
	idem := newMemoryIdempotency()
	s := newTestServer(t, func(d *RouterDeps) { d.Idempotency = idem })
	item := s.addItem(t, "A", "bolt", "10", 1)
	body := invoiceBody("completed", gin.H{"item_id": item.ID, "quantity": 2, "selected_price": "10"})

	w := s.do(t, http.MethodPost, "/api/v1/invoices", body, IdempotencyHeader, "k")
	require.Equal(t, http.StatusConflict, w.Code)

	_, err := s.catalog.Restock(context.Background(), item.ID, 5, "", "")
	require.NoError(t, err)

	w = s.do(t, http.MethodPost, "/api/v1/invoices", body, IdempotencyHeader, "k")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
}

func TestInvoices_IdempotencyKeyInProgress(t *testing.T) {
	idem := newMemoryIdempotency()
	s := newTestServer(t, func(d *RouterDeps) { d.Idempotency = idem })
	_, err := idem.Reserve(context.Background(), "POST:/api/v1/invoices:busy", time.Hour)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/v1/invoices", gin.H{}, IdempotencyHeader, "busy")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "request_in_progress", decodeBody(t, w)["code"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		d.RateLimitRPS = 0.001
		d.RateLimitBurst = 2
	})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/items", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/items", nil).Code)
	w := s.do(t, http.MethodGet, "/api/v1/items", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// health is registered ahead of the limiter
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/health", nil).Code)
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) { d.CORSOrigins = []string{"http://pos.local"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/invoices", nil)
	req.Header.Set("Origin", "http://pos.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://pos.local", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestIdempotency_KeyReleasedWhenHandlerPanics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	idem := newMemoryIdempotency()
	calls := 0

	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/invoices", Idempotency(idem, time.Hour), func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("printer offline")
		}
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/invoices", nil)
		req.Header.Set(IdempotencyHeader, "till-2-0001")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusInternalServerError, send().Code)

	w := send()
	assert.Equal(t, http.StatusCreated, w.Code, "retry runs instead of 409")
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)

	w = send()
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)
}
