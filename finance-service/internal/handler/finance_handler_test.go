package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/finance-service/internal/clients"
	"opsuite/finance-service/internal/models"
	"opsuite/finance-service/internal/services"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/export"
	"opsuite/pkg/notify"
	"opsuite/pkg/storage"
)

type store[T any, P interface {
	*T
	GetBase() *models.Base
}] struct {
	docs map[primitive.ObjectID]T
}

func newStore[T any, P interface {
	*T
	GetBase() *models.Base
}]() *store[T, P] {
	return &store[T, P]{docs: map[primitive.ObjectID]T{}}
}

func (s *store[T, P]) Create(_ context.Context, doc *T) error {
	b := P(doc).GetBase()
	b.ID = primitive.NewObjectID()
	b.CreatedAt = time.Now()
	s.docs[b.ID] = *doc
	return nil
}

func (s *store[T, P]) Update(_ context.Context, doc *T) error {
	s.docs[P(doc).GetBase().ID] = *doc
	return nil
}

func (s *store[T, P]) FindByID(_ context.Context, tenantID string, id primitive.ObjectID) (*T, error) {
	doc, ok := s.docs[id]
	if !ok || P(&doc).GetBase().TenantID != tenantID {
		return nil, apperr.ErrNotFound
	}
	return &doc, nil
}

func (s *store[T, P]) List(_ context.Context, tenantID string) ([]T, error) {
	out := []T{}
	for _, doc := range s.docs {
		if P(&doc).GetBase().TenantID == tenantID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *store[T, P]) Delete(_ context.Context, _ string, id primitive.ObjectID) error {
	delete(s.docs, id)
	return nil
}

type seq struct{ n int64 }

func (s *seq) Next(context.Context, string, string) (int64, error) {
	s.n++
	return s.n, nil
}

type noInspections struct{}

func (noInspections) Get(context.Context, string, string) (*clients.InspectionSummary, error) {
	return nil, apperr.ErrNotFound
}

func (noInspections) NotifyPayment(context.Context, clients.PaymentDecision) error { return nil }

type tokens map[string]authclient.Identity

func (t tokens) Validate(_ context.Context, token string) (*authclient.Identity, error) {
	id, ok := t[token]
	if !ok {
		return nil, authclient.ErrInvalidToken
	}
	return &id, nil
}

func newRouter() (*gin.Engine, *storage.Memory) {
	gin.SetMode(gin.TestMode)
	files := storage.NewMemory()
	svc := services.NewFinanceService(services.Stores{
		Estimations:    newStore[models.Estimation](),
		Quotations:     newStore[models.Quotation](),
		Payments:       newStore[models.Payment](),
		PurchaseOrders: newStore[models.PurchaseOrder](),
		Expenses:       newStore[models.Expense](),
		Sequences:      &seq{},
	}, files, cache.NewMemory(), noInspections{}, notify.Nop{}, notify.Nop{}, zap.NewNop())

	r := gin.New()
	RegisterRoutes(r, NewFinanceHandler(svc), tokens{
		"client":  {UserID: "c1", TenantID: "t1", Role: authclient.RoleClient},
		"finance": {UserID: "f1", TenantID: "t1", Role: authclient.RoleFinance},
		"staff":   {UserID: "s1", TenantID: "t1", Role: authclient.RoleStaff},
	})
	return r, files
}

func call(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestEstimationRoutes(t *testing.T) {
	r, _ := newRouter()
	body := map[string]any{
		"project_name":        "Harbour Office",
		"title":               "Repairs",
		"labor":               []map[string]any{{"description": "Plasterer", "quantity": 3, "unit_cost": 40}},
		"contingency_percent": 5,
	}

	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodPost, "/inspection-estimation", "", body).Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/inspection-estimation", "client", body).Code)

	w := call(r, http.MethodPost, "/inspection-estimation", "staff", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	est := decode(t, w)
	assert.Equal(t, 126.0, est["total"], "totals are JSON numbers")
	id := est["id"].(string)

	w = call(r, http.MethodPost, "/inspection-estimation/"+id+"/approve", "finance", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "drafts cannot be approved")

	require.Equal(t, http.StatusOK, call(r, http.MethodPost, "/inspection-estimation/"+id+"/submit", "staff", nil).Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/inspection-estimation/"+id+"/approve", "staff", nil).Code)
	w = call(r, http.MethodPost, "/inspection-estimation/"+id+"/approve", "finance", map[string]string{"note": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decode(t, w)["status"])

	w = call(r, http.MethodGet, "/inspection-estimation?status=approved", "staff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["total"])
}

func multipartExpense(t *testing.T, withReceipt bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Taxi"))
	require.NoError(t, mw.WriteField("category", "travel"))
	require.NoError(t, mw.WriteField("amount", "18.40"))
	require.NoError(t, mw.WriteField("incurred_on", "2026-01-05"))
	if withReceipt {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="receipt"; filename="taxi.pdf"`)
		h.Set("Content-Type", "application/pdf")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, _ = part.Write([]byte("%PDF-1.4"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateExpenseMultipart(t *testing.T) {
	r, files := newRouter()
	buf, contentType := multipartExpense(t, true)

	req := httptest.NewRequest(http.MethodPost, "/expenses", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer staff")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	exp := decode(t, w)
	assert.Equal(t, 18.4, exp["amount"])
	assert.Equal(t, "pending", exp["status"])
	require.NotNil(t, exp["receipt"])
	assert.Len(t, files.Objects, 1)

	w = call(r, http.MethodGet, "/expenses/"+exp["id"].(string)+"/receipt", "staff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["url"], "memory://expenses/t1/")
}

func TestCreateExpenseRejectsBadAmount(t *testing.T) {
	r, _ := newRouter()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Taxi"))
	require.NoError(t, mw.WriteField("amount", "lots"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/expenses", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer staff")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount must be a number", decode(t, w)["error"])
}

func TestExportAndDashboard(t *testing.T) {
	r, _ := newRouter()
	po := map[string]any{
		"vendor": map[string]string{"name": "Acme"},
		"items":  []map[string]any{{"description": "Gloves", "quantity": 10, "unit_price": 2.5}},
	}
	require.Equal(t, http.StatusCreated, call(r, http.MethodPost, "/purchase-orders", "staff", po).Code)

	w := call(r, http.MethodGet, "/purchase-orders/export", "staff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "purchase-orders.xlsx")

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/finance/dashboard", "staff", nil).Code)
	w = call(r, http.MethodGet, "/finance/dashboard", "finance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["monthly"], 6)
}

func TestPaymentRoutes(t *testing.T) {
	r, _ := newRouter()
	w := call(r, http.MethodPost, "/payments", "client", map[string]any{
		"purpose": "inspection_fee", "inspection_request_id": primitive.NewObjectID().Hex(),
		"amount": 100, "method": "card",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodPost, "/payments", "client", map[string]any{"purpose": "gift", "amount": 1, "method": "card"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/payments", "client", nil).Code)
	w = call(r, http.MethodGet, "/payments/my", "client", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decode(t, w)["total"])
}
