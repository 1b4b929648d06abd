package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appbooking "github.com/Zhima-Mochi/krishi-prebook/internal/application/booking"
	appcart "github.com/Zhima-Mochi/krishi-prebook/internal/application/cart"
	appcatalog "github.com/Zhima-Mochi/krishi-prebook/internal/application/catalog"
	appidentity "github.com/Zhima-Mochi/krishi-prebook/internal/application/identity"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/id"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/password"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, cart.MirrorTask) {}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	products := memory.NewCatalogRepository()
	offices := memory.NewOfficeDirectory([]catalog.Office{
		{ID: "kb-1", Name: "Krishi Bhavan Thrissur"},
		{ID: "kb-2", Name: "Krishi Bhavan Chalakudy"},
	})
	bookings := memory.NewBookingRepository()
	ids := id.NewUUIDGenerator()

	h := NewHandler(Services{
		Identity: appidentity.NewService(memory.NewUserRepository(), memory.NewSessionStore(), password.NewBcryptHasher(bcrypt.MinCost), ids, nil),
		Catalog:  appcatalog.NewService(products, offices, ids, nil),
		Cart:     appcart.NewService(products, offices, discardQueue{}, nil),
		Confirm:  appbooking.NewConfirmBookingUseCase(products, offices, bookings, ids, nil, nil),
		Bookings: appbooking.NewStatusService(bookings, products, nil, nil),
	}, promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}), nil)
	return h.Router()
}

func call(t *testing.T, router http.Handler, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func register(t *testing.T, router http.Handler, email, role string) string {
	t.Helper()
	var sess sessionResponse
	rec := call(t, router, http.MethodPost, "/register", "", map[string]string{
		"name":     "Test " + role,
		"email":    email,
		"password": "s3cretpass",
		"role":     role,
	}, &sess)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotEmpty(t, sess.Token)
	assert.Equal(t, role, sess.User.Role)
	return sess.Token
}

func createProduct(t *testing.T, router http.Handler, token, name, price string, stock int) productResponse {
	t.Helper()
	var p productResponse
	rec := call(t, router, http.MethodPost, "/products", token, map[string]any{
		"name":      name,
		"price":     price,
		"category":  "Seeds",
		"office_id": "kb-1",
		"stock":     stock,
	}, &p)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return p
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := call(t, router, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = call(t, router, http.MethodGet, "/metrics", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/offices", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	var offices []catalog.Office
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &offices))
	assert.Len(t, offices, 2)
}

func TestAuthAndRoleGuards(t *testing.T) {
	router := newTestRouter(t)
	customer := register(t, router, "farmer@example.com", "customer")

	rec := call(t, router, http.MethodGet, "/cart", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, router, http.MethodGet, "/cart", "not-a-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, router, http.MethodPost, "/products", customer, map[string]any{"name": "x"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, router, http.MethodGet, "/seller/stats", customer, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, router, http.MethodPost, "/logout", customer, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(t, router, http.MethodGet, "/cart", customer, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	var body errorBody
	rec := call(t, router, http.MethodPost, "/register", "", map[string]string{
		"name":     "",
		"email":    "bad",
		"password": "short",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "password")

	register(t, router, "dup@example.com", "customer")
	rec = call(t, router, http.MethodPost, "/register", "", map[string]string{
		"name": "Again", "email": "dup@example.com", "password": "s3cretpass",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, router, http.MethodPost, "/login", "", map[string]string{
		"email": "dup@example.com", "password": "wrongpass",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedBodies(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, router, http.MethodPost, "/login", "", map[string]string{"email": "a@b.c", "extra": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = call(t, router, http.MethodGet, "/nowhere", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	router := newTestRouter(t)
	seller := register(t, router, "officer@example.com", "seller")
	customer := register(t, router, "farmer@example.com", "customer")

	paddy := createProduct(t, router, seller, "Paddy seeds", "40.00", 2)
	assert.Equal(t, "40.00", paddy.Price)

	var line cartLineResponse
	rec := call(t, router, http.MethodPost, "/cart/items", customer, map[string]any{
		"product_id": paddy.ID,
		"quantity":   5,
	}, &line)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, line.Quantity, "capped at stock")
	assert.Equal(t, "kb-1", line.OfficeID)

	var view cartResponse
	call(t, router, http.MethodGet, "/cart", customer, nil, &view)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "80.00", view.Total)

	var confirmed confirmResponse
	rec = call(t, router, http.MethodPost, "/bookings", customer, nil, &confirmed)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, confirmed.Bookings, 1)
	b := confirmed.Bookings[0]
	assert.Equal(t, "pending", b.Status)
	assert.Equal(t, "80.00", b.Total)
	assert.True(t, b.Deadline.Equal(b.BookedAt.Add(24*time.Hour)))

	call(t, router, http.MethodGet, "/cart", customer, nil, &view)
	assert.Empty(t, view.Lines)

	var product productResponse
	call(t, router, http.MethodGet, "/products/"+paddy.ID, "", nil, &product)
	assert.Equal(t, 0, product.Stock)

	var stats statsResponse
	rec = call(t, router, http.MethodGet, "/seller/stats", seller, nil, &stats)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, 1, stats.Bookings)
	assert.Equal(t, 1, stats.PendingCollections)

	var after bookingResponse
	rec = call(t, router, http.MethodPost, "/seller/bookings/"+b.ID+"/confirm", seller, nil, &after)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", after.Status)

	rec = call(t, router, http.MethodPost, "/seller/bookings/"+b.ID+"/collect", seller, nil, &after)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "collected", after.Status)

	rec = call(t, router, http.MethodPost, "/seller/bookings/"+b.ID+"/collect", seller, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, router, http.MethodPost, "/seller/bookings/missing/confirm", seller, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var mine []bookingResponse
	call(t, router, http.MethodGet, "/bookings", customer, nil, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "collected", mine[0].Status)

	var found []bookingResponse
	call(t, router, http.MethodGet, "/seller/bookings?q=paddy", seller, nil, &found)
	assert.Len(t, found, 1)
}

func TestPartialBookingAnswersMultiStatus(t *testing.T) {
	router := newTestRouter(t)
	seller := register(t, router, "officer@example.com", "seller")
	customer := register(t, router, "farmer@example.com", "customer")

	paddy := createProduct(t, router, seller, "Paddy seeds", "40.00", 3)
	okra := createProduct(t, router, seller, "Okra seeds", "12.50", 1)

	for _, id := range []string{paddy.ID, okra.ID} {
		rec := call(t, router, http.MethodPost, "/cart/items", customer, map[string]any{"product_id": id, "quantity": 1}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := call(t, router, http.MethodPut, "/products/"+okra.ID, seller, map[string]any{"stock": 0}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res confirmResponse
	rec = call(t, router, http.MethodPost, "/bookings", customer, nil, &res)
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	require.Len(t, res.Bookings, 1)
	require.Len(t, res.Lines, 2)

	byProduct := map[string]lineOutcomeResponse{}
	for _, l := range res.Lines {
		byProduct[l.ProductID] = l
	}
	assert.Equal(t, "booked", byProduct[paddy.ID].Status)
	assert.Equal(t, "rejected", byProduct[okra.ID].Status)
	assert.NotEmpty(t, byProduct[okra.ID].Error)

	var view cartResponse
	call(t, router, http.MethodGet, "/cart", customer, nil, &view)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, okra.ID, view.Lines[0].ProductID)
}

func TestEmptyCartConfirms(t *testing.T) {
	router := newTestRouter(t)
	customer := register(t, router, "farmer@example.com", "customer")

	var res confirmResponse
	rec := call(t, router, http.MethodPost, "/bookings", customer, nil, &res)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, res.Bookings)
}

func TestCartItemEndpoints(t *testing.T) {
	router := newTestRouter(t)
	seller := register(t, router, "officer@example.com", "seller")
	customer := register(t, router, "farmer@example.com", "customer")
	paddy := createProduct(t, router, seller, "Paddy seeds", "40.00", 4)
	empty := createProduct(t, router, seller, "Sold out", "5.00", 0)

	rec := call(t, router, http.MethodPost, "/cart/items", customer, map[string]any{"product_id": empty.ID}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, router, http.MethodPost, "/cart/items", customer, map[string]any{"quantity": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, router, http.MethodPost, "/cart/items", customer, map[string]any{"product_id": paddy.ID, "quantity": 1}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var line cartLineResponse
	rec = call(t, router, http.MethodPut, "/cart/items/"+paddy.ID, customer, map[string]any{"quantity": 3}, &line)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "120.00", line.Subtotal)

	rec = call(t, router, http.MethodPut, "/cart/items/absent", customer, map[string]any{"quantity": 3}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, router, http.MethodDelete, "/cart/items/"+paddy.ID, customer, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(t, router, http.MethodDelete, "/cart/items/"+paddy.ID, customer, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, router, http.MethodDelete, "/cart", customer, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProductListing(t *testing.T) {
	router := newTestRouter(t)
	seller := register(t, router, "officer@example.com", "seller")
	createProduct(t, router, seller, "Paddy seeds", "40.00", 4)
	createProduct(t, router, seller, "Okra seeds", "12.00", 4)

	var list []productResponse
	rec := call(t, router, http.MethodGet, "/products?category=seeds&q=okra", "", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list, 1)

	var groups []officeGroupResponse
	call(t, router, http.MethodGet, "/products?group=office", "", nil, &groups)
	require.Len(t, groups, 1)
	assert.Equal(t, "Krishi Bhavan Thrissur", groups[0].OfficeName)

	rec = call(t, router, http.MethodGet, "/products?group=category", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, router, http.MethodGet, "/products/missing", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
