package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/api/product"
	"stockledger/internal/api/report"
	"stockledger/internal/api/router"
	"stockledger/internal/api/sale"
	"stockledger/internal/api/user"
	"stockledger/internal/domain"
	"stockledger/internal/pkg/cache"
	"stockledger/internal/pkg/database/dbtest"
	"stockledger/internal/pkg/logger"
	"stockledger/internal/pkg/token"
	"stockledger/internal/repository/productrepo"
	"stockledger/internal/repository/salerepo"
	"stockledger/internal/repository/userrepo"
	"stockledger/internal/service/productservice"
	"stockledger/internal/service/reportservice"
	"stockledger/internal/service/saleservice"
	"stockledger/internal/service/userservice"
)

type server struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	gw := dbtest.NewSQLite(t)
	mr := miniredis.RunT(t)
	redisClient, err := cache.NewRedisClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	productSvc := productservice.NewService(productrepo.NewProductRepository(gw, redisClient, time.Minute, log), log)
	saleSvc := saleservice.NewService(salerepo.NewSaleRepository(gw, redisClient, log), log)
	reportSvc := reportservice.NewService(saleSvc, productSvc)
	tokens := token.NewService("test-secret", time.Hour)
	userSvc := userservice.NewService(userrepo.NewUserRepository(gw, log), tokens, log)

	_, err = userSvc.EnsureAdmin(ctx, domain.UserRegistration{Username: "admin", Email: "admin@example.com", Password: "admin-pass"})
	require.NoError(t, err)

	s := &server{t: t, handler: router.NewRouter(router.Dependencies{
		ProductHandler: product.NewHandler(productSvc, saleSvc, log),
		SaleHandler:    sale.NewHandler(saleSvc, log),
		ReportHandler:  report.NewHandler(reportSvc, log),
		UserHandler:    user.NewHandler(userSvc, log),
		Tokens:         tokens,
		Cache:          redisClient,
		Logger:         log,
	})}
	s.token = s.login("admin", "admin-pass")
	return s
}

func (s *server) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *server) login(username, password string) string {
	s.t.Helper()
	saved := s.token
	s.token = ""
	defer func() { s.token = saved }()

	rr := s.do(http.MethodPost, "/v1/login", user.LoginRequest{Username: username, Password: password})
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())
	var tok user.TokenResponse
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &tok))
	return tok.Token
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func widget() map[string]interface{} {
	return map[string]interface{}{
		"name":           "Widget",
		"price":          10000,
		"margin_naver":   10,
		"margin_coupang": 15,
		"margin_self":    20,
		"quantity":       50,
	}
}

func TestPingAndSwagger(t *testing.T) {
	s := newServer(t)

	rr := s.do(http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())

	rr = s.do(http.MethodGet, "/swagger/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "openapi: 3.0.3"))
}

func TestV1RequiresToken(t *testing.T) {
	s := newServer(t)
	s.token = ""

	rr := s.do(http.MethodGet, "/v1/products", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[domain.ErrorResponse](t, rr).Category)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newServer(t)
	s.token = ""

	rr := s.do(http.MethodPost, "/v1/login", user.LoginRequest{Username: "admin", Password: "nope"})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWidgetScenario(t *testing.T) {
	s := newServer(t)

	rr := s.do(http.MethodPost, "/v1/products", widget())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	productID := decode[product.CreatedResponse](t, rr).ID

	rr = s.do(http.MethodPost, "/v1/sales", sale.SaleRequest{ProductID: productID, SaleDate: "2024-01-15", Quantity: 5, Platform: "naver"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	saleID := decode[sale.CreatedResponse](t, rr).ID

	rr = s.do(http.MethodPost, "/v1/sales", sale.SaleRequest{ProductID: productID, SaleDate: "2024-01-15", Quantity: 50, Platform: "naver"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode[domain.ErrorResponse](t, rr).Category)

	rr = s.do(http.MethodGet, "/v1/products/"+itoa(productID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 45, decode[domain.Product](t, rr).Quantity)

	rr = s.do(http.MethodGet, "/v1/sales?start_date=2024-01-15&end_date=2024-01-15", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	records := decode[[]map[string]interface{}](t, rr)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-15", records[0]["sale_date"])
	assert.Equal(t, "Widget", records[0]["product_name"])

	rr = s.do(http.MethodGet, "/v1/sales/summary?start_date=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[domain.SalesSummary](t, rr)
	assert.Equal(t, int64(1), summary.TotalSales)
	assert.True(t, decimal.NewFromInt(50000).Equal(summary.TotalRevenue), summary.TotalRevenue.String())
	assert.True(t, decimal.NewFromInt(45000).Equal(summary.TotalProfit), summary.TotalProfit.String())
	require.Len(t, summary.TopProducts, 1)
	assert.Equal(t, productID, summary.TopProducts[0].ProductID)

	rr = s.do(http.MethodGet, "/v1/products/"+itoa(productID)+"/sales", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rr), 1)

	rr = s.do(http.MethodDelete, "/v1/sales/"+itoa(saleID), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(http.MethodGet, "/v1/products/"+itoa(productID), nil)
	assert.Equal(t, 50, decode[domain.Product](t, rr).Quantity)

	rr = s.do(http.MethodDelete, "/v1/sales/"+itoa(saleID), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProductLifecycle(t *testing.T) {
	s := newServer(t)

	rr := s.do(http.MethodPost, "/v1/products", widget())
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[product.CreatedResponse](t, rr).ID
	path := "/v1/products/" + itoa(id)

	rr = s.do(http.MethodPatch, path, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPatch, path, map[string]interface{}{"quantity": 7})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[domain.Product](t, rr)
	assert.Equal(t, 7, updated.Quantity)
	assert.Equal(t, "Widget", updated.Name)

	rr = s.do(http.MethodPatch, path, map[string]interface{}{"margin_self": 120})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodGet, "/v1/products?search=Wid&sort=value", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]domain.ProductListing](t, rr), 1)

	rr = s.do(http.MethodGet, "/v1/inventory/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(7), decode[domain.InventorySummary](t, rr).TotalQuantity)

	rr = s.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/v1/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBulkUpdate(t *testing.T) {
	s := newServer(t)

	rr := s.do(http.MethodPost, "/v1/products", widget())
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[product.CreatedResponse](t, rr).ID

	rr = s.do(http.MethodPost, "/v1/products/bulk-update", map[string]interface{}{
		itoa(id): map[string]interface{}{"price": 12000},
		"999":    map[string]interface{}{"price": 1},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode[product.BulkUpdateResponse](t, rr)
	assert.True(t, body.Success)
	require.Len(t, body.Result, 2)
	assert.True(t, body.Result[0].Success)
	assert.False(t, body.Result[1].Success)
	assert.Equal(t, "product not found", body.Result[1].Error)

	rr = s.do(http.MethodPost, "/v1/products/bulk-update", []int{1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, decode[product.BulkUpdateResponse](t, rr).Success)
}

func TestReportDefaultsToWeek(t *testing.T) {
	s := newServer(t)

	rr := s.do(http.MethodGet, "/v1/reports", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]interface{}](t, rr)
	assert.Equal(t, "week", body["period"])
	assert.Contains(t, body, "sales_summary")
	assert.Contains(t, body, "inventory_summary")
}

func TestRegisterRequiresAdmin(t *testing.T) {
	s := newServer(t)

	rr := s.do(http.MethodPost, "/v1/users", domain.UserRegistration{Username: "clerk", Email: "clerk@example.com", Password: "clerk-pass"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(http.MethodPost, "/v1/users", domain.UserRegistration{Username: "clerk", Email: "other@example.com", Password: "clerk-pass"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	s.token = s.login("clerk", "clerk-pass")

	rr = s.do(http.MethodGet, "/v1/me", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "clerk", decode[domain.User](t, rr).Username)

	rr = s.do(http.MethodPost, "/v1/users", domain.UserRegistration{Username: "x", Email: "x@example.com", Password: "whatever1"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
