package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecommerce-platform/internal/broker"
	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/service"
	"ecommerce-platform/internal/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	err error
}

func (p *stubPublisher) Publish(_ context.Context, topic string, ev models.Event) broker.PublishResult {
	env, _ := models.NewEnvelope(ev)
	return broker.PublishResult{Topic: topic, Kind: ev.Kind(), Key: env.Key(), Err: p.err}
}

type stubBroker bool

func (b stubBroker) Connected() bool { return bool(b) }

func newRouter(t *testing.T, pub *stubPublisher, checks map[string]ReadinessCheck) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memory.New()
	emitter := service.NewEmitter(pub, nil)
	h := NewHandler(Options{
		Orders:   service.NewOrderService(st, emitter, nil),
		Products: service.NewProductService(st, emitter, nil),
		Users:    service.NewUserService(st, emitter),
		Checks:   checks,
		Broker:   stubBroker(false),
	})
	r := gin.New()
	h.SetupRoutes(r)
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orderBody() map[string]interface{} {
	return map[string]interface{}{
		"userId":          "u-1",
		"items":           []map[string]interface{}{{"productId": "p-1", "name": "Widget", "price": 10, "quantity": 2}},
		"totalAmount":     20,
		"shippingAddress": "1 Main St",
		"paymentMethod":   "card",
	}
}

func createOrder(t *testing.T, r http.Handler) models.Order {
	t.Helper()
	w := do(r, http.MethodPost, "/api/v1/orders", orderBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	return order
}

func TestOrderLifecycle(t *testing.T) {
	r := newRouter(t, &stubPublisher{}, nil)

	w := do(r, http.MethodPost, "/api/v1/orders", orderBody())
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, service.DeliveryPublished, w.Header().Get(DeliveryHeader))

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NotEmpty(t, order.ID)

	w = do(r, http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/orders/user/u-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var mine []models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w = do(r, http.MethodPost, "/api/v1/orders/"+order.ID+"/ship", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"currentStatus":"cancelled"`)
}

func TestOrderErrors(t *testing.T) {
	r := newRouter(t, &stubPublisher{}, nil)
	order := createOrder(t, r)

	body := orderBody()
	delete(body, "shippingAddress")
	w := do(r, http.MethodPost, "/api/v1/orders", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "shippingAddress")

	w = do(r, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", map[string]string{"status": "processing"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/orders/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/orders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublishFailureStillSucceeds(t *testing.T) {
	r := newRouter(t, &stubPublisher{err: errors.New("broker down")}, nil)

	w := do(r, http.MethodPost, "/api/v1/orders", orderBody())
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, service.DeliveryFailed, w.Header().Get(DeliveryHeader))
}

func TestProductRoutes(t *testing.T) {
	r := newRouter(t, &stubPublisher{}, nil)

	w := do(r, http.MethodPost, "/api/v1/products", map[string]interface{}{"name": "Lamp", "price": 20, "inventory": 3})
	require.Equal(t, http.StatusCreated, w.Code)
	var p models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, models.DefaultProductImage, p.ImageURL)

	w = do(r, http.MethodPut, "/api/v1/products/"+p.ID+"/inventory", map[string]int{"inventory": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/products/"+p.ID+"/inventory", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/products/"+p.ID+"/inventory", map[string]int{"inventory": 0})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.DeliveryPublished, w.Header().Get(DeliveryHeader))

	w = do(r, http.MethodPatch, "/api/v1/products/"+p.ID, map[string]string{"category": "home"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(DeliveryHeader))

	w = do(r, http.MethodGet, "/api/v1/products?category=home", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list []models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestUserRoutes(t *testing.T) {
	r := newRouter(t, &stubPublisher{}, nil)
	body := map[string]string{"name": "Ada", "email": "ada@example.com", "password": "secret1"}

	w := do(r, http.MethodPost, "/api/v1/users/register", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "secret1")
	assert.NotContains(t, w.Body.String(), "password")

	w = do(r, http.MethodPost, "/api/v1/users/register", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/users/login", map[string]string{"email": "ada@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/v1/users/login", map[string]string{"email": "ada@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestHealthAndReadiness(t *testing.T) {
	ok := newRouter(t, &stubPublisher{}, map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, do(ok, http.MethodGet, "/health", nil).Code)

	w := do(ok, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"broker_connected":false`)

	down := newRouter(t, &stubPublisher{}, map[string]ReadinessCheck{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})
	w = do(down, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
