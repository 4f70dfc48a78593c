package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eyc/invoicing/internal/infrastructure/cache"
)

type brokenStore struct{}

func (brokenStore) MarkProcessed(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}
func (brokenStore) IsProcessed(context.Context, string) (bool, error) { return false, nil }
func (brokenStore) Forget(context.Context, string) error              { return nil }
func (brokenStore) Close() error                                      { return nil }

func newIdempotentRouter(t *testing.T, status *int) (*gin.Engine, *cache.InMemoryIdempotencyStore) {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	router := gin.New()
	router.Use(RequestID(), Idempotency(store, time.Hour, zaptest.NewLogger(t)))
	router.POST("/api/v1/invoices/generate", func(c *gin.Context) {
		c.Status(*status)
	})
	return router, store
}

func postWithKey(router *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate", nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_RejectsRepeat(t *testing.T) {
	status := http.StatusOK
	router, store := newIdempotentRouter(t, &status)

	assert.Equal(t, http.StatusOK, postWithKey(router, "run-2025").Code)

	w := postWithKey(router, "run-2025")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_DUPLICATE_REQUEST")

	assert.Equal(t, http.StatusOK, postWithKey(router, "run-2026").Code)
	assert.Equal(t, 2, store.Size())
}

func TestIdempotency_WithoutHeader(t *testing.T) {
	status := http.StatusOK
	router, store := newIdempotentRouter(t, &status)

	assert.Equal(t, http.StatusOK, postWithKey(router, "").Code)
	assert.Equal(t, http.StatusOK, postWithKey(router, "").Code)
	assert.Equal(t, 0, store.Size())
}

func TestIdempotency_FailureReleasesKey(t *testing.T) {
	status := http.StatusBadGateway
	router, store := newIdempotentRouter(t, &status)

	assert.Equal(t, http.StatusBadGateway, postWithKey(router, "run-2025").Code)
	assert.Equal(t, 0, store.Size())

	status = http.StatusOK
	assert.Equal(t, http.StatusOK, postWithKey(router, "run-2025").Code, "retry after failure is allowed")
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	status := http.StatusOK
	router, _ := newIdempotentRouter(t, &status)

	w := postWithKey(router, strings.Repeat("k", MaxIdempotencyKeyLength+1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdempotency_StoreErrorFailsOpen(t *testing.T) {
	router := gin.New()
	router.Use(Idempotency(brokenStore{}, time.Hour, zaptest.NewLogger(t)))
	router.POST("/run", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		req.Header.Set(HeaderIdempotencyKey, "k")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}
}
