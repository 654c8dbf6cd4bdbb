package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhafen/ship/internal/monitoring"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGetSet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Close()

	_, found := c.Get("missing")
	assert.False(t, found)

	c.Set("key", []byte("value"))
	data, found := c.Get("key")
	require.True(t, found)
	assert.Equal(t, []byte("value"), data)
}

func TestExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	defer c.Close()

	c.Set("key", []byte("value"))
	time.Sleep(20 * time.Millisecond)

	_, found := c.Get("key")
	assert.False(t, found)
}

func TestDeleteAndClear(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	assert.Equal(t, 2, c.Size())

	c.Delete("a")
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestStats(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Close()

	c.Set("a", []byte("1"))
	stats := c.Stats()
	assert.Equal(t, 1, stats["total_items"])
	assert.Equal(t, 0, stats["expired_items"])
	assert.Equal(t, 60.0, stats["ttl_seconds"])
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	defer c.Close()
	metrics := monitoring.NewMetrics()

	calls := 0
	r := gin.New()
	r.Use(c.Middleware(metrics))
	r.POST("/evaluate", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"buy_in": 20.0})
	})

	body := `{"ship":{"id":"X"}}`
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(body))
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "buy_in")
	}

	// Second request is served from cache.
	assert.Equal(t, 1, calls)

	// Different body misses.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"ship":{"id":"Y"}}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, 2, calls)
}

func TestMiddlewareSkipsOtherPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	defer c.Close()
	metrics := monitoring.NewMetrics()

	calls := 0
	r := gin.New()
	r.Use(c.Middleware(metrics))
	r.POST("/fleet/ships", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/fleet/ships", strings.NewReader(`{}`))
		r.ServeHTTP(w, req)
	}
	assert.Equal(t, 2, calls)
}
