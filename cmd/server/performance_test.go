package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvaluateCaching verifies that a repeated evaluation is served from the
// response cache: the evaluation ID is frozen with the rest of the body.
func TestEvaluateCaching(t *testing.T) {
	r := newTestRouter(t)

	body := map[string]interface{}{
		"ship":    testShip(),
		"markets": testMarkets(),
	}

	first := postJSON(t, r, "/evaluate", body)
	require.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, r, "/evaluate", body)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.Body.String(), second.Body.String())

	// A different ship misses the cache
	body["ship"] = map[string]interface{}{
		"id":          "sister-ship",
		"quality":     0.4,
		"market_fit":  map[string]float64{"north-sea": 1},
		"segment_fit": map[string]float64{"early-adopters": 0.5, "mainstream": 1},
	}
	third := postJSON(t, r, "/evaluate", body)
	require.Equal(t, http.StatusOK, third.Code)
	assert.NotEqual(t, first.Body.String(), third.Body.String())
}

// TestConcurrentEvaluations hammers the evaluation endpoints from several
// goroutines and requires every response to be well formed. Volume stays
// under the per-IP rate limit burst.
func TestConcurrentEvaluations(t *testing.T) {
	r := newTestRouter(t)

	payload, err := json.Marshal(map[string]interface{}{
		"ship":    testShip(),
		"markets": testMarkets(),
	})
	require.NoError(t, err)

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				w := httptest.NewRecorder()
				req, _ := http.NewRequest("POST", "/evaluate", bytes.NewReader(payload))
				req.Header.Set("Content-Type", "application/json")
				r.ServeHTTP(w, req)

				if w.Code != http.StatusOK {
					errs <- assert.AnError
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	assert.Empty(t, errs)
}

// TestRateLimitEnforced exceeds the per-IP burst and expects 429s with the
// standard headers.
func TestRateLimitEnforced(t *testing.T) {
	r := newTestRouter(t)

	// Default config: 60 per minute with a 1.5x burst multiplier, so the
	// in-memory limiter admits 90 requests before blocking.
	var blocked *httptest.ResponseRecorder
	for i := 0; i < 95; i++ {
		w := getJSON(t, r, "/health")
		if w.Code == http.StatusTooManyRequests {
			blocked = w
			break
		}
	}

	require.NotNil(t, blocked, "rate limiter never engaged")
	assert.NotEmpty(t, blocked.Header().Get("X-RateLimit-Limit"))
}

// TestResponseCompression asks for gzip on a payload-heavy endpoint and
// decodes the response back.
func TestResponseCompression(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/catalog/markets", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	if w.Header().Get("Content-Encoding") != "gzip" {
		// Body stayed under the compression threshold
		assert.Contains(t, w.Body.String(), "academia")
		return
	}

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "academia")
}

// TestEvaluateLatency is a coarse regression guard: a single evaluation over
// the inline fixture should complete in well under a second.
func TestEvaluateLatency(t *testing.T) {
	r := newTestRouter(t)

	start := time.Now()
	w := postJSON(t, r, "/evaluate", map[string]interface{}{
		"ship":    testShip(),
		"markets": testMarkets(),
	})
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, elapsed, time.Second)
}
