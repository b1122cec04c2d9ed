package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestRateLimitMiddlewareRejectsBurstOverflow(t *testing.T) {
	var served int
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	})
	handler := rateLimitMiddleware(inner, 1, 1)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", res.Code)
	}

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header for 429 response")
	}
	if served != 1 {
		t.Fatalf("expected exactly one request served, got %d", served)
	}
}

func TestBackpressureMiddlewareShedsWhenFull(t *testing.T) {
	occupy := make(chan struct{})
	release := make(chan struct{})
	var occupyOnce sync.Once
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		occupyOnce.Do(func() { close(occupy) })
		<-release
		w.WriteHeader(http.StatusOK)
	})
	handler := backpressureMiddleware(inner, 1, 20*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	}()
	<-occupy

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the only slot is held, got %d", res.Code)
	}

	close(release)
	wg.Wait()

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	if res2.Code != http.StatusOK {
		t.Fatalf("expected the freed slot to serve again, got %d", res2.Code)
	}
}
