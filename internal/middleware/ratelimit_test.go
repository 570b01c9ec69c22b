package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/sign-in", rl.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": "Signed in"})
	})
	return r
}

func postSignIn(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sign-in", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_WithinBurstAllowed(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(1, 3))

	for i := 0; i < 3; i++ {
		if w := postSignIn(router, "203.0.113.7:40000"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status = %d", i, w.Code)
		}
	}
}

func TestRateLimiter_OverBurstRejected(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(0.1, 2))

	postSignIn(router, "203.0.113.7:40000")
	postSignIn(router, "203.0.113.7:40000")
	w := postSignIn(router, "203.0.113.7:40000")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, expected 429 after burst exhausted", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header on 429")
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["error"] == "" {
		t.Errorf("expected an error message, got %v", body)
	}
}

func TestRateLimiter_ClientsGetSeparateBuckets(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(0.1, 1))

	if w := postSignIn(router, "203.0.113.7:40000"); w.Code != http.StatusOK {
		t.Fatalf("first client: status = %d", w.Code)
	}
	if w := postSignIn(router, "203.0.113.7:40000"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first client over budget: status = %d, expected 429", w.Code)
	}

	// A different IP still has a full bucket.
	if w := postSignIn(router, "198.51.100.9:40000"); w.Code != http.StatusOK {
		t.Errorf("second client: status = %d, expected 200", w.Code)
	}
}

func TestRateLimiter_BucketRefills(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(100, 1))

	postSignIn(router, "203.0.113.7:40000")
	if w := postSignIn(router, "203.0.113.7:40000"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, expected 429 with an empty bucket", w.Code)
	}

	time.Sleep(50 * time.Millisecond)

	if w := postSignIn(router, "203.0.113.7:40000"); w.Code != http.StatusOK {
		t.Errorf("status = %d, expected 200 after refill", w.Code)
	}
}
