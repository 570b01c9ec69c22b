package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newCORSRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/api/team", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": "Acme"})
	})
	r.POST("/api/billing/webhook", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"received": true})
	})
	return r
}

func TestCORS_SetsAllowOrigin(t *testing.T) {
	router := newCORSRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/team", nil)
	req.Header.Set("Origin", "https://app.teamforge.example")
	router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin header should be set")
	}
}

func TestCORS_PreflightSucceeds(t *testing.T) {
	router := newCORSRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/team", nil)
	req.Header.Set("Origin", "https://app.teamforge.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent && w.Code != http.StatusOK {
		t.Errorf("preflight should return 200 or 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("Access-Control-Allow-Headers should be set")
	}
}

func TestCORS_AllowsWebhookSignatureHeader(t *testing.T) {
	router := newCORSRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/billing/webhook", nil)
	req.Header.Set("Origin", "https://billing.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-Webhook-Signature")
	router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("Access-Control-Allow-Headers should be set for the signature header")
	}
}

func TestCORS_AllowsCredentials(t *testing.T) {
	router := newCORSRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/team", nil)
	req.Header.Set("Origin", "https://app.teamforge.example")
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, expected true", got)
	}
}
