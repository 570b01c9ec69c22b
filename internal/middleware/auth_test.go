package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/backend/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func TestAuthRequired_NoHeader(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
	}

	for _, authHeader := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", authHeader)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	token, _ := utils.GenerateToken("user-uuid-1", "user@example.com", 24)

	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"user_id": GetUserID(c),
			"email":   GetEmail(c),
		})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != "" {
		t.Errorf("expected empty string for missing user_id, got %q", id)
	}

	c.Set(ContextUserID, "user-uuid-42")
	if id := GetUserID(c); id != "user-uuid-42" {
		t.Errorf("expected %q, got %q", "user-uuid-42", id)
	}
}

func TestGetEmail(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if email := GetEmail(c); email != "" {
		t.Errorf("expected empty string for missing email, got %q", email)
	}

	c.Set(ContextEmail, "user@example.com")
	if email := GetEmail(c); email != "user@example.com" {
		t.Errorf("expected %q, got %q", "user@example.com", email)
	}
}

func TestContextConstants(t *testing.T) {
	if ContextUserID != "user_id" {
		t.Errorf("ContextUserID = %q, expected %q", ContextUserID, "user_id")
	}
	if ContextEmail != "email" {
		t.Errorf("ContextEmail = %q, expected %q", ContextEmail, "email")
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"password masked", `{"password":"hunter2"}`, `{"password":"***"}`},
		{"no sensitive keys", `{"email":"a@b.c"}`, `{"email":"a@b.c"}`},
		{"refresh token masked", `{"refresh_token": "abc123"}`, `{"refresh_token": "***"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskSensitiveFields(tt.body)
			if got != tt.want {
				t.Errorf("maskSensitiveFields(%q) = %q, expected %q", tt.body, got, tt.want)
			}
		})
	}
}
