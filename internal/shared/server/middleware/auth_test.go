package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"seo-analysis-backend/internal/shared/auth"
)

func newAuthRouter(env string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(env))
	router.GET("/api/v1/credits", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c)})
	})
	router.OPTIONS("/api/v1/credits", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router := newAuthRouter("dev")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/credits", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthRejectsMissingIdentity(t *testing.T) {
	router := newAuthRouter("dev")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthRejectsGuestInProduction(t *testing.T) {
	router := newAuthRouter("production")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "mw-secret")
	token, err := auth.SignJWT(auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"}})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	router := newAuthRouter("production")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != `{"userId":"user-42"}` {
		t.Fatalf("unexpected body %s", body)
	}
}
