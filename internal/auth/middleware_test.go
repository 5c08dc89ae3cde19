package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	protected := router.Group("/", svc.Middleware(), svc.CSRFMiddleware())
	handler := func(c *gin.Context) {
		userID, _ := UserIDFromContext(c)
		token, _ := AuthTokenFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "token": token})
	}
	protected.GET("/me", handler)
	protected.POST("/me", handler)
	return router
}

func TestMiddlewareAcceptsBearerAndCookie(t *testing.T) {
	db := openTestDB(t)
	insertUser(t, db, 4)
	svc := NewService(db, nil, time.Hour)
	token, err := svc.IssueToken(context.Background(), 4)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	router := newAuthRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer: expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: token})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie: expected 200, got %d", rec.Code)
	}
}

func TestMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	svc := NewService(openTestDB(t), nil, time.Hour)
	router := newAuthRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestCSRFRequiredForCookieMutations(t *testing.T) {
	db := openTestDB(t)
	insertUser(t, db, 5)
	svc := NewService(db, nil, time.Hour)
	token, err := svc.IssueToken(context.Background(), 5)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	router := newAuthRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/me", nil)
	req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/me", nil)
	req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: token})
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "csrf-1"})
	req.Header.Set(svc.CSRFHeaderName(), "csrf-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with matching csrf token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer requests should skip csrf, got %d", rec.Code)
	}
}
