package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ukydev/qr-attendance/internal/auth"
	"github.com/ukydev/qr-attendance/internal/models"
)

func TestAuthMiddleware_Authenticate(t *testing.T) {
	authService := auth.NewService("test-secret", time.Hour)
	middleware := NewAuthMiddleware(authService)

	// Test successful authentication
	t.Run("valid token", func(t *testing.T) {
		identity := &models.Identity{Name: "Jane Roe", Email: "jane@example.com", EmployeeID: "EMP54321"}
		token, _ := authService.GenerateToken(identity)

		req := httptest.NewRequest("GET", "/api/attempts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			got, ok := GetIdentityFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, identity, got)
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	// Test missing authorization header
	t.Run("missing authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/attempts", nil)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	// Test token without the Bearer scheme
	t.Run("malformed authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	// Test invalid token
	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/attempts", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	// Test token signed with another secret
	t.Run("foreign token", func(t *testing.T) {
		other := auth.NewService("other-secret", time.Hour)
		token, _ := other.GenerateToken(&models.Identity{EmployeeID: "EMP00001"})

		req := httptest.NewRequest("GET", "/api/attempts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	// Test skip auth paths
	for _, path := range []string{"/api/auth/login", "/api/verifier/scan", "/api/emitter/generate", "/api/location", "/health"} {
		t.Run("skip auth "+path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				_, ok := GetClaimsFromContext(r.Context())
				assert.False(t, ok)
			})

			middleware.Authenticate(handler).ServeHTTP(w, req)
			assert.True(t, handlerCalled)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	middleware := NewRateLimitMiddleware()

	t.Run("rate limit not exceeded", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/verifier/scan", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		rateLimitHandler := middleware.RateLimit(5, 60)(handler)
		rateLimitHandler.ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rate limit exceeded", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/verifier/scan", nil)
		req.RemoteAddr = "192.168.1.2:12345"
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		rateLimitHandler := middleware.RateLimit(1, 60)(handler)

		// First request should succeed
		rateLimitHandler.ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)

		// Second request should be rate limited
		w = httptest.NewRecorder()
		handlerCalled = false
		rateLimitHandler.ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("window expires", func(t *testing.T) {
		m := NewRateLimitMiddleware()
		now := time.Unix(1700000000, 0)
		m.now = func() time.Time { return now }
		handler := m.RateLimit(1, 10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest("POST", "/api/verifier/scan", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.1")

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		now = now.Add(11 * time.Second)
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		calls := 0
		handler := middleware.RateLimit(0, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
		for i := 0; i < 3; i++ {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/verifier/scan", nil))
		}
		assert.Equal(t, 3, calls)
	})
}

func TestGetClaimsFromContext(t *testing.T) {
	claims := &models.Claims{
		EmployeeID: "EMP12345",
		Name:       "John Doe",
		Email:      "john@example.com",
	}

	ctx := context.WithValue(context.Background(), ClaimsContextKey, claims)

	retrievedClaims, ok := GetClaimsFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, claims.EmployeeID, retrievedClaims.EmployeeID)
	assert.Equal(t, claims.Name, retrievedClaims.Name)

	identity, ok := GetIdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "john@example.com", identity.Email)

	// Test with no claims in context
	emptyCtx := context.Background()
	_, ok = GetClaimsFromContext(emptyCtx)
	assert.False(t, ok)
	_, ok = GetIdentityFromContext(emptyCtx)
	assert.False(t, ok)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.9:4321"
	assert.Equal(t, "192.168.1.9", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, "10.1.1.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.2.2.2, 10.3.3.3")
	assert.Equal(t, "10.2.2.2", getClientIP(req))
}
