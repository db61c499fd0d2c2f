package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newCORSRouter(cfg CORSConfig) *gin.Engine {
	router := gin.New()
	router.Use(CORSWithConfig(cfg))
	router.GET("/wallet", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func doCORS(router *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/wallet", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS())
	router.GET("/wallet", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	t.Run("empty default whitelist sets no CORS headers", func(t *testing.T) {
		w := doCORS(router, "GET", "http://unknown-frontend.example")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("same-origin request passes through", func(t *testing.T) {
		w := doCORS(router, "GET", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("preflight answers 204 even for unlisted origins", func(t *testing.T) {
		w := doCORS(router, "OPTIONS", "http://unknown-frontend.example")

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSWithConfig(t *testing.T) {
	t.Run("echoes a whitelisted origin", func(t *testing.T) {
		router := newCORSRouter(CORSConfig{
			AllowOrigins:     []string{"https://trade.peertrade.example"},
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
		})

		w := doCORS(router, "GET", "https://trade.peertrade.example")

		assert.Equal(t, "https://trade.peertrade.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("matches any origin on the whitelist", func(t *testing.T) {
		router := newCORSRouter(CORSConfig{
			AllowOrigins: []string{"https://trade.peertrade.example", "https://admin.peertrade.example"},
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Content-Type"},
		})

		w := doCORS(router, "GET", "https://admin.peertrade.example")
		assert.Equal(t, "https://admin.peertrade.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("ignores an unlisted origin", func(t *testing.T) {
		router := newCORSRouter(CORSConfig{
			AllowOrigins: []string{"https://trade.peertrade.example"},
		})

		w := doCORS(router, "GET", "http://phishing.example")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard allows every origin without credentials", func(t *testing.T) {
		router := newCORSRouter(CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Content-Type"},
			// Credentials with a wildcard origin would be rejected by
			// browsers, so the middleware must not emit the header
			AllowCredentials: true,
		})

		w := doCORS(router, "GET", "https://anything.example")

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("Max-Age is rendered in whole seconds", func(t *testing.T) {
		for _, tc := range []struct {
			duration time.Duration
			expected string
		}{
			{time.Hour, "3600"},
			{12 * time.Hour, "43200"},
			{30 * time.Second, "30"},
		} {
			router := newCORSRouter(CORSConfig{
				AllowOrigins: []string{"https://trade.peertrade.example"},
				AllowMethods: []string{"GET"},
				AllowHeaders: []string{"Content-Type"},
				MaxAge:       tc.duration,
			})

			w := doCORS(router, "GET", "https://trade.peertrade.example")
			assert.Equal(t, tc.expected, w.Header().Get("Access-Control-Max-Age"))
		}
	})

	t.Run("exposes configured response headers", func(t *testing.T) {
		router := newCORSRouter(CORSConfig{
			AllowOrigins:  []string{"https://trade.peertrade.example"},
			AllowMethods:  []string{"GET"},
			AllowHeaders:  []string{"Content-Type"},
			ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining"},
		})

		w := doCORS(router, "GET", "https://trade.peertrade.example")
		assert.Equal(t, "X-Request-ID, X-RateLimit-Remaining", w.Header().Get("Access-Control-Expose-Headers"))
	})

	t.Run("preflight lists the allowed methods and headers", func(t *testing.T) {
		router := newCORSRouter(CORSConfig{
			AllowOrigins: []string{"https://trade.peertrade.example"},
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Content-Type", "X-User-ID"},
		})

		w := doCORS(router, "OPTIONS", "https://trade.peertrade.example")

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, X-User-ID", w.Header().Get("Access-Control-Allow-Headers"))
	})
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	// The gateway serves the real frontends; nothing is whitelisted until
	// the deployment configures it
	assert.Empty(t, cfg.AllowOrigins)
	assert.Contains(t, cfg.AllowMethods, "GET")
	assert.Contains(t, cfg.AllowMethods, "POST")
	assert.Contains(t, cfg.AllowHeaders, "Content-Type")
	assert.Contains(t, cfg.AllowHeaders, "X-User-ID")
	assert.True(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/wallet", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	t.Run("generates an ID when none is provided", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/wallet", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.NotEmpty(t, w.Body.String())
	})

	t.Run("propagates the caller's ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/wallet", nil)
		req.Header.Set("X-Request-ID", "req-escrow-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-escrow-42", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "req-escrow-42", w.Body.String())
	})
}

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1, 32) // 16 random bytes, hex encoded
}

func TestSecure(t *testing.T) {
	router := gin.New()
	router.Use(Secure())
	router.GET("/wallet", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/wallet", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))

	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "frame-ancestors 'none'")

	// HSTS stays off until the deployment terminates TLS itself
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	assert.Contains(t, w.Header().Get("Permissions-Policy"), "camera=()")
}

func TestSecureWithConfig(t *testing.T) {
	serve := func(cfg SecurityConfig) *httptest.ResponseRecorder {
		router := gin.New()
		router.Use(SecureWithConfig(cfg))
		router.GET("/wallet", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		req := httptest.NewRequest("GET", "/wallet", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("custom CSP directive", func(t *testing.T) {
		w := serve(SecurityConfig{
			CSPEnabled:   true,
			CSPDirective: "default-src 'none'",
		})

		assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))
		assert.Empty(t, w.Header().Get("Permissions-Policy"))
	})

	t.Run("HSTS with subdomains and preload", func(t *testing.T) {
		w := serve(SecurityConfig{
			HSTSEnabled:           true,
			HSTSMaxAge:            63072000,
			HSTSIncludeSubdomains: true,
			HSTSPreload:           true,
		})

		assert.Equal(t, "max-age=63072000; includeSubDomains; preload",
			w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("HSTS with max-age only", func(t *testing.T) {
		w := serve(SecurityConfig{
			HSTSEnabled: true,
			HSTSMaxAge:  31536000,
		})

		assert.Equal(t, "max-age=31536000", w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("optional headers can all be disabled", func(t *testing.T) {
		w := serve(SecurityConfig{})

		// The non-negotiable headers stay
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

		assert.Empty(t, w.Header().Get("Content-Security-Policy"))
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
		assert.Empty(t, w.Header().Get("Permissions-Policy"))
	})
}

func TestDefaultSecurityConfig(t *testing.T) {
	cfg := DefaultSecurityConfig()

	assert.False(t, cfg.HSTSEnabled)
	assert.Equal(t, 31536000, cfg.HSTSMaxAge)
	assert.True(t, cfg.HSTSIncludeSubdomains)

	assert.True(t, cfg.CSPEnabled)
	assert.Contains(t, cfg.CSPDirective, "default-src 'self'")

	assert.True(t, cfg.PermissionsPolicyEnabled)
	assert.Contains(t, cfg.PermissionsPolicyDirective, "camera=()")
}

func TestTimeout(t *testing.T) {
	router := gin.New()
	router.Use(Timeout(30 * time.Second))
	router.GET("/wallet", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/wallet", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "30s", w.Header().Get("X-Request-Timeout"))
}
