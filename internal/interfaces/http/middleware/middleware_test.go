package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func corsRouter(cfg CORSConfig) *gin.Engine {
	r := gin.New()
	r.Use(CORS(cfg))
	r.POST("/api/ask", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestCORS_DefaultAllowsNoOrigin(t *testing.T) {
	r := corsRouter(DefaultCORSConfig())
	origin := http.Header{"Origin": {"http://malicious.example"}}

	w := serve(r, http.MethodPost, "/api/ask", origin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodOptions, "/api/ask", origin)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ListedOrigin(t *testing.T) {
	r := corsRouter(CORSConfig{
		AllowOrigins: []string{"https://portfolio.example"},
		AllowMethods: []string{"POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       time.Hour,
	})
	listed := http.Header{"Origin": {"https://portfolio.example"}}

	w := serve(r, http.MethodPost, "/api/ask", listed)
	assert.Equal(t, "https://portfolio.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
	assert.Empty(t, w.Header().Get("Access-Control-Expose-Headers"))

	w = serve(r, http.MethodOptions, "/api/ask", listed)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://portfolio.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodPost, "/api/ask", http.Header{"Origin": {"https://elsewhere.example"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_Wildcard(t *testing.T) {
	r := corsRouter(CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})

	w := serve(r, http.MethodPost, "/api/ask", http.Header{"Origin": {"https://anything.example"}})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("mints a UUID", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/test", nil)
		id := w.Header().Get(HeaderRequestID)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("echoes a usable client ID", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/test", http.Header{HeaderRequestID: {"edge-42"}})
		assert.Equal(t, "edge-42", w.Header().Get(HeaderRequestID))
	})

	t.Run("replaces unusable IDs", func(t *testing.T) {
		for _, bad := range []string{strings.Repeat("a", MaxRequestIDLength+1), "has space", "naïve"} {
			w := serve(r, http.MethodGet, "/test", http.Header{HeaderRequestID: {bad}})
			got := w.Header().Get(HeaderRequestID)
			assert.NotEqual(t, bad, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err, bad)
		}
	})
}

func TestSecure(t *testing.T) {
	newRouter := func(cfg SecurityHeaders) *gin.Engine {
		r := gin.New()
		r.Use(Secure(cfg))
		r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	w := serve(newRouter(DefaultSecurityHeaders()), http.MethodGet, "/test", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	cfg := DefaultSecurityHeaders()
	cfg.HSTSMaxAge = 365 * 24 * time.Hour
	w = serve(newRouter(cfg), http.MethodGet, "/test", nil)
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}
