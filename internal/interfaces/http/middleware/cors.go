// Package middleware provides HTTP middleware for the assistant API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds CORS middleware configuration
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig allows no origin. The portfolio origin comes from
// http.cors_allow_origins.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowMethods:  []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", HeaderRequestID, "Accept", "Origin"},
		ExposeHeaders: []string{HeaderRequestID, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
}

// CORS answers cross-origin requests from the configured origins. Other
// origins get no CORS headers. Every OPTIONS request ends here with 204.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	policy := newCORSPolicy(cfg)
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			policy.apply(c.Writer.Header(), origin)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	credentials bool
	fixed       [][2]string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins:     make(map[string]struct{}, len(cfg.AllowOrigins)),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.anyOrigin = true
		}
		p.origins[o] = struct{}{}
	}

	p.fixed = append(p.fixed,
		[2]string{"Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", ")},
		[2]string{"Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", ")},
	)
	if len(cfg.ExposeHeaders) > 0 {
		p.fixed = append(p.fixed, [2]string{"Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", ")})
	}
	if secs := int(cfg.MaxAge / time.Second); secs > 0 {
		p.fixed = append(p.fixed, [2]string{"Access-Control-Max-Age", strconv.Itoa(secs)})
	}
	return p
}

func (p *corsPolicy) apply(h http.Header, origin string) {
	if p.anyOrigin {
		h.Set("Access-Control-Allow-Origin", "*")
	} else if _, ok := p.origins[origin]; ok {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		if p.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
	} else {
		return
	}
	for _, kv := range p.fixed {
		h.Set(kv[0], kv[1])
	}
}
