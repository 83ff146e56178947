// Package middleware holds the gin.HandlerFunc layers every HTTP route
// passes through: logging, CORS, security headers, IP-based rate
// limiting, and an optional admin bearer auth guarding operator-only
// endpoints.
package middleware

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lumenbridge/broker/internal/ratelimiter"
)

// Logger logs method, path, status and latency for every request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		method := c.Request.Method
		log.Printf("%s %s %d %v", method, path, status, latency)
	}
}

// CORSConfig mirrors the cors.* configuration keys.
type CORSConfig struct {
	Origins     []string
	Methods     []string
	Headers     []string
	Credentials bool
}

// CORS handles Cross-Origin Resource Sharing. A wildcard origin forces
// credentials off, per spec.md §6.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	originsMap := make(map[string]bool)
	wildcard := false
	for _, origin := range cfg.Origins {
		if origin == "*" {
			wildcard = true
		}
		originsMap[origin] = true
	}

	methods := strings.Join(defaultIfEmpty(cfg.Methods, []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}), ", ")
	headers := strings.Join(defaultIfEmpty(cfg.Headers, []string{"Content-Type", "Authorization", "X-Pusher-Key"}), ", ")
	credentials := cfg.Credentials && !wildcard

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		switch {
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		case len(cfg.Origins) == 0:
			c.Header("Access-Control-Allow-Origin", "*")
		case originsMap[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		default:
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		if credentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func defaultIfEmpty(vs, def []string) []string {
	if len(vs) == 0 {
		return def
	}
	return vs
}

// Security adds standard hardening headers.
func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Server", "")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), camera=(), microphone=()")
		c.Next()
	}
}

// RateLimitConfig mirrors rate_limiter.api_rate_limit.*.
type RateLimitConfig struct {
	MaxRequests   int64
	Window        time.Duration
	TrustedHops   int
}

// RateLimit applies an IP-based limit via the pluggable ratelimiter,
// honoring TrustedHops proxy hops when reading X-Forwarded-For, and
// sets X-RateLimit-* headers on every response.
func RateLimit(limiter ratelimiter.Limiter, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(c *gin.Context) {
		clientIP := clientIPWithHops(c, cfg.TrustedHops)
		key := "http:" + clientIP

		res, err := limiter.Allow(c.Request.Context(), key, cfg.MaxRequests, cfg.Window)
		if err != nil {
			log.Printf("WARNING: rate limiter unavailable: %v", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter.Seconds()), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.ResetAfter.Seconds()), 10))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// clientIPWithHops walks X-Forwarded-For back trustedHops entries from
// the end, falling back to gin's own ClientIP when the header is absent
// or trustedHops is not positive. A header with fewer than trustedHops
// entries yields its left-most entry.
func clientIPWithHops(c *gin.Context, trustedHops int) string {
	xff := c.GetHeader("X-Forwarded-For")
	if xff == "" || trustedHops <= 0 {
		return c.ClientIP()
	}
	parts := strings.Split(xff, ",")
	idx := len(parts) - trustedHops
	if idx < 0 {
		idx = 0
	}
	return strings.TrimSpace(parts[idx])
}

// AdminAuth guards operator-only endpoints (§9's /usage and /metrics,
// left unspecified by the wire protocol itself) behind a bearer JWT,
// grounded on the teacher's middleware.Auth. When secret is empty the
// guard is a no-op, matching local/dev deployments with no admin token
// configured.
func AdminAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parsed, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
