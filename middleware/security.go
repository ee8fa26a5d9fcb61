package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds JSON bodies; photo uploads are checked separately.
const maxBodyBytes = 10 * 1024 * 1024

// RateLimiter stores one token bucket per key
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mutex    sync.Mutex
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
}

// GetLimiter returns the limiter for key, creating it with the given limits.
func (rl *RateLimiter) GetLimiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		rl.limiters[key] = limiter
	}
	rl.lastSeen[key] = time.Now()
	return limiter
}

// Cleanup removes limiters idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	removed := 0
	now := time.Now()
	for key, t := range rl.lastSeen {
		if now.Sub(t) > maxIdle {
			delete(rl.limiters, key)
			delete(rl.lastSeen, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.limiters)
}

// RateLimitMiddleware limits each client IP. Login and registration share a
// much stricter bucket.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		clientIP := c.ClientIP()

		var (
			key   string
			lim   rate.Limit
			burst int
		)
		switch {
		case path == "/api/login" || path == "/api/register":
			key = "auth|" + clientIP
			lim = rate.Every(time.Minute / 10)
			burst = 10
		case path == "/ws":
			key = "ws|" + clientIP
			lim = rate.Every(time.Second)
			burst = 5
		default:
			key = "api|" + clientIP
			lim = rate.Every(time.Second / 10)
			burst = 60
		}

		if !rl.GetLimiter(key, lim, burst).Allow() {
			log.Printf("🚫 Rate limit exceeded for %s %s from %s", c.Request.Method, path, clientIP)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate_limited",
				"message": "Too many requests. Please try again later.",
			})
			return
		}

		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; connect-src 'self' ws: wss:;")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Next()
	}
}

// CORSMiddleware allows the configured origins with credentials so the
// session cookie is sent cross-origin.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Accept", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

// InputValidationMiddleware rejects oversized bodies and unexpected content types.
func InputValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   "request_too_large",
				"message": "Request body exceeds maximum size limit",
			})
			return
		}

		if (c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut) && c.Request.ContentLength > 0 {
			contentType := c.GetHeader("Content-Type")
			if !strings.Contains(contentType, "application/json") &&
				!strings.Contains(contentType, "multipart/form-data") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"success": false,
					"error":   "unsupported_media_type",
					"message": "Content-Type must be application/json or multipart/form-data",
				})
				return
			}
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}

		c.Next()
	}
}

// AuditLogMiddleware logs every request with its request id and outcome.
func AuditLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		requestID := c.GetString(ContextRequestID)
		userPart := ""
		if id, ok := c.Get(ContextUserID); ok {
			userPart = fmt.Sprintf(" user=%v", id)
		}

		if status >= 400 {
			log.Printf("⚠️ AUDIT [%s] %s %s returned %d in %v%s", requestID, c.Request.Method, c.Request.URL.Path, status, duration, userPart)
		} else {
			log.Printf("✅ AUDIT [%s] %s %s returned %d in %v%s", requestID, c.Request.Method, c.Request.URL.Path, status, duration, userPart)
		}
	}
}
