package restapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/kgraph/internal/ratelimit"
)

// MaxBodySize bounds request bodies; the surface is read-only so this
// only guards against oversized query bodies on future POST additions.
const MaxBodySize = 1 * 1024 * 1024

// routeToCategory maps a request path to one of the rate limiter's tool
// buckets, restated from the teacher's routeToToolCategory for this
// surface's own route set.
func routeToCategory(path string) string {
	switch {
	case strings.Contains(path, "/memories/search"):
		return "memories_search"
	case strings.Contains(path, "/neighbors"):
		return "neighbors"
	case strings.Contains(path, "/nudges"):
		return "nudges"
	case strings.Contains(path, "/entities"), strings.Contains(path, "/stale"):
		return "entities"
	default:
		return "default"
	}
}

// RateLimitMiddleware rejects requests once the matching bucket is
// exhausted, ported from the teacher's RateLimitMiddleware.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		result := limiter.Allow(routeToCategory(c.Request.URL.Path))
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			tooManyRequests(c, fmt.Sprintf("rate limit exceeded for %s, retry after %ds", result.LimitType, retryAfter))
			c.Abort()
			return
		}
		c.Next()
	}
}

// MaxBodySizeMiddleware caps the request body, ported from the teacher's
// MaxBodySizeMiddleware.
func MaxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.ContentLength > maxBytes {
			errorResponse(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large, maximum %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
