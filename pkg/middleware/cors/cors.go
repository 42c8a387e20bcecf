package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	allowedMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
	allowedHeaders = "Authorization, Content-Type, X-Request-ID"
	// Export downloads and the KPI cache flag are read by the dashboard.
	exposedHeaders = "Content-Disposition, X-Request-ID, X-Cache-Hit"
)

// Policy decides which browser origins may call the API with the session cookie.
type Policy struct {
	origins map[string]struct{}
}

// NewPolicy normalises the configured origins. An empty list admits any origin.
func NewPolicy(allowedOrigins []string) Policy {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins[trimmed] = struct{}{}
		}
	}
	return Policy{origins: origins}
}

// Allows reports whether origin may receive credentialed responses.
func (p Policy) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	if len(p.origins) == 0 {
		return true
	}
	_, ok := p.origins[strings.TrimRight(origin, "/")]
	return ok
}

// New returns the CORS middleware for the allowed origins. Credentials are always
// allowed because the JWT travels in a cookie, so the request origin is echoed
// instead of "*".
func New(allowedOrigins []string) gin.HandlerFunc {
	policy := NewPolicy(allowedOrigins)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if policy.Allows(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", exposedHeaders)
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
