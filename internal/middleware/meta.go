package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheHitHeader mirrors the cache_hit meta entry for clients that only read headers.
const CacheHitHeader = "X-Cache-Hit"

const (
	metaContextKey     = "eleven.response_meta"
	metaCacheHit       = "cache_hit"
	metaProcessingTime = "processing_time_ms"
)

// WithResponseMeta attaches an empty meta map to every request and records the
// handler duration unless the handler already reported its own timing.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Set(metaContextKey, map[string]interface{}{})
		c.Next()
		meta := metaFor(c)
		if _, ok := meta[metaProcessingTime]; !ok {
			meta[metaProcessingTime] = time.Since(started).Milliseconds()
		}
	}
}

// SetMeta stores a single meta entry for the response envelope.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaFor(c)[key] = value
}

// SetCacheHit flags whether the payload came from the KPI cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, metaCacheHit, hit)
	if c != nil {
		c.Header(CacheHitHeader, strconv.FormatBool(hit))
	}
}

// SetProcessingTime overrides the measured duration with the handler's own timing.
func SetProcessingTime(c *gin.Context, since time.Time) {
	SetMeta(c, metaProcessingTime, time.Since(since).Milliseconds())
}

// Meta returns the meta map collected so far, or nil when none was attached.
func Meta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(metaContextKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(map[string]interface{})
	return meta
}

func metaFor(c *gin.Context) map[string]interface{} {
	if meta := Meta(c); meta != nil {
		return meta
	}
	meta := map[string]interface{}{}
	if c != nil {
		c.Set(metaContextKey, meta)
	}
	return meta
}
