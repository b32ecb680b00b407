package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saveyours/booking-api/pkg/middleware/requestid"
)

const metaContextKey = "response_meta"

// Response meta keys.
const (
	MetaCacheHit       = "cache_hit"
	MetaRequestID      = "request_id"
	MetaProcessingTime = "processing_time_ms"
)

// WithResponseMeta gives every request a meta map that handlers may fill and pass to
// response.JSON. The request id is copied in up front; processing time is only known
// once the chain returns, so it is recorded for handlers that did not set it.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta[MetaRequestID] = id
		}
		c.Set(metaContextKey, meta)

		c.Next()

		if _, ok := meta[MetaProcessingTime]; !ok {
			meta[MetaProcessingTime] = time.Since(start).Milliseconds()
		}
	}
}

// SetMeta records a single meta value for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaFor(c)[key] = value
}

// SetCacheHit marks whether the response body came from Redis.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, MetaCacheHit, hit)
}

// ExtractMeta returns the meta map for the request, or nil when none was started.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta, _ := c.Value(metaContextKey).(map[string]interface{})
	return meta
}

func metaFor(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := map[string]interface{}{}
	if c != nil {
		c.Set(metaContextKey, meta)
	}
	return meta
}
