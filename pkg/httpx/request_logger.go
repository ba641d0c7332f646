package httpx

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/pkg/ctxmeta"
)

// служебные ручки, которые опрашиваются часто и в логах не нужны
var quietPaths = map[string]struct{}{
	"/metrics": {},
	"/ping":    {},
	"/stats":   {},
}

// RequestLogger — middleware для логирования HTTP-запросов (4xx/5xx логируются всегда).
func RequestLogger(log ports.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if _, quiet := quietPaths[c.FullPath()]; quiet && status < 400 {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ctx := c.Request.Context()
		rid, _ := ctxmeta.RequestIDFromContext(ctx)
		tr, _ := ctxmeta.TraceIDFromContext(ctx)

		format := "request id=%s trace=%s method=%s path=%s status=%d ip=%s duration=%s size=%d"
		args := []any{rid, tr, c.Request.Method, path, status, c.ClientIP(), time.Since(start), c.Writer.Size()}
		switch {
		case status >= 500:
			log.Errorf(ctx, format, args...)
		case status >= 400:
			log.Warnf(ctx, format, args...)
		default:
			log.Infof(ctx, format, args...)
		}
	}
}
