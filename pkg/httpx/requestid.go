package httpx

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Gunvolt24/leasepull/pkg/ctxmeta"
)

// HeaderRequestID — заголовок, в котором ходит идентификатор запроса.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 64

// RequestIDMiddleware — берёт X-Request-ID клиента, если он годится, иначе генерирует UUID.
// Идентификатор попадает в контекст запроса (логи, история) и в ответный заголовок.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(ctxmeta.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// validRequestID — непустой, не длиннее 64 байт, только видимый ASCII (иначе ломает строки логов).
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
