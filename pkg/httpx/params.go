package httpx

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ClampInt — ограничение значения v в диапазоне [min, max].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseLimit — читает limit из query с дефолтом и границами [1, maxLimit].
func ParseLimit(c *gin.Context, defaultLimit, maxLimit int) int {
	limit := ClampInt(defaultLimit, 1, maxLimit)
	if v, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit))); err == nil {
		limit = ClampInt(v, 1, maxLimit)
	}
	return limit
}
