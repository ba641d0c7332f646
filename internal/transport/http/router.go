package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/pkg/httpx"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Handler — операторские ручки: история доставок и снимки счётчиков потребителей.
type Handler struct {
	history    ports.HistoryReadService
	stats      ports.StatsProvider
	log        ports.Logger
	reqTimeout time.Duration
}

// NewHandler — reqTimeout <= 0 отключает таймаут запроса к сервису истории.
func NewHandler(history ports.HistoryReadService, stats ports.StatsProvider, log ports.Logger, reqTimeout time.Duration) *Handler {
	return &Handler{history: history, stats: stats, log: log, reqTimeout: reqTimeout}
}

// NewRouter — gin-роутер с recovery, request-id, логированием запросов и otelgin (если задан serviceName).
func NewRouter(h *Handler, serviceName string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	if serviceName != "" {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(httpx.RequestIDMiddleware())
	r.Use(httpx.RequestLogger(h.log))

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/stats", h.getStats)
	r.GET("/history/:id", h.getHistory)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.Header("Allow", http.MethodGet)
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	return r
}

func (h *Handler) getStats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, h.stats.Snapshots())
}

func (h *Handler) getHistory(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty id"})
		return
	}
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "delivery history is disabled"})
		return
	}

	limit := httpx.ParseLimit(c, defaultHistoryLimit, maxHistoryLimit)

	ctx := c.Request.Context()
	if h.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.reqTimeout)
		defer cancel()
	}

	records, err := h.history.History(ctx, id, limit)
	if err != nil {
		h.log.Errorf(ctx, "History failed id=%s err=%v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no delivery history"})
		return
	}
	c.JSON(http.StatusOK, records)
}
