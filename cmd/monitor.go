package cmd

import (
	"errors"
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luma/piconats/metrics"
	"github.com/luma/piconats/storage"
)

// NewMonitor builds the HTTP monitor served by `sub --http`:
//
//   GET /ping             liveness
//   GET /stats            the client's counters as JSON
//   GET /metrics          the same counters for Prometheus
//   GET /subjects         every subject a message arrived on
//   GET /last             the last message of every subject
//   GET /last/<subject>   the last message on one subject
func NewMonitor(debugHTTP bool, log *zap.Logger, store storage.Store, collector *metrics.Collector) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// access and error log, RFC3339 UTC timestamps
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping", "/metrics"},
	}))

	// log panics with their stack
	r.Use(ginzap.RecoveryWithZap(log, true))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, collector.Snapshot())
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	r.GET("/subjects", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.Subjects())
	})

	r.GET("/last", func(c *gin.Context) {
		doc, err := store.Backup()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Data(http.StatusOK, "application/json", doc)
	})

	r.GET("/last/*subject", func(c *gin.Context) {
		subject := strings.TrimPrefix(c.Param("subject"), "/")

		entry, err := store.Get(c.Request.Context(), subject)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			c.AbortWithError(http.StatusInternalServerError, err)
		default:
			c.Data(http.StatusOK, "application/json", entry)
		}
	})

	return r
}
