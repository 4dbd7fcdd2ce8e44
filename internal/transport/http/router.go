// Package rest — служебный HTTP-интерфейс воркера: liveness, метрики,
// состояние сессии. Пользовательского API у моста нет.
package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Gunvolt24/kafka2hec/internal/ports"
	"github.com/Gunvolt24/kafka2hec/pkg/httpx"
)

// StatusFunc — текущее состояние сессии воркера для /status.
type StatusFunc func() string

func NewRouter(log ports.Logger, otelServiceName string, status StatusFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpx.RequestIDMiddleware())
	r.Use(requestLogger(log))

	if otelServiceName != "" {
		r.Use(otelgin.Middleware(otelServiceName))
	}

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"session": status()})
	})

	return r
}

func requestLogger(log ports.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		log.Infof(c.Request.Context(), "request method=%s path=%s status=%d duration=%s",
			c.Request.Method, c.FullPath(), c.Writer.Status(), duration)
	}
}
