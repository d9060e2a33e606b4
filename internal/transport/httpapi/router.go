package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"patientbooking/backend/internal/metrics"
)

type RouterConfig struct {
	Bookings *BookingHandler
	Logger   *zap.Logger
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Limiter  *rate.Limiter

	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(Recovery(log))
	router.Use(RequestLogger(log))
	router.Use(Metrics(cfg.Metrics))

	router.GET("/healthz", healthz(cfg.Ready))
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(cfg.Gatherer)))
	}

	api := router.Group("")
	api.Use(RateLimit(cfg.Limiter))
	if cfg.Bookings != nil {
		cfg.Bookings.RegisterRoutes(api)
	}
	return router
}

func healthz(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
