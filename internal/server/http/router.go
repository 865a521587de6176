package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hyperfocus/internal/logging"
	"hyperfocus/internal/toolengine"
	"hyperfocus/internal/toolregistry"
)

// RouterConfig wires the protocol adapter's collaborators.
type RouterConfig struct {
	Registry       *toolregistry.Registry
	Engine         *toolengine.Engine
	Auth           Authenticator
	AllowedOrigins []string
	Metrics        prometheus.Gatherer
	Logger         logging.Logger
}

// NewRouter builds the gin engine serving the tool-call protocol plus
// health and metrics endpoints. CORS preflight is answered for cross-origin
// tool callers.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logging.OrNop(cfg.Logger)))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	handler := NewToolsHandler(cfg.Registry, cfg.Engine, cfg.Auth, cfg.Logger)
	router.POST("/api/tools", handler.Handle)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{})))
	}

	return router
}

// requestLogger logs method, path, status and latency per request.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
