package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/rowens2025/powervisualize/docs"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
	"github.com/rowens2025/powervisualize/internal/infrastructure/telemetry"
	"github.com/rowens2025/powervisualize/internal/interfaces/http/dto"
	"github.com/rowens2025/powervisualize/internal/interfaces/http/handler"
	"github.com/rowens2025/powervisualize/internal/interfaces/http/middleware"
)

// Dependencies are the collaborators of the HTTP engine.
type Dependencies struct {
	Logger   *zap.Logger
	Metrics  *telemetry.AssistantMetrics
	Asker    handler.Asker
	DB       handler.Pinger
	Fallback handler.FallbackCatalog

	HTTP       config.HTTPConfig
	Swagger    config.SwaggerConfig
	PersonName string
	ContactURL string
	Version    string

	ServiceName      string
	TracingEnabled   bool
	ProfilingEnabled bool
}

// NewEngine builds the gin engine with the middleware chain and all routes.
func NewEngine(d Dependencies) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(d.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	cors := middleware.DefaultCORSConfig()
	if len(d.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = d.HTTP.CORSAllowOrigins
	}
	if len(d.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = d.HTTP.CORSAllowMethods
	}
	if len(d.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = d.HTTP.CORSAllowHeaders
	}

	obs := middleware.DefaultObservabilityConfig()
	obs.Tracing = d.TracingEnabled
	obs.Profiling = d.ProfilingEnabled
	obs.Metrics = d.Metrics
	if d.ServiceName != "" {
		obs.ServiceName = d.ServiceName
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log, handler.RecoveryResponse(d.PersonName, d.ContactURL)),
		middleware.Secure(middleware.DefaultSecurityHeaders()),
		middleware.CORS(cors),
	)
	engine.Use(middleware.Observability(obs)...)
	engine.Use(middleware.BodyLimit(d.HTTP.MaxBodySize))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    d.Swagger.Enabled,
			AllowedIPs: d.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler))

	r := NewRouter(engine)
	r.RegisterRoot(handler.NewSystemHandler(d.DB, d.Fallback, d.Version))
	r.Register(handler.NewAskHandler(d.Asker, d.PersonName, d.ContactURL))
	r.Setup()

	return engine
}
