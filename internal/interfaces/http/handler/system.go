package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
	"github.com/rowens2025/powervisualize/internal/interfaces/http/dto"
)

// Pinger checks the evidence store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FallbackCatalog reports how many curated fallback skills are loaded.
type FallbackCatalog interface {
	Len() int
}

const (
	checkOK           = "ok"
	checkDown         = "down"
	checkEmpty        = "empty"
	statusOK          = "ok"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
)

// SystemHandler serves liveness and readiness probes.
type SystemHandler struct {
	db          Pinger
	fallback    FallbackCatalog
	version     string
	pingTimeout time.Duration
	startTime   time.Time
}

// NewSystemHandler creates a new SystemHandler. fallback may be nil.
func NewSystemHandler(db Pinger, fallback FallbackCatalog, version string) *SystemHandler {
	return &SystemHandler{
		db:          db,
		fallback:    fallback,
		version:     version,
		pingTimeout: 2 * time.Second,
		startTime:   time.Now(),
	}
}

// RegisterRoutes registers /health and /ready on rg.
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
}

// Health reports liveness. It always answers 200; the database check is
// informational.
//
// @ID           getSystemHealth
// @Summary      Liveness check
// @Description  Reports liveness with informational database and fallback checks. Always answers 200.
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.HealthStatus}
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	status, _, _ := h.check(c.Request.Context())
	c.JSON(http.StatusOK, dto.NewSuccessResponse(status))
}

// Ready fails only when the database is down and no fallback evidence is
// loaded, since either source can answer skill questions.
//
// @ID           getSystemReady
// @Summary      Readiness check
// @Description  Answers 503 only when the database is down and no fallback evidence is loaded.
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.HealthStatus}
// @Failure      503 {object} dto.Response{data=dto.HealthStatus}
// @Router       /ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	status, dbUp, fallbackLoaded := h.check(c.Request.Context())
	if !dbUp && !fallbackLoaded {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeNotReady, "No evidence source is available", getRequestID(c))
		resp.Data = status
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(status))
}

func (h *SystemHandler) check(ctx context.Context) (dto.HealthStatus, bool, bool) {
	status := dto.HealthStatus{
		Status:  statusOK,
		Checks:  make(map[string]string, 2),
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Version: h.version,
	}

	dbUp := false
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, h.pingTimeout)
		err := h.db.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.FromContext(ctx).Warn("Database health check failed", zap.Error(err))
		} else {
			dbUp = true
		}
	}
	status.Checks["database"] = checkDown
	if dbUp {
		status.Checks["database"] = checkOK
	}

	if h.fallback != nil {
		status.Fallback = h.fallback.Len()
	}
	fallbackLoaded := status.Fallback > 0
	status.Checks["fallback"] = checkEmpty
	if fallbackLoaded {
		status.Checks["fallback"] = checkOK
	}

	switch {
	case !dbUp && !fallbackLoaded:
		status.Status = statusUnavailable
	case !dbUp || !fallbackLoaded:
		status.Status = statusDegraded
	}
	return status, dbUp, fallbackLoaded
}
