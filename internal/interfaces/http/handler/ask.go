package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/application/assistant"
	"github.com/rowens2025/powervisualize/internal/domain/shared"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
	"github.com/rowens2025/powervisualize/internal/interfaces/http/dto"
	"github.com/rowens2025/powervisualize/internal/interfaces/http/middleware"
)

// Asker answers one visitor question.
type Asker interface {
	Ask(ctx context.Context, req assistant.Request) (*assistant.Response, error)
}

// AllowedAskMethods is the Allow header value of the ask route.
const AllowedAskMethods = "POST, OPTIONS"

// Rate window headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

// AskHandler serves the ask endpoint.
type AskHandler struct {
	BaseHandler
	asker Asker
}

// NewAskHandler creates an AskHandler. personName and contactURL are used
// in failure bodies built by the handler itself.
func NewAskHandler(asker Asker, personName, contactURL string) *AskHandler {
	return &AskHandler{
		BaseHandler: BaseHandler{PersonName: personName, ContactURL: contactURL},
		asker:       asker,
	}
}

// RegisterRoutes registers /ask on rg. Methods other than POST and OPTIONS
// get 405.
func (h *AskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ask", h.Ask)
	rg.OPTIONS("/ask", h.Preflight)
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		rg.Handle(method, "/ask", h.MethodNotAllowed)
	}
}

// Preflight answers CORS preflight requests that reach the handler.
func (h *AskHandler) Preflight(c *gin.Context) {
	c.Header("Allow", AllowedAskMethods)
	c.Status(http.StatusNoContent)
}

// MethodNotAllowed rejects verbs the ask route does not serve.
func (h *AskHandler) MethodNotAllowed(c *gin.Context) {
	c.Header("Allow", AllowedAskMethods)
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}
	h.respond(c, http.StatusMethodNotAllowed, dto.ErrCodeMethodNotAllowed,
		h.failureResponse(c, "Use POST to ask a question."))
}

// Ask godoc
// @ID           askAssistant
// @Summary      Ask the portfolio assistant
// @Description  Answers one visitor question about Ryan's published work. Skill answers carry only skills and links proven by published projects.
// @Tags         assistant
// @Accept       json
// @Produce      json
// @Param        request body dto.AskRequest true "Question with optional history and page context"
// @Success      200 {object} assistant.Response
// @Header       200 {integer} X-RateLimit-Limit "Questions allowed per window"
// @Header       200 {integer} X-RateLimit-Remaining "Questions left in the window"
// @Failure      400 {object} assistant.Response
// @Failure      413 {object} assistant.Response
// @Failure      429 {object} assistant.Response
// @Header       429 {integer} Retry-After "Seconds until the client may ask again"
// @Failure      500 {object} assistant.Response
// @Router       /api/ask [post]
func (h *AskHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	resp, err := h.asker.Ask(c.Request.Context(), req.ToRequest(clientID(c), getRequestID(c)))
	if err != nil {
		h.askError(c, err)
		return
	}
	setQuotaHeaders(c, resp)
	h.respond(c, http.StatusOK, "", resp)
}

// setQuotaHeaders reports the client's rate window allowance.
func setQuotaHeaders(c *gin.Context, resp *assistant.Response) {
	if resp == nil || resp.Meta == nil || resp.Meta.Quota == nil {
		return
	}
	c.Header(HeaderRateLimitLimit, strconv.Itoa(resp.Meta.Quota.Limit))
	c.Header(HeaderRateLimitRemaining, strconv.Itoa(resp.Meta.Quota.Remaining))
}

func (h *AskHandler) bindError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		h.respond(c, http.StatusRequestEntityTooLarge, dto.ErrCodeBodyTooLarge,
			h.failureResponse(c, "That request is too large. Please shorten the question or history."))
		return
	}

	if details := middleware.ValidationDetails(err); len(details) > 0 {
		resp := h.failureResponse(c, "The request could not be processed. Please check the question and try again.")
		for _, d := range details {
			resp.MissingInfo = append(resp.MissingInfo, d.Field+": "+d.Message)
		}
		h.respond(c, http.StatusBadRequest, dto.ErrCodeValidation, resp)
		return
	}

	h.respond(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON,
		h.failureResponse(c, "The request body must be a JSON object with a question."))
}

// askError maps assistant errors to statuses. Nothing is left for gin.
func (h *AskHandler) askError(c *gin.Context, err error) {
	var (
		domainErr *shared.DomainError
		limited   *assistant.RateLimitError
		failure   *assistant.FailureError
	)

	switch {
	case errors.As(err, &limited):
		c.Header("Retry-After", retryAfterSeconds(limited))
		resp := limited.Response
		if resp == nil {
			resp = h.failureResponse(c, "Too many questions. Please wait a moment and try again.")
		}
		setQuotaHeaders(c, resp)
		h.respond(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, resp)

	case errors.As(err, &failure):
		resp := failure.Response
		if resp == nil {
			resp = h.failureResponse(c, h.internalMessage())
		}
		h.respond(c, http.StatusInternalServerError, dto.NormalizeErrorCode(failure.Code), resp)

	case errors.As(err, &domainErr):
		code := dto.NormalizeErrorCode(domainErr.Code)
		status := dto.GetHTTPStatus(code)
		message := domainErr.Message
		if status >= http.StatusInternalServerError {
			message = h.internalMessage()
		}
		h.respond(c, status, code, h.failureResponse(c, message))

	default:
		logger.FromContext(c.Request.Context()).Error("Unhandled ask error", zap.Error(err))
		h.respond(c, http.StatusInternalServerError, dto.ErrCodeInternal, h.failureResponse(c, h.internalMessage()))
	}
}

// retryAfterSeconds renders the wait in whole seconds, rounded up, at least 1.
func retryAfterSeconds(e *assistant.RateLimitError) string {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// RecoveryResponse answers a recovered panic with a 500 in the ask
// response shape.
func RecoveryResponse(personName, contactURL string) func(c *gin.Context) {
	h := &BaseHandler{PersonName: personName, ContactURL: contactURL}
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			h.respond(c, http.StatusInternalServerError, dto.ErrCodeInternal, h.failureResponse(c, h.internalMessage()))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInternal, "An unexpected error occurred", getRequestID(c)))
	}
}
