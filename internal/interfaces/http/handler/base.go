package handler

import (
	"fmt"
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rowens2025/powervisualize/internal/application/assistant"
	"github.com/rowens2025/powervisualize/internal/domain/evidence"
	"github.com/rowens2025/powervisualize/internal/interfaces/http/middleware"
)

// HeaderErrorCode carries the API error code on non-200 ask responses.
const HeaderErrorCode = "X-Error-Code"

// BaseHandler provides common handler utilities
type BaseHandler struct {
	PersonName string
	ContactURL string
}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	return middleware.GetRequestID(c)
}

// clientID identifies the caller for the abuse guard: the first
// X-Forwarded-For hop, else X-Real-IP, else the socket address.
func clientID(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// failureResponse builds an answer-shaped error body carrying the contact link.
func (h *BaseHandler) failureResponse(c *gin.Context, message string) *assistant.Response {
	resp := assistant.NewResponse(message)
	if h.ContactURL != "" {
		resp.EvidenceLinks = append(resp.EvidenceLinks, evidence.Link{Title: "Contact", URL: h.ContactURL})
	}
	resp.Meta.RequestID = getRequestID(c)
	return resp
}

// respond writes an answer-shaped body. Non-200 statuses carry the API
// error code in a header.
func (h *BaseHandler) respond(c *gin.Context, status int, code string, resp *assistant.Response) {
	if resp.Meta == nil {
		resp.Meta = &assistant.Meta{}
	}
	if resp.Meta.RequestID == "" {
		resp.Meta.RequestID = getRequestID(c)
	}
	if code != "" {
		c.Header(HeaderErrorCode, code)
	}
	c.JSON(status, resp)
}

func (h *BaseHandler) internalMessage() string {
	if h.ContactURL == "" {
		return "Something went wrong on my side. Please try again later."
	}
	name := h.PersonName
	if name == "" {
		name = "the portfolio owner"
	}
	return fmt.Sprintf("Something went wrong on my side. You can reach %s directly at %s.", name, h.ContactURL)
}
