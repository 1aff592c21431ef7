package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rowens2025/powervisualize/internal/interfaces/http/dto"
)

// BodyLimit caps request bodies at maxBytes; zero or less disables it.
// A declared Content-Length over the cap is refused with 413 up front.
// Undeclared bodies fail on read past the cap, and the handler maps that
// read error to 413 itself.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBodyTooLarge, "Request body exceeds maximum allowed size", GetRequestID(c)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
