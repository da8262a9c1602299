// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response conventions shared by every endpoint. The
// API distinguishes two failure planes:
//
//   - Transport failures (unauthenticated, malformed request, unknown route,
//     rate limited, panic) return a non-2xx status with ErrorResponse.
//   - Business failures (quota exhausted, premium required, creation not
//     found, upstream provider errors) return HTTP 200 with
//     {"success": false, "message": "..."} so API clients branch on the body
//     rather than the status code.
//
// Example business failure:
//
//	HTTP/1.1 200 OK
//	{ "success": false, "message": "You have exhausted your free usage limit. Please upgrade to premium." }
//
// Example transport failure:
//
//	HTTP/1.1 401 Unauthorized
//	{ "request_id": "123e4567-…", "code": "unauthorized", "message": "missing bearer token" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quickai/go-quickai-backend/internal/domain"
	"github.com/quickai/go-quickai-backend/internal/http/middleware"
)

// ErrorResponse is the transport-level error envelope.
//
// RequestID echoes X-Request-ID so client errors can be correlated with
// server logs. Code is a stable machine-readable string (see errors.go).
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"bad_request"`
	Message   string `json:"message" example:"invalid JSON body"`
}

// ContentResponse is the success body of generation endpoints.
type ContentResponse struct {
	Success bool   `json:"success" example:"true"`
	Content string `json:"content" example:"# Generated article…"`
}

// MessageResponse is the body of endpoints that report an outcome message,
// and of every business failure (Success false).
type MessageResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Like added"`
}

// CreationsResponse is the success body of the listing endpoints.
type CreationsResponse struct {
	Success   bool              `json:"success" example:"true"`
	Creations []domain.Creation `json:"creations"`
}

// fail aborts the request with a transport-level error. Server errors
// (>= 500) are additionally logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level handlers
// (NoRoute, NoMethod).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// refuse writes a business failure: HTTP 200 with success=false and a
// user-facing message.
func refuse(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageResponse{Success: false, Message: msg})
}

// okContent writes a successful generation result.
func okContent(c *gin.Context, content string) {
	c.JSON(http.StatusOK, ContentResponse{Success: true, Content: content})
}

// okMessage writes a successful outcome message.
func okMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msg})
}

// okCreations writes a successful listing. A nil slice is normalized to an
// empty array so clients never see "creations": null.
func okCreations(c *gin.Context, items []domain.Creation) {
	if items == nil {
		items = []domain.Creation{}
	}
	c.JSON(http.StatusOK, CreationsResponse{Success: true, Creations: items})
}
