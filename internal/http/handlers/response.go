// Package handlers implements the public lookup endpoint and the JSON
// envelopes it answers with.
//
// A hit is {"status":"success","code":"482913"}. Every failure is an
// ErrorResponse whose code is one of the ErrCode constants; the request id
// is echoed so a client report can be matched to the server log line.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/puk-code-service/internal/http/middleware"
)

// ErrorResponse is the failure envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID; omitted when no id was assigned.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// One of the ErrCode constants.
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"code not found"`
}

// fail aborts with an ErrorResponse. Server-side failures (5xx) are logged
// once through the request-scoped logger; misses and client errors are not.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
