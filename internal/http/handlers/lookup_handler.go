// Lookup HTTP handler.
//
// This file exposes the read-only code lookup:
//   - GET /vin/{vin}/puk/{puk}
//
// The VIN is matched exactly as stored, which is uppercase. Clients must
// normalize it before calling; the handler does not.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/puk-code-service/internal/domain"
	"github.com/tbourn/puk-code-service/internal/observability"
	"github.com/tbourn/puk-code-service/internal/services"
)

// LookupService resolves (VIN, PUK) pairs to issued codes.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LookupService interface {
	// Code returns the most recently issued code for the exact pair.
	Code(ctx context.Context, vin, puk string) (*domain.Code, error)
}

// Handlers groups the HTTP endpoints of the lookup API.
type Handlers struct {
	lookup LookupService
}

// New constructs and returns a Handlers instance bound to the given service.
func New(lookup LookupService) *Handlers {
	return &Handlers{lookup: lookup}
}

// CodeResponse is the success body of a lookup.
type CodeResponse struct {
	Status string `json:"status" example:"success"`
	Code   string `json:"code" example:"482913"`
}

// GetCode godoc
// @ID          getCode
// @Summary     Look up an issued code
// @Description Returns the most recently issued code for the exact VIN and PUK. The VIN must be uppercase.
// @Tags        Codes
// @Produce     json
//
// @Param       vin  path  string  true  "Vehicle identifier (uppercase)"  example(ABC123)
// @Param       puk  path  string  true  "PUK number"                      example(4567)
//
// @Success     200  {object}  handlers.CodeResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Code not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /vin/{vin}/puk/{puk} [get]
func (h *Handlers) GetCode(c *gin.Context) {
	vin, puk := c.Param("vin"), c.Param("puk")

	code, err := h.lookup.Code(c.Request.Context(), vin, puk)
	switch {
	case err == nil:
		observability.LookupsTotal.WithLabelValues(observability.OutcomeOK).Inc()
		ok(c, http.StatusOK, CodeResponse{Status: "success", Code: code.Code})
	case errors.Is(err, services.ErrNotFound):
		observability.LookupsTotal.WithLabelValues(observability.OutcomeNotFound).Inc()
		fail(c, http.StatusNotFound, ErrCodeNotFound, "code not found")
	case errors.Is(err, services.ErrStorageUnavailable):
		observability.LookupsTotal.WithLabelValues(observability.OutcomeError).Inc()
		fail(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "storage unavailable")
	default:
		observability.LookupsTotal.WithLabelValues(observability.OutcomeError).Inc()
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, "lookup failed")
	}
}
