package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cashrecon/internal/core"
	"cashrecon/internal/log"
	"cashrecon/internal/period"
	"cashrecon/internal/services"
)

// APIError is the JSON error envelope of every failed request.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(statusCode int, code, message, details string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeTooManyRequests     = "TOO_MANY_REQUESTS"
	ErrCodeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeActorRequired       = "ACTOR_REQUIRED"
	ErrCodeReportLocked        = "REPORT_LOCKED"
	ErrCodeVersionConflict     = "VERSION_CONFLICT"
)

// RespondWithError writes err and aborts the handler chain.
func RespondWithError(c *gin.Context, err *APIError) {
	c.AbortWithStatusJSON(err.StatusCode, gin.H{"error": err})
}

// RespondValidationFailed reports a malformed or rejected input.
func RespondValidationFailed(c *gin.Context, details string) {
	RespondWithError(c, NewAPIError(http.StatusBadRequest, ErrCodeValidationFailed, "Input validation failed", details))
}

// respondServiceError maps a service or domain error onto its HTTP status.
// Unknown errors are logged and hidden behind a 500.
func respondServiceError(c *gin.Context, err error) {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, services.ErrStoreNotFound),
		errors.Is(err, services.ErrReportNotFound):
		apiErr = NewAPIError(http.StatusNotFound, ErrCodeNotFound, err.Error(), "")
	case errors.Is(err, services.ErrReportLocked):
		apiErr = NewAPIError(http.StatusConflict, ErrCodeReportLocked, err.Error(), "")
	case errors.Is(err, services.ErrVersionConflict):
		apiErr = NewAPIError(http.StatusConflict, ErrCodeVersionConflict, err.Error(), "")
	case errors.Is(err, services.ErrStoreExists),
		errors.Is(err, services.ErrReportExists),
		errors.Is(err, services.ErrReportNotOpen),
		errors.Is(err, services.ErrReportNotSubmitted),
		errors.Is(err, services.ErrDayBusy):
		apiErr = NewAPIError(http.StatusConflict, ErrCodeConflict, err.Error(), "")
	case errors.Is(err, services.ErrActorRequired):
		apiErr = NewAPIError(http.StatusBadRequest, ErrCodeActorRequired, "X-Actor header is required", err.Error())
	case isValidationError(err):
		apiErr = NewAPIError(http.StatusBadRequest, ErrCodeValidationFailed, "Input validation failed", err.Error())
	default:
		log.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "Request failed",
			log.FieldPath, c.FullPath(), log.FieldError, err)
		apiErr = NewAPIError(http.StatusInternalServerError, ErrCodeInternalServerError, "Internal server error", "")
	}
	_ = c.Error(err)
	RespondWithError(c, apiErr)
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrNegativeAmount,
		core.ErrInvalidDate,
		core.ErrInvalidQuantity,
		core.ErrEmptyStoreID,
		core.ErrEmptyName,
		core.ErrEmptyCategory,
		core.ErrInvalidPhase,
		period.ErrInvalidPeriod,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
