// Package response renders the stable HTTP envelope. Internal error detail is
// logged by callers, never exposed: every failure collapses to a coarse code
// so response shapes cannot leak record existence or timing.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
)

// OK sends a 200 response.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, "invalid_input", message)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	abort(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	abort(c, http.StatusNotFound, "not_found", "not found")
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	abort(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context) {
	c.Header("Retry-After", "1")
	abort(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
}

// InternalError sends a 500 error response without leaking detail.
func InternalError(c *gin.Context) {
	abort(c, http.StatusInternalServerError, "internal", "internal error")
}

// FromError maps a taxonomy error onto the envelope. Unknown errors collapse
// to internal.
func FromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		BadRequest(c, "invalid input")
	case errors.Is(err, errs.ErrUnauthenticated):
		Unauthorized(c)
	case errors.Is(err, errs.ErrRateLimited):
		TooManyRequests(c)
	case errors.Is(err, errs.ErrNotFound):
		NotFound(c)
	case errors.Is(err, errs.ErrExpired):
		abort(c, http.StatusGone, "expired", "expired")
	case errors.Is(err, errs.ErrAttemptsExceeded):
		abort(c, http.StatusGone, "attempts_exceeded", "attempts exceeded")
	case errors.Is(err, errs.ErrTransportFailure):
		abort(c, http.StatusBadGateway, "transport_failure", "dispatch failed")
	case errors.Is(err, errs.ErrStorageConflict):
		abort(c, http.StatusConflict, "storage_conflict", "conflict, retry")
	default:
		InternalError(c)
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": 0, "code": code, "message": message})
}
