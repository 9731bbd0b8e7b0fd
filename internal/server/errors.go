package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	usecase "github.com/practice-sem-2/chat-service/internal/usecases"
)

// The order matters: ErrAuthenticationRequired wraps ErrPermissionDenied,
// so the more specific sentinel has to be matched first.
var errorMapper = []struct {
	from error
	kind string
	code int
}{
	{usecase.ErrAuthenticationRequired, "authentication_required", http.StatusUnauthorized},
	{usecase.ErrNotAMember, "not_a_member", http.StatusForbidden},
	{usecase.ErrPermissionDenied, "permission_denied", http.StatusForbidden},
	{usecase.ErrNotFound, "not_found", http.StatusNotFound},
	{usecase.ErrAlreadyMember, "already_member", http.StatusConflict},
	{usecase.ErrRateLimited, "rate_limited", http.StatusTooManyRequests},
	{usecase.ErrEditWindowExpired, "edit_window_expired", http.StatusConflict},
	{usecase.ErrInvalidOperation, "invalid_operation", http.StatusConflict},
	{usecase.ErrCapacityExceeded, "capacity_exceeded", http.StatusConflict},
	{usecase.ErrValidation, "validation_failed", http.StatusBadRequest},
}

func wrapValidation(err error) error {
	return fmt.Errorf("%w: %v", usecase.ErrValidation, err)
}

func abortWithError(c *gin.Context, err error) {
	for _, mapping := range errorMapper {
		if errors.Is(err, mapping.from) {
			c.AbortWithStatusJSON(mapping.code, gin.H{
				"kind":  mapping.kind,
				"error": err.Error(),
			})
			return
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"kind":  "internal",
		"error": "internal server error",
	})
}
