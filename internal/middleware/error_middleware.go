package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/selin/pulseform/internal/app/models/dto"
	"github.com/selin/pulseform/internal/pkg/apperrors"
)

// InvalidLinkMessage is the single user-facing message for every token-level
// failure. Not-found and expired are deliberately indistinguishable to the
// caller so token values cannot be probed; logs keep the real reason.
const InvalidLinkMessage = "This link is invalid or has expired"

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrActivityNotFound):
		c.JSON(404, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeActivityNotFound, "Activity not found"),
		))
	case errors.Is(err, apperrors.ErrResourceNotFound),
		errors.Is(err, apperrors.ErrParticipantNotFound):
		c.JSON(404, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Resource not found"),
		))
	case errors.Is(err, apperrors.ErrTokenNotFound),
		errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrTokenInvalid):
		c.JSON(404, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInvalidLink, InvalidLinkMessage),
		))
	case errors.Is(err, apperrors.ErrActivityCompleted):
		c.JSON(409, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeAlreadyCompleted, "You have already completed this activity"),
		))
	case errors.Is(err, apperrors.ErrInvalidEmail):
		c.JSON(400, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInvalidEmail, "A valid email address is required").WithField("email"),
		))
	case errors.Is(err, apperrors.ErrInvalidTTL):
		c.JSON(400, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Token lifetime must be zero or more days").WithField("ttlDays"),
		))
	case errors.Is(err, apperrors.ErrValidationFailed), errors.Is(err, apperrors.ErrBadRequest):
		c.JSON(400, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Validation failed"),
		))
	case errors.Is(err, apperrors.ErrPermissionDenied):
		c.JSON(403, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Permission denied"),
		))
	default:
		c.JSON(500, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error"),
		))
	}
}
