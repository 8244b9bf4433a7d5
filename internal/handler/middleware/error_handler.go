package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/guild"
	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/domain/verification"
	"github.com/fugitivebreach/arrow-api/internal/handler/dto"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
)

// ErrorReporter forwards unexpected failures, tagged with a correlation
// id, to an out-of-band operator channel.
type ErrorReporter interface {
	ReportError(errorID string, err error)
}

// ErrorHandlerMiddleware is the single place domain errors become HTTP
// responses. Handlers attach errors with c.Error and abort.
func ErrorHandlerMiddleware(logger *zap.Logger, reporter ErrorReporter) gin.HandlerFunc {
	log := logger.Named("ErrorHandler")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		log.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))

		status := http.StatusInternalServerError
		errResponse := dto.APIErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred.",
		}

		var ve validator.ValidationErrors

		switch {
		case errors.As(err, &ve):
			status = http.StatusBadRequest
			errResponse.Code = "VALIDATION_ERROR"
			errResponse.Message = "Input validation failed."
			errResponse.Details = buildValidationErrors(ve)

		case errors.Is(err, ierr.ErrValidation):
			status = http.StatusBadRequest
			errResponse.Code = "VALIDATION_ERROR"
			errResponse.Message = err.Error()

		case errors.Is(err, user.ErrKeyNotFound):
			status = http.StatusUnauthorized
			errResponse.Code = "INVALID_KEY"
			errResponse.Message = "API Key is invalid or no longer exists"

		case errors.Is(err, ierr.ErrUnauthorized), errors.Is(err, ierr.ErrInvalidToken):
			status = http.StatusUnauthorized
			errResponse.Code = "UNAUTHENTICATED"
			errResponse.Message = "Authentication required or failed."

		case errors.Is(err, ierr.ErrForbidden):
			status = http.StatusForbidden
			errResponse.Code = "FORBIDDEN"
			errResponse.Message = "Access denied."

		case errors.Is(err, user.ErrUserNotFound):
			status = http.StatusNotFound
			errResponse.Code = "USER_NOT_FOUND"
			errResponse.Message = "The user does not exist."

		case errors.Is(err, user.ErrAlreadyBlacklisted):
			status = http.StatusConflict
			errResponse.Code = "ALREADY_BLACKLISTED"
			errResponse.Message = "This user is already blacklisted."

		case errors.Is(err, user.ErrNotBlacklisted):
			status = http.StatusConflict
			errResponse.Code = "NOT_BLACKLISTED"
			errResponse.Message = "This user is not currently blacklisted."

		case errors.Is(err, verification.ErrCodeInvalid):
			status = http.StatusBadRequest
			errResponse.Code = "CODE_INVALID"
			errResponse.Message = "The code is invalid or no longer exists."

		case errors.Is(err, guild.ErrSetupExists):
			status = http.StatusConflict
			errResponse.Code = "ALREADY_SET_UP"
			errResponse.Message = "This server has already been set up."

		case errors.Is(err, ierr.ErrNotFound), errors.Is(err, ierr.ErrUpstreamNotFound):
			status = http.StatusNotFound
			errResponse.Code = "NOT_FOUND"
			errResponse.Message = "The requested resource was not found."

		case errors.Is(err, ierr.ErrConflict):
			status = http.StatusConflict
			errResponse.Code = "CONFLICT"
			errResponse.Message = err.Error()

		case errors.Is(err, ierr.ErrUpstreamRateLimited):
			status = http.StatusTooManyRequests
			errResponse.Code = "UPSTREAM_RATE_LIMITED"
			errResponse.Message = "The upstream service is rate limiting requests."

		case errors.Is(err, ierr.ErrUpstreamForbidden):
			status = http.StatusBadGateway
			errResponse.Code = "UPSTREAM_FORBIDDEN"
			errResponse.Message = "The upstream service denied the request."

		case errors.Is(err, ierr.ErrUpstream):
			status = http.StatusBadGateway
			errResponse.Code = "UPSTREAM_ERROR"
			errResponse.Message = "The upstream service request failed."

		case errors.Is(err, ierr.ErrStorageUnavailable):
			status = http.StatusServiceUnavailable
			errResponse.Code = "FEATURE_UNAVAILABLE"
			errResponse.Message = "This feature is unavailable without a database connection."

		default:
			// Unexpected failure: hand the end user only a correlation id
			// and route the details to the operator channel.
			errorID := uuid.NewString()
			errResponse.ErrorID = errorID
			log.Error("Unexpected internal error", zap.String("error_id", errorID), zap.Error(err))
			if reporter != nil {
				reporter.ReportError(errorID, err)
			}
		}

		c.AbortWithStatusJSON(status, errResponse)
	}
}

func buildValidationErrors(ve validator.ValidationErrors) []dto.FieldError {
	details := make([]dto.FieldError, len(ve))
	for i, fe := range ve {
		details[i] = dto.FieldError{
			Field:   fe.Field(),
			Message: validationErrorMsg(fe),
		}
	}
	return details
}

func validationErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "min":
		return fmt.Sprintf("Field '%s' must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Field '%s' failed validation on the '%s' tag", fe.Field(), fe.Tag())
	}
}
