package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/services"
	"github.com/brightline-ai/enhance-gateway/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsNotFoundError(err):
		_ = utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
			Details: details,
		})

	case services.IsValidationError(err):
		_ = utils.WriteBadRequest(w, err.Error(), details)

	case services.IsUnauthorizedError(err):
		_ = utils.WriteUnauthorized(w, err.Error())

	case services.IsRateLimitError(err):
		retryAfter := time.Duration(0)
		if details != nil {
			if d, ok := details["retry_after"].(time.Duration); ok {
				retryAfter = d
			}
		}
		_ = utils.WriteTooManyRequests(w, err.Error(), retryAfter, details)

	case services.IsQuotaError(err):
		_ = utils.WritePaymentRequired(w, err.Error(), details)

	case services.IsExternalError(err):
		// External provider errors are mapped to 502 Bad Gateway
		_ = utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse{
			Error:   "bad_gateway",
			Message: err.Error(),
			Details: details,
		})

	case services.IsInternalError(err):
		// Log internal errors but return a generic message
		logger.Error("internal server error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		_ = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}
}
