package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func traceID(c *gin.Context) string {
	return c.GetString("trace_id")
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: traceID(c),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	respondErrorWithData(c, code, message, nil)
}

func respondErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceID(c),
		Data:    data,
	})
}

// HandleServiceError maps the service error taxonomy onto HTTP responses.
func HandleServiceError(c *gin.Context, err error) {
	var quotaErr *QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		respondErrorWithData(c, http.StatusTooManyRequests, "Daily transformation limit reached", gin.H{
			"remaining": quotaErr.Remaining,
			"limit":     quotaErr.Limit,
		})
	case errors.Is(err, ErrQuotaExceeded):
		RespondError(c, http.StatusTooManyRequests, "Daily transformation limit reached")
	case errors.Is(err, ErrInvalidRequest):
		RespondError(c, http.StatusBadRequest, userMessage(err))
	case errors.Is(err, ErrInvalidPage):
		RespondError(c, http.StatusBadRequest, "Page must be greater than 0")
	case errors.Is(err, ErrInvalidPageSize):
		RespondError(c, http.StatusBadRequest, "Page size must be between 1 and 100")
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, ErrEmailAlreadyExists):
		RespondError(c, http.StatusConflict, "Email already registered")
	case errors.Is(err, ErrNotFound):
		RespondError(c, http.StatusNotFound, "Resource not found")
	case errors.Is(err, ErrGenerationFailed):
		logFromContext(c).Warn("generation failed", zap.Error(err))
		RespondError(c, http.StatusBadGateway, "Transformation failed, please try again")
	case errors.Is(err, ErrStorage):
		logFromContext(c).Error("storage error", zap.Error(err))
		RespondError(c, http.StatusServiceUnavailable, "Storage temporarily unavailable, please retry")
	default:
		logFromContext(c).Error("unhandled service error", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// userMessage strips the sentinel prefix from an InvalidRequest error.
func userMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ErrInvalidRequest.Error()+": "); i >= 0 {
		return msg[i+len(ErrInvalidRequest.Error())+2:]
	}
	return msg
}

func logFromContext(c *gin.Context) *zap.Logger {
	if l, ok := c.Get("logger"); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return zap.L()
}
