package api

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/logging"
)

// ErrorBody is the uniform error payload every endpoint returns.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Provider   string `json:"provider,omitempty"`
	ErrorCode  string `json:"errorCode"`
	Timestamp  string `json:"timestamp"`
}

// renderError maps any error to the uniform payload. Integration errors
// carry their own status and code; everything else is an opaque 500 so
// internals never leak to clients.
func renderError(c *gin.Context, logger *logging.Logger, err error) {
	ctx := c.Request.Context()

	if ie, ok := errors.AsIntegration(err); ok {
		status := errors.HTTPStatus(ie.Code())
		var rl *errors.ErrRateLimit
		if stderrors.As(err, &rl) && rl.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		}
		logger.WarnWithContext(ctx, "request failed",
			"error_code", string(ie.Code()), "provider", ie.ProviderName(), "error", err.Error())
		c.AbortWithStatusJSON(status, ErrorBody{
			StatusCode: status,
			Message:    err.Error(),
			Error:      "Integration Error",
			Provider:   ie.ProviderName(),
			ErrorCode:  string(ie.Code()),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	logger.ErrorWithContext(ctx, "internal error", "error", err.Error())
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
		StatusCode: http.StatusInternalServerError,
		Message:    "internal server error",
		Error:      "Internal Error",
		ErrorCode:  "INTERNAL_ERROR",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}
