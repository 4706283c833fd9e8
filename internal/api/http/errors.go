package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/terminal"
)

// statusFor maps buffer errors to HTTP status codes.
func statusFor(err error) int {
	var startErr *terminal.StartError
	switch {
	case errors.Is(err, terminal.ErrNotFound), errors.Is(err, terminal.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, terminal.ErrClosed):
		return http.StatusGone
	case errors.Is(err, terminal.ErrNoPrompt):
		return http.StatusConflict
	case errors.Is(err, terminal.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, terminal.ErrManagerClosed), errors.Is(err, resilience.ErrOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &startErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail records err on the request and writes the error body.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	body := gin.H{"success": false, "error": err.Error()}
	var startErr *terminal.StartError
	if errors.As(err, &startErr) {
		body["stage"] = startErr.Stage
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}
