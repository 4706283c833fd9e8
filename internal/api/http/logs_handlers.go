package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxLogEntries = 500

// PageLogEntry is one console line forwarded by a terminal page or host
// front-end.
type PageLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
}

// PageLogRequest is a batch of forwarded log lines.
type PageLogRequest struct {
	Source  string         `json:"source" binding:"required"`
	Buffer  string         `json:"buffer"`
	Entries []PageLogEntry `json:"entries"`
}

// StreamLogs writes forwarded front-end logs into the server log.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req PageLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid log request")
		return
	}
	if len(req.Entries) == 0 {
		badRequest(c, "no log entries provided")
		return
	}
	if len(req.Entries) > maxLogEntries {
		badRequest(c, "too many log entries")
		return
	}

	log := h.log.Named("page").With(zap.String("source", req.Source))
	if req.Buffer != "" {
		log = log.With(zap.String("buffer_id", req.Buffer))
	}
	for _, entry := range req.Entries {
		logEntry(log.Logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"entries_received": len(req.Entries),
		"timestamp":        time.Now().Unix(),
	})
}

func logEntry(log *zap.Logger, entry PageLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+1)
	if entry.Timestamp != "" {
		fields = append(fields, zap.String("page_timestamp", entry.Timestamp))
	}
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		log.Error(entry.Message, fields...)
	case "warn":
		log.Warn(entry.Message, fields...)
	case "debug", "verbose":
		log.Debug(entry.Message, fields...)
	default:
		log.Info(entry.Message, fields...)
	}
}
