package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/shared/id"
)

func observed() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &logging.Logger{Logger: zap.New(core)}, logs
}

func TestStartSpanNests(t *testing.T) {
	tracer := New("webterm", nil)
	defer tracer.Close()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	assert.True(t, id.IsPrefixed(string(root.TraceID), id.TracePrefix))
	assert.Empty(t, root.ParentID)

	child, childCtx := tracer.StartSpan(ctx, "child")
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Equal(t, child.SpanID, SpanIDFrom(childCtx))
	assert.Len(t, Fields(childCtx), 2)
	assert.Nil(t, Fields(context.Background()))
}

func TestSubmitLogsSpans(t *testing.T) {
	logger, logs := observed()
	tracer := New("webterm", logger)

	ok, _ := tracer.StartSpan(context.Background(), "fine")
	ok.SetTag("buffer_id", "buf_1")
	tracer.Submit(ok)

	bad, _ := tracer.StartSpan(context.Background(), "broken")
	bad.SetError(errors.New("spawn failed"))
	tracer.Submit(bad)

	tracer.Close()
	tracer.Submit(ok)

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "span", entries[0].Message)
	assert.Equal(t, "buf_1", entries[0].ContextMap()["tag.buffer_id"])
	assert.Equal(t, "span failed", entries[1].Message)
	assert.Equal(t, "broken", entries[1].ContextMap()["operation"])
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, logs := observed()
	tracer := New("webterm", logger)

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/buffers/:id", func(c *gin.Context) {
		seen = TraceIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/buffers/buf_x", nil)
	req.Header.Set(HeaderTraceID, "trc_remote")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, TraceID("trc_remote"), seen)
	assert.Equal(t, "trc_remote", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))

	tracer.Close()
	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "GET /buffers/:id", ctx["operation"])
	assert.Equal(t, "buf_x", ctx["tag.buffer_id"])
	assert.EqualValues(t, http.StatusNoContent, ctx["status"])
}
