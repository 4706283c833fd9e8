package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/terminal"
)

// CommandRequest carries command arguments.
type CommandRequest struct {
	Args []string `json:"args"`
}

// InputRequest answers a prompt.
type InputRequest struct {
	Tag     terminal.PromptTag `json:"tag" binding:"required"`
	Content string             `json:"content"`
}

// CreateBuffer starts a buffer.
func (h *Handlers) CreateBuffer(c *gin.Context) {
	var req terminal.Request
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid buffer request: "+err.Error())
			return
		}
	}
	if req.Vars.DarkMode != "" {
		mode, err := terminal.ParseDarkMode(string(req.Vars.DarkMode))
		if err != nil {
			fail(c, err)
			return
		}
		req.Vars.DarkMode = mode
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.createTimeout)
	defer cancel()
	span, ctx := h.startSpan(ctx, "buffer.create")
	b, err := h.manager.Create(ctx, req)
	if err != nil {
		h.finishSpan(span, err)
		fail(c, err)
		return
	}
	span.SetTag("buffer_id", b.ID())
	h.finishSpan(span, nil)

	info, err := b.Info(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info("buffer created",
		append([]zap.Field{zap.String("buffer_id", info.ID), zap.Int("port", info.Port)}, tracing.Fields(ctx)...)...)
	c.JSON(http.StatusCreated, info)
}

// ListBuffers lists live buffers.
func (h *Handlers) ListBuffers(c *gin.Context) {
	infos := h.manager.List(c.Request.Context())
	if infos == nil {
		infos = []terminal.Info{}
	}
	c.JSON(http.StatusOK, gin.H{"buffers": infos, "count": len(infos)})
}

// GetBuffer returns one buffer.
func (h *Handlers) GetBuffer(c *gin.Context) {
	b, ok := h.buffer(c)
	if !ok {
		return
	}
	info, err := b.Info(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// CloseBuffer closes a buffer on behalf of the host.
func (h *Handlers) CloseBuffer(c *gin.Context) {
	if err := h.manager.Close(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetOutput returns the tail of the terminal-server's output.
func (h *Handlers) GetOutput(c *gin.Context) {
	b, ok := h.buffer(c)
	if !ok {
		return
	}
	lines := 50
	if v := c.Query("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "lines must be a positive integer")
			return
		}
		lines = n
	}
	c.String(http.StatusOK, b.Output(lines))
}

// ListCommands lists the commands a buffer accepts.
func (h *Handlers) ListCommands(c *gin.Context) {
	if _, ok := h.buffer(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": terminal.Commands()})
}

// RunCommand runs a named command.
func (h *Handlers) RunCommand(c *gin.Context) {
	var req CommandRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid command request: "+err.Error())
			return
		}
	}
	name := c.Param("name")
	if err := h.manager.RunCommand(c.Request.Context(), c.Param("id"), name, req.Args); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "command": name})
}

// HandleInput answers a pending prompt.
func (h *Handlers) HandleInput(c *gin.Context) {
	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid input request: "+err.Error())
		return
	}
	if err := h.manager.HandleInput(c.Request.Context(), c.Param("id"), req.Tag, req.Content); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CancelInput drops a pending prompt.
func (h *Handlers) CancelInput(c *gin.Context) {
	b, ok := h.buffer(c)
	if !ok {
		return
	}
	if err := b.CancelInput(c.Request.Context(), terminal.PromptTag(c.Param("tag"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) buffer(c *gin.Context) (*terminal.Buffer, bool) {
	b, err := h.manager.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return b, true
}

func (h *Handlers) startSpan(ctx context.Context, name string) (*tracing.Span, context.Context) {
	if h.tracer == nil {
		return &tracing.Span{Tags: map[string]string{}}, ctx
	}
	return h.tracer.StartSpan(ctx, name)
}

func (h *Handlers) finishSpan(span *tracing.Span, err error) {
	if err != nil {
		span.SetError(err)
	}
	if h.tracer != nil {
		h.tracer.Submit(span)
	}
}
