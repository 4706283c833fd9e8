package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/terminal"
)

// Version is reported by the root endpoint.
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *terminal.Manager
	hub     *ws.Hub
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	log     *logging.Logger
	// createTimeout bounds buffer startup.
	createTimeout time.Duration
}

// NewHandlers creates a new handler set
func NewHandlers(
	manager *terminal.Manager,
	hub *ws.Hub,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *logging.Logger,
) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		manager:       manager,
		hub:           hub,
		metrics:       metrics,
		tracer:        tracer,
		log:           logger.Named("api"),
		createTimeout: 30 * time.Second,
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.POST("/buffers", h.CreateBuffer)
	r.GET("/buffers", h.ListBuffers)
	r.GET("/buffers/:id", h.GetBuffer)
	r.DELETE("/buffers/:id", h.CloseBuffer)
	r.GET("/buffers/:id/output", h.GetOutput)
	r.GET("/buffers/:id/commands", h.ListCommands)
	r.POST("/buffers/:id/commands/:name", h.RunCommand)
	r.POST("/buffers/:id/input", h.HandleInput)
	r.DELETE("/buffers/:id/input/:tag", h.CancelInput)

	r.POST("/logs", h.StreamLogs)
	if h.hub != nil {
		r.GET("/events", h.hub.HandleConnection)
	}
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "webterm",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	subscribers := 0
	if h.hub != nil {
		subscribers = h.hub.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"buffers":     h.manager.Len(),
		"subscribers": subscribers,
		"metrics":     h.metrics.Snapshot(),
	})
}
