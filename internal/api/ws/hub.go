package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/terminal"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 64 << 10
	sendQueue  = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API binds to loopback and editor front-ends run from arbitrary
	// origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Inbound is a message from a subscriber.
type Inbound struct {
	Type    string             `json:"type"`
	Buffer  string             `json:"buffer,omitempty"`
	Tag     terminal.PromptTag `json:"tag,omitempty"`
	Content string             `json:"content,omitempty"`
	Command string             `json:"command,omitempty"`
	Args    []string           `json:"args,omitempty"`
}

// Outbound is a message to a subscriber. Notifications are sent with
// their Kind as Type.
type Outbound struct {
	Type      string             `json:"type"`
	Buffer    string             `json:"buffer,omitempty"`
	Text      string             `json:"text,omitempty"`
	Tag       terminal.PromptTag `json:"tag,omitempty"`
	Message   string             `json:"message,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// Executor performs subscriber requests against buffers.
type Executor interface {
	HandleInput(ctx context.Context, buffer string, tag terminal.PromptTag, content string) error
	RunCommand(ctx context.Context, buffer, command string, args []string) error
}

type subscriber struct {
	id     id.ConnectionID
	buffer string // empty receives every buffer
	send   chan []byte
	once   sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.send) }) }

// Hub is a terminal.Host that streams buffer notifications to websocket
// subscribers. Delivery never blocks the buffer: a subscriber whose queue
// is full misses the notification.
type Hub struct {
	log      *logging.Logger
	metrics  *monitoring.Metrics
	executor Executor

	mu   sync.RWMutex
	subs map[id.ConnectionID]*subscriber
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		log:     logger.Named("ws"),
		metrics: metrics,
		subs:    map[id.ConnectionID]*subscriber{},
	}
}

// SetExecutor enables input and command messages from subscribers.
func (h *Hub) SetExecutor(e Executor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.executor = e
}

// Len reports the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) TitleChanged(buffer, title string) {
	h.Publish(terminal.Notification{Buffer: buffer, Kind: terminal.NotifyTitle, Text: title})
}

func (h *Hub) SetDirectory(buffer, dir string) {
	h.Publish(terminal.Notification{Buffer: buffer, Kind: terminal.NotifySetDirectory, Text: dir})
}

func (h *Hub) Message(buffer, text string) {
	h.Publish(terminal.Notification{Buffer: buffer, Kind: terminal.NotifyMessage, Text: text})
}

func (h *Hub) Prompt(buffer string, tag terminal.PromptTag, prompt string) {
	h.Publish(terminal.Notification{Buffer: buffer, Kind: terminal.NotifyPrompt, Tag: tag, Text: prompt})
}

func (h *Hub) RequestClose(buffer string) {
	h.Publish(terminal.Notification{Buffer: buffer, Kind: terminal.NotifyClose})
}

// Publish fans n out to matching subscribers.
func (h *Hub) Publish(n terminal.Notification) {
	data, err := sonic.Marshal(Outbound{
		Type:      string(n.Kind),
		Buffer:    n.Buffer,
		Text:      n.Text,
		Tag:       n.Tag,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.log.Error("encode notification", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.buffer != "" && s.buffer != n.Buffer {
			continue
		}
		select {
		case s.send <- data:
			h.metrics.RecordWSMessage("out", string(n.Kind))
		default:
			h.metrics.IncWSDropped()
			h.log.Warn("subscriber queue full, dropping notification",
				zap.String("conn_id", s.id.String()),
				zap.String("kind", string(n.Kind)),
			)
		}
	}
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	h.metrics.IncWSConnections()
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s.id]
	delete(h.subs, s.id)
	h.mu.Unlock()
	if ok {
		s.close()
		h.metrics.DecWSConnections()
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[id.ConnectionID]*subscriber{}
	h.mu.Unlock()
	for _, s := range subs {
		s.close()
		h.metrics.DecWSConnections()
	}
}

// HandleConnection upgrades GET /events?buffer=<id>. Without buffer the
// subscriber receives notifications for every buffer.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &subscriber{
		id:     id.NewConnectionID(),
		buffer: c.Query("buffer"),
		send:   make(chan []byte, sendQueue),
	}
	hello, _ := sonic.Marshal(Outbound{Type: "connected", Message: s.id.String(), Buffer: s.buffer, Timestamp: time.Now().Unix()})
	s.send <- hello
	h.add(s)
	log := h.log.With(zap.String("conn_id", s.id.String()), zap.String("buffer", s.buffer))
	log.Debug("subscriber connected")

	go h.writePump(conn, s, log)
	h.readPump(c.Request.Context(), conn, s, log)
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, s *subscriber, log *logging.Logger) {
	defer func() {
		h.remove(s)
		log.Debug("subscriber disconnected")
	}()
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		var msg Inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.reply(s, Outbound{Type: "error", Message: "malformed message"})
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)
		h.handle(ctx, s, msg)
	}
}

func (h *Hub) handle(ctx context.Context, s *subscriber, msg Inbound) {
	h.mu.RLock()
	exec := h.executor
	h.mu.RUnlock()

	var err error
	switch msg.Type {
	case "ping":
		h.reply(s, Outbound{Type: "pong"})
		return
	case "input", "command":
		if exec == nil {
			err = errReadOnly
			break
		}
		if msg.Buffer == "" {
			msg.Buffer = s.buffer
		}
		if msg.Type == "input" {
			err = exec.HandleInput(ctx, msg.Buffer, msg.Tag, msg.Content)
		} else {
			err = exec.RunCommand(ctx, msg.Buffer, msg.Command, msg.Args)
		}
	default:
		h.reply(s, Outbound{Type: "error", Message: "unknown message type: " + msg.Type})
		return
	}
	if err != nil {
		h.reply(s, Outbound{Type: "error", Buffer: msg.Buffer, Message: err.Error()})
		return
	}
	h.reply(s, Outbound{Type: "ok", Buffer: msg.Buffer})
}

// reply queues a direct response. Replies are dropped like notifications
// when the subscriber is not keeping up.
func (h *Hub) reply(s *subscriber, out Outbound) {
	out.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(out)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	select {
	case s.send <- data:
	default:
		h.metrics.IncWSDropped()
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *subscriber, log *logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("websocket write error", zap.Error(err))
				h.remove(s)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(s)
				return
			}
		}
	}
}

var _ terminal.Host = (*Hub)(nil)
