package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/terminal"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) HandleInput(ctx context.Context, buffer string, tag terminal.PromptTag, content string) error {
	return m.Called(ctx, buffer, tag, content).Error(0)
}

func (m *mockExecutor) RunCommand(ctx context.Context, buffer, command string, args []string) error {
	return m.Called(ctx, buffer, command, args).Error(0)
}

func newTestHub(t *testing.T) (*Hub, *monitoring.Metrics, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics := monitoring.NewMetrics()
	hub := NewHub(nil, metrics)
	router := gin.New()
	router.GET("/events", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, metrics, "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	hello := read(t, conn)
	require.Equal(t, "connected", hello.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out Outbound
	require.NoError(t, sonic.Unmarshal(data, &out))
	return out
}

func send(t *testing.T, conn *websocket.Conn, msg Inbound) {
	t.Helper()
	data, err := sonic.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func waitSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Len() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHubFansOutByBuffer(t *testing.T) {
	hub, metrics, url := newTestHub(t)
	all := dial(t, url)
	one := dial(t, url+"?buffer=buf_a")
	waitSubscribers(t, hub, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.WSConnections))

	var host terminal.Host = hub
	host.SetDirectory("buf_b", "/srv")
	host.Prompt("buf_a", terminal.PromptSearchForward, "Forward Search Text: ")

	got := read(t, all)
	assert.Equal(t, Outbound{Type: "set_directory", Buffer: "buf_b", Text: "/srv", Timestamp: got.Timestamp}, got)
	got = read(t, all)
	assert.Equal(t, "prompt", got.Type)

	got = read(t, one)
	assert.Equal(t, "prompt", got.Type)
	assert.Equal(t, "buf_a", got.Buffer)
	assert.Equal(t, terminal.PromptSearchForward, got.Tag)
	assert.Equal(t, "Forward Search Text: ", got.Text)
}

func TestHubNotificationKinds(t *testing.T) {
	hub, _, url := newTestHub(t)
	conn := dial(t, url)
	waitSubscribers(t, hub, 1)

	hub.TitleChanged("buf_a", "/tmp")
	hub.Message("buf_a", "Copy text")
	hub.RequestClose("buf_a")

	for _, want := range []terminal.NotificationKind{terminal.NotifyTitle, terminal.NotifyMessage, terminal.NotifyClose} {
		assert.Equal(t, string(want), read(t, conn).Type)
	}
}

func TestHubInboundMessages(t *testing.T) {
	hub, _, url := newTestHub(t)
	conn := dial(t, url+"?buffer=buf_a")

	send(t, conn, Inbound{Type: "ping"})
	assert.Equal(t, "pong", read(t, conn).Type)

	send(t, conn, Inbound{Type: "input", Tag: terminal.PromptSearchForward, Content: "x"})
	out := read(t, conn)
	assert.Equal(t, "error", out.Type, "no executor")

	exec := &mockExecutor{}
	exec.On("HandleInput", mock.Anything, "buf_a", terminal.PromptSearchForward, "needle").Return(nil).Once()
	exec.On("RunCommand", mock.Anything, "buf_b", "scroll_other_buffer", []string{"up", "page"}).Return(nil).Once()
	exec.On("HandleInput", mock.Anything, "buf_a", terminal.PromptSearchForward, "late").
		Return(errors.New("terminal: no pending prompt")).Once()
	hub.SetExecutor(exec)

	send(t, conn, Inbound{Type: "input", Tag: terminal.PromptSearchForward, Content: "needle"})
	assert.Equal(t, "ok", read(t, conn).Type)
	send(t, conn, Inbound{Type: "command", Buffer: "buf_b", Command: "scroll_other_buffer", Args: []string{"up", "page"}})
	assert.Equal(t, "ok", read(t, conn).Type)

	send(t, conn, Inbound{Type: "input", Tag: terminal.PromptSearchForward, Content: "late"})
	out = read(t, conn)
	assert.Equal(t, "error", out.Type)
	assert.Equal(t, "terminal: no pending prompt", out.Message)
	exec.AssertExpectations(t)

	send(t, conn, Inbound{Type: "dance"})
	assert.Contains(t, read(t, conn).Message, "unknown message type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "malformed message", read(t, conn).Message)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	metrics := monitoring.NewMetrics()
	hub := NewHub(nil, metrics)
	s := &subscriber{id: "conn_slow", send: make(chan []byte, 1)}
	hub.add(s)

	hub.Message("buf_a", "one")
	hub.Message("buf_a", "two")

	assert.Len(t, s.send, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSDropped))

	hub.Close()
	assert.Zero(t, hub.Len())
	hub.Message("buf_a", "after close")
}

func TestHubRemovesDisconnected(t *testing.T) {
	hub, metrics, url := newTestHub(t)
	conn := dial(t, url)
	waitSubscribers(t, hub, 1)

	require.NoError(t, conn.Close())
	waitSubscribers(t, hub, 0)
	assert.Zero(t, testutil.ToFloat64(metrics.WSConnections))
}
