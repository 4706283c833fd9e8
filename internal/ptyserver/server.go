package ptyserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/creack/pty"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
)

const (
	writeWait  = 5 * time.Second
	sendQueue  = 256
	maxMessage = 64 * 1024
	readChunk  = 4096
)

// titlePrompt makes bash report $PWD in the window title before each
// prompt.
const titlePrompt = `printf '\033]0;%s\007' "$PWD"`

// Config describes one terminal session.
type Config struct {
	// Command is run with "sh -c". Defaults to $SHELL, then /bin/sh.
	Command string
	// Dir is the working directory. Defaults to the current one.
	Dir  string
	Cols int // default 80
	Rows int // default 24
	// ReplayBytes is how much recent output a new client receives.
	ReplayBytes int
	Env         []string
}

func (c Config) withDefaults() Config {
	if c.Command == "" {
		c.Command = os.Getenv("SHELL")
	}
	if c.Command == "" {
		c.Command = "/bin/sh"
	}
	if c.Cols <= 0 {
		c.Cols = 80
	}
	if c.Rows <= 0 {
		c.Rows = 24
	}
	if c.ReplayBytes <= 0 {
		c.ReplayBytes = logging.DefaultRingSize
	}
	return c
}

// ClientMessage is a JSON text frame from the page.
type ClientMessage struct {
	Type string `json:"type"` // "input" or "resize"
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// Server runs one command on a PTY and bridges it to websocket clients.
// Output goes out as binary frames; input comes in as JSON text frames
// or raw binary frames.
type Server struct {
	cfg    Config
	log    *logging.Logger
	cmd    *exec.Cmd
	ptmx   *os.File
	output *logging.Ring

	upgrader websocket.Upgrader
	router   *gin.Engine

	mu      sync.Mutex
	clients map[*client]struct{}
	exited  bool

	done    chan struct{}
	waitErr error
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Start launches cfg.Command on a new PTY.
func Start(cfg Config, logger *logging.Logger) (*Server, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	cmd := exec.Command("/bin/sh", "-c", cfg.Command)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor", "PROMPT_COMMAND="+titlePrompt)
	cmd.Env = append(cmd.Env, cfg.Env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cfg.Cols), Rows: uint16(cfg.Rows)})
	if err != nil {
		return nil, fmt.Errorf("ptyserver: start %q: %w", cfg.Command, err)
	}

	s := &Server{
		cfg:     cfg,
		log:     logger.With(zap.Int("pid", cmd.Process.Pid)),
		cmd:     cmd,
		ptmx:    ptmx,
		output:  logging.NewRing(cfg.ReplayBytes),
		clients: map[*client]struct{}{},
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readChunk,
			WriteBufferSize: readChunk,
			// Pages load from file:// or about:blank.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router = gin.New()
	s.router.GET("/ws", s.handleWS)
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.Clients()})
	})

	s.log.Info("session started", zap.String("command", cfg.Command), zap.String("dir", cfg.Dir))
	go s.readOutput()
	return s, nil
}

// readOutput copies PTY output into the replay ring and every client
// until the PTY closes, then reaps the process.
func (s *Server) readOutput() {
	buf := make([]byte, readChunk)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.broadcast(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				// Linux reports EIO once the slave side is gone.
				s.log.Debug("pty read ended", zap.Error(err))
			}
			break
		}
	}
	s.waitErr = s.cmd.Wait()
	s.ptmx.Close()

	s.mu.Lock()
	s.exited = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()

	s.log.Info("session exited", zap.Error(s.waitErr))
	close(s.done)
}

func (s *Server) broadcast(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.output.Write(p)
	frame := append([]byte(nil), p...)
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
			s.log.Warn("dropping slow client")
			delete(s.clients, c)
			close(c.send)
		}
	}
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler { return s.router }

// Serve serves ln until the command exits or ctx is cancelled. On
// cancellation the command is killed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	var serveErr error
	select {
	case <-s.done:
	case <-ctx.Done():
		s.Kill()
		<-s.done
	case serveErr = <-errCh:
		s.Kill()
		<-s.done
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Done is closed once the command has exited.
func (s *Server) Done() <-chan struct{} { return s.done }

// Wait blocks until the command exits and returns its exit error.
func (s *Server) Wait() error {
	<-s.done
	return s.waitErr
}

// Kill terminates the command.
func (s *Server) Kill() {
	select {
	case <-s.done:
		return
	default:
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.log.Warn("failed to kill session", zap.Error(err))
	}
}

// Output returns the retained output.
func (s *Server) Output() []byte { return s.output.Bytes() }

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Size returns the PTY window size.
func (s *Server) Size() (cols, rows int, err error) {
	ws, err := pty.GetsizeFull(s.ptmx)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Cols), int(ws.Rows), nil
}

// Resize sets the PTY window size.
func (s *Server) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("ptyserver: invalid size %dx%d", cols, rows)
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessage)

	cl := &client{conn: conn, send: make(chan []byte, sendQueue)}
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "session exited"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	if replay := s.output.Bytes(); len(replay) > 0 {
		cl.send <- replay
	}
	s.clients[cl] = struct{}{}
	s.mu.Unlock()

	go s.writePump(cl)
	s.readPump(cl)
}

func (s *Server) readPump(cl *client) {
	defer func() {
		s.mu.Lock()
		if _, ok := s.clients[cl]; ok {
			delete(s.clients, cl)
			close(cl.send)
		}
		s.mu.Unlock()
	}()
	for {
		typ, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		switch typ {
		case websocket.BinaryMessage:
			s.write(data)
		case websocket.TextMessage:
			var msg ClientMessage
			if err := sonic.Unmarshal(data, &msg); err != nil {
				s.log.Debug("bad client message", zap.Error(err))
				continue
			}
			s.handle(msg)
		}
	}
}

func (s *Server) handle(msg ClientMessage) {
	switch msg.Type {
	case "input":
		s.write([]byte(msg.Data))
	case "resize":
		if err := s.Resize(msg.Cols, msg.Rows); err != nil {
			s.log.Debug("resize failed", zap.Error(err))
		}
	default:
		s.log.Debug("unknown client message", zap.String("type", msg.Type))
	}
}

func (s *Server) write(p []byte) {
	if _, err := s.ptmx.Write(p); err != nil {
		s.log.Debug("pty write failed", zap.Error(err))
	}
}

func (s *Server) writePump(cl *client) {
	defer cl.conn.Close()
	for frame := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
	_ = cl.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
