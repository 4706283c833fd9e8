package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/providers/clipboard"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface/sandbox"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Terminal.ServerCommand = []string{"sh", "-c", "exec sleep 30"}
	cfg.Terminal.Shell = "bash"
	cfg.Terminal.ReadyTimeout = 0
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := New(cfg,
		WithLogger(logging.NewNop()),
		WithSurfaceFactory(sandbox.Factory(sandbox.DefaultConfig(), nil)),
		WithClipboard(clipboard.NewMemory("")),
	)
	require.NoError(t, err)
	return srv
}

func TestServeAndShutdown(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/buffers", "application/json", strings.NewReader(`{"directory":"`+t.TempDir()+`"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, srv.Manager().Len())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Zero(t, srv.Manager().Len())
}

func TestMiddlewareStack(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1
	srv := newTestServer(t, cfg)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Origin", "http://localhost:3000")
		srv.Handler().ServeHTTP(w, req)
		return w
	}

	w := get("/buffers")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusTooManyRequests, get("/buffers").Code)
	assert.Equal(t, http.StatusOK, get("/health").Code, "health is exempt")
}

func TestSurfaceFactory(t *testing.T) {
	log := logging.NewNop()

	assert.Equal(t, "chrome", surfaceDriver(config.SurfaceConfig{}))
	assert.Equal(t, "chrome", surfaceDriver(config.Default().Surface))
	assert.Equal(t, "sandbox", surfaceDriver(config.SurfaceConfig{Driver: "sandbox"}))

	f, err := surfaceFactory(config.SurfaceConfig{BreakerFailures: 2}, log)
	require.NoError(t, err)
	assert.NotNil(t, f)

	f, err = surfaceFactory(config.SurfaceConfig{Driver: "sandbox", BreakerFailures: 2}, log)
	require.NoError(t, err)
	s, err := f(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = surfaceFactory(config.SurfaceConfig{Driver: "webkit"}, log)
	assert.ErrorContains(t, err, `unknown surface driver "webkit"`)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Terminal.DarkMode = "sometimes"
	_, err := New(cfg, WithLogger(logging.NewNop()), WithSurfaceFactory(sandbox.Factory(sandbox.DefaultConfig(), nil)))
	assert.ErrorContains(t, err, "dark_mode")

	cfg = testConfig(t)
	cfg.Surface.Driver = "webkit"
	_, err = New(cfg, WithLogger(logging.NewNop()))
	assert.Error(t, err)
}
