package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(router *gin.Engine, method, path, ip string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if ip != "" {
		req.RemoteAddr = ip + ":1234"
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig()))
	router.GET("/buffers", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantCORS   bool
	}{
		{"simple GET with origin", http.MethodGet, "http://localhost:3000", http.StatusOK, true},
		{"preflight", http.MethodOptions, "http://localhost:3000", http.StatusNoContent, true},
		{"no origin", http.MethodGet, "", http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := serve(router, tt.method, "/buffers", "", header)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORS {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORSRestrictedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://editor.example"}
	router := setupTestRouter()
	router.Use(CORS(cfg))
	router.GET("/buffers", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(router, http.MethodGet, "/buffers", "", http.Header{"Origin": {"https://editor.example"}})
	assert.Equal(t, "https://editor.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(router, http.MethodGet, "/buffers", "", http.Header{"Origin": {"https://evil.example"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(time.Now())
	limiter := NewLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2, Clock: clk, Exempt: []string{"/health"}})

	router := setupTestRouter()
	router.Use(limiter.Middleware())
	router.GET("/buffers", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/buffers", "192.168.1.1", nil).Code, "request %d", i)
	}
	w := serve(router, http.MethodGet, "/buffers", "192.168.1.1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/buffers", "192.168.1.2", nil).Code, "other client has its own bucket")
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "192.168.1.1", nil).Code, "exempt path")

	clk.SetTime(clk.Now().Add(time.Second))
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/buffers", "192.168.1.1", nil).Code, "refilled")
}

func TestRateLimitForgetsIdleClients(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(time.Now())
	limiter := NewLimiter(RateLimitConfig{RequestsPerSecond: 10, Burst: 10, IdleTTL: time.Minute, Clock: clk})

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	require.Equal(t, 2, limiter.Clients())

	clk.SetTime(clk.Now().Add(2 * time.Minute))
	limiter.Allow("10.0.0.3")
	assert.Equal(t, 1, limiter.Clients())
}

func TestDefaultConfigs(t *testing.T) {
	cors := DefaultCORSConfig()
	assert.Contains(t, cors.AllowOrigins, "*")
	assert.Contains(t, cors.AllowMethods, http.MethodDelete)
	assert.Contains(t, cors.ExposeHeaders, "X-Trace-ID")

	rl := DefaultRateLimitConfig()
	assert.Equal(t, 100, rl.RequestsPerSecond)
	assert.Equal(t, 200, rl.Burst)
	assert.Contains(t, rl.Exempt, "/metrics")
}

func TestAccessLogAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := &logging.Logger{Logger: zap.New(core)}

	router := setupTestRouter()
	router.Use(AccessLog(logger), Recovery(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	serve(router, http.MethodGet, "/ok", "", nil)
	serve(router, http.MethodGet, "/missing", "", nil)
	w := serve(router, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, 1, logs.FilterMessage("handler panic").Len())
	requests := logs.FilterMessage("request").All()
	require.Len(t, requests, 3)
	assert.Equal(t, zap.DebugLevel, requests[0].Level)
	assert.Equal(t, zap.WarnLevel, requests[1].Level)
	assert.Equal(t, zap.ErrorLevel, requests[2].Level)
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter()
	router.Use(RateLimit(DefaultRateLimitConfig()))
	router.GET("/buffers", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/buffers", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestBodyLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(BodyLimit(16))
	router.POST("/logs", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	post := func(body string, chunked bool) int {
		req := httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if chunked {
			req.ContentLength = -1
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, post(`{"a":1}`, false))
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(`{"source":"page","entries":[]}`, false))
	assert.Equal(t, http.StatusBadRequest, post(`{"source":"page","entries":[]}`, true), "undeclared length is cut off")
}
