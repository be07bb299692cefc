package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/config"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/notify"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/approvals"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/caps"
	timelogsService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timelogs"
	timersService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timers"
	timesheetsService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timesheets"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/store/memstore"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{PublicKey: "gateway-only", KeyRefreshInterval: time.Hour, HTTPTimeout: time.Second},
		CORS: config.CORSConfig{
			AllowedOrigins: "https://app.example.com",
			AllowedMethods: "GET,POST",
			AllowedHeaders: "Authorization,Content-Type",
			MaxAge:         time.Hour,
		},
	}
}

func memServices() Services {
	s := memstore.New()
	logs := s.TimeLogs()
	capValidator := caps.NewValidator(logs, 8, quiet)
	locker := lock.NewLocal()
	sheets := timesheetsService.NewService(quiet, s, s.Timesheets(), logs, s.Directory, capValidator, locker, time.UTC, 9, nil)
	return Services{
		Timers:     timersService.NewService(quiet, s, s.Timers(), logs, s.Timesheets(), s.Directory, capValidator, locker, time.UTC, nil),
		TimeLogs:   timelogsService.NewService(quiet, s, logs, s.Timesheets(), s.Directory, capValidator, locker, time.UTC, nil),
		Timesheets: sheets,
		Approvals:  approvals.NewService(quiet, s, s.Timesheets(), logs, sheets, s.Directory, notify.NewLogSink(quiet), locker, nil),
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := NewRouter(testConfig(), memServices(), map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	}, quiet)
	w := httptest.NewRecorder()
	healthy.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, map[string]any{"database": "up"}, body["dependencies"])

	down := NewRouter(testConfig(), memServices(), map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, quiet)
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutesRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(testConfig(), memServices(), nil, quiet)

	for _, path := range []string{"/api/timers/active", "/api/timelogs", "/api/timesheets/pending"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(testConfig(), memServices(), nil, quiet)

	req := httptest.NewRequest(http.MethodOptions, "/api/timers/active", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/timers/active", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_Wildcard(t *testing.T) {
	c := corsConfig(config.CORSConfig{AllowedOrigins: "*"})
	assert.True(t, c.AllowAllOrigins)
	assert.Empty(t, c.AllowOrigins)
}

func TestNewLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	log := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, ServiceName, line["service"])
	assert.Equal(t, "v", line["k"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, parseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServe_DrainsOnSIGTERM(t *testing.T) {
	// Keep the default SIGTERM action away from the test binary.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGTERM)
	defer signal.Stop(guard)

	entered := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: freeAddr(t), Handler: mux}

	done := make(chan error, 1)
	go func() { done <- serve(srv, 5*time.Second) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", srv.Addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + srv.Addr + "/slow")
		if err != nil {
			status <- 0
			return
		}
		_ = resp.Body.Close()
		status <- resp.StatusCode
	}()
	<-entered

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, <-status, "in-flight request completes")
			return
		case <-ticker.C:
			require.NoError(t, self.Signal(syscall.SIGTERM))
		case <-timeout:
			t.Fatal("server did not shut down")
		}
	}
}
