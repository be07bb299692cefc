package timers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	keycloakauth "github.com/JorgeSaicoski/keycloak-auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/caps"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timers"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/store/memstore"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setup(t *testing.T) (*gin.Engine, *clock, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := memstore.New()
	project := s.Directory.AddProject("Apollo", "pm")
	task := s.Directory.AddTask(project, "Design")
	c := &clock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}

	logs := s.TimeLogs()
	svc := timers.NewService(quiet, s, s.Timers(), logs, s.Timesheets(), s.Directory,
		caps.NewValidator(logs, 8, quiet), lock.NewLocal(), time.UTC, c.Now)

	kc := keycloakauth.DefaultConfig()
	kc.PublicKeyBase64 = "gateway-only"
	r := gin.New()
	RegisterRoutes(r.Group("/api"), svc, api.AuthMiddleware(kc, true))
	return r, c, task
}

func call(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Role", "member")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTimerLifecycle(t *testing.T) {
	r, c, task := setup(t)

	w := call(r, http.MethodGet, "/api/timers/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var idle struct {
		Data ActiveTimerEnvelope `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &idle))
	assert.False(t, idle.Data.Active)
	assert.Nil(t, idle.Data.Timer)

	w = call(r, http.MethodPost, "/api/timers/start", StartTimerRequest{TaskID: task, Description: "pairing"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	c.Advance(90 * time.Minute)
	w = call(r, http.MethodGet, "/api/timers/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var running struct {
		Data ActiveTimerEnvelope `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &running))
	require.True(t, running.Data.Active)
	assert.Equal(t, "01:30:00", running.Data.Timer.Elapsed)
	assert.Equal(t, "Design", running.Data.Timer.TaskTitle)

	w = call(r, http.MethodPost, "/api/timers/stop", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stopped struct {
		Data StopTimerResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stopped))
	assert.Equal(t, "01:30:00", stopped.Data.Duration)
	assert.Equal(t, 1.5, stopped.Data.TimeLog.DurationHours)
	assert.Equal(t, "2026-10-15", stopped.Data.TimeLog.Date)
	assert.False(t, stopped.Data.TimeLog.IsManual)
	assert.False(t, stopped.Data.Session.IsActive)
}

func TestStart_BadRequests(t *testing.T) {
	r, _, task := setup(t)

	w := call(r, http.MethodPost, "/api/timers/start", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "taskId is required")

	w = call(r, http.MethodPost, "/api/timers/start", StartTimerRequest{TaskID: uuid.New()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "not_found", w.Header().Get(api.ErrorKindHeader))

	w = call(r, http.MethodPost, "/api/timers/start", StartTimerRequest{TaskID: task})
	require.Equal(t, http.StatusCreated, w.Code)
	w = call(r, http.MethodPost, "/api/timers/start", StartTimerRequest{TaskID: task})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "conflict", w.Header().Get(api.ErrorKindHeader))
}

func TestStopAndDiscard_WithoutTimer(t *testing.T) {
	r, _, _ := setup(t)

	w := call(r, http.MethodPost, "/api/timers/stop", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodDelete, "/api/timers/active", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
