package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jumperz11/Linkdinscrap/internal/bot"
	"github.com/jumperz11/Linkdinscrap/internal/engine"
	"github.com/jumperz11/Linkdinscrap/internal/models"
	"github.com/jumperz11/Linkdinscrap/internal/store"
)

type fakeEngine struct {
	status   engine.Status
	startErr error
	started  []models.RunConfig
	stopped  bool
}

func (f *fakeEngine) Status() engine.Status { return f.status }

func (f *fakeEngine) StartRun(ctx context.Context, cfg models.RunConfig) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, cfg)
	return "run-1", nil
}

func (f *fakeEngine) RequestStop() { f.stopped = true }

type fakeTrigger struct {
	rule    models.TriggerRule
	applied []models.TriggerRule
}

func (f *fakeTrigger) Apply(rule models.TriggerRule) error {
	f.rule = rule
	f.applied = append(f.applied, rule)
	return nil
}

func (f *fakeTrigger) Rule() models.TriggerRule { return f.rule }

func testServer(t *testing.T) (*Server, *fakeEngine, *fakeTrigger, *gin.Engine) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.Migrate(context.Background()))

	fe := &fakeEngine{status: engine.Status{State: engine.StateIdle}}
	ft := &fakeTrigger{}
	s := New(Options{
		Engine:  fe,
		Trigger: ft,
		Store:   st,
		Defaults: RunDefaults{
			Keywords: "product manager", ScoreThreshold: 75, MaxProfiles: 10,
			MaxDurationMin: 30, MinDelayMs: 1000, MaxDelayMs: 3000, EnableConnect: true,
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	s.registerRoutes(router)
	return s, fe, ft, router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	_, fe, _, router := testServer(t)
	fe.status = engine.Status{
		State:   engine.StateRunning,
		Run:     &models.Run{ID: "r1", Status: models.StatusRunning, Visited: 4},
		Current: "Pat PM (pat-pm)",
	}

	w := doJSON(t, router, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp["state"])
	assert.Equal(t, "Pat PM (pat-pm)", resp["current"])
}

func TestStartRunPassesKeywords(t *testing.T) {
	_, fe, _, router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/runs", `{"keywords":"golang"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, fe.started, 1)
	assert.Equal(t, "golang", fe.started[0].Keywords)
	assert.Equal(t, 30*time.Minute, fe.started[0].MaxDuration)

	// Empty body falls back to configured defaults.
	w = doJSON(t, router, http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "product manager", fe.started[1].Keywords)
}

func TestStartRunErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&bot.ConflictError{RunID: "r1"}, http.StatusConflict},
		{&bot.AuthError{Reason: "stale"}, http.StatusUnauthorized},
		{&bot.ValidationError{Field: "keywords", Msg: "required"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		_, fe, _, router := testServer(t)
		fe.startErr = tt.err
		w := doJSON(t, router, http.MethodPost, "/api/runs", "")
		assert.Equal(t, tt.code, w.Code, "%T", tt.err)
	}
}

func TestStopRun(t *testing.T) {
	_, fe, _, router := testServer(t)
	w := doJSON(t, router, http.MethodPost, "/api/runs/stop", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, fe.stopped)
}

func TestPutConfigValidates(t *testing.T) {
	s, _, _, router := testServer(t)

	w := doJSON(t, router, http.MethodPut, "/api/config",
		`{"keywords":"rust","score_threshold":60,"max_profiles":5,"max_duration_minutes":15,"min_delay_ms":500,"max_delay_ms":900,"enable_follow":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rust", s.runDefaults().Keywords)
	assert.True(t, s.runDefaults().EnableFollow)

	w = doJSON(t, router, http.MethodPut, "/api/config",
		`{"score_threshold":600,"max_profiles":5,"max_duration_minutes":15,"min_delay_ms":500,"max_delay_ms":900}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPutTriggerPersistsAndApplies(t *testing.T) {
	s, _, ft, router := testServer(t)

	w := doJSON(t, router, http.MethodPut, "/api/trigger",
		`{"enabled":true,"times":["09:00"],"days":["mon","wed"],"keywords":"golang"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, ft.applied, 1)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, ft.applied[0].Days)

	saved, err := s.store.GetTriggerRule(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "golang", saved.Keywords)

	w = doJSON(t, router, http.MethodPut, "/api/trigger",
		`{"enabled":true,"times":["26:00"],"days":["mon"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestNextFireEndpoint(t *testing.T) {
	_, _, ft, router := testServer(t)

	w := doJSON(t, router, http.MethodGet, "/api/trigger/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"next":null`)

	ft.rule = models.TriggerRule{
		Enabled: true,
		Times:   []string{"09:00"},
		Days:    []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday},
	}
	w = doJSON(t, router, http.MethodGet, "/api/trigger/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"next":null`)
}
