package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitetime/internal/clock"
	"github.com/goodtune/sitetime/internal/storage/memory"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.May, 15, 12, 30, 0, 0, time.UTC)

type testEnv struct {
	router   *gin.Engine
	tracker  *usage.Tracker
	backups  *usage.Backups
	recorder *usage.Recorder
	clock    *clock.Manual
}

func newTestEnv(t *testing.T, withRecorder bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tracker, err := usage.NewTracker(memory.New(), usage.Config{Key: "sitetime", Location: time.UTC}, zerolog.Nop())
	require.NoError(t, err)

	c := clock.NewManual(testNow)
	env := &testEnv{
		tracker: tracker,
		backups: usage.NewBackups(tracker, 5, c, zerolog.Nop()),
		clock:   c,
	}
	if withRecorder {
		env.recorder = usage.NewRecorder(tracker, usage.RecorderConfig{Domain: "example.com", Clock: c}, zerolog.Nop())
	}

	env.router = gin.New()
	SetupRoutes(env.router, Deps{
		Tracker:  env.tracker,
		Backups:  env.backups,
		Recorder: env.recorder,
		Clock:    c,
		Logger:   zerolog.Nop(),
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestApply_CreditsDomain(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/apply", `{"domain":"Example.com","timestamp":"2024-05-15T12:10:00Z","seconds":30}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := env.tracker.Domain(context.Background(), "Example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(30), rec.TotalTime)
	assert.Equal(t, int64(30), rec.WeeklyData["2024-W20"])

	// Whole-number floats are accepted, timestamp defaults to the clock.
	w = env.do(t, http.MethodPost, "/api/apply", `{"domain":"Example.com","seconds":12.0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err = env.tracker.Domain(context.Background(), "Example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.TotalTime)
}

func TestApply_OverflowRejected(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/apply", `{"domain":"example.com","seconds":9223372036854775807}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/apply", `{"domain":"example.com","seconds":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "overflow", decodeBody(t, w)["error"])

	rec, err := env.tracker.Domain(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), rec.TotalTime)
}

func TestApply_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "fractional", body: `{"domain":"example.com","seconds":1.5}`, code: "invalid_seconds"},
		{name: "negative", body: `{"domain":"example.com","seconds":-3}`, code: "invalid_seconds"},
		{name: "missing seconds", body: `{"domain":"example.com"}`, code: "invalid_seconds"},
		{name: "empty domain", body: `{"domain":"  ","seconds":3}`, code: "invalid_request"},
		{name: "not json", body: `seconds=3`, code: "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)

			w := env.do(t, http.MethodPost, "/api/apply", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeBody(t, w)["error"])

			snap, err := env.tracker.Snapshot(context.Background())
			require.NoError(t, err)
			assert.Empty(t, snap)
		})
	}
}

func TestDomains_ListAndGet(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	require.NoError(t, env.tracker.Apply(ctx, "a.com", testNow, 100))
	require.NoError(t, env.tracker.Apply(ctx, "b.com", testNow, 300))

	w := env.do(t, http.MethodGet, "/api/domains", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Sites      []usage.DomainSummary `json:"sites"`
		TotalSites int                   `json:"totalSites"`
		TotalTime  int64                 `json:"totalTime"`
		Formatted  string                `json:"formatted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.TotalSites)
	assert.Equal(t, int64(400), list.TotalTime)
	assert.Equal(t, "6m 40s", list.Formatted)
	require.Len(t, list.Sites, 2)
	assert.Equal(t, "b.com", list.Sites[0].Domain)

	w = env.do(t, http.MethodGet, "/api/domains/a.com?days=3", "")
	require.Equal(t, http.StatusOK, w.Code)

	var detail struct {
		Record *usage.Record `json:"record"`
		Recent struct {
			Hours []usage.Point `json:"hours"`
			Days  []usage.Point `json:"days"`
			Weeks []usage.Point `json:"weeks"`
		} `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, int64(100), detail.Record.TotalTime)
	require.Len(t, detail.Recent.Hours, usage.RecentHourCount)
	require.Len(t, detail.Recent.Days, 3)
	require.Len(t, detail.Recent.Weeks, usage.RecentWeekCount)
	assert.Equal(t, int64(100), detail.Recent.Hours[len(detail.Recent.Hours)-1].Seconds)
	assert.Equal(t, "2024-05-15", detail.Recent.Days[2].Key)
	assert.Equal(t, int64(100), detail.Recent.Weeks[len(detail.Recent.Weeks)-1].Seconds)

	w = env.do(t, http.MethodGet, "/api/domains/missing.com", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignals(t *testing.T) {
	t.Run("no recorder", func(t *testing.T) {
		env := newTestEnv(t, false)

		w := env.do(t, http.MethodPost, "/api/signals", `{"type":"input"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = env.do(t, http.MethodGet, "/api/status", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("queued", func(t *testing.T) {
		env := newTestEnv(t, true)

		w := env.do(t, http.MethodPost, "/api/signals", `{"type":"focus","domain":"other.com"}`)
		assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		w = env.do(t, http.MethodGet, "/api/status", "")
		require.Equal(t, http.StatusOK, w.Code)
		status := decodeBody(t, w)
		assert.Equal(t, "example.com", status["domain"])
		assert.Equal(t, "active", status["state"])
	})

	t.Run("invalid", func(t *testing.T) {
		env := newTestEnv(t, true)

		w := env.do(t, http.MethodPost, "/api/signals", `{"type":"focus"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(t, http.MethodPost, "/api/signals", `{"type":"scroll"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStore_ImportMergesExisting(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tracker.Apply(context.Background(), "example.com", testNow, 100))

	payload := `{"version":"1.0","data":{"example.com":{"totalTime":50,"sessions":[],"hourlyData":{},"dailyData":{"2024-05-15":50},"weeklyData":{"2024-W20":50}}}}`
	w := env.do(t, http.MethodPost, "/api/import", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, w)["sitesImported"])

	rec, err := env.tracker.Domain(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(150), rec.TotalTime)
	assert.Equal(t, int64(150), rec.DailyData["2024-05-15"])
}

func TestStore_ImportRejectsMalformed(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tracker.Apply(context.Background(), "example.com", testNow, 100))

	w := env.do(t, http.MethodPost, "/api/import", `{"version":"1.0"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "invalid_format", body["error"])
	assert.Equal(t, "data", body["field"])

	rec, err := env.tracker.Domain(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.TotalTime)
}

func TestStore_ReplaceAndGet(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tracker.Apply(context.Background(), "old.com", testNow, 100))

	w := env.do(t, http.MethodPut, "/api/store", `{"data":{"new.com":{"totalTime":7}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/store", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap usage.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap, 1)
	assert.Equal(t, int64(7), snap["new.com"].TotalTime)
}

func TestStore_ClearRequiresConfirmation(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tracker.Apply(context.Background(), "example.com", testNow, 100))

	w := env.do(t, http.MethodDelete, "/api/store", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "confirmation_required", decodeBody(t, w)["error"])

	snap, err := env.tracker.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap, 1)

	w = env.do(t, http.MethodDelete, "/api/store?confirm=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	snap, err = env.tracker.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestStore_Export(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.tracker.Apply(context.Background(), "example.com", testNow, 100))

	w := env.do(t, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sitetime-2024-05-15.json")

	var payload struct {
		Version    string         `json:"version"`
		TotalSites int            `json:"totalSites"`
		TotalTime  int64          `json:"totalTime"`
		Data       usage.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "1.0", payload.Version)
	assert.Equal(t, 1, payload.TotalSites)
	assert.Equal(t, int64(100), payload.TotalTime)

	w = env.do(t, http.MethodGet, "/api/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "example.com")

	w = env.do(t, http.MethodGet, "/api/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackups(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	require.NoError(t, env.tracker.Apply(ctx, "example.com", testNow, 100))

	w := env.do(t, http.MethodPost, "/api/backups", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decodeBody(t, w)["id"].(string)
	require.NotEmpty(t, id)

	require.NoError(t, env.tracker.Apply(ctx, "example.com", testNow, 900))

	w = env.do(t, http.MethodGet, "/api/backups", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody(t, w)
	assert.Equal(t, float64(1), list["count"])
	assert.Equal(t, float64(5), list["retention"])

	w = env.do(t, http.MethodPost, "/api/backups/"+id+"/restore", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := env.tracker.Domain(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.TotalTime)

	w = env.do(t, http.MethodPost, "/api/backups/sitetime_backup_1/restore", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in      json.Number
		want    int64
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "30", want: 30},
		{in: "12.0", want: 12},
		{in: "1e2", want: 100},
		{in: "1.5", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "-2.0", wantErr: true},
		{in: "", wantErr: true},
		{in: "9223372036854775807", want: 9223372036854775807},
		{in: "9223372036854775808", wantErr: true},
		{in: "9223372036854775807.0", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseSeconds(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "parseSeconds(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "parseSeconds(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestServer_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracker, err := usage.NewTracker(memory.New(), usage.Config{Location: time.UTC}, zerolog.Nop())
	require.NoError(t, err)

	srv := NewServer(Config{ListenAddr: "127.0.0.1:0"}, Deps{
		Tracker: tracker,
		Backups: usage.NewBackups(tracker, 0, nil, zerolog.Nop()),
		Logger:  zerolog.Nop(),
	})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
