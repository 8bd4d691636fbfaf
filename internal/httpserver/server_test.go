package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/config"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/metrics"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/reconcile"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/status"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, mutate func(d *deps.Deps)) (http.Handler, *status.Tracker) {
	t.Helper()
	tracker := status.NewTracker()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := deps.Deps{
		Logger:    logger.Nop(),
		StartTime: start,
		Version:   "v1.2.3",
		TimeNow:   func() time.Time { return start.Add(90 * time.Second) },
		Tracker:   tracker,
		Metrics:   metrics.New(),
		Interval:  time.Minute,
	}
	if mutate != nil {
		mutate(&d)
	}
	return New(&config.Config{ListenAddr: "127.0.0.1:0"}, logger.Nop(), d).Handler(), tracker
}

func get(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := get(h, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "v1.2.3", body["version"])
	assert.InDelta(t, 90.0, body["uptime_seconds"], 0.001)
}

func TestReadyzBeforeAndAfterFirstCycle(t *testing.T) {
	h, tracker := newTestServer(t, nil)

	rec := get(h, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, tracker.Record(context.Background(), &reconcile.Report{CycleID: "c1"}))

	rec = get(h, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true,"cycles":1}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	t.Run("starting", func(t *testing.T) {
		h, _ := newTestServer(t, nil)

		rec := get(h, "/status", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "starting", body["state"])
		assert.Nil(t, body["last_report"])
	})

	t.Run("running", func(t *testing.T) {
		h, tracker := newTestServer(t, nil)
		finished := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
		require.NoError(t, tracker.Record(context.Background(), &reconcile.Report{
			CycleID:         "c1",
			FinishedAt:      finished,
			InvalidServices: []string{"web"},
			DeletedServices: 1,
		}))

		rec := get(h, "/status", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			State      string            `json:"state"`
			Cycles     int               `json:"cycles"`
			NextCycle  string            `json:"next_cycle"`
			LastReport *reconcile.Report `json:"last_report"`
			Components map[string]struct {
				OK      bool `json:"ok"`
				Enabled bool `json:"enabled"`
			} `json:"components"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "running", body.State)
		assert.Equal(t, 1, body.Cycles)
		assert.Equal(t, "2024-01-01T00:02:00Z", body.NextCycle)
		require.NotNil(t, body.LastReport)
		assert.Equal(t, []string{"web"}, body.LastReport.InvalidServices)
		assert.False(t, body.Components["redis"].Enabled)
	})

	t.Run("degraded sink", func(t *testing.T) {
		h, tracker := newTestServer(t, func(d *deps.Deps) {
			d.ReportStore = pingerFunc(func(context.Context) error { return errors.New("connection refused") })
		})
		require.NoError(t, tracker.Record(context.Background(), &reconcile.Report{CycleID: "c1"}))

		rec := get(h, "/status", "")
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["state"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := get(h, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAllowedCIDRs(t *testing.T) {
	h, _ := newTestServer(t, func(d *deps.Deps) {
		d.AllowedCIDRs = []string{"10.0.0.0/8"}
	})

	assert.Equal(t, http.StatusForbidden, get(h, "/metrics", "192.168.1.5:4000").Code)
	assert.Equal(t, http.StatusForbidden, get(h, "/status", "192.168.1.5:4000").Code)
	assert.Equal(t, http.StatusOK, get(h, "/metrics", "10.1.1.1:4000").Code)
	// probes stay open
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/readyz", "192.168.1.5:4000").Code)
	assert.Equal(t, http.StatusOK, get(h, "/healthz", "192.168.1.5:4000").Code)
}

func TestServerListenServeStop(t *testing.T) {
	d := deps.Deps{Logger: logger.Nop(), Tracker: status.NewTracker()}
	s := New(&config.Config{ListenAddr: "127.0.0.1:0"}, logger.Nop(), d)

	require.NoError(t, s.Listen())
	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.NoError(t, <-done)
}
