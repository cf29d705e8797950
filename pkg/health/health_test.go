package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("all passing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("always-ok", time.Second, func(context.Context) error { return nil })
		h.Start(context.Background(), 50*time.Millisecond)
		defer h.Stop()
		h.SetReady(true)

		rec := httptest.NewRecorder()
		h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decodeStatus(t, rec).Status)

		rec = httptest.NewRecorder()
		h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("failing check reported with its error", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
			return errors.New("connection refused")
		})
		h.Start(context.Background(), 50*time.Millisecond)
		defer h.Stop()
		h.SetReady(true)

		rec := httptest.NewRecorder()
		h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decodeStatus(t, rec)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "connection refused", resp.Checks["postgres"])
	})

	t.Run("not ready until SetReady", func(t *testing.T) {
		h := New()

		rec := httptest.NewRecorder()
		h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.False(t, h.IsReady())

		h.SetReady(true)
		assert.True(t, h.IsReady())

		rec = httptest.NewRecorder()
		h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readiness failure does not affect liveness", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
			return errors.New("down")
		})
		h.Start(context.Background(), 50*time.Millisecond)
		defer h.Stop()

		rec := httptest.NewRecorder()
		h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealthScheduler(t *testing.T) {
	t.Run("runs checks repeatedly", func(t *testing.T) {
		var runs atomic.Int32
		h := New()
		h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
			runs.Add(1)
			return nil
		})

		h.Start(context.Background(), 10*time.Millisecond)
		defer h.Stop()

		require.Eventually(t, func() bool {
			return runs.Load() >= 3
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("checks run before Start returns", func(t *testing.T) {
		var runs atomic.Int32
		h := New()
		h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
			runs.Add(1)
			return nil
		})

		h.Start(context.Background(), time.Hour)
		defer h.Stop()

		assert.Equal(t, int32(1), runs.Load())
	})

	t.Run("stop halts the scheduler", func(t *testing.T) {
		var runs atomic.Int32
		h := New()
		h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
			runs.Add(1)
			return nil
		})

		h.Start(context.Background(), 10*time.Millisecond)
		h.Stop()

		after := runs.Load()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, after, runs.Load())
	})

	t.Run("stop twice is safe", func(t *testing.T) {
		h := New()
		h.Start(context.Background(), time.Minute)
		h.Stop()
		assert.NotPanics(t, h.Stop)
	})
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
