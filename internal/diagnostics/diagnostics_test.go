package diagnostics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/deepwalk/deepwalk/internal/traverse"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerReportsEngineCounters(t *testing.T) {
	engine := traverse.NewEngine()
	engine.Metrics.TotalOpened.Store(3)
	engine.Metrics.ArchiveCacheHits.Store(7)

	d := New(engine, "test-build")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics.json", nil)

	d.router().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)

	var data metricsData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	require.Equal(t, int64(3), data.TotalOpened)
	require.Equal(t, int64(7), data.ArchiveCacheHits)
	require.Equal(t, "test-build", data.Version)
}

func TestIndexHandlerServesHTML(t *testing.T) {
	d := New(traverse.NewEngine(), "test-build")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)

	d.router().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "deepwalk diagnostics")
}
