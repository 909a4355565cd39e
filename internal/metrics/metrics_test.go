package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := New("annotator")

	c.ObserveBackend("get_data", "ok", 20*time.Millisecond)
	c.ObserveBackend("get_data", "ok", 10*time.Millisecond)
	c.Edit("BRUSH")
	c.Edit("")
	c.SetUndoDepth(3)
	c.Save("busy")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.BackendRequests.WithLabelValues("get_data", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Edits.WithLabelValues("BRUSH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Edits.WithLabelValues("none")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.UndoDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Saves.WithLabelValues("busy")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveBackend("x", "ok", time.Second)
		c.Edit("BBOX")
		c.SetUndoDepth(1)
		c.Save("ok")
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	c := New("annotator")
	c.SetUndoDepth(5)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "annotator_undo_depth 5")
}
