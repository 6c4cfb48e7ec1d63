package node

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthMux(bound time.Duration) (*harness, *Watchdog, *http.ServeMux) {
	h := newHarness(testNodeCfg())
	wd := NewWatchdog(bound)
	return h, wd, NewMux(h.node, wd, nil, prometheus.NewRegistry())
}

func getJSON(t *testing.T, mux *http.ServeMux, path string, out any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
	return rr.Code
}

func TestReadyzStalenessFollowsWatchdogBound(t *testing.T) {
	_, wd, mux := newHealthMux(40 * time.Millisecond)
	wd.Pat()

	var body map[string]bool
	assert.Equal(t, http.StatusOK, getJSON(t, mux, "/readyz", &body))
	assert.True(t, body["ready"])

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, mux, "/readyz", &body))
	assert.False(t, body["ready"])

	// the same tick age is fine under a wider bound
	_, wd, mux = newHealthMux(500 * time.Millisecond)
	wd.Pat()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, http.StatusOK, getJSON(t, mux, "/readyz", &body))
	assert.True(t, body["ready"])
}

func TestHealthzDownOnStalledLoopDegradedOffline(t *testing.T) {
	_, wd, mux := newHealthMux(40 * time.Millisecond)
	wd.Pat()
	time.Sleep(60 * time.Millisecond)

	var st struct {
		Status string `json:"status"`
	}
	getJSON(t, mux, "/healthz", &st)
	assert.Equal(t, "down", st.Status)

	// a ticking loop without connectivity only degrades health
	h, wd2, mux2 := newHealthMux(time.Minute)
	wd2.Pat()
	getJSON(t, mux2, "/healthz", &st)
	assert.Equal(t, "degraded", st.Status)

	h.link.connected = true
	h.timesrc.synced = true
	getJSON(t, mux2, "/healthz", &st)
	assert.Equal(t, "ok", st.Status)
}
