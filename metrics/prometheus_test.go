package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveStep("gpt-4o", "tool_calls", 120, 30, 2*time.Second)
	rec.ObserveStep("gpt-4o", "stop", 200, 50, time.Second)
	rec.ObserveToolCall("edit", "completed", 10*time.Millisecond)
	rec.ObserveToolCall("edit", "failed", 5*time.Millisecond)
	rec.ObserveToolCall("shell", "completed", time.Second)
	rec.ObserveTurn("ok", 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.stepsTotal.WithLabelValues("gpt-4o", "stop")))
	assert.Equal(t, 320.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("gpt-4o", "input")))
	assert.Equal(t, 80.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("gpt-4o", "output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.toolCallsTotal.WithLabelValues("edit", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.turnsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3, testutil.CollectAndCount(rec.toolCallsTotal))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	rec.ObserveTurn("error", time.Second)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `kodit_turns_total{status="error"} 1`)
}

func TestNopRecorder(t *testing.T) {
	rec := Nop()
	rec.ObserveStep("m", "stop", 1, 1, time.Millisecond)
	rec.ObserveToolCall("t", "completed", time.Millisecond)
	rec.ObserveTurn("ok", time.Millisecond)
}
