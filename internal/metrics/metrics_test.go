// SPDX-License-Identifier: MIT
package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestNewRegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	assert.Error(t, err, "registering the same collectors twice should fail")
}

func TestProducerMetrics(t *testing.T) {
	m := newTestMetrics(t)

	m.ChunkEnqueued()
	m.ChunkEnqueued()
	m.StreamError()
	m.SetQueueDepth(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.chunksEnqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamErrors))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth))
}

func TestRecordIngest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordIngest(1, 0)
	m.RecordIngest(0, 24)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.chunksIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.samplesDiscarded))
	assert.Equal(t, 24.0, testutil.ToFloat64(m.samplesEvicted))
}

func TestRecordTick(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordTick(false, time.Millisecond)
	m.RecordTick(true, time.Millisecond)
	m.RecordTick(true, 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.spectrumTicks.WithLabelValues("false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.spectrumTicks.WithLabelValues("true")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickDuration))
}

func TestRecordRender(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRender(nil)
	m.RecordRender(errors.New("client gone"))
	m.RecordRender(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesRendered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renderErrors))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ChunkEnqueued()
		m.StreamError()
		m.SetQueueDepth(3)
		m.RecordIngest(1, 2)
		m.RecordTick(true, time.Second)
		m.RecordRender(errors.New("x"))
	})
}

func TestHandler(t *testing.T) {
	m := newTestMetrics(t)
	m.ChunkEnqueued()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "audioviz_chunks_enqueued_total 1"), body)
}
