package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportReadLatencyPerMount(t *testing.T) {
	c, err := NewCollector("")
	require.NoError(t, err)

	images := c.ForMount("/images")
	images.ReportReadLatency(20*time.Millisecond, 4096)
	images.ReportReadLatency(40*time.Millisecond, 1024)
	c.ForMount("/docs").ReportReadLatency(time.Millisecond, 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.readCounter.WithLabelValues("/images")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.readCounter.WithLabelValues("/docs")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.readDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c, err := NewCollector("test")
	require.NoError(t, err)
	c.ForMount("/azure").ReportReadLatency(time.Millisecond, 1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `test_reads_total{mount="/azure"} 1`)
}

func TestNopReporter(t *testing.T) {
	var r ReadReporter = Nop{}
	r.ReportReadLatency(time.Second, 1)
}
