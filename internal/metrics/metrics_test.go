package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	assert := assert_.New(t)
	m := New()

	m.RecordPostStarted()
	m.RecordPostStarted()
	m.RecordPostFinished("complete")
	m.RecordPostSkipped("skipped")
	m.RecordResource("imgur", "saved", 100)
	m.RecordResource("imgur", "duplicate", 50)
	m.RecordResource("direct", "error", 0)
	m.ResolveTimer("imgur")()

	assert.Equal(1.0, testutil.ToFloat64(m.PostsInProgress))
	assert.Equal(1.0, testutil.ToFloat64(m.PostsTotal.WithLabelValues("complete")))
	assert.Equal(1.0, testutil.ToFloat64(m.PostsTotal.WithLabelValues("skipped")))
	assert.Equal(1.0, testutil.ToFloat64(m.ResourcesTotal.WithLabelValues("imgur", "saved")))
	assert.Equal(150.0, testutil.ToFloat64(m.BytesDownloaded))
	assert.Equal(1, testutil.CollectAndCount(m.ResolveDuration))
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	assert_.NotPanics(t, func() {
		m.RecordPostStarted()
		m.RecordPostFinished("error")
		m.RecordPostSkipped("skipped")
		m.RecordResource("direct", "saved", 10)
		m.ResolveTimer("direct")()
	})
}

func TestHandler(t *testing.T) {
	assert := assert_.New(t)
	m := New()
	m.RecordResource("vreddit", "saved", 42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(string(body), `bulk_downloader_resources_total{outcome="saved",provider="vreddit"} 1`)
	assert.Contains(string(body), "bulk_downloader_resources_downloaded_bytes_total 42")
}
