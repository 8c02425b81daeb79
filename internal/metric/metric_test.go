package metric

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CatalogueEntry(EntryLoaded)
		m.ObserveLoad(time.Second)
		m.DefinitionParsed("geographic")
		m.PipelineCreated()
		m.PipelineFailed("create")
		m.PipelineClosed()
		m.PointsTransformed("serial", 1, 2, time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.CatalogueEntry(EntryLoaded)
	m.CatalogueEntry(EntryLoaded)
	m.CatalogueEntry(EntryMalformed)
	m.PipelineCreated()
	m.PipelineCreated()
	m.PipelineClosed()
	m.PipelineFailed("normalize")
	m.PointsTransformed("serial", 10, 2, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.catalogueEntries.WithLabelValues(EntryLoaded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogueEntries.WithLabelValues(EntryMalformed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pipelinesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.openPipelines))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineFailures.WithLabelValues("normalize")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.pointsTransformed.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pointsTransformed.WithLabelValues("failed")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.PipelineCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "geocrs_pipeline_created_total 1")
}
