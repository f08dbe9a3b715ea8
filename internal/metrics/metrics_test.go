package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/writer"
)

func TestObserver(t *testing.T) {
	m := New()
	obs := m.Observer()
	obs(writer.Commit{Category: model.CategoryPerson, Inserted: 1000, Total: 1000})
	obs(writer.Commit{Category: model.CategoryPerson, BatchIndex: 1, Inserted: 1, Total: 1001})

	assert.Equal(t, 1001.0, testutil.ToFloat64(m.RecordsWritten.WithLabelValues("PER")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Batches.WithLabelValues("PER")))
}

func TestObserveCategory(t *testing.T) {
	m := New()
	m.ObserveClosure(model.CategoryLocation, 4200)
	m.ObserveCategory(model.CategoryReport{
		Category: model.CategoryLocation,
		Status:   model.StatusCompleted,
		Skipped:  3,
		Duration: 2 * time.Second,
	})
	m.ObserveCategory(model.CategoryReport{Category: model.CategoryEvent, Status: model.StatusNotRun})

	assert.Equal(t, 4200.0, testutil.ToFloat64(m.ClosureSize.WithLabelValues("LOC")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsSkipped.WithLabelValues("LOC")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CategoryOutcome.WithLabelValues("LOC", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CategoryOutcome.WithLabelValues("EVE", "not_run")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CategoryDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observer()(writer.Commit{Category: model.CategoryPerson})
		m.ObserveClosure(model.CategoryPerson, 1)
		m.ObserveCategory(model.CategoryReport{Category: model.CategoryPerson})
	})
	assert.NoError(t, m.Push(context.Background(), "http://unused", "job", "run"))
}

func TestPush(t *testing.T) {
	var path string
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.ObserveClosure(model.CategoryPerson, 1)
	require.NoError(t, m.Push(context.Background(), srv.URL, "wikiner", "run-7"))
	assert.Equal(t, "/metrics/job/wikiner/run_id/run-7", path)
	assert.NotEmpty(t, body)
}

func TestPush_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "wikiner", "run")
	assert.Error(t, err)
}
