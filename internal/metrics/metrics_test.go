package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/classify"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Jobs(t *testing.T) {
	m := New()

	m.JobSubmitted()
	m.JobSubmitted()
	m.JobFinished("completed", 2*time.Second)
	m.JobFinished("failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsFinished.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsFinished.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.pipelineDuration))
}

func TestMetrics_Events(t *testing.T) {
	m := New()

	m.EventsProcessed(classify.Stats{
		TotalEvents:       3,
		BloomDistribution: map[string]int{"Remember": 2, "Unknown": 1},
	}, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsClassified.WithLabelValues("Remember")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsClassified.WithLabelValues("Unknown")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.eventsDropped))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.JobSubmitted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "moodlelogsmart_jobs_submitted_total 1"))
	assert.Contains(t, body, "go_goroutines")
}
