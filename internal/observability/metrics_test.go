package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_RequestsBucketedByStatusClass(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordRequest("/protocols", "POST", 201, time.Millisecond)
	metrics.RecordRequest("/protocols", "POST", 202, time.Millisecond)
	metrics.RecordRequest("/protocols", "POST", 409, time.Millisecond)

	snapshot := metrics.RequestSnapshot()
	assert.Equal(t, int64(2), snapshot["/protocols|POST|2xx"])
	assert.Equal(t, int64(1), snapshot["/protocols|POST|4xx"])
}

func TestMetrics_ErrorsKeyedByCode(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordError("/protocols/:id/launch", "POST", "PRECONDITION_FAILED")
	metrics.RecordError("/protocols/:id/launch", "POST", "PRECONDITION_FAILED")
	metrics.RecordError("webhook", "POST", "WEBHOOK_FAILED")

	snapshot := metrics.ErrorSnapshot()
	assert.Equal(t, int64(2), snapshot["/protocols/:id/launch|POST|PRECONDITION_FAILED"])
	assert.Equal(t, int64(1), snapshot["webhook|POST|WEBHOOK_FAILED"])
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.RecordRequest("/protocols", "GET", 200, time.Millisecond)
		metrics.RecordError("/protocols", "GET", "INTERNAL_ERROR")
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "unknown", statusClass(0))
}
