package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMetricsSingleton(t *testing.T) {
	assert.Same(t, GetMetrics(), GetMetrics())
}

func TestMetricsRecordOperations(t *testing.T) {
	m := GetMetrics()
	m.ResetMetrics()

	m.RecordLeaseOperation("create", nil)
	m.RecordLeaseOperation("sign", nil)
	m.RecordLeaseOperation("activate", nil)
	m.RecordPaymentOperation("complete", nil)
	m.RecordPaymentOperation("complete", nil)
	m.RecordPaymentOperation("fail", errors.New("перевод отклонен"))

	snapshot := m.GetMetricsSnapshot()
	assert.Equal(t, int64(1), snapshot["leases_created"])
	assert.Equal(t, int64(1), snapshot["leases_signed"])
	assert.Equal(t, int64(1), snapshot["leases_activated"])
	assert.Equal(t, int64(2), snapshot["payments_completed"])
	assert.Equal(t, int64(1), snapshot["payments_failed"])
	assert.Equal(t, int64(1), snapshot["error_count"])
}

func TestMetricsRecordError(t *testing.T) {
	m := GetMetrics()
	m.ResetMetrics()

	m.RecordError(errors.New("boom"))
	m.RecordError(errors.New("boom"))
	m.RecordCriticalError(errors.New("fatal"))

	snapshot := m.GetMetricsSnapshot()
	assert.Equal(t, int64(3), snapshot["error_count"])
	assert.Equal(t, int64(1), snapshot["critical_errors"])

	errorTypes, ok := snapshot["error_types"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(2), errorTypes["boom"])
	assert.Equal(t, int64(1), errorTypes["fatal"])
}

func TestMetricsRecordRequest(t *testing.T) {
	m := GetMetrics()
	m.ResetMetrics()

	m.RecordRequest(10*time.Millisecond, nil)
	m.RecordRequest(30*time.Millisecond, errors.New("timeout"))

	snapshot := m.GetMetricsSnapshot()
	assert.Equal(t, int64(2), snapshot["total_requests"])
	assert.Equal(t, int64(1), snapshot["failed_requests"])
	assert.Equal(t, 20*time.Millisecond, snapshot["average_latency"])
}
