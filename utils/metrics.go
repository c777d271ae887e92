package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests     int64
	FailedRequests    int64
	RequestLatency    time.Duration
	AverageLatency    time.Duration
	LastRequestTime   time.Time
	RequestsPerMinute float64

	// Метрики договоров
	LeasesCreated      int64
	LeasesSigned       int64
	LeasesActivated    int64
	LeasesTerminated   int64
	LeasesExpired      int64
	LastLeaseOperation time.Time

	// Метрики платежей
	ObligationsCreated   int64
	PaymentsInitiated    int64
	PaymentsCompleted    int64
	PaymentsFailed       int64
	ObligationsLate      int64
	LastPaymentOperation time.Time

	// Метрики ошибок
	ErrorCount     int64
	LastErrorTime  time.Time
	ErrorTypes     map[string]int64
	CriticalErrors int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics возвращает экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			ErrorTypes: make(map[string]int64),
		}
	})
	return metrics
}

// RecordRequest записывает метрики запроса
func (m *Metrics) RecordRequest(duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if err != nil {
		m.FailedRequests++
		m.recordErrorLocked(err)
	}

	// Обновляем количество запросов в минуту
	if m.LastRequestTime.Sub(m.LastRequestTime.Add(-time.Minute)) >= time.Minute {
		m.RequestsPerMinute = float64(m.TotalRequests) / time.Since(m.LastRequestTime).Minutes()
	}
}

// RecordLeaseOperation записывает метрики операции с договором
func (m *Metrics) RecordLeaseOperation(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastLeaseOperation = time.Now()

	switch operation {
	case "create":
		m.LeasesCreated++
	case "sign":
		m.LeasesSigned++
	case "activate":
		m.LeasesActivated++
	case "terminate":
		m.LeasesTerminated++
	case "expire":
		m.LeasesExpired++
	}

	if err != nil {
		m.recordErrorLocked(err)
	}
}

// RecordPaymentOperation записывает метрики платежной операции
func (m *Metrics) RecordPaymentOperation(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastPaymentOperation = time.Now()

	switch operation {
	case "create":
		m.ObligationsCreated++
	case "initiate":
		m.PaymentsInitiated++
	case "complete":
		m.PaymentsCompleted++
	case "fail":
		m.PaymentsFailed++
	case "late":
		m.ObligationsLate++
	}

	if err != nil {
		m.recordErrorLocked(err)
	}
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(err)
}

// RecordCriticalError записывает метрики критической ошибки
func (m *Metrics) RecordCriticalError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CriticalErrors++
	m.recordErrorLocked(err)
}

func (m *Metrics) recordErrorLocked(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}

	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"total_requests":      m.TotalRequests,
		"failed_requests":     m.FailedRequests,
		"average_latency":     m.AverageLatency,
		"requests_per_minute": m.RequestsPerMinute,
		"leases_created":      m.LeasesCreated,
		"leases_signed":       m.LeasesSigned,
		"leases_activated":    m.LeasesActivated,
		"leases_terminated":   m.LeasesTerminated,
		"leases_expired":      m.LeasesExpired,
		"obligations_created": m.ObligationsCreated,
		"payments_initiated":  m.PaymentsInitiated,
		"payments_completed":  m.PaymentsCompleted,
		"payments_failed":     m.PaymentsFailed,
		"obligations_late":    m.ObligationsLate,
		"error_count":         m.ErrorCount,
		"critical_errors":     m.CriticalErrors,
		"last_error_time":     m.LastErrorTime,
		"error_types":         m.ErrorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.RequestsPerMinute = 0
	m.LeasesCreated = 0
	m.LeasesSigned = 0
	m.LeasesActivated = 0
	m.LeasesTerminated = 0
	m.LeasesExpired = 0
	m.ObligationsCreated = 0
	m.PaymentsInitiated = 0
	m.PaymentsCompleted = 0
	m.PaymentsFailed = 0
	m.ObligationsLate = 0
	m.ErrorCount = 0
	m.CriticalErrors = 0
	m.ErrorTypes = make(map[string]int64)
}
