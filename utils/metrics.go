package utils

import (
	"errors"
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики займов: число успешных переходов по целевому состоянию
	Transitions       map[string]int64
	RejectedCommands  int64
	LastTransitionAt  time.Time
	StockReservations int64
	StockReleases     int64

	// Метрики сверки
	SweepRuns        int64
	SweepFinalized   int64
	SweepOverdue     int64
	SweepFailures    int64
	LastSweepTime    time.Time
	LastSweepLatency time.Duration

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// NewMetrics создает пустой набор метрик
func NewMetrics() *Metrics {
	return &Metrics{
		Transitions: make(map[string]int64),
		ErrorTypes:  make(map[string]int64),
	}
}

// GetMetrics возвращает общий экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// RecordRequest записывает метрики запроса
func (m *Metrics) RecordRequest(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if failed {
		m.FailedRequests++
	}
}

// RecordTransition записывает переход займа в новое состояние
func (m *Metrics) RecordTransition(newState string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Transitions[newState]++
	m.LastTransitionAt = time.Now()
}

// RecordStock записывает изменение остатка: delta < 0 выдача, delta > 0 возврат
func (m *Metrics) RecordStock(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case delta < 0:
		m.StockReservations++
	case delta > 0:
		m.StockReleases++
	}
}

// RecordRejectedCommand записывает отказ операции жизненного цикла
func (m *Metrics) RecordRejectedCommand(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RejectedCommands++
	m.recordError(err)
}

// RecordSweep записывает результат прохода сверки
func (m *Metrics) RecordSweep(duration time.Duration, finalized, overdue, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SweepRuns++
	m.SweepFinalized += int64(finalized)
	m.SweepOverdue += int64(overdue)
	m.SweepFailures += int64(failed)
	m.LastSweepTime = time.Now()
	m.LastSweepLatency = duration
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recordError(err)
}

func (m *Metrics) recordError(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		// Группируем по исходной ошибке, без подробностей обертки
		for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
			err = inner
		}
		errorType = err.Error()
	}

	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	transitions := make(map[string]int64, len(m.Transitions))
	for k, v := range m.Transitions {
		transitions[k] = v
	}
	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for k, v := range m.ErrorTypes {
		errorTypes[k] = v
	}

	return map[string]interface{}{
		"total_requests":     m.TotalRequests,
		"failed_requests":    m.FailedRequests,
		"average_latency":    m.AverageLatency.String(),
		"transitions":        transitions,
		"rejected_commands":  m.RejectedCommands,
		"stock_reservations": m.StockReservations,
		"stock_releases":     m.StockReleases,
		"sweep_runs":         m.SweepRuns,
		"sweep_finalized":    m.SweepFinalized,
		"sweep_overdue":      m.SweepOverdue,
		"sweep_failures":     m.SweepFailures,
		"last_sweep_time":    m.LastSweepTime,
		"error_count":        m.ErrorCount,
		"last_error_time":    m.LastErrorTime,
		"error_types":        errorTypes,
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
	m.Transitions = make(map[string]int64)
	m.RejectedCommands = 0
	m.StockReservations = 0
	m.StockReleases = 0
	m.SweepRuns = 0
	m.SweepFinalized = 0
	m.SweepOverdue = 0
	m.SweepFailures = 0
	m.ErrorCount = 0
	m.ErrorTypes = make(map[string]int64)
}
