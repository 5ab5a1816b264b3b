package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthInfo contains database health check results.
type HealthInfo struct {
	Timestamp         time.Time      `json:"timestamp"`
	Status            string         `json:"status"`
	Driver            string         `json:"driver"`
	Error             string         `json:"error,omitempty"`
	Warning           string         `json:"warning,omitempty"`
	HistoricalMetrics MetricsSummary `json:"historical_metrics"`
	PoolStats         PoolStats      `json:"pool_stats"`
	QueryLatency      time.Duration  `json:"query_latency_ns"`
}

// PoolStats contains connection pool statistics.
type PoolStats struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration_ns"`
}

// HealthCheck reports pool statistics and the latency of a trivial query.
// Results are cached for a few seconds to keep frequent monitoring cheap.
func (s *Store) HealthCheck(ctx context.Context) *HealthInfo {
	s.healthCacheMu.RLock()
	if s.cachedHealth != nil && time.Since(s.healthCacheTime) < s.healthCacheTTL {
		cached := s.cachedHealth
		s.healthCacheMu.RUnlock()
		return cached
	}
	s.healthCacheMu.RUnlock()

	return s.HealthCheckForce(ctx)
}

// HealthCheckForce performs a health check bypassing the cache.
func (s *Store) HealthCheckForce(ctx context.Context) *HealthInfo {
	info := s.performHealthCheck(ctx)

	s.healthCacheMu.Lock()
	s.cachedHealth = info
	s.healthCacheTime = time.Now()
	s.healthCacheMu.Unlock()

	return info
}

func (s *Store) performHealthCheck(ctx context.Context) *HealthInfo {
	ctx, cancel := context.WithTimeout(ctx, FastQueryTimeout)
	defer cancel()

	info := &HealthInfo{
		Status:    StatusHealthy,
		Driver:    s.driver,
		Timestamp: time.Now(),
	}

	stats := s.Stats()
	info.PoolStats = PoolStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}
	s.metrics.RecordPoolStats(stats)

	start := time.Now()
	var one int
	err := s.sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	info.QueryLatency = time.Since(start)

	s.metrics.RecordLatency(info.QueryLatency)
	info.HistoricalMetrics = s.metrics.Summary()

	if err != nil {
		info.Status = StatusUnhealthy
		info.Error = err.Error()
		return info
	}

	switch {
	case stats.OpenConnections > 0 && float64(stats.InUse)/float64(stats.OpenConnections) > 0.8:
		info.Status = StatusDegraded
		info.Warning = "Connection pool heavily utilized"
	case stats.WaitCount > 100 && stats.WaitDuration > 100*time.Millisecond:
		info.Status = StatusDegraded
		info.Warning = "Connection pool contention detected"
	case info.QueryLatency > s.slowOperation:
		info.Status = StatusDegraded
		info.Warning = fmt.Sprintf("Slow query latency: %v", info.QueryLatency)
	case info.HistoricalMetrics.P95Latency > s.slowOperation:
		info.Status = StatusDegraded
		info.Warning = fmt.Sprintf("High P95 latency: %v", info.HistoricalMetrics.P95Latency)
	}

	return info
}

// PoolMetrics tracks query latency over a sliding window and pool peaks.
type PoolMetrics struct {
	lastSampleTime time.Time
	samples        []time.Duration
	next           int
	count          int
	totalQueries   int64
	peakInUse      int
	peakWaitCount  int64
	mu             sync.RWMutex
}

// MetricsSummary contains aggregated pool metrics.
type MetricsSummary struct {
	LastSampleTime time.Time     `json:"last_sample_time"`
	TotalQueries   int64         `json:"total_queries"`
	SampleCount    int           `json:"sample_count"`
	AvgLatency     time.Duration `json:"avg_latency_ns"`
	MaxLatency     time.Duration `json:"max_latency_ns"`
	P95Latency     time.Duration `json:"p95_latency_ns,omitempty"`
	PeakInUse      int           `json:"peak_in_use"`
	PeakWaitCount  int64         `json:"peak_wait_count"`
}

// NewPoolMetrics creates a collector keeping the last window latency samples.
func NewPoolMetrics(window int) *PoolMetrics {
	if window <= 0 {
		window = 100
	}
	return &PoolMetrics{samples: make([]time.Duration, window)}
}

// RecordLatency records a query latency sample.
func (m *PoolMetrics) RecordLatency(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples[m.next] = latency
	m.next = (m.next + 1) % len(m.samples)
	if m.count < len(m.samples) {
		m.count++
	}
	m.totalQueries++
	m.lastSampleTime = time.Now()
}

// RecordPoolStats records pool statistics for peak tracking.
func (m *PoolMetrics) RecordPoolStats(stats sql.DBStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.peakInUse = max(m.peakInUse, stats.InUse)
	m.peakWaitCount = max(m.peakWaitCount, stats.WaitCount)
}

// Summary aggregates the collected samples. P95 needs at least 20 samples.
func (m *PoolMetrics) Summary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := MetricsSummary{
		TotalQueries:   m.totalQueries,
		SampleCount:    m.count,
		PeakInUse:      m.peakInUse,
		PeakWaitCount:  m.peakWaitCount,
		LastSampleTime: m.lastSampleTime,
	}
	if m.count == 0 {
		return summary
	}

	sorted := slices.Clone(m.samples[:m.count])
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	summary.AvgLatency = total / time.Duration(m.count)
	summary.MaxLatency = sorted[len(sorted)-1]
	if m.count >= 20 {
		summary.P95Latency = sorted[int(float64(len(sorted))*0.95)]
	}
	return summary
}

// GetMetrics returns the current metrics without performing a health check.
func (s *Store) GetMetrics() MetricsSummary {
	return s.metrics.Summary()
}
