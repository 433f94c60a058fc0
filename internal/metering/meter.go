// Package metering records token, cost and cache-hit metrics per provider
// call. The Meter keeps an approximate, non-durable in-memory stream of the
// most recent calls; the Journal (audit.go) is the durable counterpart.
package metering

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskmate/deskmate/internal/models"
)

const defaultCapacity = 1024

// Meter is a bounded ring buffer of the most recent usage metrics. Oldest
// entries are evicted first. Safe for concurrent use.
type Meter struct {
	mu       sync.RWMutex
	entries  []models.UsageMetric
	capacity int
	next     int // write position once the buffer is full
	full     bool
}

// ModelStats aggregates usage for a single model
type ModelStats struct {
	Requests int     `json:"requests"`
	Tokens   int     `json:"tokens"`
	CostUSD  float64 `json:"cost_usd"`
}

// Stats is the aggregate view over a time window
type Stats struct {
	TotalRequests int                   `json:"total_requests"`
	TotalTokens   int                   `json:"total_tokens"`
	TotalCostUSD  float64               `json:"total_cost_usd"`
	CacheHitRate  float64               `json:"cache_hit_rate"`
	ByModel       map[string]ModelStats `json:"by_model"`
}

// NewMeter creates a meter bounded at capacity entries. A non-positive
// capacity falls back to the default.
func NewMeter(capacity int) *Meter {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Meter{
		entries:  make([]models.UsageMetric, 0, capacity),
		capacity: capacity,
	}
}

// Record appends one metric, evicting the oldest entry when full. Missing
// id/timestamp/cost fields are filled in.
func (m *Meter) Record(metric models.UsageMetric) {
	if metric.ID == "" {
		metric.ID = uuid.NewString()
	}
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now()
	}
	if metric.CostUSD == 0 && !metric.CacheHit {
		metric.CostUSD = Cost(metric.Model, metric.Usage)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) < m.capacity {
		m.entries = append(m.entries, metric)
		return
	}
	m.entries[m.next] = metric
	m.next = (m.next + 1) % m.capacity
	m.full = true
}

// Len returns the number of retained metrics
func (m *Meter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats aggregates all retained metrics younger than the window
func (m *Meter) Stats(window time.Duration) Stats {
	cutoff := time.Now().Add(-window)

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{ByModel: make(map[string]ModelStats)}
	hits := 0
	for _, e := range m.entries {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalRequests++
		stats.TotalTokens += e.Usage.TotalTokens
		stats.TotalCostUSD += e.CostUSD
		if e.CacheHit {
			hits++
		}

		ms := stats.ByModel[e.Model]
		ms.Requests++
		ms.Tokens += e.Usage.TotalTokens
		ms.CostUSD += e.CostUSD
		stats.ByModel[e.Model] = ms
	}
	if stats.TotalRequests > 0 {
		stats.CacheHitRate = float64(hits) / float64(stats.TotalRequests)
	}
	return stats
}
