package metering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deskmate/deskmate/internal/models"
)

func metric(model string, tokens int, cacheHit bool) models.UsageMetric {
	return models.UsageMetric{
		Model:    model,
		Usage:    models.Usage{PromptTokens: tokens / 2, CompletionTokens: tokens - tokens/2, TotalTokens: tokens},
		CallType: models.CallTypeConversation,
		CacheHit: cacheHit,
	}
}

func TestMeterRecordFillsDefaults(t *testing.T) {
	m := NewMeter(10)
	m.Record(metric("gpt-4o-mini", 1000, false))

	stats := m.Stats(time.Hour)
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1000, stats.TotalTokens)
	assert.InDelta(t, 0.000075+0.0003, stats.TotalCostUSD, 1e-9)
}

func TestMeterRingEviction(t *testing.T) {
	m := NewMeter(3)
	for i := 0; i < 5; i++ {
		m.Record(metric("gpt-4o", 100, false))
	}
	assert.Equal(t, 3, m.Len(), "ring must be bounded at capacity")

	stats := m.Stats(time.Hour)
	assert.Equal(t, 3, stats.TotalRequests)
}

func TestMeterStatsWindow(t *testing.T) {
	m := NewMeter(10)

	old := metric("gpt-4o", 100, false)
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	m.Record(old)
	m.Record(metric("gpt-4o", 200, false))

	stats := m.Stats(time.Hour)
	assert.Equal(t, 1, stats.TotalRequests, "entries outside the window are excluded")
	assert.Equal(t, 200, stats.TotalTokens)
}

func TestMeterCacheHitRate(t *testing.T) {
	m := NewMeter(10)
	m.Record(metric("gpt-4o-mini", 100, true))
	m.Record(metric("gpt-4o-mini", 100, true))
	m.Record(metric("gpt-4o-mini", 100, false))
	m.Record(metric("gpt-4o-mini", 100, false))

	stats := m.Stats(time.Hour)
	assert.InDelta(t, 0.5, stats.CacheHitRate, 1e-9)
}

func TestMeterByModel(t *testing.T) {
	m := NewMeter(10)
	m.Record(metric("gpt-4o", 100, false))
	m.Record(metric("gpt-4o", 100, false))
	m.Record(metric("gpt-4o-mini", 50, false))

	stats := m.Stats(time.Hour)
	assert.Equal(t, 2, stats.ByModel["gpt-4o"].Requests)
	assert.Equal(t, 200, stats.ByModel["gpt-4o"].Tokens)
	assert.Equal(t, 1, stats.ByModel["gpt-4o-mini"].Requests)
}

func TestMeterConcurrentRecord(t *testing.T) {
	m := NewMeter(64)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				m.Record(metric("gpt-4o", 10, false))
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 64, m.Len())
}

func TestCostUnknownModel(t *testing.T) {
	assert.Zero(t, Cost("some-unknown-model", models.Usage{TotalTokens: 10000, PromptTokens: 5000, CompletionTokens: 5000}))
}
