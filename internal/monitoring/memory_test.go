package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMonitorStats(t *testing.T) {
	mm := NewMemoryMonitor(time.Minute, 1<<30, NewLogger())
	mm.collectStats()

	stats := mm.GetStats()
	require.Contains(t, stats, "current")
	require.Contains(t, stats, "derived")

	current := stats["current"].(map[string]interface{})
	assert.Greater(t, current["num_goroutine"].(int), 0)
	assert.Len(t, mm.GetHistory(), 1)
}

func TestOptimizeMemory(t *testing.T) {
	mm := NewMemoryMonitor(time.Minute, 1<<30, NewLogger())
	mm.collectStats()

	before := mm.GetStats()["current"].(map[string]interface{})["num_gc"].(uint32)
	mm.OptimizeMemory()
	mm.collectStats()
	after := mm.GetStats()["current"].(map[string]interface{})["num_gc"].(uint32)

	// FreeOSMemory forces at least one collection
	assert.Greater(t, after, before)
}
