package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()
	c.RecordTiming("GET /leads", 10*time.Millisecond, false)
	c.RecordTiming("GET /leads", 30*time.Millisecond, true)
	c.RecordTiming("GET /jobs", 5*time.Millisecond, false)

	snap := c.Snapshot()
	require.Len(t, snap.Operations, 2)
	assert.Equal(t, "GET /jobs", snap.Operations[0].Operation)

	leads := snap.Operations[1]
	assert.Equal(t, int64(2), leads.Count)
	assert.Equal(t, int64(1), leads.Failures)
	assert.Equal(t, int64(10), leads.MinTimeMs)
	assert.Equal(t, int64(30), leads.MaxTimeMs)
	assert.InDelta(t, 20.0, leads.AvgTimeMs, 0.001)
}

func TestCollectorEmpty(t *testing.T) {
	c := NewCollector()
	assert.Empty(t, c.Snapshot().Operations)
	assert.Zero(t, c.Count("GET /leads"))
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming("GET /jobs", time.Millisecond, false)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Count("GET /jobs"))
}
