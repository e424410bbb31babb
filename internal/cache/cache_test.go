package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(c *clock) *TTLCache {
	return New(Options{TTL: 30 * time.Second, Now: c.now})
}

func TestKeyStringIsOrderIndependent(t *testing.T) {
	a := NewKey("projects", "user_id", "u1", "role", "client")
	b := NewKey("projects", "role", "client", "user_id", "u1")
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "projects|role=client|user_id=u1", a.String())
	assert.Equal(t, "materials", NewKey("materials").String())
}

func TestKeyStringKeepsSeparatorsInValuesDistinct(t *testing.T) {
	forged := Key{Entity: "projects", Params: map[string]string{"a": "1|b=2"}}
	split := Key{Entity: "projects", Params: map[string]string{"a": "1", "b": "2"}}
	assert.NotEqual(t, forged.String(), split.String())

	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tc := newTestCache(c)
	tc.Set(split, "split")
	_, ok := tc.Get(forged)
	assert.False(t, ok)

	tc.Set(forged, "forged")
	got, ok := tc.Get(split)
	require.True(t, ok)
	assert.Equal(t, "split", got)
}

func TestGetReturnsStoredValueWithinTTL(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tc := newTestCache(c)

	list := []string{"a", "b"}
	key := NewKey("projects", "user_id", "u1")
	tc.Set(key, list)

	c.advance(29 * time.Second)
	got, ok := tc.Get(key)
	require.True(t, ok)
	assert.Same(t, &list[0], &got.([]string)[0])
}

func TestGetTreatsExpiredEntryAsAbsent(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tc := newTestCache(c)

	key := NewKey("materials")
	tc.Set(key, 1)
	c.advance(31 * time.Second)

	_, ok := tc.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, tc.Size())
}

func TestInvalidateWholeFamily(t *testing.T) {
	c := &clock{t: time.Now()}
	tc := newTestCache(c)

	tc.Set(NewKey("projects", "user_id", "u1", "role", "client"), 1)
	tc.Set(NewKey("projects", "user_id", "u2", "role", "professional"), 2)
	tc.Set(NewKey("materials"), 3)

	removed := tc.Invalidate("projects", nil)
	assert.Equal(t, 2, removed)

	_, ok := tc.Get(NewKey("materials"))
	assert.True(t, ok)
	assert.Equal(t, 1, tc.Size())
}

func TestInvalidateParameterSubset(t *testing.T) {
	c := &clock{t: time.Now()}
	tc := newTestCache(c)

	tc.Set(NewKey("checklist", "project_id", "p1"), 1)
	tc.Set(NewKey("checklist", "project_id", "p2"), 2)

	assert.Equal(t, 1, tc.Invalidate("checklist", map[string]string{"project_id": "p1"}))

	_, ok := tc.Get(NewKey("checklist", "project_id", "p1"))
	assert.False(t, ok)
	_, ok = tc.Get(NewKey("checklist", "project_id", "p2"))
	assert.True(t, ok)
}

func TestInvalidateDoesNotMatchOnStringPrefix(t *testing.T) {
	c := &clock{t: time.Now()}
	tc := newTestCache(c)

	tc.Set(NewKey("materials"), 1)
	tc.Set(NewKey("materials_supplier", "supplier_id", "s1"), 2)

	tc.Invalidate("materials", nil)

	_, ok := tc.Get(NewKey("materials_supplier", "supplier_id", "s1"))
	assert.True(t, ok)
}

func TestStatsAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := &clock{t: time.Now()}
	tc := New(Options{Now: c.now, Metrics: metrics})

	key := NewKey("drones")
	_, _ = tc.Get(key)
	tc.Set(key, 1)
	_, _ = tc.Get(key)
	tc.Invalidate("drones", nil)

	stats := tc.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.hits.WithLabelValues("drones")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.misses.WithLabelValues("drones")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.invalidations.WithLabelValues("drones")))
}

func TestCleanupLoopSweepsExpired(t *testing.T) {
	tc := New(Options{TTL: time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	defer tc.Stop()

	tc.Set(NewKey("drones"), 1)
	assert.Eventually(t, func() bool { return tc.Size() == 0 }, time.Second, 5*time.Millisecond)
}
