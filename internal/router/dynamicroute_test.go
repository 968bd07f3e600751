package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDynamicRouteInfallible(t *testing.T) {
	d := NewDynamicRoute(&StaticRoute{}, time.Now())
	assert.True(t, d.IsAvailable(time.Now()))
	demoted := d.Update(false, time.Now())
	assert.False(t, demoted)
	assert.True(t, d.IsAvailable(time.Now()))
}

// Ported from original_source's dynamic_route.rs test_update table.
func TestDynamicRouteUpdateTransitions(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	fo := &Failover{WindowSize: 2, FailRatio: 0.5, FailDuration: time.Second}

	t.Run("healthy success decrements remaining", func(t *testing.T) {
		d := NewDynamicRoute(&StaticRoute{Failover: fo}, base)
		demoted := d.Update(true, base.Add(time.Millisecond))
		assert.False(t, demoted)
		assert.Equal(t, stateHealthy, d.state.kind)
		assert.Equal(t, 1, d.state.remaining)
		assert.Equal(t, 0, d.state.failures)
	})

	t.Run("failures crossing ratio demotes to unhealthy", func(t *testing.T) {
		d := NewDynamicRoute(&StaticRoute{Failover: fo}, base)
		demoted := d.Update(false, base.Add(time.Millisecond))
		assert.True(t, demoted)
		assert.Equal(t, stateUnhealthy, d.state.kind)
		assert.False(t, d.IsAvailable(base.Add(time.Millisecond)))
		assert.True(t, d.IsAvailable(base.Add(2*time.Second)))
	})

	t.Run("window resets when exhausted without crossing ratio", func(t *testing.T) {
		fo := &Failover{WindowSize: 4, FailRatio: 0.9, FailDuration: time.Second}
		d := NewDynamicRoute(&StaticRoute{Failover: fo}, base)
		for i := 0; i < 4; i++ {
			d.Update(true, base.Add(time.Duration(i+1)*time.Millisecond))
		}
		assert.Equal(t, stateHealthy, d.state.kind)
		assert.Equal(t, 4, d.state.remaining)
		assert.Equal(t, 0, d.state.failures)
	})

	t.Run("stale window resets before accounting", func(t *testing.T) {
		d := NewDynamicRoute(&StaticRoute{Failover: fo}, base)
		d.state.remaining = 0
		d.state.failures = 0
		d.state.updatedAt = base
		stale := base.Add(maxWindowDuration + time.Second)
		d.Update(true, stale)
		assert.Equal(t, fo.WindowSize-1, d.state.remaining)
	})

	t.Run("unhealthy before until is a no-op", func(t *testing.T) {
		d := NewDynamicRoute(&StaticRoute{Failover: fo}, base)
		d.Update(false, base.Add(time.Millisecond))
		require_unhealthy(t, d)
		demoted := d.Update(true, base.Add(2*time.Millisecond))
		assert.False(t, demoted)
		assert.Equal(t, stateUnhealthy, d.state.kind)
	})

	t.Run("unhealthy after until transitions back to healthy", func(t *testing.T) {
		d := NewDynamicRoute(&StaticRoute{Failover: fo}, base)
		d.Update(false, base.Add(time.Millisecond))
		require_unhealthy(t, d)
		after := d.state.until.Add(time.Millisecond)
		d.Update(true, after)
		assert.Equal(t, stateHealthy, d.state.kind)
		assert.Equal(t, fo.WindowSize, d.state.remaining)
		assert.Equal(t, 0, d.state.failures)
	})

	t.Run("unhealthy after until with a failing probe counts it", func(t *testing.T) {
		d := NewDynamicRoute(&StaticRoute{Failover: fo}, base)
		d.Update(false, base.Add(time.Millisecond))
		require_unhealthy(t, d)
		after := d.state.until.Add(time.Millisecond)
		d.Update(false, after)
		assert.Equal(t, stateHealthy, d.state.kind)
		assert.Equal(t, fo.WindowSize-1, d.state.remaining)
		assert.Equal(t, 1, d.state.failures)
	})
}

func require_unhealthy(t *testing.T, d *DynamicRoute) {
	t.Helper()
	assert.Equal(t, stateUnhealthy, d.state.kind)
}

func TestIsUnhealthyOutcome(t *testing.T) {
	assert.True(t, IsUnhealthyOutcome("T01", "test.relay", "test.relay"))
	assert.False(t, IsUnhealthyOutcome("T01", "test.other", "test.relay"))
	assert.False(t, IsUnhealthyOutcome("F02", "test.relay", "test.relay"))
}
