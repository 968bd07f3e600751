package router

import (
	"sync"
	"time"
)

// maxWindowDuration bounds how stale a Healthy route's window can get
// before it is reset on the next observation (§4.4.3).
const maxWindowDuration = 5 * time.Minute

// routeState is one of Infallible, Healthy, or Unhealthy (§3, §4.4.3). Only
// one of the Healthy/Unhealthy fields is meaningful, selected by Kind.
type routeStateKind int

const (
	stateInfallible routeStateKind = iota
	stateHealthy
	stateUnhealthy
)

type routeState struct {
	kind      routeStateKind
	remaining int
	failures  int
	updatedAt time.Time
	until     time.Time
}

// DynamicRoute pairs an immutable StaticRoute with its mutable health
// state. The mutex guards only the state transition itself, never I/O
// (§5, §9 "Shared routing state").
type DynamicRoute struct {
	Static *StaticRoute

	mu    sync.Mutex
	state routeState
}

// NewDynamicRoute initializes status per §4.4.1: Infallible if the route
// has no failover config, otherwise Healthy with a fresh window.
func NewDynamicRoute(s *StaticRoute, now time.Time) *DynamicRoute {
	d := &DynamicRoute{Static: s}
	if s.Failover == nil {
		d.state = routeState{kind: stateInfallible}
	} else {
		d.state = routeState{
			kind:      stateHealthy,
			remaining: s.Failover.WindowSize,
			failures:  0,
			updatedAt: now,
		}
	}
	return d
}

// IsAvailable reports whether the route may currently be selected: true for
// Infallible, Healthy, or Unhealthy whose until has already passed (§4.4.3).
func (d *DynamicRoute) IsAvailable(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state.kind {
	case stateInfallible, stateHealthy:
		return true
	default: // stateUnhealthy
		return now.After(d.state.until) || now.Equal(d.state.until)
	}
}

// Update applies an observed outcome (success or failure) to the route's
// health state at time now, per the transition table in §4.4.3. It returns
// true iff this call demoted the route from Healthy to Unhealthy, so
// callers can log the transition with route-identifying context the
// DynamicRoute itself doesn't carry.
func (d *DynamicRoute) Update(success bool, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	fo := d.Static.Failover
	switch d.state.kind {
	case stateInfallible:
		return false

	case stateHealthy:
		if fo == nil {
			return false
		}
		if now.Sub(d.state.updatedAt) > maxWindowDuration {
			d.state.remaining = fo.WindowSize
			d.state.failures = 0
		}
		d.state.remaining--
		if !success {
			d.state.failures++
		}
		d.state.updatedAt = now

		ratio := float64(d.state.failures) / float64(fo.WindowSize)
		if ratio >= fo.FailRatio {
			d.state.kind = stateUnhealthy
			d.state.until = now.Add(fo.FailDuration)
			return true
		}
		if d.state.remaining <= 0 {
			d.state.remaining = fo.WindowSize
			d.state.failures = 0
		}

	case stateUnhealthy:
		if now.Before(d.state.until) {
			return false
		}
		failures := 0
		if !success {
			failures = 1
		}
		d.state.kind = stateHealthy
		d.state.remaining = fo.WindowSize - failures
		d.state.failures = failures
		d.state.updatedAt = now
	}
	return false
}

// IsUnhealthyOutcome reports whether a Reject counts as a failure for
// health tracking: it must be T01_PEER_UNREACHABLE AND triggered_by the
// connector's own address (§4.4.3 "What counts as failure").
func IsUnhealthyOutcome(rejectCode string, triggeredBy, selfAddress string) bool {
	return rejectCode == "T01" && triggeredBy == selfAddress
}
