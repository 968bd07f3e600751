package router

import (
	"sort"
	"strings"
	"time"

	"github.com/interledger/relay-connector/internal/ilp"
)

// routeGroup is all routes sharing one TargetPrefix (§3 RoutingTable).
type routeGroup struct {
	prefix string
	routes []*DynamicRoute
}

// Table is the ordered set of route groups, longest-prefix-first with ties
// broken lexicographically (§4.4.1) — a deliberate redesign from the
// original Rust implementation's insertion-order "sticky prefix" scan,
// per the spec's explicit stated invariant (see DESIGN.md).
type Table struct {
	groups    []*routeGroup
	partition Partition
}

// NewTable groups statics by TargetPrefix (preserving insertion order
// within a group) and sorts groups longest-prefix-first, ties broken by
// prefix bytes ascending (§4.4.1).
func NewTable(statics []*StaticRoute, partition Partition, now time.Time) *Table {
	byPrefix := make(map[string]*routeGroup)
	var order []string
	for _, s := range statics {
		g, ok := byPrefix[s.TargetPrefix]
		if !ok {
			g = &routeGroup{prefix: s.TargetPrefix}
			byPrefix[s.TargetPrefix] = g
			order = append(order, s.TargetPrefix)
		}
		g.routes = append(g.routes, NewDynamicRoute(s, now))
	}

	groups := make([]*routeGroup, 0, len(order))
	for _, prefix := range order {
		groups = append(groups, byPrefix[prefix])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		pi, pj := groups[i].prefix, groups[j].prefix
		if len(pi) != len(pj) {
			return len(pi) > len(pj)
		}
		return pi < pj
	})

	return &Table{groups: groups, partition: partition}
}

// ErrNoRoute is the underlying cause of an F02_UNREACHABLE "no route
// exists" rejection: no group's prefix matches the destination.
var ErrNoRoute = newRouterError("no route exists")

// ErrNoHealthyRoute is the underlying cause of a T01_PEER_UNREACHABLE
// rejection: a group matched, but every route in it is currently Unhealthy.
var ErrNoHealthyRoute = newRouterError("no healthy route found")

type routerError struct{ msg string }

func (e *routerError) Error() string { return e.msg }

func newRouterError(msg string) error { return &routerError{msg: msg} }

// Resolve finds the longest matching prefix group for prepare's
// destination and selects one of its routes by partitioning (§4.4
// Resolution, §4.4.2 Partitioning).
func (t *Table) Resolve(prepare *ilp.Prepare, now time.Time) (*DynamicRoute, error) {
	dest := string(prepare.Destination)
	for _, g := range t.groups {
		if !strings.HasPrefix(dest, g.prefix) {
			continue
		}
		route := t.selectFromGroup(g, prepare, now)
		if route == nil {
			return nil, ErrNoHealthyRoute
		}
		return route, nil
	}
	return nil, ErrNoRoute
}

// selectFromGroup applies the weighted-partition walk of §4.4.2 over the
// currently-available routes in g, in group (insertion) order.
func (t *Table) selectFromGroup(g *routeGroup, prepare *ilp.Prepare, now time.Time) *DynamicRoute {
	available := make([]*DynamicRoute, 0, len(g.routes))
	var total float64
	for _, r := range g.routes {
		if r.IsAvailable(now) {
			available = append(available, r)
			total += r.Static.Partition
		}
	}
	if len(available) == 0 {
		return nil
	}
	if total <= 0 {
		return available[len(available)-1]
	}

	p := t.partition.position(prepare)
	for i, r := range available {
		f := r.Static.Partition / total
		if p <= f || i == len(available)-1 {
			return r
		}
		p -= f
	}
	return available[len(available)-1]
}
