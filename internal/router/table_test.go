package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/relay-connector/internal/ilp"
)

func staticRoute(prefix, account string, partition float64, kind NextHopKind, endpoint string) *StaticRoute {
	return &StaticRoute{
		TargetPrefix: prefix,
		Account:      account,
		Partition:    partition,
		NextHop:      NextHop{Kind: kind, Endpoint: endpoint},
	}
}

func TestTableResolveLongestPrefixWins(t *testing.T) {
	now := time.Now()
	statics := []*StaticRoute{
		staticRoute("test.", "parent", 1, Bilateral, "http://parent"),
		staticRoute("test.relay.", "child", 1, Bilateral, "http://child"),
	}
	table := NewTable(statics, PartitionDestination, now)

	route, err := table.Resolve(&ilp.Prepare{Destination: ilp.MustAddress("test.relay.alice")}, now)
	require.NoError(t, err)
	assert.Equal(t, "child", route.Static.Account)
}

func TestTableResolveFallsBackToShorterPrefix(t *testing.T) {
	now := time.Now()
	statics := []*StaticRoute{
		staticRoute("test.", "parent", 1, Bilateral, "http://parent"),
		staticRoute("test.relay.", "child", 1, Bilateral, "http://child"),
	}
	table := NewTable(statics, PartitionDestination, now)

	route, err := table.Resolve(&ilp.Prepare{Destination: ilp.MustAddress("test.other.bob")}, now)
	require.NoError(t, err)
	assert.Equal(t, "parent", route.Static.Account)
}

func TestTableResolveNoRoute(t *testing.T) {
	now := time.Now()
	table := NewTable(nil, PartitionDestination, now)
	_, err := table.Resolve(&ilp.Prepare{Destination: ilp.MustAddress("test.relay.alice")}, now)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestTableResolveNoHealthyRoute(t *testing.T) {
	now := time.Now()
	s := staticRoute("test.relay.", "only", 1, Bilateral, "http://only")
	s.Failover = &Failover{WindowSize: 1, FailRatio: 0.5, FailDuration: time.Minute}
	table := NewTable([]*StaticRoute{s}, PartitionDestination, now)

	route, err := table.Resolve(&ilp.Prepare{Destination: ilp.MustAddress("test.relay.alice")}, now)
	require.NoError(t, err)
	route.Update(false, now)

	_, err = table.Resolve(&ilp.Prepare{Destination: ilp.MustAddress("test.relay.alice")}, now)
	assert.ErrorIs(t, err, ErrNoHealthyRoute)
}

func TestTableGroupsByPrefixInsertionOrder(t *testing.T) {
	now := time.Now()
	statics := []*StaticRoute{
		staticRoute("test.relay.", "first", 1, Bilateral, "http://a"),
		staticRoute("test.relay.", "second", 1, Bilateral, "http://b"),
	}
	table := NewTable(statics, PartitionDestination, now)
	require.Len(t, table.groups, 1)
	require.Len(t, table.groups[0].routes, 2)
	assert.Equal(t, "first", table.groups[0].routes[0].Static.Account)
	assert.Equal(t, "second", table.groups[0].routes[1].Static.Account)
}

func TestSelectFromGroupWeightedSplit(t *testing.T) {
	now := time.Now()
	// Two routes weighted 0.9 and 0.1: across 200 distinct destinations
	// the weighted walk picks the heavier route more often.
	heavy := staticRoute("test.relay.", "heavy", 0.9, Bilateral, "http://heavy")
	light := staticRoute("test.relay.", "light", 0.1, Bilateral, "http://light")
	table := NewTable([]*StaticRoute{heavy, light}, PartitionDestination, now)

	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		dest := ilp.MustAddress("test.relay.user" + string(rune('a'+i%26)) + string(rune('0'+i/26)))
		route, err := table.Resolve(&ilp.Prepare{Destination: dest}, now)
		require.NoError(t, err)
		counts[route.Static.Account]++
	}
	assert.Greater(t, counts["heavy"], counts["light"])
}

func TestSelectFromGroupZeroTotalWeightFallsBackToLast(t *testing.T) {
	now := time.Now()
	a := staticRoute("test.relay.", "a", 0, Bilateral, "http://a")
	b := staticRoute("test.relay.", "b", 0, Bilateral, "http://b")
	table := NewTable([]*StaticRoute{a, b}, PartitionDestination, now)

	route, err := table.Resolve(&ilp.Prepare{Destination: ilp.MustAddress("test.relay.alice")}, now)
	require.NoError(t, err)
	assert.Equal(t, "b", route.Static.Account)
}
