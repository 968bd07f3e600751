// Package router implements the routing engine: table construction,
// longest-prefix resolution, partitioned load splitting, and per-route
// health/failover tracking (§4.4).
package router

import (
	"fmt"
	"time"

	"github.com/interledger/relay-connector/internal/ilp"
)

// Relation mirrors ilp peer relations used when deriving endpoints.
type Relation int

const (
	RelationChild Relation = iota
	RelationPeer
	RelationParent
)

// NextHopKind distinguishes a single fixed endpoint from one derived
// per-destination (§4.4 Endpoint derivation).
type NextHopKind int

const (
	Bilateral NextHopKind = iota
	Multilateral
)

// NextHop describes how to derive the outbound URI for a route.
type NextHop struct {
	Kind NextHopKind

	// Bilateral
	Endpoint string

	// Multilateral
	EndpointPrefix string
	EndpointSuffix string

	// Auth, shared by both kinds, sent as the outbound Authorization header.
	Auth string
}

// Failover configures the window/ratio/duration governing a route's
// health-tracking state machine (§4.4.3).
type Failover struct {
	WindowSize   int
	FailRatio    float64
	FailDuration time.Duration
}

// StaticRoute is the immutable, configuration-derived part of a route.
type StaticRoute struct {
	TargetPrefix string
	NextHop      NextHop
	Account      string
	Failover     *Failover
	Partition    float64
}

// ErrInvalidSegment is returned by Endpoint when the destination's
// address segment following TargetPrefix is missing or illegal.
var ErrInvalidSegment = fmt.Errorf("invalid address segment")

// Endpoint derives the outbound URI for destination, given this route's
// TargetPrefix has already been confirmed to match it (§4.4 Endpoint
// derivation). For Bilateral hops the endpoint is returned unchanged; for
// Multilateral hops the address segment immediately following TargetPrefix
// is extracted, validated, and substituted between EndpointPrefix and
// EndpointSuffix.
func (s *StaticRoute) Endpoint(destination ilp.Address) (string, error) {
	if s.NextHop.Kind == Bilateral {
		return s.NextHop.Endpoint, nil
	}
	segment, err := parseAddressSegment(string(destination), s.TargetPrefix)
	if err != nil {
		return "", err
	}
	return s.NextHop.EndpointPrefix + segment + s.NextHop.EndpointSuffix, nil
}

// parseAddressSegment extracts the address segment of dest immediately
// following prefix and validates it as a legal address segment
// ([A-Za-z0-9_-]+, non-empty).
func parseAddressSegment(dest, prefix string) (string, error) {
	if len(dest) < len(prefix) || dest[:len(prefix)] != prefix {
		return "", ErrInvalidSegment
	}
	rest := dest[len(prefix):]
	end := len(rest)
	for i := 0; i < len(rest); i++ {
		if rest[i] == '.' {
			end = i
			break
		}
	}
	segment := rest[:end]
	if err := ilp.ValidateAddressSegment(segment); err != nil {
		return "", ErrInvalidSegment
	}
	return segment, nil
}
