package router

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/ilp"
	"github.com/interledger/relay-connector/internal/metrics"
)

// OutboundClient is the subset of the outbound HTTP client (§4.5) the
// router depends on. Defined here, rather than importing internal/client
// directly, so the router package has no dependency on the transport
// package — only a Go interface, matching the teacher's general
// interface-at-the-consumer style (internal/providers.Provider).
type OutboundClient interface {
	Send(ctx context.Context, uri string, auth string, prepare *ilp.Prepare) (*ilp.Fulfill, error)
}

// Router resolves a Prepare to a route, derives its outbound endpoint,
// dispatches it via OutboundClient, and updates the route's health before
// returning (§4.4).
type Router struct {
	table       *Table
	client      OutboundClient
	selfAddress ilp.Address
	log         *logrus.Entry

	// Metrics is optional; when set, Route reports each request's outcome
	// and the dispatched route's resulting health (§6 Metrics).
	Metrics *metrics.Registry
}

func New(table *Table, client OutboundClient, selfAddress ilp.Address, log *logrus.Entry) *Router {
	return &Router{table: table, client: client, selfAddress: selfAddress, log: log}
}

func (rt *Router) reject(code ilp.ErrorCode, message string) *ilp.Reject {
	return ilp.RejectBuilder{
		Code:        code,
		Message:     []byte(message),
		TriggeredBy: rt.selfAddress,
	}.Build()
}

// Route implements the full §4.4 Resolution → Endpoint derivation →
// Dispatch sequence.
func (rt *Router) Route(ctx context.Context, prepare *ilp.Prepare) (*ilp.Fulfill, error) {
	nowT := time.Now()
	route, err := rt.table.Resolve(prepare, nowT)
	if err != nil {
		rt.log.WithFields(logrus.Fields{
			"destination": string(prepare.Destination),
			"error":       err,
		}).Warn("routing resolution failed")
		switch {
		case errors.Is(err, ErrNoRoute):
			rt.observe("no_route")
			return nil, rt.reject(ilp.F02Unreachable, "no route exists")
		case errors.Is(err, ErrNoHealthyRoute):
			rt.observe("no_healthy_route")
			return nil, rt.reject(ilp.T01PeerUnreachable, "no healthy route found")
		default:
			rt.observe("internal_error")
			return nil, rt.reject(ilp.T00InternalError, "unexpected routing error")
		}
	}

	endpoint, err := route.Static.Endpoint(prepare.Destination)
	if err != nil {
		rt.log.WithFields(logrus.Fields{
			"destination": string(prepare.Destination),
			"prefix":      route.Static.TargetPrefix,
		}).Warn("invalid multilateral address segment")
		rt.observe("invalid_address")
		return nil, rt.reject(ilp.F02Unreachable, "invalid address segment")
	}

	fulfill, sendErr := rt.client.Send(ctx, endpoint, route.Static.NextHop.Auth, prepare)

	success := sendErr == nil
	if !success {
		var reject *ilp.Reject
		if errors.As(sendErr, &reject) {
			success = !IsUnhealthyOutcome(string(reject.Code), string(reject.TriggeredBy), string(rt.selfAddress))
		}
	}
	if demoted := route.Update(success, nowT); demoted {
		rt.log.WithFields(logrus.Fields{
			"prefix":  route.Static.TargetPrefix,
			"account": route.Static.Account,
		}).Warn("route demoted to unhealthy")
	}
	if rt.Metrics != nil {
		rt.Metrics.ObserveRoute(route.Static.TargetPrefix, route.IsAvailable(nowT))
	}

	if sendErr != nil {
		rt.observe("dispatch_error")
		return nil, sendErr
	}
	rt.observe("fulfill")
	return fulfill, nil
}

func (rt *Router) observe(result string) {
	if rt.Metrics != nil {
		rt.Metrics.RequestsTotal.WithLabelValues(result).Inc()
	}
}
