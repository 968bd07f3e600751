package services

import (
	"context"

	"github.com/interledger/relay-connector/internal/ilp"
)

// Routable is the subset of *router.Router the pipeline depends on, so
// this package has no import of internal/router beyond the Relation type
// (mirroring router.OutboundClient's interface-at-the-consumer style).
type Routable interface {
	Route(ctx context.Context, prepare *ilp.Prepare) (*ilp.Fulfill, error)
}

// RouterService adapts a Routable (the routing engine) to Service,
// terminating the pipeline (§4.4).
type RouterService struct {
	Router Routable
}

func NewRouterService(router Routable) *RouterService {
	return &RouterService{Router: router}
}

func (s *RouterService) Call(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
	return s.Router.Route(ctx, req.Prepare)
}
