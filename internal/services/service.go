package services

import (
	"context"

	"github.com/interledger/relay-connector/internal/ilp"
)

// Service is one stage of the packet pipeline (§4.3). A non-nil error that
// is (or wraps) an *ilp.Reject is the ILP rejection to send back to the
// peer; any other error is a bug and should not normally escape a stage.
type Service interface {
	Call(ctx context.Context, req *Request) (*ilp.Fulfill, error)
}

// ServiceFunc adapts a plain function to Service, the way http.HandlerFunc
// adapts a function to http.Handler.
type ServiceFunc func(ctx context.Context, req *Request) (*ilp.Fulfill, error)

func (f ServiceFunc) Call(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
	return f(ctx, req)
}
