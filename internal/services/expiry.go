package services

import (
	"context"
	"errors"
	"time"

	"github.com/interledger/relay-connector/internal/ilp"
)

// DefaultMaxTimeout bounds the deadline ExpiryService derives even when a
// Prepare's own expiry would allow longer (§4.3.1).
const DefaultMaxTimeout = 60 * time.Second

// ExpiryService is the sole authority on per-packet deadlines: it derives a
// context.WithTimeout from the Prepare's expires_at (capped at MaxTimeout)
// that the downstream HTTP client's request respects, grounded on
// interledger-relay's services/expiry.rs.
type ExpiryService struct {
	Address    ilp.Address
	MaxTimeout time.Duration
	Next       Service
}

func NewExpiryService(address ilp.Address, maxTimeout time.Duration, next Service) *ExpiryService {
	if maxTimeout <= 0 {
		maxTimeout = DefaultMaxTimeout
	}
	return &ExpiryService{Address: address, MaxTimeout: maxTimeout, Next: next}
}

func (s *ExpiryService) Call(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
	expiresIn := time.Until(req.Prepare.ExpiresAt)
	if expiresIn <= 0 {
		return nil, s.reject(ilp.R02InsufficientTimeout, "insufficient timeout")
	}

	timeout := expiresIn
	if s.MaxTimeout < timeout {
		timeout = s.MaxTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fulfill, err := s.Next.Call(timeoutCtx, req)
	if err == nil {
		return fulfill, nil
	}

	var reject *ilp.Reject
	if errors.As(err, &reject) {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, s.reject(ilp.R00TransferTimedOut, "request timed out")
	}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return nil, s.reject(ilp.R00TransferTimedOut, "request timed out")
	}
	return nil, s.reject(ilp.T00InternalError, "timer error")
}

func (s *ExpiryService) reject(code ilp.ErrorCode, message string) *ilp.Reject {
	return ilp.RejectBuilder{
		Code:        code,
		Message:     []byte(message),
		TriggeredBy: s.Address,
	}.Build()
}
