package services

import (
	"context"
	"time"

	"github.com/interledger/relay-connector/internal/ilp"
)

// EchoRequestPrefix and EchoResponsePrefix are the fixed 17-byte magic
// markers an echo Prepare's data begins with (§4.3.4).
var (
	EchoRequestPrefix  = []byte("ECHOECHOECHOECHO\x00")
	EchoResponsePrefix = []byte("ECHOECHOECHOECHO\x01")
)

// MinMessageWindow is subtracted from expires_at when rewriting an echo
// request into its outgoing Prepare, matching the original's fixed 1s
// allowance for the return trip.
const MinMessageWindow = 1 * time.Second

// EchoService answers "echo" Prepares addressed to the connector's own
// address by rewriting them into a Prepare addressed back at the
// requester, grounded on interledger-relay's services/echo.rs. Unlike the
// original (left disabled there, pending a RequestFromPeer rework), this
// port wires it into the chain, adding a loop-prevention check the
// original's Design Notes flag as an open question (§4.3.4).
type EchoService struct {
	Address ilp.Address
	Next    Service
}

func NewEchoService(address ilp.Address, next Service) *EchoService {
	return &EchoService{Address: address, Next: next}
}

func (s *EchoService) Call(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
	prepare := req.Prepare
	if prepare.Destination != s.Address {
		return s.Next.Call(ctx, req)
	}

	from, err := deserializeEchoRequest(prepare.Data)
	if err != nil {
		return nil, s.reject(ilp.F01InvalidPacket, "invalid echo request")
	}

	if s.Address.IsPrefixOf(from) {
		return nil, s.reject(ilp.F02Unreachable, "echo loop detected")
	}

	outgoing := &ilp.Prepare{
		Amount:             prepare.Amount,
		ExpiresAt:          prepare.ExpiresAt.Add(-MinMessageWindow),
		ExecutionCondition: prepare.ExecutionCondition,
		Destination:        from,
		Data:               EchoResponsePrefix,
	}
	next := *req
	next.Prepare = outgoing
	return s.Next.Call(ctx, &next)
}

func (s *EchoService) reject(code ilp.ErrorCode, message string) *ilp.Reject {
	return ilp.RejectBuilder{
		Code:        code,
		Message:     []byte(message),
		TriggeredBy: s.Address,
	}.Build()
}

// deserializeEchoRequest parses the magic prefix and source address out of
// an echo Prepare's data field.
func deserializeEchoRequest(data []byte) (ilp.Address, error) {
	if len(data) < len(EchoRequestPrefix) {
		return "", ilp.ErrInvalidAddress
	}
	for i, b := range EchoRequestPrefix {
		if data[i] != b {
			return "", ilp.ErrInvalidAddress
		}
	}
	rest := data[len(EchoRequestPrefix):]
	return ilp.ReadAddressVarOctetString(rest)
}
