package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/ilp"
	"github.com/interledger/relay-connector/internal/router"
)

const bearerPrefix = "Bearer "

// ConnectorPeer is the configured peer record FromPeerService matches
// incoming Authorization tokens against, grounded on
// interledger-relay's services/from_peer.rs ConnectorPeer.
type ConnectorPeer struct {
	Relation router.Relation
	Account  string
	Address  ilp.Address
	Auth     map[string]bool
}

// IsAuthorized reports whether token (with an optional "Bearer " prefix)
// matches one of the peer's configured tokens.
func (p ConnectorPeer) IsAuthorized(token string) bool {
	token = strings.TrimPrefix(token, bearerPrefix)
	return p.Auth[token]
}

// FromPeerService tags an incoming request with the account, relation, and
// address of the peer whose Authorization token matched (§4.3.2). The
// AuthToken middleware has already verified the token, so a peer should
// always be found here; a miss is logged and rejected defensively.
type FromPeerService struct {
	Address ilp.Address
	Peers   []ConnectorPeer
	Log     *logrus.Entry
	Next    Service
}

func NewFromPeerService(address ilp.Address, peers []ConnectorPeer, log *logrus.Entry, next Service) *FromPeerService {
	return &FromPeerService{Address: address, Peers: peers, Log: log, Next: next}
}

func (s *FromPeerService) Call(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
	auth := req.Headers.Get("Authorization")

	for _, peer := range s.Peers {
		if auth != "" && peer.IsAuthorized(auth) {
			req.FromAccount = peer.Account
			req.FromRelation = peer.Relation
			req.FromAddress = peer.Address
			return s.Next.Call(ctx, req)
		}
	}

	s.Log.WithField("auth", auth).Error("could not determine packet source")
	return nil, ilp.RejectBuilder{
		Code:        ilp.F00BadRequest,
		Message:     []byte("could not determine packet source"),
		TriggeredBy: s.Address,
	}.Build()
}
