package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/ilp"
	"github.com/interledger/relay-connector/internal/router"
)

// ConfigService answers ILDCP requests (destination = peer.config) from
// Child peers, deriving the child's client_address as
// from_address + "." + ILP-Peer-Name, grounded on
// interledger-relay's services/ildcp.rs.
type ConfigService struct {
	Address    ilp.Address
	AssetScale uint8
	AssetCode  []byte
	Log        *logrus.Entry
	Next       Service
}

func NewConfigService(address ilp.Address, assetScale uint8, assetCode []byte, log *logrus.Entry, next Service) *ConfigService {
	return &ConfigService{Address: address, AssetScale: assetScale, AssetCode: assetCode, Log: log, Next: next}
}

func (s *ConfigService) Call(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
	if !ilp.IsIldcpRequest(req.Prepare) {
		return s.Next.Call(ctx, req)
	}

	if req.FromRelation != router.RelationChild {
		s.Log.WithFields(logrus.Fields{
			"from_relation": req.FromRelation,
			"from_address":  string(req.FromAddress),
		}).Warn("ildcp request from non-child peer")
		return nil, s.reject("ILDCP request from non-child peer")
	}

	peerName := req.Headers.Get("ILP-Peer-Name")
	if peerName == "" {
		s.Log.WithField("from_address", string(req.FromAddress)).
			Warn("ildcp request missing ILP-Peer-Name")
		return nil, s.reject("Missing ILP-Peer-Name header")
	}
	req.PeerName = peerName

	clientAddress, err := req.FromAddress.WithSuffix(peerName)
	if err != nil {
		return nil, s.reject("Invalid generated client address")
	}

	resp := ilp.IldcpResponse{
		ClientAddress: clientAddress,
		AssetScale:    s.AssetScale,
		AssetCode:     s.AssetCode,
	}
	return resp.ToFulfill(), nil
}

func (s *ConfigService) reject(message string) *ilp.Reject {
	return ilp.RejectBuilder{
		Code:        ilp.F00BadRequest,
		Message:     []byte(message),
		TriggeredBy: s.Address,
	}.Build()
}
