// Package services implements the incoming-packet pipeline: expiry
// enforcement, peer classification, ILDCP provisioning, echo handling,
// debug logging, and the telemetry gate that sits in front of the router
// (§4.3).
package services

import (
	"net/http"

	"github.com/interledger/relay-connector/internal/router"

	"github.com/interledger/relay-connector/internal/ilp"
)

// Request carries a parsed Prepare plus the annotations later pipeline
// stages add as they run. The original grows the request's static type at
// each stage; this port uses one struct whose fields become valid only
// once the stage that populates them has run:
//
//   - Headers is valid from Receiver onward.
//   - FromAccount, FromRelation, FromAddress are valid from FromPeer onward.
//   - PeerName is valid only for an ILDCP request, once ConfigService reads
//     the ILP-Peer-Name header.
type Request struct {
	Prepare *ilp.Prepare
	Headers http.Header

	FromAccount  string
	FromRelation router.Relation
	FromAddress  ilp.Address

	PeerName string
}

// BearerToken returns the Authorization header with any "Bearer " prefix
// stripped, matching the AuthToken middleware's comparison (§4.2).
func (r *Request) BearerToken() string {
	auth := r.Headers.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return auth
}
