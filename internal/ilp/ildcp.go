package ilp

import (
	"fmt"
	"time"
)

// IldcpRequest is a Prepare to peer.config carrying no payload beyond the
// fixed ILDCP condition (§3, §4.1).
type IldcpRequest struct{}

// NewIldcpRequestPrepare builds the Prepare wire representation of an ILDCP
// request. expiresAt is the caller's chosen deadline; amount is always 0.
func NewIldcpRequestPrepare(expiresAt time.Time) *Prepare {
	return &Prepare{
		Amount:             0,
		ExpiresAt:          expiresAt,
		ExecutionCondition: PeerConfigCondition,
		Destination:        PeerConfigDestination,
		Data:               nil,
	}
}

// IsIldcpRequest reports whether p is addressed to the ILDCP destination.
func IsIldcpRequest(p *Prepare) bool {
	return string(p.Destination) == PeerConfigDestination
}

// IldcpResponse carries the client's provisioned address, asset scale, and
// asset code, encoded inside a Fulfill.Data payload (§3, §4.1).
type IldcpResponse struct {
	ClientAddress Address
	AssetScale    uint8
	AssetCode     []byte
}

// ToFulfill encodes r as the Fulfill an ILDCP responder returns.
func (r IldcpResponse) ToFulfill() *Fulfill {
	buf := make([]byte, 0, varOctetStringSize([]byte(r.ClientAddress))+1+varOctetStringSize(r.AssetCode))
	buf = writeVarOctetString(buf, []byte(r.ClientAddress))
	buf = append(buf, r.AssetScale)
	buf = writeVarOctetString(buf, r.AssetCode)
	return &Fulfill{
		Fulfillment: AllZeroFulfillment,
		Data:        buf,
	}
}

// ParseIldcpResponse decodes an ILDCP response payload out of a Fulfill.
func ParseIldcpResponse(f *Fulfill) (IldcpResponse, error) {
	r := newReader(f.Data)
	addrBytes, err := r.readVarOctetString()
	if err != nil {
		return IldcpResponse{}, err
	}
	if err := ValidateAddress(string(addrBytes)); err != nil {
		return IldcpResponse{}, err
	}
	scale, err := r.readByte()
	if err != nil {
		return IldcpResponse{}, err
	}
	code, err := r.readVarOctetString()
	if err != nil {
		return IldcpResponse{}, err
	}
	if r.remaining() != 0 {
		return IldcpResponse{}, newParseError("ildcp_response", fmt.Errorf("trailing bytes"))
	}
	return IldcpResponse{
		ClientAddress: Address(addrBytes),
		AssetScale:    scale,
		AssetCode:     append([]byte(nil), code...),
	}, nil
}
