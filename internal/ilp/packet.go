package ilp

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// PacketType is the one-byte envelope tag.
type PacketType byte

const (
	TypePrepare PacketType = 12
	TypeFulfill PacketType = 13
	TypeReject  PacketType = 14
)

// Field length limits from §3.
const (
	MaxDataLength      = 32768
	MaxMessageLength   = 8192
	ConditionLength    = 32
	FulfillmentLength  = 32
)

// AllZeroFulfillment is the fixed ILDCP fulfillment preimage (§4.1).
var AllZeroFulfillment = [FulfillmentLength]byte{}

// PeerConfigCondition is SHA-256(AllZeroFulfillment), the fixed condition
// every ILDCP Prepare carries.
var PeerConfigCondition = sha256.Sum256(AllZeroFulfillment[:])

// PeerConfigDestination is the well-known ILDCP destination address.
const PeerConfigDestination = "peer.config"

// Prepare is an ILP Prepare packet.
type Prepare struct {
	Amount             uint64
	ExpiresAt          time.Time
	ExecutionCondition [ConditionLength]byte
	Destination        Address
	Data               []byte
}

// Fulfill is an ILP Fulfill packet.
type Fulfill struct {
	Fulfillment [FulfillmentLength]byte
	Data        []byte
}

// Reject is an ILP Reject packet. It implements error so that it can be
// returned directly from a service's Call method.
type Reject struct {
	Code        ErrorCode
	Message     []byte
	TriggeredBy Address
	Data        []byte
}

func (r *Reject) Error() string {
	return fmt.Sprintf("ilp reject %s: %s", r.Code, r.Message)
}

// RejectBuilder constructs a Reject the way the original RejectBuilder does:
// a flat struct of fields assembled at the call site.
type RejectBuilder struct {
	Code        ErrorCode
	Message     []byte
	TriggeredBy Address
	Data        []byte
}

func (b RejectBuilder) Build() *Reject {
	return &Reject{
		Code:        b.Code,
		Message:     b.Message,
		TriggeredBy: b.TriggeredBy,
		Data:        b.Data,
	}
}

// validate checks the field-length invariants (§3). Encode applies it to
// hand-built packets and Parse to decoded ones, since OER length prefixes
// alone only bound a field by MaxVarOctetStringLength.
func (p *Prepare) validate() error {
	if p.Destination == "" {
		return newParseError("prepare.destination", fmt.Errorf("empty"))
	}
	return checkFieldLength("prepare.data", p.Data, MaxDataLength)
}

func (f *Fulfill) validate() error {
	return checkFieldLength("fulfill.data", f.Data, MaxDataLength)
}

func (r *Reject) validate() error {
	if len(r.Code) != 3 {
		return newParseError("reject.code", fmt.Errorf("must be 3 characters"))
	}
	if err := checkFieldLength("reject.message", r.Message, MaxMessageLength); err != nil {
		return err
	}
	return checkFieldLength("reject.data", r.Data, MaxDataLength)
}

// bodyLen returns the encoded body length, used to size the envelope's
// length prefix and the output buffer up front (§4.1 zero-copy discipline).
func (p *Prepare) bodyLen() int {
	return 8 + timestampLength + ConditionLength +
		varOctetStringSize([]byte(p.Destination)) + varOctetStringSize(p.Data)
}

func (f *Fulfill) bodyLen() int {
	return FulfillmentLength + varOctetStringSize(f.Data)
}

func (r *Reject) bodyLen() int {
	return 3 + varOctetStringSize([]byte(r.TriggeredBy)) +
		varOctetStringSize(r.Message) + varOctetStringSize(r.Data)
}

func encodeEnvelope(typ PacketType, bodyLen int) []byte {
	buf := make([]byte, 0, 1+varLengthSize(bodyLen)+bodyLen)
	buf = append(buf, byte(typ))
	buf = writeVarLength(buf, bodyLen)
	return buf
}

// Encode serializes p into a single, pre-sized buffer.
func (p *Prepare) Encode() ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	buf := encodeEnvelope(TypePrepare, p.bodyLen())
	buf = writeUint64(buf, p.Amount)
	buf = append(buf, encodeTimestamp(p.ExpiresAt)...)
	buf = append(buf, p.ExecutionCondition[:]...)
	buf = writeVarOctetString(buf, []byte(p.Destination))
	buf = writeVarOctetString(buf, p.Data)
	return buf, nil
}

// Encode serializes f into a single, pre-sized buffer.
func (f *Fulfill) Encode() ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	buf := encodeEnvelope(TypeFulfill, f.bodyLen())
	buf = append(buf, f.Fulfillment[:]...)
	buf = writeVarOctetString(buf, f.Data)
	return buf, nil
}

// Encode serializes r into a single, pre-sized buffer.
func (r *Reject) Encode() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	buf := encodeEnvelope(TypeReject, r.bodyLen())
	buf = append(buf, r.Code...)
	buf = writeVarOctetString(buf, []byte(r.TriggeredBy))
	buf = writeVarOctetString(buf, r.Message)
	buf = writeVarOctetString(buf, r.Data)
	return buf, nil
}

// Packet is the union of the three wire packet types, returned by Parse.
type Packet struct {
	Prepare *Prepare
	Fulfill *Fulfill
	Reject  *Reject
}

// Parse decodes a single packet envelope from b. b must contain exactly one
// packet; trailing bytes are treated as a truncation/length mismatch error
// to catch malformed or oversized frames early (§4.1).
func Parse(b []byte) (Packet, error) {
	r := newReader(b)
	typ, err := r.readByte()
	if err != nil {
		return Packet{}, err
	}
	bodyLen, err := r.readVarLength()
	if err != nil {
		return Packet{}, err
	}
	body, err := r.readN(bodyLen)
	if err != nil {
		return Packet{}, err
	}
	if r.remaining() != 0 {
		return Packet{}, newParseError("packet", fmt.Errorf("trailing bytes"))
	}
	switch PacketType(typ) {
	case TypePrepare:
		p, err := parsePrepareBody(body)
		if err != nil {
			return Packet{}, err
		}
		if err := p.validate(); err != nil {
			return Packet{}, err
		}
		return Packet{Prepare: p}, nil
	case TypeFulfill:
		f, err := parseFulfillBody(body)
		if err != nil {
			return Packet{}, err
		}
		if err := f.validate(); err != nil {
			return Packet{}, err
		}
		return Packet{Fulfill: f}, nil
	case TypeReject:
		rej, err := parseRejectBody(body)
		if err != nil {
			return Packet{}, err
		}
		if err := rej.validate(); err != nil {
			return Packet{}, err
		}
		return Packet{Reject: rej}, nil
	default:
		return Packet{}, newParseError("packet_type", fmt.Errorf("unknown tag %d", typ))
	}
}

// ParsePrepare parses b as a Prepare packet, rejecting any other packet type.
func ParsePrepare(b []byte) (*Prepare, error) {
	pkt, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if pkt.Prepare == nil {
		return nil, newParseError("packet", fmt.Errorf("expected Prepare"))
	}
	return pkt.Prepare, nil
}

func parsePrepareBody(body []byte) (*Prepare, error) {
	r := newReader(body)
	amount, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	tsBytes, err := r.readN(timestampLength)
	if err != nil {
		return nil, err
	}
	expiresAt, err := decodeTimestamp(tsBytes)
	if err != nil {
		return nil, err
	}
	condBytes, err := r.readN(ConditionLength)
	if err != nil {
		return nil, err
	}
	destBytes, err := r.readVarOctetString()
	if err != nil {
		return nil, err
	}
	if err := ValidateAddress(string(destBytes)); err != nil {
		return nil, err
	}
	data, err := r.readVarOctetString()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, newParseError("prepare", fmt.Errorf("trailing bytes"))
	}
	p := &Prepare{
		Amount:      amount,
		ExpiresAt:   expiresAt,
		Destination: Address(destBytes),
		Data:        append([]byte(nil), data...),
	}
	copy(p.ExecutionCondition[:], condBytes)
	return p, nil
}

func parseFulfillBody(body []byte) (*Fulfill, error) {
	r := newReader(body)
	fulfillBytes, err := r.readN(FulfillmentLength)
	if err != nil {
		return nil, err
	}
	data, err := r.readVarOctetString()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, newParseError("fulfill", fmt.Errorf("trailing bytes"))
	}
	f := &Fulfill{Data: append([]byte(nil), data...)}
	copy(f.Fulfillment[:], fulfillBytes)
	return f, nil
}

func parseRejectBody(body []byte) (*Reject, error) {
	r := newReader(body)
	codeBytes, err := r.readN(3)
	if err != nil {
		return nil, err
	}
	for _, b := range codeBytes {
		if b < 0x20 || b > 0x7e {
			return nil, newParseError("reject.code", fmt.Errorf("non-ASCII"))
		}
	}
	triggeredBy, err := r.readVarOctetString()
	if err != nil {
		return nil, err
	}
	if len(triggeredBy) > 0 {
		if err := ValidateAddress(string(triggeredBy)); err != nil {
			return nil, err
		}
	}
	message, err := r.readVarOctetString()
	if err != nil {
		return nil, err
	}
	data, err := r.readVarOctetString()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, newParseError("reject", fmt.Errorf("trailing bytes"))
	}
	return &Reject{
		Code:        ErrorCode(codeBytes),
		Message:     append([]byte(nil), message...),
		TriggeredBy: Address(triggeredBy),
		Data:        append([]byte(nil), data...),
	}, nil
}
