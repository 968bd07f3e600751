package ilp

import (
	"encoding/binary"
	"fmt"
)

// MaxVarOctetStringLength bounds any single var-octet-string field this
// codec will accept; individual callers apply tighter, field-specific caps
// (§3: data ≤ 32768, message ≤ 8192, triggered_by is an address ≤ 1023).
const MaxVarOctetStringLength = 1 << 20

// reader walks a byte slice without copying, tracking only a cursor. All
// Read* methods return ErrInvalidPacket (wrapped) on underrun.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, newParseError("packet", ErrInvalidPacket)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readN(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, newParseError("packet", ErrInvalidPacket)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readUint64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// readVarLength reads an OER variable-length unsigned length: one byte if
// < 128, otherwise the high bit is set and the low 7 bits give the count of
// following big-endian length bytes (1..=8).
func (r *reader) readVarLength() (int, error) {
	first, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if first&0x80 == 0 {
		return int(first), nil
	}
	count := int(first & 0x7f)
	if count == 0 || count > 8 {
		return 0, newParseError("length", ErrInvalidPacket)
	}
	lenBytes, err := r.readN(count)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, b := range lenBytes {
		n = n<<8 | uint64(b)
	}
	if n > MaxVarOctetStringLength {
		return 0, newParseError("length", ErrInvalidPacket)
	}
	return int(n), nil
}

// readVarOctetString reads a length-prefixed octet string, returning a
// sub-slice of the original buffer (no copy).
func (r *reader) readVarOctetString() ([]byte, error) {
	n, err := r.readVarLength()
	if err != nil {
		return nil, err
	}
	return r.readN(n)
}

// writeVarLength appends the OER variable-length encoding of n to buf.
func writeVarLength(buf []byte, n int) []byte {
	if n < 128 {
		return append(buf, byte(n))
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(n))
	start := 0
	for start < 7 && tmp[start] == 0 {
		start++
	}
	lenBytes := tmp[start:]
	buf = append(buf, 0x80|byte(len(lenBytes)))
	return append(buf, lenBytes...)
}

// varLengthSize returns how many bytes writeVarLength(nil, n) would produce.
func varLengthSize(n int) int {
	if n < 128 {
		return 1
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(n))
	start := 0
	for start < 7 && tmp[start] == 0 {
		start++
	}
	return 1 + (8 - start)
}

// writeVarOctetString appends the length-prefixed encoding of data to buf.
func writeVarOctetString(buf []byte, data []byte) []byte {
	buf = writeVarLength(buf, len(data))
	return append(buf, data...)
}

func varOctetStringSize(data []byte) int {
	return varLengthSize(len(data)) + len(data)
}

func writeUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// ReadAddressVarOctetString decodes a single length-prefixed address out of
// the head of data (trailing bytes, if any, are ignored), used by
// EchoService to pull the source address out of an echo request's payload
// (§4.3.4, grounded on the original's peek_var_octet_string).
func ReadAddressVarOctetString(data []byte) (Address, error) {
	r := newReader(data)
	addrBytes, err := r.readVarOctetString()
	if err != nil {
		return "", err
	}
	if err := ValidateAddress(string(addrBytes)); err != nil {
		return "", err
	}
	return Address(addrBytes), nil
}

// checkFieldLength returns a *ParseError if len(data) exceeds max.
func checkFieldLength(field string, data []byte, max int) error {
	if len(data) > max {
		return newParseError(field, fmt.Errorf("exceeds max length %d", max))
	}
	return nil
}
