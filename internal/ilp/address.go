package ilp

import "strings"

// MaxAddressLength is the maximum total length of an ILP address, in bytes.
const MaxAddressLength = 1023

// Addr is a borrowed, already-validated view over address bytes: it never
// allocates and is used where the underlying buffer is known to outlive the
// view (e.g. a slice of the packet buffer currently being parsed). Address
// is the owning counterpart used once a value must outlive its source
// buffer (config, long-lived peer records, derived addresses).
//
// Go has no borrow checker, so the distinction the original Rust code
// enforces at compile time is preserved here only as two named types with
// identical validation and a conversion method; callers are expected not to
// retain an Addr past the lifetime of its backing buffer.
type Addr string

// Address owns its bytes.
type Address string

// ToAddress copies a into an owning Address.
func (a Addr) ToAddress() Address { return Address(a) }

// AsAddr returns a borrowed view of the same bytes.
func (a Address) AsAddr() Addr { return Addr(a) }

func (a Addr) String() string    { return string(a) }
func (a Address) String() string { return string(a) }

// isAddressByte reports whether b is legal within an ILP address segment:
// [A-Za-z0-9_-].
func isAddressByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z':
		return true
	case b >= 'a' && b <= 'z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '_' || b == '-':
		return true
	default:
		return false
	}
}

// ValidateAddress checks that s is 1..=1023 bytes, dot-separated, every
// segment non-empty, and every byte in [A-Za-z0-9_-.].
func ValidateAddress(s string) error {
	if len(s) == 0 || len(s) > MaxAddressLength {
		return newParseError("address", ErrInvalidAddress)
	}
	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if len(seg) == 0 {
			return newParseError("address", ErrInvalidAddress)
		}
		for i := 0; i < len(seg); i++ {
			if !isAddressByte(seg[i]) {
				return newParseError("address", ErrInvalidAddress)
			}
		}
	}
	return nil
}

// NewAddress validates s and returns it as an Address.
func NewAddress(s string) (Address, error) {
	if err := ValidateAddress(s); err != nil {
		return "", err
	}
	return Address(s), nil
}

// MustAddress panics if s is not a valid address. Intended for tests and
// fixed constants, never for data derived from network input.
func MustAddress(s string) Address {
	addr, err := NewAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// ValidateAddressSegment checks that s is a single legal address segment:
// non-empty, every byte in [A-Za-z0-9_-]. Used to validate the
// ILP-Peer-Name header and Multilateral next-hop segments.
func ValidateAddressSegment(s string) error {
	if len(s) == 0 {
		return newParseError("address segment", ErrInvalidAddress)
	}
	for i := 0; i < len(s); i++ {
		if !isAddressByte(s[i]) {
			return newParseError("address segment", ErrInvalidAddress)
		}
	}
	return nil
}

// WithSuffix returns a new Address formed by appending ".suffix" to a,
// validating the result. Used by ConfigService (§4.3.3) to derive a child's
// address from its parent's address and peer name.
func (a Address) WithSuffix(suffix string) (Address, error) {
	if err := ValidateAddressSegment(suffix); err != nil {
		return "", err
	}
	joined := string(a) + "." + suffix
	return NewAddress(joined)
}

// SplitConnectionTag strips a STREAM connection tag from a destination
// address before it is logged to telemetry, so that many packets on the
// same STREAM connection aggregate under one destination (§4.3.6). STREAM
// tags this connector's peers use embed the tag after a literal "~" in the
// address; an address with no "~" is returned unchanged.
func (a Address) SplitConnectionTag() Address {
	if i := strings.IndexByte(string(a), '~'); i >= 0 {
		return a[:i]
	}
	return a
}

// IsPrefixOf reports whether a is a dot-delimited address prefix of other,
// or equal to it. Used by the echo-loop guard (§4.3.4): an echo source that
// is a prefix of, or equal to, the connector's own address would re-enter
// the connector.
func (a Address) IsPrefixOf(other Address) bool {
	as, os := string(a), string(other)
	if as == os {
		return true
	}
	return strings.HasPrefix(os, as+".")
}
